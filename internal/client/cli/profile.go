package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/primeauth/internal/client/models"
)

// WhoAmI reloads and prints the current account.
func (a *App) WhoAmI(ctx context.Context) error {
	if !a.isAuthenticated() {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}
	if err := a.session.ReloadProfile(ctx); err != nil {
		return err
	}

	u := a.session.State().User
	if u == nil {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}

	fmt.Fprintf(a.out, "%s <%s>\n", u.Username, u.Email)
	if p := u.Profile; p != nil {
		fmt.Fprintf(a.out, "Name:    %s %s\n", p.FirstName, p.LastName)
		fmt.Fprintf(a.out, "Address: %s, %s, %s %s, %s\n", p.Address, p.City, p.State, p.ZipCode, p.Country)
	}
	return nil
}

// Profile prompts for each profile field, offering the current value as the
// default, and saves the result.
func (a *App) Profile(ctx context.Context) error {
	u := a.session.State().User
	if u == nil {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}

	var p models.Profile
	if u.Profile != nil {
		p = *u.Profile
	}

	fields := []struct {
		label string
		value *string
	}{
		{"First name", &p.FirstName},
		{"Last name", &p.LastName},
		{"Address", &p.Address},
		{"City", &p.City},
		{"State", &p.State},
		{"Zip code", &p.ZipCode},
		{"Country", &p.Country},
	}

	for _, f := range fields {
		v, err := getSimpleText(a.reader, fmt.Sprintf("%s [%s]", f.label, *f.value), a.out)
		if err != nil {
			return err
		}
		if v != "" {
			*f.value = v
		}
	}

	if err := a.session.UpdateProfile(ctx, p); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Profile updated.")
	return nil
}
