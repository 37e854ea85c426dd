package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/primeauth/internal/client/models"
	"github.com/dmitrijs2005/primeauth/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/primeauth/internal/logging"
	"golang.org/x/sync/singleflight"
)

// AuthorizedCall is a request that needs a bearer access token.
type AuthorizedCall func(ctx context.Context, accessToken string) error

// Interceptor attaches the stored access token to calls and recovers from an
// expired one with a single refresh-and-retry cycle.
//
// Writes to the token store go through Store and Discard. Each write bumps a
// generation, and a refresh only applies its outcome if no other write
// happened while it was in flight.
type Interceptor struct {
	refresher Refresher
	tokens    tokens.Repository
	logger    logging.Logger
	flights   singleflight.Group

	storeMu sync.Mutex
	gen     uint64

	mu        sync.Mutex
	onExpired []func(ctx context.Context)
}

func NewInterceptor(r Refresher, store tokens.Repository, l logging.Logger) *Interceptor {
	return &Interceptor{
		refresher: r,
		tokens:    store,
		logger:    l.With("module", "interceptor"),
	}
}

// OnSessionExpired registers fn to run after a failed refresh has cleared
// the token pair. Hooks run before any later Store or Discard completes, so
// fn must not call either.
func (i *Interceptor) OnSessionExpired(fn func(ctx context.Context)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onExpired = append(i.onExpired, fn)
}

// Store saves pair as the current one. A refresh in flight for an earlier
// pair will not overwrite it.
func (i *Interceptor) Store(ctx context.Context, pair models.TokenPair) error {
	i.storeMu.Lock()
	defer i.storeMu.Unlock()

	i.gen++
	return i.tokens.Set(ctx, pair)
}

// Discard removes the stored pair. A refresh in flight will neither restore
// it nor report the session as expired.
func (i *Interceptor) Discard(ctx context.Context) error {
	i.storeMu.Lock()
	defer i.storeMu.Unlock()

	i.gen++
	return i.tokens.Clear(ctx)
}

// Do runs call with the current access token. When call fails with
// ErrUnauthorized it is re-issued exactly once after a refresh; if the
// refresh itself fails the pair is cleared and call's original error is
// returned.
func (i *Interceptor) Do(ctx context.Context, call AuthorizedCall) error {
	pair, err := i.tokens.Get(ctx)
	if err != nil {
		return err
	}
	if pair == nil {
		return ErrUnauthorized
	}

	err = call(ctx, pair.AccessToken)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	access, refreshErr := i.refreshAfter(ctx, *pair)
	if refreshErr != nil {
		i.logger.Debug(ctx, "request not retried", "error", refreshErr)
		return err
	}
	return call(ctx, access)
}

// current reads the stored pair together with its generation.
func (i *Interceptor) current(ctx context.Context) (*models.TokenPair, uint64, error) {
	i.storeMu.Lock()
	defer i.storeMu.Unlock()

	pair, err := i.tokens.Get(ctx)
	return pair, i.gen, err
}

// refreshAfter returns an access token newer than stale's. Callers that
// observed the same stale pair share one refresh request.
func (i *Interceptor) refreshAfter(ctx context.Context, stale models.TokenPair) (string, error) {
	// the shared flight must not be cancelled by whichever caller started it
	flightCtx := context.WithoutCancel(ctx)

	v, err, shared := i.flights.Do(stale.RefreshToken, func() (any, error) {
		current, gen, err := i.current(flightCtx)
		if err != nil {
			return "", err
		}
		if current == nil {
			return "", fmt.Errorf("%w: session was cleared", ErrRefreshFailed)
		}
		if current.AccessToken != stale.AccessToken {
			return current.AccessToken, nil
		}

		fresh, refreshErr := i.refresher.Refresh(flightCtx, current.RefreshToken)

		i.storeMu.Lock()
		defer i.storeMu.Unlock()

		if i.gen != gen {
			i.logger.Debug(flightCtx, "token pair replaced during refresh, result dropped")
			return "", fmt.Errorf("%w: session changed during refresh", ErrRefreshFailed)
		}
		i.gen++

		if refreshErr != nil {
			i.expire(flightCtx, refreshErr)
			return "", fmt.Errorf("%w: %w", ErrRefreshFailed, refreshErr)
		}

		next := models.TokenPair{AccessToken: fresh.AccessToken, RefreshToken: current.RefreshToken}
		if fresh.RefreshToken != "" {
			next.RefreshToken = fresh.RefreshToken
		}
		if err := i.tokens.Set(flightCtx, next); err != nil {
			return "", err
		}
		i.logger.Info(flightCtx, "access token refreshed")
		return next.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		i.logger.Debug(ctx, "joined in-flight refresh")
	}
	return v.(string), nil
}

// expire clears the pair and runs the expiry hooks. storeMu must be held.
func (i *Interceptor) expire(ctx context.Context, cause error) {
	i.logger.Warn(ctx, "token refresh failed, clearing session", "error", cause)
	if err := i.tokens.Clear(ctx); err != nil {
		i.logger.Error(ctx, "failed to clear token pair", "error", err)
	}

	i.mu.Lock()
	hooks := append([]func(context.Context){}, i.onExpired...)
	i.mu.Unlock()

	for _, fn := range hooks {
		fn(ctx)
	}
}
