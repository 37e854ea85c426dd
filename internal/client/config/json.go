package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/primeauth/internal/flagx"
	"github.com/dmitrijs2005/primeauth/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. TokenStore is a
// pointer so an explicit "" can select the in-memory store.
type JsonConfig struct {
	IdentityURL     string         `json:"identity_url"`
	RequestTimeout  timex.Duration `json:"request_timeout"`
	TokenStore      *string        `json:"token_store"`
	ResendCooldown  timex.Duration `json:"resend_cooldown"`
	RestoreAttempts int            `json:"restore_attempts"`
}

// parseJson overlays cfg with values from the JSON file named by -c / -config.
// No flag means nothing is loaded; read or unmarshal errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFileFlag(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.IdentityURL != "" {
		cfg.IdentityURL = jc.IdentityURL
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.TokenStore != nil {
		cfg.TokenStore = *jc.TokenStore
	}
	if jc.ResendCooldown.Duration != 0 {
		cfg.ResendCooldown = jc.ResendCooldown.Duration
	}
	if jc.RestoreAttempts != 0 {
		cfg.RestoreAttempts = jc.RestoreAttempts
	}
}
