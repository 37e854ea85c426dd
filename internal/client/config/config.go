package config

import "time"

// Config holds runtime settings for the PrimeAuth CLI.
//
// Fields:
//   - IdentityURL: base URL of the identity service API.
//   - RequestTimeout: upper bound for a single remote call.
//   - TokenStore: path of the SQLite file holding the token pair; empty keeps
//     the pair in memory only.
//   - ResendCooldown: advisory pause between one-time code resends.
//   - RestoreAttempts: how many times a cached session restore is tried
//     before giving up on a network failure.
type Config struct {
	IdentityURL     string
	RequestTimeout  time.Duration
	TokenStore      string
	ResendCooldown  time.Duration
	RestoreAttempts int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.IdentityURL = "http://localhost:8000/api"
	c.RequestTimeout = 10 * time.Second
	c.TokenStore = "session.db"
	c.ResendCooldown = 60 * time.Second
	c.RestoreAttempts = 3
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
