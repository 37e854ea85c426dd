// Package config handles configuration for the identity service stand-in,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the identity service.
//
// Fields:
//   - EndpointAddr: bind address of the HTTP API.
//   - SecretKey: HMAC secret for signing JWTs (HS256). Do not use test defaults in prod.
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
//   - OTPValidityDuration: lifetime of verification and reset codes.
//   - ResendInterval: minimum time between verification code resends; zero disables throttling.
//   - VerifyWithoutTokens: confirm accounts without issuing a token pair.
type Config struct {
	EndpointAddr                 string
	SecretKey                    string
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
	OTPValidityDuration          time.Duration
	ResendInterval               time.Duration
	VerifyWithoutTokens          bool
}

// LoadDefaults populates Config with development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8000"
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 5 * time.Minute
	c.RefreshTokenValidityDuration = 24 * time.Hour
	c.OTPValidityDuration = 10 * time.Minute
	c.ResendInterval = 0
	c.VerifyWithoutTokens = false
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
