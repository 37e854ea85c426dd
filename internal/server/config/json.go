package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/primeauth/internal/flagx"
	"github.com/dmitrijs2005/primeauth/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration, so
// both "10m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddr                 string         `json:"endpoint_addr"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	OTPValidityDuration          timex.Duration `json:"otp_validity_duration"`
	ResendInterval               timex.Duration `json:"resend_interval"`
	VerifyWithoutTokens          *bool          `json:"verify_without_tokens"`
}

// parseJson overlays values from the JSON file named by -c / -config onto
// config. Keys absent from the file keep their current values. A missing flag
// loads nothing; an unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.OTPValidityDuration.Duration != 0 {
		config.OTPValidityDuration = c.OTPValidityDuration.Duration
	}
	if c.ResendInterval.Duration != 0 {
		config.ResendInterval = c.ResendInterval.Duration
	}
	if c.VerifyWithoutTokens != nil {
		config.VerifyWithoutTokens = *c.VerifyWithoutTokens
	}
}
