package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, "", "", map[string]any{
		"endpoint_addr":                   "www.example:9000",
		"secret_key":                      "my_secret_key",
		"access_token_validity_duration":  "1m",
		"refresh_token_validity_duration": "3m",
		"otp_validity_duration":           "5m",
		"resend_interval":                 int64(30 * time.Second),
		"verify_without_tokens":           true,
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", path}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, Config{
			EndpointAddr:                 "www.example:9000",
			SecretKey:                    "my_secret_key",
			AccessTokenValidityDuration:  time.Minute,
			RefreshTokenValidityDuration: 3 * time.Minute,
			OTPValidityDuration:          5 * time.Minute,
			ResendInterval:               30 * time.Second,
			VerifyWithoutTokens:          true,
		}, *cfg)
	})

	t.Run("absent keys keep values", func(t *testing.T) {
		partial := writeTempJSON(t, "", "", map[string]any{"secret_key": "k2"})
		os.Args = []string{"testbin", "-c", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "k2", cfg.SecretKey)
		assert.Equal(t, ":8000", cfg.EndpointAddr)
		assert.Equal(t, 10*time.Minute, cfg.OTPValidityDuration)
	})

	t.Run("no config flag → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{EndpointAddr: "defaults:1234", SecretKey: "key"}
		parseJson(cfg)

		assert.Equal(t, Config{EndpointAddr: "defaults:1234", SecretKey: "key"}, *cfg)
	})

	t.Run("bad json panics", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
		os.Args = []string{"testbin", "-c", bad}

		require.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(t.TempDir(), "nope.json")}
		require.Panics(t, func() { parseJson(&Config{}) })
	})
}
