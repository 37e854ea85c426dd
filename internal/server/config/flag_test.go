package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"cmd", "-a", "127.0.0.1:9090", "-s", "secret", "-t", "1", "-r", "3", "-o", "2", "-i", "30"},
			expected: &Config{
				EndpointAddr:                 "127.0.0.1:9090",
				SecretKey:                    "secret",
				AccessTokenValidityDuration:  1 * time.Minute,
				RefreshTokenValidityDuration: 3 * time.Minute,
				OTPValidityDuration:          2 * time.Minute,
				ResendInterval:               30 * time.Second,
			},
		},
		{
			name: "foreign flags are ignored",
			args: []string{"cmd", "-c", "cfg.json", "-a", ":1"},
			expected: &Config{
				EndpointAddr: ":1",
			},
		},
		{
			name:        "bad number",
			args:        []string{"cmd", "-t", "soon"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			config := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}
			require.NotPanics(t, func() { parseFlags(config) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
