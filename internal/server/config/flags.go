package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/primeauth/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-o int      one-time code validity, minutes
//	-i int      minimum interval between code resends, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, so the config file flag does not trip the parser.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-s", "-t", "-r", "-o", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")
	otpValidityDuration := fs.Int("o", int(config.OTPValidityDuration.Minutes()), "otp_validity_duration (in minutes)")
	resendInterval := fs.Int("i", int(config.ResendInterval.Seconds()), "resend_interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.OTPValidityDuration = time.Duration(*otpValidityDuration) * time.Minute
	config.ResendInterval = time.Duration(*resendInterval) * time.Second
}
