package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/primeauth/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   identity service base URL
//	-t int      request timeout in seconds
//	-d string   token store path
//	-r int      resend cool-down in seconds
//	-n int      session restore attempts
//
// os.Args is filtered through flagx.FilterArgs first so the config file flag
// does not trip the parser.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-d", "-r", "-n"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.IdentityURL, "a", cfg.IdentityURL, "identity service base URL")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.TokenStore, "d", cfg.TokenStore, "token store file, empty for in-memory")
	resendCooldown := fs.Int("r", int(cfg.ResendCooldown.Seconds()), "resend cool-down (in seconds)")
	fs.IntVar(&cfg.RestoreAttempts, "n", cfg.RestoreAttempts, "session restore attempts")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
	cfg.ResendCooldown = time.Duration(*resendCooldown) * time.Second
}
