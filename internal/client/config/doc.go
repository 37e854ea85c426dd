// Package config loads runtime configuration for the PrimeAuth CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the identity service API
//	-t int      request timeout (seconds)
//	-d string   SQLite token store path; "" keeps tokens in memory
//	-r int      one-time code resend cool-down (seconds)
//	-n int      session restore attempts
//
// # JSON schema
//
// Durations use timex.Duration, so values can be either strings like "10s"
// or integer nanoseconds. Keys absent from the file keep their defaults:
//
//	{
//	  "identity_url": "http://localhost:8000/api",
//	  "request_timeout": "10s",
//	  "token_store": "session.db",
//	  "resend_cooldown": "1m",
//	  "restore_attempts": 3
//	}
//
// Environment variables are not read.
package config
