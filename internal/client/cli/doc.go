// Package cli provides the interactive PrimeAuth command-line client.
//
// It wires configuration, the token store, the identity API client and the
// session manager, restores a cached session on start and then runs a REPL
// over the account lifecycle: registration, code verification, login,
// profile maintenance, password reset and logout.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// Commands only talk to the session manager; token storage is never touched
// from here.
package cli
