package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL dispatches to. The real App
// satisfies it; tests provide a lightweight stub.
type execIface interface {
	isAuthenticated() bool
	Register(ctx context.Context) error
	Verify(ctx context.Context) error
	Resend(ctx context.Context) error
	Login(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Profile(ctx context.Context) error
	Forgot(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads commands from reader until EOF, "exit" or "quit".
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  - register       create an account
//	  - verify         confirm the account with the emailed code
//	  - resend         request a new verification code
//	  - login          authenticate
//	  - forgot         reset a forgotten password
//
//	Logged in:
//	  - whoami         show the current account
//	  - profile        update profile details
//	  - logout         log out
//
// help and exit | quit are always available. Handler errors are reported
// and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("pa%s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		var cmdErr error

		switch cmd {
		case "help":
			if a.isAuthenticated() {
				printlnFn("Available commands: whoami, profile, logout, exit")
			} else {
				printlnFn("Available commands: register, verify, resend, login, forgot, exit")
			}

		case "register":
			cmdErr = a.Register(ctx)

		case "verify":
			cmdErr = a.Verify(ctx)

		case "resend":
			cmdErr = a.Resend(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "whoami":
			cmdErr = a.WhoAmI(ctx)

		case "profile":
			cmdErr = a.Profile(ctx)

		case "forgot":
			cmdErr = a.Forgot(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", describe(cmdErr))
		}
	}
}
