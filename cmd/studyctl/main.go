// studyctl is the operator tool for study profiles. It talks to the same
// document store as the API server, using the same configuration.
//
// Usage:
//
//	studyctl state <user-id> [--username name]
//	studyctl login <user-id> [--username name]
//	studyctl survey <user-id> <survey-key> [--incomplete]
//	studyctl reset <user-id> [--soft] [--username name]
//	studyctl set <user-id> --count n [--group control|treatment]
//	studyctl migrate [user-id...] [--users-file path] [--force]
//	studyctl token <user-id> [--username name] [--ttl 24h]
//	studyctl hash-token <token> [--cost n]
//
// Every command accepts --config to point at a config file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// errUsage marks errors caused by bad invocation
var errUsage = errors.New("usage")

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *cliEnv, args []string) error
}

var commands = []command{
	{"state", "show (creating if needed) a user's profile", runState},
	{"login", "register a login for a user", runLogin},
	{"survey", "mark a survey complete or incomplete", runSurvey},
	{"reset", "reset a user to a fresh profile", runReset},
	{"set", "override login count and group", runSet},
	{"migrate", "convert session-metadata documents into profiles", runMigrate},
	{"token", "mint an identity token for local testing", runToken},
	{"hash-token", "bcrypt-hash a debug token for Debug.TokenHash", runHashToken},
}

// cliEnv carries the process streams so commands can be tested
type cliEnv struct {
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := &cliEnv{stdout: os.Stdout, stderr: os.Stderr}
	if err := run(ctx, env, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(env.stderr)
		if len(args) == 0 {
			return fmt.Errorf("%w: no command given", errUsage)
		}
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(ctx, env, args[1:])
		}
	}
	printUsage(env.stderr)
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: studyctl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-11s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'studyctl <command> --help' for the flags of a command.")
}
