package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ArowuTest/study-profile-backend/internal/bootstrap"
	"github.com/ArowuTest/study-profile-backend/internal/config"
	"github.com/ArowuTest/study-profile-backend/pkg/jwt"
	"github.com/ArowuTest/study-profile-backend/pkg/logger"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

// flags wraps a command's flag set with the options every command shares
type flags struct {
	*pflag.FlagSet
	configPath string
	out        io.Writer
}

func newFlags(name string, env *cliEnv) *flags {
	f := &flags{FlagSet: pflag.NewFlagSet("studyctl "+name, pflag.ContinueOnError), out: env.stderr}
	f.SetOutput(env.stderr)
	f.StringVar(&f.configPath, "config", "", "config file (default: config.yaml in . or ./config)")
	return f
}

// parse parses args and checks the number of positional arguments.
// It reports done when --help was requested.
func (f *flags) parse(args []string, minArgs, maxArgs int) (done bool, err error) {
	if err := f.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, fmt.Errorf("%w: %v", errUsage, err)
	}
	n := f.NArg()
	if n < minArgs || (maxArgs >= 0 && n > maxArgs) {
		fmt.Fprintf(f.out, "Usage of %s:\n", f.Name())
		f.PrintDefaults()
		return false, fmt.Errorf("%w: %s expects %s", errUsage, f.Name(), argCount(minArgs, maxArgs))
	}
	return false, nil
}

func argCount(minArgs, maxArgs int) string {
	switch {
	case minArgs == maxArgs:
		return fmt.Sprintf("%d argument(s)", minArgs)
	case maxArgs < 0:
		return fmt.Sprintf("at least %d argument(s)", minArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", minArgs, maxArgs)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	return config.Load(path)
}

// openStudy connects to the configured store and wires the study services
func openStudy(ctx context.Context, configPath string) (*bootstrap.Study, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	zl, err := logger.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return nil, nil, err
	}
	store, cleanup, err := bootstrap.OpenStore(ctx, cfg, zl)
	if err != nil {
		return nil, nil, err
	}
	return bootstrap.NewStudy(cfg, store, zl), func() {
		cleanup(context.Background())
		_ = zl.Sync()
	}, nil
}

func printJSON(env *cliEnv, v any) error {
	enc := json.NewEncoder(env.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runState(ctx context.Context, env *cliEnv, args []string) error {
	f := newFlags("state", env)
	username := f.String("username", "", "username used for group assignment when the profile is created")
	if done, err := f.parse(args, 1, 1); done || err != nil {
		return err
	}

	study, closeFn, err := openStudy(ctx, f.configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	profile, err := study.Service.GetUserState(ctx, f.Arg(0), *username)
	if err != nil {
		return err
	}
	return printJSON(env, profile)
}

func runLogin(ctx context.Context, env *cliEnv, args []string) error {
	f := newFlags("login", env)
	username := f.String("username", "", "username used for group assignment when the profile is created")
	if done, err := f.parse(args, 1, 1); done || err != nil {
		return err
	}

	study, closeFn, err := openStudy(ctx, f.configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	profile, err := study.Service.RegisterLogin(ctx, f.Arg(0), *username)
	if err != nil {
		return err
	}
	return printJSON(env, profile)
}

func runSurvey(ctx context.Context, env *cliEnv, args []string) error {
	f := newFlags("survey", env)
	incomplete := f.Bool("incomplete", false, "clear the flag instead of setting it")
	if done, err := f.parse(args, 2, 2); done || err != nil {
		return err
	}

	study, closeFn, err := openStudy(ctx, f.configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	profile, err := study.Service.SetSurveyStatus(ctx, f.Arg(0), f.Arg(1), !*incomplete)
	if err != nil {
		return err
	}
	return printJSON(env, profile)
}

func runReset(ctx context.Context, env *cliEnv, args []string) error {
	f := newFlags("reset", env)
	soft := f.Bool("soft", false, "overwrite the profile in place instead of deleting it first")
	username := f.String("username", "", "username used for group assignment")
	if done, err := f.parse(args, 1, 1); done || err != nil {
		return err
	}

	study, closeFn, err := openStudy(ctx, f.configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	profile, err := study.Service.DebugResetUser(ctx, f.Arg(0), *username, !*soft)
	if err != nil {
		return err
	}
	return printJSON(env, profile)
}

func runSet(ctx context.Context, env *cliEnv, args []string) error {
	f := newFlags("set", env)
	count := f.Int("count", 0, "login count to store")
	group := f.String("group", "", "experiment group: control or treatment (unchanged when empty)")
	username := f.String("username", "", "username used for group assignment when the profile is created")
	if done, err := f.parse(args, 1, 1); done || err != nil {
		return err
	}
	if !f.Changed("count") {
		return fmt.Errorf("%w: --count is required", errUsage)
	}

	study, closeFn, err := openStudy(ctx, f.configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	var groupPtr *string
	if f.Changed("group") {
		groupPtr = group
	}
	profile, err := study.Service.DebugSetState(ctx, f.Arg(0), *count, groupPtr, *username)
	if err != nil {
		return err
	}
	return printJSON(env, profile)
}

func runMigrate(ctx context.Context, env *cliEnv, args []string) error {
	f := newFlags("migrate", env)
	usersFile := f.String("users-file", "", "file with one user id per line")
	force := f.Bool("force", false, "overwrite profiles that already exist")
	if done, err := f.parse(args, 0, -1); done || err != nil {
		return err
	}

	userIDs := append([]string(nil), f.Args()...)
	if *usersFile != "" {
		fromFile, err := readUserIDs(*usersFile)
		if err != nil {
			return err
		}
		userIDs = append(userIDs, fromFile...)
	}
	if len(userIDs) == 0 {
		return fmt.Errorf("%w: no user ids given", errUsage)
	}

	study, closeFn, err := openStudy(ctx, f.configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	results, migrateErr := study.Migration.MigrateUsers(ctx, userIDs, *force)
	if err := printJSON(env, results); err != nil {
		return err
	}
	return migrateErr
}

// readUserIDs reads one id per line, skipping blanks and # comments
func readUserIDs(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var ids []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ids, nil
}

func runToken(_ context.Context, env *cliEnv, args []string) error {
	f := newFlags("token", env)
	username := f.String("username", "", "preferred_username claim")
	ttl := f.Duration("ttl", 0, "token lifetime (default: Auth.TokenTTL)")
	if done, err := f.parse(args, 1, 1); done || err != nil {
		return err
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("no JWT secret configured (Auth.JWTSecret)")
	}
	lifetime := cfg.Auth.TokenTTL
	if f.Changed("ttl") {
		lifetime = *ttl
	}

	token, err := jwt.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, lifetime).
		Issue(jwt.Identity{UserID: f.Arg(0), Username: *username})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(env.stdout, token)
	return err
}

func runHashToken(_ context.Context, env *cliEnv, args []string) error {
	f := newFlags("hash-token", env)
	cost := f.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	if done, err := f.parse(args, 1, 1); done || err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(f.Arg(0)), *cost)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(env.stdout, string(hash))
	return err
}
