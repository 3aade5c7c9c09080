package main

import (
	"bufio"
	"civicportal/internal/auth"
	"civicportal/internal/config"
	"civicportal/internal/model"
	"civicportal/internal/service"
	"civicportal/internal/session"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx      context.Context
	Config   config.Config
	Repo     model.Repository
	Sessions session.Store
	Auth     *service.AuthService
	Users    *service.UserService
	Stdin    io.Reader
	Stdout   io.Writer
}

// readPassword is swapped in tests to avoid touching the terminal.
var readPassword = term.ReadPassword

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(2)
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmdName)
		printUsage(os.Stderr)
		os.Exit(2)
	}

	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("load config")
		os.Exit(1)
	}
	cfg.ConfigureLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx, cleanup, err := newCommandContext(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Error("initialise")
		os.Exit(1)
	}
	runErr := cmd.run(cmdCtx, os.Args[2:])
	cleanup()
	if runErr != nil {
		logrus.WithError(runErr).WithField("command", cmdName).Error("command failed")
		os.Exit(1)
	}
}

func newCommandContext(ctx context.Context, cfg config.Config) (*commandContext, func(), error) {
	repo, err := model.InitRepository(&cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise repository: %w", err)
	}
	sessions, closeSessions, err := session.Open(ctx, cfg, repo)
	if err != nil {
		_ = repo.Close()
		return nil, nil, fmt.Errorf("initialise session store: %w", err)
	}
	invites, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.InviteTTL)
	if err != nil {
		_ = closeSessions()
		_ = repo.Close()
		return nil, nil, fmt.Errorf("initialise invite signer: %w", err)
	}

	cleanup := func() {
		_ = closeSessions()
		_ = repo.Close()
	}
	return &commandContext{
		Ctx:      ctx,
		Config:   cfg,
		Repo:     repo,
		Sessions: sessions,
		Auth:     service.NewAuthService(repo, sessions, invites, cfg.SessionTTL),
		Users:    service.NewUserService(repo, sessions, invites),
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
	}, cleanup, nil
}

func commands() map[string]command {
	return map[string]command{
		"create-admin": {
			name:        "create-admin",
			description: "Create an administrator or promote an existing account",
			run:         runCreateAdmin,
		},
		"set-password": {
			name:        "set-password",
			description: "Overwrite an account's password and revoke its sessions",
			run:         runSetPassword,
		},
		"sweep-sessions": {
			name:        "sweep-sessions",
			description: "Delete expired sessions now",
			run:         runSweepSessions,
		},
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: portalctl <command> [flags]\n\nAvailable commands:\n")
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-16s %s\n", name, commands()[name].description)
	}
}

func runCreateAdmin(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	email := fs.String("email", "", "administrator email")
	name := fs.String("name", "", "display name")
	noPassword := fs.Bool("no-password", false, "create without a password (sign in via single sign-on)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("-email is required")
	}

	password := ""
	if !*noPassword {
		pw, err := promptPassword(ctx)
		if err != nil {
			return err
		}
		password = pw
	}

	user, err := ctx.Users.CreateAdmin(ctx.Ctx, *email, *name, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "admin %s ready (id %d)\n", user.Email, user.ID)
	return nil
}

func runSetPassword(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("set-password", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("-email is required")
	}

	password, err := promptPassword(ctx)
	if err != nil {
		return err
	}
	user, err := ctx.Auth.SetPasswordByEmail(ctx.Ctx, *email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "password updated for %s; existing sessions revoked\n", user.Email)
	return nil
}

func runSweepSessions(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("sweep-sessions", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	removed, err := ctx.Auth.SweepExpiredSessions(ctx.Ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "removed %d expired sessions\n", removed)
	return nil
}

// promptPassword 终端下隐藏输入并二次确认；非终端读取一行
func promptPassword(ctx *commandContext) (string, error) {
	if f, ok := ctx.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(ctx.Stdout, "Password: ")
		first, err := readPassword(int(f.Fd()))
		fmt.Fprintln(ctx.Stdout)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		fmt.Fprint(ctx.Stdout, "Confirm password: ")
		second, err := readPassword(int(f.Fd()))
		fmt.Fprintln(ctx.Stdout)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(ctx.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}
