// Package main provides the chatpulse CLI for analyzing transcripts locally
// and seeding login users.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ashureev/chatpulse/internal/analysis"
	"github.com/ashureev/chatpulse/internal/domain"
	"github.com/ashureev/chatpulse/internal/format"
	"github.com/ashureev/chatpulse/internal/identity"
	"github.com/ashureev/chatpulse/internal/store"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatpulse",
		Short:         "Summarize seven days of chat transcript activity",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newSeedCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "chatpulse: %v\n", err)
		os.Exit(1)
	}
}

func newAnalyzeCmd() *cobra.Command {
	var formatFlag string

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Print the activity report for a transcript (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if formatFlag == "" {
				formatFlag = defaultFormat(out)
			}
			f, err := format.ParseFormat(formatFlag)
			if err != nil {
				return err
			}

			in, closeFn, err := openInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := analysis.AnalyzeReader(in)
			if err != nil {
				return fmt.Errorf("analyze %s: %w", args[0], err)
			}
			return format.WriteReport(out, report, f)
		},
	}

	cmd.Flags().StringVar(&formatFlag, "format", "", "output format: table, plain, or json (default: table on a terminal, json otherwise)")
	return cmd
}

func openInput(stdin io.Reader, path string) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open transcript: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func defaultFormat(out io.Writer) string {
	file, ok := out.(*os.File)
	if !ok {
		return format.JSON
	}
	fd := file.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return format.Table
	}
	return format.JSON
}

func newSeedCmd() *cobra.Command {
	var (
		email    string
		password string
		userID   string
		dbPath   string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a login user if the email is not already registered",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			if dbPath == "" {
				dbPath = os.Getenv("DB_PATH")
			}
			if dbPath == "" {
				dbPath = "./data/chatpulse.db"
			}

			repo, err := store.NewSQLite(dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			created, err := seedUser(cmd.Context(), repo, email, password, userID, time.Now().UTC())
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s\n", email) //nolint:errcheck
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "user %s already exists\n", email) //nolint:errcheck
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&email, "email", "", "login email")
	flags.StringVar(&password, "password", "", "login password")
	flags.StringVar(&userID, "user-id", "", "user id (default: random UUID)")
	flags.StringVar(&dbPath, "db", "", "SQLite database path (env: DB_PATH)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// seedUser creates the user unless the email is taken. It reports whether a
// user was created.
func seedUser(ctx context.Context, repo store.Repository, email, password, userID string, now time.Time) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return false, errors.New("email and password are required")
	}

	existing, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("look up user: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	hash, err := identity.HashPassword(password)
	if err != nil {
		return false, err
	}
	if userID == "" {
		userID = uuid.NewString()
	}

	err = repo.CreateUser(ctx, &domain.User{
		UserID:       userID,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, store.ErrUserExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	return true, nil
}
