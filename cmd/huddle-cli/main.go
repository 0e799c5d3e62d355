package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/victorivanov/huddle/internal/auth"
	"github.com/victorivanov/huddle/internal/database"
	"github.com/victorivanov/huddle/internal/models"
	"github.com/victorivanov/huddle/internal/snowflake"
)

// Set via -ldflags at build time.
var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:           "huddle-cli",
		Short:         "Operator tooling for the huddle server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(healthCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("huddle-cli %s\n", version)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s environment variable is required", key)
	}
	return v, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --- migrate ---

func migrateCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back directory schema migrations",
		Long: `Runs the migrations in the migrations/ directory against DATABASE_URL.

Environment:
  DATABASE_URL  PostgreSQL connection string (required)`,
	}
	cmd.PersistentFlags().StringVar(&source, "source", "file://migrations", "migration source URL")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(source, func(m *migrate.Migrate) error { return m.Up() })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (all by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runMigrate(source, func(m *migrate.Migrate) error { return m.Down() })
			}
			steps, err := strconv.Atoi(args[0])
			if err != nil || steps <= 0 {
				return fmt.Errorf("steps must be a positive integer, got %q", args[0])
			}
			return runMigrate(source, func(m *migrate.Migrate) error { return m.Steps(-steps) })
		},
	})
	return cmd
}

func runMigrate(source string, apply func(*migrate.Migrate) error) error {
	dbURL, err := requireEnv("DATABASE_URL")
	if err != nil {
		return err
	}

	fmt.Println("connecting to database...")
	m, err := migrate.New(source, dbURL)
	if err != nil {
		return fmt.Errorf("migration init failed: %w", err)
	}
	defer m.Close()

	err = apply(m)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	v, dirty, verr := m.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		fmt.Println("schema is empty")
	case errors.Is(err, migrate.ErrNoChange):
		fmt.Printf("no change (current version: %d)\n", v)
	default:
		fmt.Printf("migrations applied (version: %d, dirty: %v)\n", v, dirty)
	}
	return nil
}

// --- seed ---

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the directory with demo users and conversations",
		Long: `Creates alice, bob and carol, a #general channel owned by alice with
all three as members, and a direct conversation between alice and bob.

Environment:
  DATABASE_URL  PostgreSQL connection string (required)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context())
		},
	}
}

func runSeed(ctx context.Context) error {
	dbURL, err := requireEnv("DATABASE_URL")
	if err != nil {
		return err
	}

	fmt.Println("connecting to database...")
	pool, err := database.NewPostgresPool(ctx, dbURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	sf, err := snowflake.NewGenerator(0, 0)
	if err != nil {
		return fmt.Errorf("snowflake init failed: %w", err)
	}

	users := []models.User{
		{ID: sf.Next(), Handle: "alice", Elevated: true},
		{ID: sf.Next(), Handle: "bob"},
		{ID: sf.Next(), Handle: "carol"},
	}
	alice := users[0].ID
	general := models.Conversation{Ref: models.ChannelRef(sf.Next()), Name: "general"}
	direct := models.Conversation{Ref: models.DirectRef(sf.Next()), Name: "alice, bob"}

	if err := seed(ctx, pool, users, general, direct); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("seed complete:")
	for _, u := range users {
		fmt.Printf("  user     %-6s id %d\n", u.Handle, u.ID)
	}
	fmt.Printf("  channel  #general id %d (owner alice)\n", general.Ref.ID)
	fmt.Printf("  dm       alice, bob id %d (owner alice)\n", direct.Ref.ID)
	fmt.Printf("\nmint a token with: huddle-cli token %d\n", alice)
	return nil
}

func seed(ctx context.Context, pool *pgxpool.Pool, users []models.User, general, direct models.Conversation) error {
	fmt.Println("creating users...")
	for _, u := range users {
		if err := database.CreateUser(ctx, pool, u); err != nil {
			return fmt.Errorf("creating user %s: %w", u.Handle, err)
		}
	}

	fmt.Println("creating conversations...")
	for _, c := range []models.Conversation{general, direct} {
		if err := database.CreateConversation(ctx, pool, c); err != nil {
			return fmt.Errorf("creating %s: %w", c.Ref, err)
		}
	}

	fmt.Println("adding members...")
	for i, u := range users {
		if err := database.AddConversationMember(ctx, pool, general.Ref, u.ID, i == 0); err != nil {
			return fmt.Errorf("adding %s to general: %w", u.Handle, err)
		}
	}
	for i, u := range users[:2] {
		if err := database.AddConversationMember(ctx, pool, direct.Ref, u.ID, i == 0); err != nil {
			return fmt.Errorf("adding %s to dm: %w", u.Handle, err)
		}
	}
	return nil
}

// --- token ---

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint an access token for a user",
		Long: `Signs a development access token for the given user id with JWT_SECRET.

Environment:
  JWT_SECRET  signing secret shared with the server (required)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := requireEnv("JWT_SECRET")
			if err != nil {
				return err
			}
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || userID <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			token, err := auth.NewTokenService(secret).Issue(userID, ttl)
			if err != nil {
				return fmt.Errorf("signing token: %w", err)
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultExpiry, "token lifetime")
	return cmd
}

// --- health ---

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check if the server is running",
		Long: `Requests /health from the server.

Environment:
  SERVER_URL  Server base URL (default: http://localhost:8080)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(envOr("SERVER_URL", "http://localhost:8080"))
		},
	}
}

func runHealth(serverURL string) error {
	url := serverURL + "/health"
	fmt.Printf("checking %s ...\n", url)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("status: %d\n", resp.StatusCode)
	if len(body) > 0 {
		fmt.Printf("body:   %s\n", string(body))
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	fmt.Println("server is healthy")
	return nil
}
