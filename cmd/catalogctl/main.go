// Command catalogctl performs maintenance tasks on the catalog database.
//
//	catalogctl seed
//	catalogctl add-user -username alice -email alice@example.com -password secret [-role admin]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"etalase/internal/config"
	"etalase/internal/database"
	"etalase/internal/repositories"
	"etalase/internal/services"

	"gorm.io/gorm"
)

const usage = "expected 'seed' or 'add-user' subcommand"

func main() {
	cfg, err := config.LoadForTools()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(context.Background(), cfg, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) < 1 {
		return errors.New(usage)
	}

	switch args[0] {
	case "seed":
		return withDB(cfg, func(db *gorm.DB) error {
			n, err := database.SeedProducts(ctx, repositories.NewGORMProductRepository(db))
			if err != nil {
				return fmt.Errorf("failed to seed catalog: %w", err)
			}
			fmt.Fprintf(out, "Seeded %d products.\n", n)
			return nil
		})
	case "add-user":
		return addUser(ctx, cfg, args[1:], out)
	default:
		return errors.New(usage)
	}
}

func addUser(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add-user", flag.ContinueOnError)
	fs.SetOutput(out)
	username := fs.String("username", "", "Username for the new account")
	email := fs.String("email", "", "Email for the new account")
	password := fs.String("password", "", "Password for the new account")
	role := fs.String("role", "user", "Role of the new account")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *email == "" || *password == "" {
		fs.PrintDefaults()
		return errors.New("username, email and password are required")
	}

	return withDB(cfg, func(db *gorm.DB) error {
		// No token is issued here, so the signing secret is irrelevant.
		auth := services.NewAuthService(repositories.NewGORMUserRepository(db), cfg.JWTSecret, cfg.TokenTTL)
		user, err := auth.CreateAccount(ctx, services.RegisterInput{
			Username: *username,
			Email:    *email,
			Password: *password,
		}, *role)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		fmt.Fprintf(out, "User '%s' created with id %d.\n", user.Username, user.ID)
		return nil
	})
}

// withDB opens and migrates the configured database for the duration of fn.
func withDB(cfg *config.Config, fn func(db *gorm.DB) error) error {
	db, err := database.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return err
	}
	return fn(db)
}
