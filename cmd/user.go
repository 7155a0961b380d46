package cmd

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/helionsec/helion/internal/auth"
	"github.com/helionsec/helion/internal/config"
	"github.com/helionsec/helion/internal/database"
	"github.com/helionsec/helion/models"
)

var (
	userRole     string
	userPassword string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage API accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an account for API authentication",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE:  runUserList,
}

func init() {
	userAddCmd.Flags().StringVar(&userRole, "role", models.RoleUser,
		"account role: user or admin")
	userAddCmd.Flags().StringVar(&userPassword, "password", "",
		"password (prompted interactively when omitted)")
	userCmd.AddCommand(userAddCmd, userListCmd)
}

func openUserDB(ctx context.Context) (database.DB, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	username := args[0]

	if userRole != models.RoleUser && userRole != models.RoleAdmin {
		return fmt.Errorf("invalid role %q (valid: user, admin)", userRole)
	}

	password := userPassword
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password = string(raw)
	}
	if err := auth.ValidateCredentials(username, password); err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	db, err := openUserDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := db.Insert(ctx, "users", &models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         userRole,
	})
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	fmt.Printf("Created %s %q (id %d).\n", userRole, username, id)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := openUserDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	var users []models.User
	if err := db.Select(ctx, &users, "SELECT * FROM users ORDER BY id"); err != nil {
		return fmt.Errorf("loading users: %w", err)
	}
	if len(users) == 0 {
		fmt.Println("No accounts yet. Create one with: helion user add <username>")
		return nil
	}
	for _, u := range users {
		fmt.Printf("%4d  %-24s  %s\n", u.ID, u.Username, u.Role)
	}
	return nil
}
