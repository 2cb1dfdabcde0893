package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/good-yellow-bee/reportwatch/internal/accounts"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/storage"
)

var (
	userUsername string
	userEmail    string
	userRole     string
	userSearch   string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management commands",
	Long: `Commands for managing ReportWatch users.

These commands operate directly on the database file. Validation is the
same as in the dashboard: usernames and emails are unique, passwords need
12+ characters with upper, lower, digit and special characters, and the
last active admin cannot be deactivated.

Examples:
  rwctl user list --role admin
  rwctl user create --username jane --email jane@example.com --role operator
  rwctl user passwd --username jane
  rwctl user toggle --username jane`,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAccounts(func(ctx context.Context, _ *storage.SQLiteStorage, svc *accounts.Service) error {
			list, err := svc.List(ctx, accounts.Query{Search: userSearch, Role: models.Role(userRole)})
			if err != nil {
				return err
			}
			if GetOutput() == "json" {
				return json.NewEncoder(os.Stdout).Encode(list)
			}
			if len(list) == 0 {
				fmt.Println("No users found.")
				return nil
			}

			fmt.Printf("\n%-36s  %-20s  %-30s  %-9s  %-8s  %s\n",
				"ID", "USERNAME", "EMAIL", "ROLE", "ACTIVE", "CREATED")
			fmt.Println(strings.Repeat("-", 125))
			for _, u := range list {
				fmt.Printf("%-36s  %-20s  %-30s  %-9s  %-8t  %s\n",
					u.ID, u.Username, u.Email, u.Role, u.Active,
					u.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Printf("\nTotal: %d user(s)\n", len(list))
			return nil
		})
	},
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Long: `Create a user. The password is prompted interactively so it never
lands in shell history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, confirm, err := promptNewPassword()
		if err != nil {
			return err
		}
		return withAccounts(func(ctx context.Context, _ *storage.SQLiteStorage, svc *accounts.Service) error {
			user, err := svc.Create(ctx, accounts.CreateInput{
				Username:        userUsername,
				Email:           userEmail,
				Password:        password,
				ConfirmPassword: confirm,
				Role:            userRole,
			})
			if err != nil {
				return err
			}
			fmt.Printf("\nUser created successfully:\n")
			fmt.Printf("  ID:       %s\n", user.ID)
			fmt.Printf("  Username: %s\n", user.Username)
			fmt.Printf("  Email:    %s\n", user.Email)
			fmt.Printf("  Role:     %s\n", user.Role)
			return nil
		})
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Set a user's password",
	Long: `Set a new password for an existing user. Refresh tokens of the user
are revoked so every device has to sign in again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAccounts(func(ctx context.Context, store *storage.SQLiteStorage, svc *accounts.Service) error {
			user, err := findUser(ctx, store, userUsername)
			if err != nil {
				return err
			}
			password, confirm, err := promptNewPassword()
			if err != nil {
				return err
			}
			if err := svc.SetPassword(ctx, user.ID, password, confirm); err != nil {
				return err
			}
			fmt.Printf("\nPassword changed successfully for user '%s'.\n", user.Username)
			fmt.Println("All existing sessions have been revoked.")
			return nil
		})
	},
}

var userToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Activate or deactivate a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAccounts(func(ctx context.Context, store *storage.SQLiteStorage, svc *accounts.Service) error {
			user, err := findUser(ctx, store, userUsername)
			if err != nil {
				return err
			}
			user, err = svc.Toggle(ctx, "", user.ID)
			if err != nil {
				return err
			}
			state := "deactivated"
			if user.Active {
				state = "activated"
			}
			fmt.Printf("User '%s' %s.\n", user.Username, state)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userListCmd, userCreateCmd, userPasswdCmd, userToggleCmd)

	userListCmd.Flags().StringVar(&userSearch, "search", "", "match username, name or email")
	userListCmd.Flags().StringVar(&userRole, "role", "", "only users with this role")

	userCreateCmd.Flags().StringVar(&userUsername, "username", "", "username for the new user (required)")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "email for the new user (required)")
	userCreateCmd.Flags().StringVar(&userRole, "role", "viewer", "role: admin, operator, or viewer")
	userCreateCmd.MarkFlagRequired("username")
	userCreateCmd.MarkFlagRequired("email")

	for _, c := range []*cobra.Command{userPasswdCmd, userToggleCmd} {
		c.Flags().StringVar(&userUsername, "username", "", "username of the user (required)")
		c.MarkFlagRequired("username")
	}
}

func withAccounts(fn func(context.Context, *storage.SQLiteStorage, *accounts.Service) error) error {
	store, err := openDatabase(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(context.Background(), store, accounts.NewService(store, nil))
}

func findUser(ctx context.Context, store storage.Storage, username string) (*models.User, error) {
	user, err := store.Users().GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user '%s' not found", username)
	}
	return user, nil
}

func promptNewPassword() (password, confirm string, err error) {
	password, err = promptPassword("Enter password: ")
	if err != nil {
		return "", "", fmt.Errorf("read password: %w", err)
	}
	confirm, err = promptPassword("Confirm password: ")
	if err != nil {
		return "", "", fmt.Errorf("read password confirmation: %w", err)
	}
	return password, confirm, nil
}

// promptPassword prompts for a password without echoing to the terminal.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Piped input.
	password, err := stdin.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(password), nil
}

var stdin = bufio.NewReader(os.Stdin)
