package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/ponto-labs/pontual/internal/api/auth"
	"github.com/ponto-labs/pontual/internal/models"
)

var (
	userEmail    string
	userFullName string
)

// userCmd represents the user command group
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Account management commands",
	Long: `Commands for managing Pontual accounts.

These commands operate directly on the database file and are intended
for system administrators to manage accounts outside of the API.

Examples:
  # List all accounts
  pontualctl user list

  # Create an account
  pontualctl user create --email ana@example.com --name "Ana Souza"

  # Change an account password
  pontualctl user passwd --email ana@example.com`,
}

// userListCmd lists all accounts
var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts",
	Long: `List all accounts in the database.

Displays id, email, full name, and creation date for each account.
Passwords are never displayed.

Example:
  pontualctl user list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		userList, err := store.Users().List(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		if len(userList) == 0 {
			fmt.Println("No accounts found.")
			return nil
		}

		// Print header
		fmt.Printf("\n%-36s  %-30s  %-24s  %s\n",
			"ID", "EMAIL", "FULL NAME", "CREATED")
		fmt.Println(strings.Repeat("-", 110))

		for _, u := range userList {
			fmt.Printf("%-36s  %-30s  %-24s  %s\n",
				u.ID,
				u.Email,
				u.FullName,
				u.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		fmt.Printf("\nTotal: %d account(s)\n", len(userList))

		return nil
	},
}

// userCreateCmd creates a new account
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new account",
	Long: `Create a new account in the database.

The password will be prompted interactively for security reasons
(to avoid exposing it in shell history).

Password requirements:
  - Minimum 12 characters
  - At least 1 uppercase letter (A-Z)
  - At least 1 lowercase letter (a-z)
  - At least 1 digit (0-9)
  - At least 1 special character (!@#$%^&*...)

Example:
  pontualctl user create --email ana@example.com --name "Ana Souza"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.ToLower(strings.TrimSpace(userEmail))

		// Validate email
		if err := auth.ValidateEmail(email); err != nil {
			return fmt.Errorf("invalid email: %w", err)
		}

		// Prompt for password securely
		password, err := promptPassword("Enter password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		// Validate password
		if err := auth.ValidatePassword(password); err != nil {
			return fmt.Errorf("invalid password: %w", err)
		}

		// Confirm password
		confirmPassword, err := promptPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("read password confirmation: %w", err)
		}

		if password != confirmPassword {
			return fmt.Errorf("passwords do not match")
		}

		// Open database
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		// Check if email already exists
		existing, err := store.Users().GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("email '%s' already exists", email)
		}

		// Hash password
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		// Create account
		user := models.NewUser(email, strings.TrimSpace(userFullName))
		user.ID = uuid.New().String()
		user.PasswordHash = string(hash)

		if err := store.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		fmt.Printf("\nAccount created successfully:\n")
		fmt.Printf("  ID:        %s\n", user.ID)
		fmt.Printf("  Email:     %s\n", user.Email)
		fmt.Printf("  Full name: %s\n", user.FullName)

		return nil
	},
}

// userPasswdCmd changes an account password
var userPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change an account password",
	Long: `Change the password for an existing account.

The new password will be prompted interactively for security reasons
(to avoid exposing it in shell history).

Example:
  pontualctl user passwd --email ana@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if userEmail == "" {
			return fmt.Errorf("--email is required")
		}

		// Open database
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		// Find account
		user, err := store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(userEmail)))
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("account '%s' not found", userEmail)
		}

		// Prompt for new password
		password, err := promptPassword("Enter new password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		// Validate password
		if err := auth.ValidatePassword(password); err != nil {
			return fmt.Errorf("invalid password: %w", err)
		}

		// Confirm password
		confirmPassword, err := promptPassword("Confirm new password: ")
		if err != nil {
			return fmt.Errorf("read password confirmation: %w", err)
		}

		if password != confirmPassword {
			return fmt.Errorf("passwords do not match")
		}

		// Hash new password
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		// Update account
		user.PasswordHash = string(hash)
		user.UpdatedAt = time.Now()

		if err := store.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		// Revoke all refresh tokens for this account (force re-login)
		if err := store.Tokens().RevokeAllForUser(ctx, user.ID); err != nil {
			// Log warning but don't fail - password was already changed
			PrintVerbose("Warning: could not revoke existing sessions: %v", err)
		}

		fmt.Printf("\nPassword changed successfully for '%s'.\n", user.Email)
		fmt.Println("All existing sessions have been revoked.")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userPasswdCmd)

	// Create-specific flags
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "email for the new account (required)")
	userCreateCmd.Flags().StringVar(&userFullName, "name", "", "full name for the new account")
	userCreateCmd.MarkFlagRequired("email")

	// Passwd-specific flags
	userPasswdCmd.Flags().StringVar(&userEmail, "email", "", "email of the account to update (required)")
	userPasswdCmd.MarkFlagRequired("email")
}

// promptPassword prompts for a password without echoing to the terminal.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	// Check if stdin is a terminal
	fd := syscall.Stdin
	if term.IsTerminal(fd) {
		// Read password without echo
		passwordBytes, err := term.ReadPassword(fd)
		fmt.Println() // Add newline after password input
		if err != nil {
			return "", err
		}
		return string(passwordBytes), nil
	}

	// Fallback for non-terminal input (e.g., piped input)
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(password), nil
}
