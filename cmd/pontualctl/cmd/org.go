package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var orgID string

// orgCmd represents the org command group
var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Organization management commands",
	Long: `Commands for inspecting Pontual organizations.

Examples:
  # List all organizations
  pontualctl org list

  # List the members of an organization
  pontualctl org members --id 7b0c...`,
}

// orgListCmd lists all organizations
var orgListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all organizations",
	Long: `List all organizations in the database.

Displays id, name, admin count, and creation date for each
organization.

Example:
  pontualctl org list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		orgs, err := store.Organizations().List(ctx)
		if err != nil {
			return fmt.Errorf("list organizations: %w", err)
		}

		if len(orgs) == 0 {
			fmt.Println("No organizations found.")
			return nil
		}

		// Print header
		fmt.Printf("\n%-36s  %-30s  %-7s  %s\n",
			"ID", "NAME", "ADMINS", "CREATED")
		fmt.Println(strings.Repeat("-", 95))

		for _, o := range orgs {
			admins, err := store.Organizations().CountAdmins(ctx, o.ID)
			if err != nil {
				return fmt.Errorf("count admins: %w", err)
			}
			fmt.Printf("%-36s  %-30s  %-7d  %s\n",
				o.ID,
				o.Name,
				admins,
				o.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		fmt.Printf("\nTotal: %d organization(s)\n", len(orgs))

		return nil
	},
}

// orgMembersCmd lists the members of one organization
var orgMembersCmd = &cobra.Command{
	Use:   "members",
	Short: "List the members of an organization",
	Long: `List all members of an organization with their roles.

Example:
  pontualctl org members --id 7b0c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		org, err := store.Organizations().GetByID(ctx, orgID)
		if err != nil {
			return fmt.Errorf("get organization: %w", err)
		}
		if org == nil {
			return fmt.Errorf("organization '%s' not found", orgID)
		}

		members, err := store.Organizations().ListMembers(ctx, org.ID)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}

		fmt.Printf("\nOrganization: %s (%s)\n\n", org.Name, org.ID)
		fmt.Printf("%-36s  %-30s  %-10s  %s\n",
			"USER ID", "EMAIL", "ROLE", "JOINED")
		fmt.Println(strings.Repeat("-", 100))

		for _, m := range members {
			fmt.Printf("%-36s  %-30s  %-10s  %s\n",
				m.UserID,
				m.Email,
				m.Role,
				m.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		fmt.Printf("\nTotal: %d member(s)\n", len(members))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(orgCmd)
	orgCmd.AddCommand(orgListCmd)
	orgCmd.AddCommand(orgMembersCmd)

	orgMembersCmd.Flags().StringVar(&orgID, "id", "", "organization ID (required)")
	orgMembersCmd.MarkFlagRequired("id")
}
