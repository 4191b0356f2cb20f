package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var createAdminCmdFlags struct {
	Username string
	Email    string
	Password string
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a staff account",
	Long:  `Create a staff superuser. Nothing happens if an account with the same username already exists.`,
	Example: `thoughtnest create-admin --username root --email root@example.com
THOUGHTNEST_ADMIN_PASSWORD=secret thoughtnest create-admin -u root -e root@example.com`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		password := createAdminCmdFlags.Password
		if password == "" {
			password = os.Getenv("THOUGHTNEST_ADMIN_PASSWORD")
		}
		if createAdminCmdFlags.Username == "" || createAdminCmdFlags.Email == "" || password == "" {
			return fmt.Errorf("username, email and password are required")
		}

		svc, closeDB, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		created, err := svc.BootstrapAdmin(cmd.Context(), createAdminCmdFlags.Username, createAdminCmdFlags.Email, password)
		if err != nil {
			return fmt.Errorf("failed to create administrator: %w", err)
		}
		if !created {
			log.Info("account already exists, nothing to do", "username", createAdminCmdFlags.Username)
			return nil
		}
		log.Info("created administrator", "username", createAdminCmdFlags.Username)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVarP(&createAdminCmdFlags.Username, "username", "u", "", "Username of the administrator")
	createAdminCmd.Flags().StringVarP(&createAdminCmdFlags.Email, "email", "e", "", "Email address of the administrator")
	createAdminCmd.Flags().StringVarP(&createAdminCmdFlags.Password, "password", "p", "", "Password (default: $THOUGHTNEST_ADMIN_PASSWORD)")

	rootCmd.AddCommand(createAdminCmd)
}
