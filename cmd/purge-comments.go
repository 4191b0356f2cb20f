package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/thoughtnest/thoughtnest/internal/database"
)

var purgeCommentsCmdFlags struct {
	Yes bool
}

var purgeCommentsCmd = &cobra.Command{
	Use:   "purge-comments",
	Short: "Delete every comment",
	Long:  `Delete every comment on the site. Posts, likes and users are kept.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !purgeCommentsCmdFlags.Yes {
			return fmt.Errorf("refusing to delete all comments without --yes")
		}

		svc, closeDB, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		operator := &database.User{Username: "cli", IsSuperuser: true}
		n, err := svc.PurgeComments(cmd.Context(), operator)
		if err != nil {
			return fmt.Errorf("failed to purge comments: %w", err)
		}
		log.Info("purged comments", "count", n)
		return nil
	},
}

func init() {
	purgeCommentsCmd.Flags().BoolVarP(&purgeCommentsCmdFlags.Yes, "yes", "y", false, "Confirm the deletion")

	rootCmd.AddCommand(purgeCommentsCmd)
}
