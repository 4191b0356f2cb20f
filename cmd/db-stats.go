package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var dbStatsCmd = &cobra.Command{
	Use:   "db-stats",
	Short: "Show database statistics",
	Long:  `Display the totals and recent activity shown on the admin dashboard.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeDB, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		stats, err := svc.RefreshDashboard(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get database stats: %w", err)
		}

		t := stats.Totals
		fmt.Println("Database Statistics:")
		fmt.Printf("Posts: %s (%s published, %s drafts)\n", humanize.Comma(t.Posts), humanize.Comma(t.Published), humanize.Comma(t.Drafts))
		fmt.Printf("Comments: %s\n", humanize.Comma(t.Comments))
		fmt.Printf("Likes: %s\n", humanize.Comma(t.Likes))
		fmt.Printf("Users: %s\n", humanize.Comma(t.Users))
		fmt.Printf("Categories: %s, Tags: %s\n", humanize.Comma(t.Categories), humanize.Comma(t.Tags))
		fmt.Printf("Interaction Rate: %.2f per post\n", stats.InteractionRate)

		a := stats.Activity
		fmt.Println("\nLast 7 Days:")
		fmt.Printf("  Posts: %d, Comments: %d, New Users: %d\n", a.PostsWeek, a.CommentsWeek, a.UsersWeek)

		if stats.Storage != nil {
			fmt.Printf("\nStorage (%s): %s used of %s (%.1f%%)\n",
				stats.Storage.Path, humanize.Bytes(stats.Storage.Used), humanize.Bytes(stats.Storage.Total), stats.Storage.UsedPercent)
		}

		if len(stats.TopPosts) > 0 {
			fmt.Println("\nTop Posts:")
			for _, p := range stats.TopPosts {
				fmt.Printf("  ID: %d, Title: %s, Likes: %d, Comments: %d\n", p.ID, p.Title, p.Likes, p.Comments)
			}
		}

		if len(stats.RecentUsers) > 0 {
			fmt.Println("\nRecent Users:")
			for _, u := range stats.RecentUsers {
				fmt.Printf("  %s <%s>, joined %s\n", u.Username, u.Email, humanize.Time(u.DateJoined))
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbStatsCmd)
}
