package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List the conversation directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, cleanup := newManager(0)
		defer cleanup()

		manager.Start(context.Background())

		snap := manager.Snapshot()
		if snap.Err != "" {
			return fmt.Errorf("%s", snap.Err)
		}
		if len(snap.Conversations) == 0 {
			fmt.Println("no conversations")
			return nil
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "COUNTERPART", "LAST MESSAGE", "TIME", "UNREAD")
		for _, conv := range snap.Conversations {
			t.Row(
				strconv.Itoa(conv.ID),
				conv.Counterpart.Name,
				truncate(conv.LastMessage, 48),
				conv.LastMessageTime,
				strconv.Itoa(conv.Unread),
			)
		}
		fmt.Println(t)
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
}
