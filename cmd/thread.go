package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"messaging-sync/internal/models"
)

var threadCmd = &cobra.Command{
	Use:   "thread <counterparty-id>",
	Short: "Show the message thread with a counterparty",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		counterpartyID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid counterparty id %q", args[0])
		}

		manager, cleanup := newManager(0)
		defer cleanup()

		manager.SelectConversation(context.Background(), counterpartyID)

		snap := manager.Snapshot()
		for _, msg := range snap.Messages {
			printMessage(msg)
		}
		return nil
	},
}

func printMessage(msg models.Message) {
	who := "them"
	if msg.Sender == models.SenderSelf {
		who = "me"
	}
	line := fmt.Sprintf("[%s] %-4s %s", msg.Time, who, msg.Text)
	if msg.AttachmentURL != "" {
		line += fmt.Sprintf(" (%s: %s)", msg.Type, msg.AttachmentURL)
	}
	if msg.Sender == models.SenderSelf {
		line += " · " + string(msg.Status)
	}
	fmt.Println(line)
}

func init() {
	rootCmd.AddCommand(threadCmd)
}
