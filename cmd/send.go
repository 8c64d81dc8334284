package cmd

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"messaging-sync/internal/models"
)

var (
	flagSendText string
	flagSendFile string
)

var sendCmd = &cobra.Command{
	Use:   "send <counterparty-id>",
	Short: "Send a message, optionally with an attachment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		counterpartyID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid counterparty id %q", args[0])
		}
		if flagSendText == "" && flagSendFile == "" {
			return fmt.Errorf("nothing to send: provide --text and/or --file")
		}

		var att *models.Attachment
		if flagSendFile != "" {
			data, err := os.ReadFile(flagSendFile)
			if err != nil {
				return fmt.Errorf("read attachment: %w", err)
			}
			contentType := mime.TypeByExtension(filepath.Ext(flagSendFile))
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			att = &models.Attachment{
				Name:        filepath.Base(flagSendFile),
				ContentType: contentType,
				Data:        data,
			}
		}

		ctx := context.Background()
		manager, cleanup := newManager(counterpartyID)
		defer cleanup()

		manager.Start(ctx)
		snap := manager.Snapshot()
		if snap.Err != "" {
			return fmt.Errorf("%s", snap.Err)
		}

		var current *models.Conversation
		for i := range snap.Conversations {
			if snap.Conversations[i].ID == counterpartyID {
				current = &snap.Conversations[i]
				break
			}
		}
		if current == nil {
			return fmt.Errorf("no conversation with counterparty %d", counterpartyID)
		}

		if err := manager.SendMessage(ctx, flagSendText, att, current); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}

		// Let the reconciliation pass land before printing the thread.
		time.Sleep(cfg.ReconcileDelay + 250*time.Millisecond)
		for _, msg := range manager.Snapshot().Messages {
			printMessage(msg)
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&flagSendText, "text", "", "message text")
	sendCmd.Flags().StringVar(&flagSendFile, "file", "", "path of a file to attach")
	rootCmd.AddCommand(sendCmd)
}
