package cmd

import (
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"messaging-sync/internal/api"
	"messaging-sync/internal/config"
	"messaging-sync/internal/events"
	"messaging-sync/internal/logging"
	"messaging-sync/internal/sync"
	"messaging-sync/internal/telemetry"
	"messaging-sync/internal/upload"
)

var (
	cfg config.Config

	flagAPIURL string
	flagUserID int
)

var rootCmd = &cobra.Command{
	Use:   "msgsync",
	Short: "Marketplace messaging sync client",
	Long: `msgsync drives the marketplace messaging backend through the
conversation synchronization manager: list conversations, read threads,
send messages, or run a local stub backend.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
		cfg = config.Load()
		if flagAPIURL != "" {
			cfg.APIBaseURL = flagAPIURL
		}
		if flagUserID != 0 {
			cfg.UserID = flagUserID
		}
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "backend base URL (overrides MSGSYNC_API_URL)")
	rootCmd.PersistentFlags().IntVar(&flagUserID, "user", 0, "authenticated user id (overrides MSGSYNC_USER_ID)")
}

// newManager wires collaborators from config into a manager. target is the
// deep-linked counterparty id, or zero.
func newManager(target int) (*sync.Manager, func()) {
	httpc := &http.Client{Timeout: 15 * time.Second}

	apiOpts := []api.Option{api.WithHTTPClient(httpc)}
	if cfg.SessionCookie != "" {
		apiOpts = append(apiOpts, api.WithSessionCookie(cfg.SessionCookie))
	}
	if cfg.UserID != 0 {
		apiOpts = append(apiOpts, api.WithUserID(cfg.UserID))
	}
	client := api.NewClient(cfg.APIBaseURL, apiOpts...)

	var uploader upload.Uploader
	if cfg.CloudName != "" || cfg.UploadURL != "" {
		if cloudinary, err := upload.NewCloudinaryClient(cfg.CloudName, cfg.UploadPreset, cfg.UploadURL, httpc); err == nil {
			uploader = cloudinary
		}
	}

	publisher := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.msgsync", "msgsync", cfg.Environment)

	opts := []sync.Option{
		sync.WithSelfUser(cfg.UserID),
		sync.WithReconcileDelay(cfg.ReconcileDelay),
		sync.WithAudit(emitter),
	}
	if target != 0 {
		opts = append(opts, sync.WithTarget(target))
	}

	manager := sync.NewManager(client, uploader, opts...)
	cleanup := func() {
		manager.Close()
		_ = publisher.Close()
	}
	return manager, cleanup
}
