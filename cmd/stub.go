package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"messaging-sync/internal/logging"
	"messaging-sync/internal/stubserver"
)

var flagStubAddr string

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Run a local stub of the messaging backend",
	Long: `Runs an in-process implementation of the messaging REST contract for
local development. Storage is in-memory unless MSGSYNC_STUB_DB_DSN points at
a Postgres instance. Three demo users (ids 1-3) are seeded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.StubListenAddr
		if flagStubAddr != "" {
			addr = flagStubAddr
		}

		demoUsers := []stubserver.User{
			{ID: 1, Name: "Amara the Buyer", Avatar: "https://ui-avatars.com/api/?name=Amara"},
			{ID: 2, Name: "Juma Woodworks", Avatar: "https://ui-avatars.com/api/?name=Juma"},
			{ID: 3, Name: "Nia Textiles", Avatar: "https://ui-avatars.com/api/?name=Nia"},
		}

		var store stubserver.Store
		if cfg.StubPostgresDSN != "" {
			pg, err := stubserver.NewPostgresStore(cfg.StubPostgresDSN)
			if err != nil {
				return fmt.Errorf("stub postgres store: %w", err)
			}
			for _, u := range demoUsers {
				if err := pg.AddUser(context.Background(), u); err != nil {
					return fmt.Errorf("seed user %d: %w", u.ID, err)
				}
			}
			store = pg
		} else {
			mem := stubserver.NewMemoryStore()
			for _, u := range demoUsers {
				mem.AddUser(u)
			}
			store = mem
		}

		logging.L.Info("stub backend listening", zap.String("addr", addr))
		return stubserver.NewServer(store).Router().Run(addr)
	},
}

func init() {
	stubCmd.Flags().StringVar(&flagStubAddr, "addr", "", "listen address (overrides MSGSYNC_STUB_ADDR)")
	rootCmd.AddCommand(stubCmd)
}
