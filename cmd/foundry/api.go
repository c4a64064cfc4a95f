package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/foundry/internal/httpapi"
	fserver "github.com/HendryAvila/foundry/internal/server"
)

var apiListen string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the HTTP API over the local store",
	Long: `Serve the feature-tree HTTP API backed by the local SQLite store.
Other foundry instances reach it with backend: http. Metrics are
exposed at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		addr := cfg.API.Listen
		if apiListen != "" {
			addr = apiListen
		}

		st, err := fserver.OpenStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		gin.SetMode(gin.ReleaseMode)
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("http api starting", "addr", addr, "data_dir", cfg.DataDir)
		return httpapi.NewServer(st, logger).Run(ctx, addr)
	},
}

func init() {
	apiCmd.Flags().StringVar(&apiListen, "listen", "", "listen address (overrides api.listen)")
	rootCmd.AddCommand(apiCmd)
}
