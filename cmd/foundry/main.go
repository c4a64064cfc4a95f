// Foundry: feature-tree planning engine
//
// Keeps a project's work as a four-level tree (epic > feature >
// sub_feature > task) and edits it optimistically against a local SQLite
// store or a remote foundry API.
//
// Usage:
//
//	foundry serve              # Start MCP server (stdio transport)
//	foundry api                # Serve the HTTP API over the local store
//	foundry tree <project>     # Print a project's outline
//	foundry import <project> <file.yaml>
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/foundry/internal/config"
	fserver "github.com/HendryAvila/foundry/internal/server"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "foundry",
	Short: "Feature-tree planning engine",
	Long: `Foundry keeps a project's work as a tree of epics, features,
sub-features and tasks, and serves it to AI coding tools over MCP.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("foundry v%s\n", fserver.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $FOUNDRY_DATA_DIR/config.yaml or ~/.foundry/config.yaml)")
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and builds the stderr logger. stdout
// belongs to the MCP stdio transport.
func loadConfig() (config.Config, *slog.Logger, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
