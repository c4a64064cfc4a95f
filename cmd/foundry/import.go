package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/foundry/internal/config"
	fserver "github.com/HendryAvila/foundry/internal/server"
	"github.com/HendryAvila/foundry/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <project> <file.yaml>",
	Short: "Append a YAML outline to a project",
	Long: `Append a nested YAML outline to a project in the local store.
Depth decides the level: top-level items are epics, then features,
sub-features and tasks.

  - title: Checkout
    children:
      - title: Cart
        status: in_progress`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Backend != config.ModeLocal {
			return fmt.Errorf("import writes to the local store; backend is %q", cfg.Backend)
		}

		items, err := readOutline(args[1])
		if err != nil {
			return err
		}

		st, err := fserver.OpenStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.Import(cmd.Context(), args[0], items)
		if err != nil {
			return fmt.Errorf("importing %s: %w", args[1], err)
		}
		fmt.Printf("%s %d nodes into %s\n", color.GreenString("Imported"), n, args[0])
		return nil
	},
}

func readOutline(path string) ([]store.Outline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading outline: %w", err)
	}
	var items []store.Outline
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return items, nil
}

func init() {
	rootCmd.AddCommand(importCmd)
}
