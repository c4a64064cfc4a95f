package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/foundry/internal/coordinator"
	"github.com/HendryAvila/foundry/internal/filter"
	"github.com/HendryAvila/foundry/internal/httpapi"
	fserver "github.com/HendryAvila/foundry/internal/server"
	"github.com/HendryAvila/foundry/internal/tree"
	"github.com/HendryAvila/foundry/internal/treetools"
)

var (
	treeDepth    int
	treeQuery    string
	treeStatuses []string
	treeLevels   []string
	treeNoColor  bool
)

var treeCmd = &cobra.Command{
	Use:   "tree <project>",
	Short: "Print a project's feature tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		backend, cleanup, err := fserver.OpenBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		crit, err := criteria()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		c := coordinator.New(args[0], backend, coordinator.Options{Logger: logger})
		if err := c.Refetch(ctx); err != nil {
			return fmt.Errorf("loading %s: %w", args[0], err)
		}
		c.SetFilter(crit)

		if treeNoColor {
			color.NoColor = true
		}
		fmt.Print(treetools.Outline(c.View(), treetools.RenderOptions{
			MaxDepth: treeDepth,
			Style:    styleMark,
		}))
		return nil
	},
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects that have nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		backend, cleanup, err := fserver.OpenBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		l, ok := backend.(httpapi.Lister)
		if !ok {
			return errors.New("backend cannot list projects")
		}
		ids, err := l.Projects(cmd.Context())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(os.Stderr, color.HiBlackString("No projects yet"))
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

func criteria() (filter.Criteria, error) {
	crit := filter.NewCriteria()
	crit.Query = treeQuery
	if len(treeStatuses) > 0 {
		statuses := make([]tree.Status, 0, len(treeStatuses))
		for _, raw := range treeStatuses {
			s, err := tree.ParseStatus(raw)
			if err != nil {
				return crit, err
			}
			statuses = append(statuses, s)
		}
		crit = crit.WithStatuses(statuses...)
	}
	if len(treeLevels) > 0 {
		levels := make([]tree.Level, 0, len(treeLevels))
		for _, raw := range treeLevels {
			l, err := tree.ParseLevel(raw)
			if err != nil {
				return crit, err
			}
			levels = append(levels, l)
		}
		crit = crit.WithLevels(levels...)
	}
	return crit, nil
}

var statusColors = map[tree.Status]*color.Color{
	tree.StatusNotStarted: color.New(color.FgHiBlack),
	tree.StatusInProgress: color.New(color.FgYellow),
	tree.StatusComplete:   color.New(color.FgGreen),
	tree.StatusBlocked:    color.New(color.FgRed, color.Bold),
}

func styleMark(s tree.Status, mark string) string {
	if c, ok := statusColors[s]; ok {
		return c.Sprint(mark)
	}
	return mark
}

func init() {
	treeCmd.Flags().IntVar(&treeDepth, "depth", 0, "levels to show below the roots (0 = all)")
	treeCmd.Flags().StringVarP(&treeQuery, "query", "q", "", "text to search in titles and descriptions")
	treeCmd.Flags().StringSliceVar(&treeStatuses, "status", nil, "statuses to keep (repeatable or comma-separated)")
	treeCmd.Flags().StringSliceVar(&treeLevels, "level", nil, "levels to keep (repeatable or comma-separated)")
	treeCmd.Flags().BoolVar(&treeNoColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(treeCmd, projectsCmd)
}
