package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shadowlens/shadowlens/internal/config"
	errwrap "github.com/shadowlens/shadowlens/internal/errors"
	"github.com/shadowlens/shadowlens/internal/observability"
	"github.com/shadowlens/shadowlens/internal/output"
)

var (
	historyFormat string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history [screen_name]",
	Short: "Show recent check results",
	Long: `Show recent check results, newest first. With a screen name only that
account's checks are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(historyFormat)
		if err != nil {
			return errwrap.NewInvalidInputError(err.Error())
		}

		cfg, err := config.Load()
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration invalid")
		}

		app, err := buildStack(cmd.Context(), cfg, observability.CLILogger)
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "stack initialization failed")
		}
		defer app.Store.Close() // nolint:errcheck

		screenName := ""
		if len(args) == 1 {
			screenName = args[0]
		}

		results, err := app.Store.RecentCheckResults(cmd.Context(), screenName, historyLimit)
		if err != nil {
			return errwrap.WrapDatabaseError(cmd.Context(), err, "failed to read check history")
		}
		if len(results) == 0 {
			fmt.Println("no checks recorded")
			return nil
		}

		rendered, err := output.FormatResultList(format, results)
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "failed to render results")
		}
		fmt.Println(rendered)
		return nil
	},
}

var historyPruneOlderThan time.Duration

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete check results older than the retention cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyPruneOlderThan <= 0 {
			return errwrap.NewInvalidInputError("--older-than must be positive")
		}

		cfg, err := config.Load()
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration invalid")
		}

		app, err := buildStack(cmd.Context(), cfg, observability.CLILogger)
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "stack initialization failed")
		}
		defer app.Store.Close() // nolint:errcheck

		cutoff := time.Now().UTC().Add(-historyPruneOlderThan)
		removed, err := app.Store.PruneCheckHistory(cmd.Context(), cutoff)
		if err != nil {
			return errwrap.WrapDatabaseError(cmd.Context(), err, "failed to prune check history")
		}

		fmt.Printf("removed %d check result(s) older than %s\n", removed, cutoff.Format(time.RFC3339))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyPruneCmd)

	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "table", "output format (table, json, markdown)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum results to show")
	historyPruneCmd.Flags().DurationVar(&historyPruneOlderThan, "older-than", 30*24*time.Hour,
		"delete results older than this duration")
}
