package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shadowlens/shadowlens/internal/config"
	"github.com/shadowlens/shadowlens/internal/core"
	errwrap "github.com/shadowlens/shadowlens/internal/errors"
	"github.com/shadowlens/shadowlens/internal/observability"
	"github.com/shadowlens/shadowlens/internal/output"
)

var (
	checkFormat   string
	checkTimeline bool
	checkReplies  bool
)

var checkCmd = &cobra.Command{
	Use:   "check <screen_name>",
	Short: "Run a shadowban check for one account",
	Long: `Run the full shadowban check for a single screen name and print the
result. The timeline and reply sub-checks are optional; they cost extra
upstream calls.

The abuse gates (proof of work, IP lists) only apply to the HTTP surface;
a local check talks to the upstream directly.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(checkFormat)
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

		result, err := app.Orchestrator.Check(cmd.Context(), core.CheckRequest{
			ScreenName:    args[0],
			CheckTimeline: checkTimeline,
			CheckReplies:  checkReplies,
		})
		if err != nil {
			return errwrap.WrapUpstream(cmd.Context(), err, "check failed")
		}

		rendered, err := output.NewFormatter(format).FormatResult(&result)
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "failed to render result")
		}
		fmt.Println(rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "table", "output format (table, json, markdown)")
	checkCmd.Flags().BoolVar(&checkTimeline, "timeline", false, "also run the timeline and ghost-ban checks")
	checkCmd.Flags().BoolVar(&checkReplies, "replies", false, "also run the reply deboosting check (implies extra upstream calls)")
}
