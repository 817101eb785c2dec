package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shadowlens/shadowlens/internal/config"
	"github.com/shadowlens/shadowlens/internal/core"
	errwrap "github.com/shadowlens/shadowlens/internal/errors"
	"github.com/shadowlens/shadowlens/internal/observability"
)

var (
	settingsBlacklist bool
	settingsWhitelist bool
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change list enforcement settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current enforcement flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration invalid")
		}

		app, err := buildStack(cmd.Context(), cfg, observability.CLILogger)
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "stack initialization failed")
		}
		defer app.Store.Close() // nolint:errcheck

		settings, err := app.Store.GetSettings(cmd.Context())
		if err != nil {
			return errwrap.WrapDatabaseError(cmd.Context(), err, "failed to read settings")
		}

		fmt.Printf("blacklist enabled: %t\nwhitelist enabled: %t\n",
			settings.BlacklistEnabled, settings.WhitelistEnabled)
		return nil
	},
}

var settingsUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Set the enforcement flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration invalid")
		}

		app, err := buildStack(cmd.Context(), cfg, observability.CLILogger)
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "stack initialization failed")
		}
		defer app.Store.Close() // nolint:errcheck

		settings := core.AccessSettings{
			BlacklistEnabled: settingsBlacklist,
			WhitelistEnabled: settingsWhitelist,
		}
		if err := app.Gateway.UpdateSettings(cmd.Context(), settings); err != nil {
			return errwrap.WrapDatabaseError(cmd.Context(), err, "failed to update settings")
		}

		fmt.Printf("blacklist enabled: %t\nwhitelist enabled: %t\n",
			settings.BlacklistEnabled, settings.WhitelistEnabled)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsUpdateCmd)

	settingsUpdateCmd.Flags().BoolVar(&settingsBlacklist, "blacklist", true, "enforce the blacklist")
	settingsUpdateCmd.Flags().BoolVar(&settingsWhitelist, "whitelist", false, "enforce the whitelist")
}
