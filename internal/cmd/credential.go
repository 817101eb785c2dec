package cmd

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/shadowlens/shadowlens/internal/config"
	errwrap "github.com/shadowlens/shadowlens/internal/errors"
	"github.com/shadowlens/shadowlens/internal/observability"
)

var credentialAccount string

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage upstream credentials",
	Long: `Manage the rotating credential pool the checker draws from.

Tokens are stored verbatim and never printed back.`,
}

var credentialAddCmd = &cobra.Command{
	Use:   "add <token>",
	Short: "Add or update a credential",
	Args:  cobra.ExactArgs(1),
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

		id, err := app.Pool.Upsert(cmd.Context(), args[0], credentialAccount)
		if err != nil {
			return errwrap.WrapDatabaseError(cmd.Context(), err, "failed to store credential")
		}

		fmt.Printf("credential %d stored\n", id)
		return nil
	},
}

var credentialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List credentials and their ban state",
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

		credentials, err := app.Store.ListCredentials(cmd.Context())
		if err != nil {
			return errwrap.WrapDatabaseError(cmd.Context(), err, "failed to list credentials")
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"ID", "Account", "Last Used", "Banned Until"})
		for _, cred := range credentials {
			lastUsed, bannedUntil := "-", "-"
			if !cred.LastUsedAt.IsZero() {
				lastUsed = cred.LastUsedAt.Format("2006-01-02 15:04:05")
			}
			if !cred.ResetAt.IsZero() {
				bannedUntil = cred.ResetAt.Format("2006-01-02 15:04:05")
			}
			t.AppendRow(table.Row{cred.ID, cred.Account, lastUsed, bannedUntil})
		}
		fmt.Println(t.Render())
		return nil
	},
}

var credentialRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errwrap.NewInvalidInputError("credential id must be a number")
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

		if err := app.Store.DeleteCredential(cmd.Context(), id); err != nil {
			return errwrap.WrapDatabaseError(cmd.Context(), err, "failed to remove credential")
		}

		fmt.Printf("credential %d removed\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(credentialCmd)
	credentialCmd.AddCommand(credentialAddCmd)
	credentialCmd.AddCommand(credentialListCmd)
	credentialCmd.AddCommand(credentialRemoveCmd)

	credentialAddCmd.Flags().StringVar(&credentialAccount, "account", "", "account label for the credential")
}
