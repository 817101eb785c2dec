package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shadowlens/shadowlens/internal/config"
	"github.com/shadowlens/shadowlens/internal/core"
	errwrap "github.com/shadowlens/shadowlens/internal/errors"
	"github.com/shadowlens/shadowlens/internal/observability"
)

var accessListFile string

var accessListCmd = &cobra.Command{
	Use:   "accesslist",
	Short: "Manage the IP blacklist and whitelist",
}

var accessListShowCmd = &cobra.Command{
	Use:   "show <blacklist|whitelist>",
	Short: "Print the entries on one list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		listType := core.ListType(args[0])
		if !listType.Valid() {
			return errwrap.NewInvalidInputError("list type must be blacklist or whitelist")
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

		entries, err := app.Store.ListAccessEntries(cmd.Context(), listType)
		if err != nil {
			return errwrap.WrapDatabaseError(cmd.Context(), err, "failed to read access list")
		}

		for _, entry := range entries {
			fmt.Println(entry.IP)
		}
		fmt.Printf("%d entries on %s\n", len(entries), listType)
		return nil
	},
}

// accessListFileFormat is the YAML shape the replace subcommand consumes.
type accessListFileFormat struct {
	IPs []string `yaml:"ips"`
}

var accessListReplaceCmd = &cobra.Command{
	Use:   "replace <blacklist|whitelist>",
	Short: "Replace a whole list from a YAML file",
	Long: `Replace a whole list from a YAML file of the form:

  ips:
    - 192.0.2.10
    - 192.0.2.11

The swap is transactional; readers never observe a half-replaced list.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		listType := core.ListType(args[0])
		if !listType.Valid() {
			return errwrap.NewInvalidInputError("list type must be blacklist or whitelist")
		}
		if accessListFile == "" {
			return errwrap.NewInvalidInputError("--file is required")
		}

		data, err := os.ReadFile(accessListFile)
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "failed to read input file")
		}
		var parsed accessListFileFormat
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return errwrap.NewInvalidInputError(fmt.Sprintf("invalid YAML: %v", err))
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

		count, err := app.Gateway.ReplaceList(cmd.Context(), listType, parsed.IPs)
		if err != nil {
			return errwrap.WrapDatabaseError(cmd.Context(), err, "failed to replace access list")
		}

		fmt.Printf("%s replaced with %d entries\n", listType, count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accessListCmd)
	accessListCmd.AddCommand(accessListShowCmd)
	accessListCmd.AddCommand(accessListReplaceCmd)

	accessListReplaceCmd.Flags().StringVar(&accessListFile, "file", "", "YAML file with the replacement entries")
}
