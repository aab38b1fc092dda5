package librarycmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuihairu/gamebrowser/internal/cli/common"
)

// NewConfig returns the `config` command group.
func NewConfig() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect the configuration"}
	var strict bool
	test := &cobra.Command{
		Use:   "test",
		Short: "Validate and print the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("config")
			includes, _ := cmd.Flags().GetStringSlice("include")
			profile, _ := cmd.Flags().GetString("profile")
			v, err := common.Load(file, includes, profile)
			if err != nil {
				return err
			}
			if err := common.ValidateLibraryConfig(v, strict); err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}
			cfg, err := common.Decode(v)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config OK")
			return writeJSON(cmd.OutOrStdout(), cfg)
		},
	}
	test.Flags().BoolVar(&strict, "strict", true, "require roots to exist")
	cmd.AddCommand(test)
	return cmd
}
