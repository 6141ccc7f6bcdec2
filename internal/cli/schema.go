package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dirtycheck/internal/compiler"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the CUE scenario schema",
		Long: `Print the CUE schema that .cue scenario files are checked against.

A CUE scenario is a single struct matching #Scenario.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Format == "json" {
				formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				return formatter.Success(map[string]string{"schema": compiler.Schema()})
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), compiler.Schema())
			return err
		},
	}
}
