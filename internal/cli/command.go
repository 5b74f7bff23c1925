package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// NewCommand builds the caxa root command.
func NewCommand(stdout, stderr io.Writer, env Environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "caxa --input <input> --output <output> [flags] -- <command>...",
		Short: "Package an application in a single executable",
		Long: `Package the input directory into a single executable that extracts itself
on first run and executes the given command.

Use {{caxa}} in the command to refer to the extraction directory, e.g.:

  caxa --input . --output echo -- "{{caxa}}/node_modules/.bin/node" "{{caxa}}/index.js"`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := resolveInvocation(cmd.Flags(), args, env)
			if err != nil {
				return err
			}
			_, err = Execute(cmd.Context(), inv, stdout, stderr)
			return err
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	defineFlags(cmd.Flags())
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})
	return cmd
}
