// Package cmd implements the wsync command line.
package cmd

import (
	"github.com/grovetools/wsync/cli"
	"github.com/spf13/cobra"
)

// NewRootCmd returns the wsync command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand("wsync", "Keep a workspace in sync with a target definition")
	root.Long = `wsync imports the projects and resources of every location in the
active target definition into a workspace directory.

Examples:
  # Run a pass through the daemon, or in-process when it is not running
  wsync sync
  # Show what each location resolves to
  wsync locations
  # Run the daemon in the foreground
  wsync daemon start`

	root.AddCommand(newSyncCmd())
	root.AddCommand(newLocationsCmd())
	root.AddCommand(newDaemonCmd())
	root.AddCommand(newResourceCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(cli.NewVersionCommand())
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string) int {
	root := NewRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	verbose, _ := root.PersistentFlags().GetBool("verbose")
	_ = cli.NewErrorHandler(root.ErrOrStderr(), verbose).Handle(err)
	return cli.ExitCode(err)
}
