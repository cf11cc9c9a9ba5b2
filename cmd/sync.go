package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/grovetools/wsync/cli"
	"github.com/grovetools/wsync/errors"
	"github.com/grovetools/wsync/pkg/daemon"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var (
		local  bool
		noWait bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a synchronization pass",
		Long: `Run one synchronization pass over the active target definition.

The pass runs in the daemon when it is reachable and in this process
otherwise. Units that fail to import are reported and make the command
exit non-zero; the other units are still imported.

Examples:
  wsync sync
  wsync sync --json
  wsync sync --no-wait`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			logger := cli.GetLogger(cmd, "wsync")

			var client daemon.Client
			if local {
				client, err = daemon.NewLocalClient(cfg, logger)
			} else {
				client, err = daemon.New(cfg, logger)
			}
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runSync(ctx, cmd, client, !noWait)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Run the pass in-process even if the daemon is running")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Only schedule the pass in the daemon")
	return cmd
}

func runSync(ctx context.Context, cmd *cobra.Command, client daemon.Client, wait bool) error {
	resp, err := client.Sync(ctx, wait)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if cli.GetOptions(cmd).JSONOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else if resp.TaskID != "" && resp.Results == nil {
		fmt.Fprintf(out, "Scheduled pass %s\n", resp.TaskID)
	} else {
		cli.RenderResults(out, resp.Results, cli.TerminalWidth())
	}

	if failed := resp.Results.Failed(); len(failed) > 0 {
		return errors.Wrap(failed.Err(), errors.ErrCodeImportFailed,
			fmt.Sprintf("%d of %d units failed to import", len(failed), len(resp.Results)))
	}
	return nil
}
