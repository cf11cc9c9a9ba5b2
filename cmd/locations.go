package cmd

import (
	"encoding/json"

	"github.com/grovetools/wsync/cli"
	"github.com/grovetools/wsync/pkg/daemon"
	"github.com/spf13/cobra"
)

func newLocationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "Resolve the locations of the active target definition",
		Long: `Resolve every location of the active target definition and list the
units it contributes. Locations with an update problem are shown with
the problem; a pass skips them.

Examples:
  wsync locations
  wsync locations --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			client, err := daemon.New(cfg, cli.GetLogger(cmd, "wsync"))
			if err != nil {
				return err
			}
			defer client.Close()

			infos, err := client.Locations(cmd.Context())
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				if infos == nil {
					infos = []daemon.LocationInfo{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			cli.RenderLocations(cmd.OutOrStdout(), infos, cli.TerminalWidth())
			return nil
		},
	}
}
