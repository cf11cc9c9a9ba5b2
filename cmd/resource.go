package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/grovetools/wsync/cli"
	"github.com/grovetools/wsync/errors"
	"github.com/grovetools/wsync/pkg/events"
	"github.com/grovetools/wsync/pkg/scheduler"
	"github.com/grovetools/wsync/pkg/synchronizer"
	"github.com/grovetools/wsync/pkg/target"
	"github.com/grovetools/wsync/pkg/workspace"
	"github.com/spf13/cobra"
)

func newResourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resource",
		Short: "Create resources in the workspace",
	}
	cmd.AddCommand(newResourceCreateCmd())
	return cmd
}

func newResourceCreateCmd() *cobra.Command {
	var spec target.ResourceSpec
	cmd := &cobra.Command{
		Use:   "create <target>",
		Short: "Create one resource in the workspace",
		Long: `Create a file at <target>, relative to the workspace root, under the
workspace lock. The content comes from --content or is read from --from,
a local file or an http(s) URL. An existing file is left alone unless
--force is given.

Examples:
  wsync resource create NOTES.md --content "# Notes"
  wsync resource create conf/app.ini --from ./app.ini --encoding iso-8859-1 --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec.Target = args[0]
			if spec.Content != "" && spec.From != "" {
				return errors.New(errors.ErrCodeInvalidInput, "--content and --from are mutually exclusive")
			}

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			logger := cli.GetLogger(cmd, "wsync")

			resolver := &target.ResourcesResolver{Client: &http.Client{Timeout: 30 * time.Second}}
			res, err := resolver.Resolve(cmd.Context(), target.Location{
				Name:      "cli",
				Kind:      target.KindResources,
				Resources: []target.ResourceSpec{spec},
			})
			if err != nil {
				return err
			}

			ws, err := workspace.NewStore(cfg.Workspace, logger)
			if err != nil {
				return err
			}
			sync, err := synchronizer.New(synchronizer.Options{
				Platform:  target.NewDefaultService(cfg, logger),
				Workspace: ws,
				Notifier:  events.NewRegistry(logger),
				Scheduler: &scheduler.Inline{},
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			results, err := sync.Apply(cmd.Context(), res.Units)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				cli.RenderResults(out, results, cli.TerminalWidth())
			}
			if err := results.Err(); err != nil {
				return errors.Wrap(err, errors.ErrCodeImportFailed, fmt.Sprintf("failed to create %s", spec.Target))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&spec.Content, "content", "", "Inline content of the resource")
	cmd.Flags().StringVar(&spec.From, "from", "", "File path or http(s) URL to read the content from")
	cmd.Flags().StringVar(&spec.Encoding, "encoding", workspace.DefaultEncoding, "Charset the content is written in")
	cmd.Flags().BoolVar(&spec.Force, "force", false, "Replace an existing file")
	return cmd
}
