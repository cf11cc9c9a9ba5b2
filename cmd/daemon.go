package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/wsync/cli"
	"github.com/grovetools/wsync/errors"
	"github.com/grovetools/wsync/internal/daemon/engine"
	"github.com/grovetools/wsync/internal/daemon/pidfile"
	"github.com/grovetools/wsync/internal/daemon/server"
	"github.com/grovetools/wsync/internal/daemon/store"
	"github.com/grovetools/wsync/pkg/daemon"
	"github.com/grovetools/wsync/pkg/paths"
	"github.com/grovetools/wsync/pkg/process"
	"github.com/spf13/cobra"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage wsyncd, the background synchronizer",
		Long: `wsyncd watches the configuration and the active target definition and
runs a pass whenever a new definition is activated. It serves its state,
a sync endpoint and Prometheus metrics on a unix socket.`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())
	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			logger := cli.GetLogger(cmd, "wsyncd")
			pidPath := paths.PidFilePath()
			sockPath := daemon.SocketPath(cfg)

			if err := pidfile.Acquire(pidPath); err != nil {
				return err
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			eng, err := engine.New(cfg, store.New(), logger)
			if err != nil {
				return err
			}
			srv := server.New(logger)
			srv.SetEngine(eng)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engineDone := make(chan error, 1)
			go func() { engineDone <- eng.Start(ctx) }()

			serveErr := make(chan error, 1)
			go func() { serveErr <- srv.ListenAndServe(sockPath) }()

			logger.WithField("pid", os.Getpid()).Info("Starting daemon")
			engineStopped := false
			select {
			case <-ctx.Done():
				logger.Info("Received stop signal")
			case err = <-serveErr:
				stop()
			case err = <-engineDone:
				engineStopped = true
				stop()
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				logger.Errorf("Server shutdown error: %v", serr)
			}
			if !engineStopped {
				if eerr := <-engineDone; eerr != nil && err == nil {
					err = eerr
				}
			}
			if err != nil {
				return fmt.Errorf("daemon stopped: %w", err)
			}
			return nil
		},
	}
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			if err := process.Terminate(pid); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}

type daemonStatus struct {
	Running bool          `json:"running"`
	PID     int           `json:"pid,omitempty"`
	Socket  string        `json:"socket"`
	State   *daemon.State `json:"state,omitempty"`
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and the last pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A missing config only changes the socket path.
			cfg, _ := cli.LoadConfig(cmd)
			status := daemonStatus{Socket: daemon.SocketPath(cfg)}

			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			status.Running, status.PID = running, pid

			if running {
				client := daemon.NewRemoteClient(status.Socket)
				defer client.Close()
				if st, err := client.State(cmd.Context()); err == nil {
					status.State = st
				}
			}

			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(status); err != nil {
					return err
				}
			} else {
				printStatus(cmd, status)
			}
			if !running {
				return errors.New(errors.ErrCodeDaemonNotRunning, "daemon is not running")
			}
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, s daemonStatus) {
	t := cli.DefaultTheme
	out := cmd.OutOrStdout()
	if !s.Running {
		fmt.Fprintln(out, t.Muted.Render("Stopped"))
		return
	}
	fmt.Fprintf(out, "%s (PID: %d)\nSocket: %s\n", t.Success.Render("Running"), s.PID, s.Socket)
	if s.State == nil {
		return
	}
	if s.State.Definition != "" {
		fmt.Fprintf(out, "Definition: %s\n", s.State.Definition)
	}
	p := s.State.LastPass
	if p == nil {
		fmt.Fprintln(out, t.Muted.Render("No pass has run yet."))
		return
	}
	fmt.Fprintf(out, "Last pass: %s (%s, %s)\n", p.FinishedAt.Format(time.RFC3339), p.Reason, p.Duration().Round(time.Millisecond))
	if p.Failed() {
		fmt.Fprintln(out, t.Error.Render("  "+p.Error))
	}
	for loc, problem := range p.Problems {
		fmt.Fprintf(out, "  %s %s: %s\n", t.Warning.Render("skipped"), loc, problem)
	}
}
