package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/api"
	"courier/internal/daemonctl"
	"courier/internal/queue"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the courier daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, startLogLevel),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			printStartState(stdout, result, "Daemon started")
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Log level for a newly launched daemon")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the courier daemon (terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			printStop(stdout, result)
			return nil
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the courier daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx, restartLogLevel),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}
			if result.WasRunning {
				printStop(stdout, result.Stop)
			}
			printStartState(stdout, result.Start, "Daemon restarted")
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Log level for the relaunched daemon")

	var withChecks bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue(), withChecks)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			renderDaemonStatus(cmd, status)
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&withChecks, "checks", false, "Include transport and storage readiness checks")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func printStartState(stdout io.Writer, result daemonctl.StartResult, startedMsg string) {
	switch result.State {
	case daemonctl.StartStateStarted:
		fmt.Fprintln(stdout, startedMsg)
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintln(stdout, "Daemon already running")
	case daemonctl.StartStateRequested:
		if strings.TrimSpace(result.Message) != "" {
			fmt.Fprintln(stdout, result.Message)
			return
		}
		fmt.Fprintln(stdout, "Start request sent")
	}
}

func printStop(stdout io.Writer, result daemonctl.StopResult) {
	if result.StopAcknowledged {
		fmt.Fprintln(stdout, "Stopping upload workers...")
	} else {
		fmt.Fprintln(stdout, "Stop request sent")
	}
	if result.Signalled && result.PID > 0 {
		fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
	}
	fmt.Fprintln(stdout, "Daemon stopped")
}

func renderDaemonStatus(cmd *cobra.Command, status api.DaemonStatus) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if status.Running {
		detail := "Running"
		if status.PID > 0 {
			detail = fmt.Sprintf("Running (pid %d)", status.PID)
		}
		fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, detail, colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Daemon", statusWarn, "Not running", colorize))
	}
	fmt.Fprintln(stdout, renderStatusLine("Device", statusInfo, status.DeviceID, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Transport", statusInfo, status.Transport, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Queue database", statusInfo, status.QueueDBPath, colorize))
	if status.Service.Running {
		fmt.Fprintln(stdout, renderStatusLine("Workers", statusOK,
			fmt.Sprintf("%d active, %d waiting", status.Service.WorkersActive, status.Service.QueueDepth), colorize))
	}
	if status.Service.LastError != "" {
		fmt.Fprintln(stdout, renderStatusLine("Last error", statusError, status.Service.LastError, colorize))
	}

	if len(status.Checks) > 0 {
		fmt.Fprintln(stdout)
		for _, line := range renderSectionHeader("Readiness", colorize) {
			fmt.Fprintln(stdout, line)
		}
		for _, check := range status.Checks {
			kind := statusOK
			if !check.Passed {
				kind = statusError
			}
			fmt.Fprintln(stdout, renderStatusLine(check.Name, kind, check.Detail, colorize))
		}
	}

	fmt.Fprintln(stdout)
	for _, line := range renderSectionHeader("Queue", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if status.Service.Total == 0 {
		fmt.Fprintln(stdout, "Queue is empty")
		return
	}
	counts := map[queue.Status]int{
		queue.StatusQueued:    status.Service.Queued,
		queue.StatusUploading: status.Service.Uploading,
		queue.StatusCompleted: status.Service.Completed,
		queue.StatusFailed:    status.Service.Failed,
	}
	rows := make([][]string, 0, len(counts))
	for _, s := range queue.AllStatuses() {
		rows = append(rows, []string{statusLabel(string(s)), fmt.Sprintf("%d", counts[s])})
	}
	fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{
		SocketPath: ctx.socketPath(),
		ConfigPath: ctx.configPath(),
		LogLevel:   strings.TrimSpace(logLevel),
	}
	return opts
}
