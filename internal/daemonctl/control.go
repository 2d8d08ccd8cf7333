// Package daemonctl launches, stops, and inspects the courier daemon on
// behalf of CLI commands.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"courier/internal/api"
	"courier/internal/config"
	"courier/internal/ipc"
	"courier/internal/preflight"
	"courier/internal/queue"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// Launch starts a detached courier daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon process if its socket is absent, then
// asks it to start the queue service.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client, err := ipc.Dial(socketPath)
	launched := false
	if err != nil {
		if launchErr := Launch(executablePath, opts); launchErr != nil {
			return StartResult{}, launchErr
		}
		client, err = WaitForClient(socketPath, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		launched = true
	}
	defer client.Close()

	statusResp, statusErr := client.Status(false)
	if statusErr == nil && statusResp != nil && statusResp.Status.Running {
		if launched {
			return StartResult{State: StartStateStarted, Launched: true}, nil
		}
		return StartResult{State: StartStateAlreadyRunning}, nil
	}

	resp, err := client.Start()
	if err != nil {
		return StartResult{}, err
	}
	message := strings.TrimSpace(resp.Message)
	if resp.Started {
		return StartResult{State: StartStateStarted, Launched: launched, Message: message}, nil
	}
	if strings.EqualFold(message, "daemon already running") {
		return StartResult{State: StartStateAlreadyRunning, Launched: launched, Message: message}, nil
	}
	if message == "" {
		message = "Start request sent"
	}
	return StartResult{State: StartStateRequested, Launched: launched, Message: message}, nil
}

// WaitForShutdown waits for the daemon socket to disappear.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isDaemonUnavailable(err) {
				return nil
			}
			time.Sleep(200 * time.Millisecond)
			continue
		}
		_ = client.Close()
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not exit within %s", timeout)
}

// ProcessInfo reports whether daemon IPC is reachable and the daemon PID.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, statusErr := client.Status(false)
	if statusErr != nil {
		return true, 0, statusErr
	}
	return true, status.Status.PID, nil
}

// ForceKillProcess signals the daemon process and removes its pid file.
// The pid file wins over fallbackPID when both are available.
func ForceKillProcess(pidPath string, fallbackPID int, sig syscall.Signal) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	if err == nil {
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && parsed > 0 {
			pid = parsed
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return 0, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	return pid, nil
}

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	Signalled        bool
	PID              int
}

// StopAndTerminate stops the queue service over IPC, then sends SIGTERM so
// the process exits cleanly. SIGKILL follows if the socket outlives
// gracePeriod.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	pid := 0
	if statusResp, statusErr := client.Status(false); statusErr == nil {
		pid = statusResp.Status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid, StopAcknowledged: resp.Stopped}

	pidPath := ""
	if cfg != nil {
		pidPath = cfg.PIDPath()
	}
	if signalled, sigErr := ForceKillProcess(pidPath, pid, syscall.SIGTERM); sigErr == nil {
		result.Signalled = true
		result.PID = signalled
	}
	if err := WaitForShutdown(socketPath, gracePeriod); err == nil {
		return result, nil
	}

	killed, killErr := ForceKillProcess(pidPath, result.PID, syscall.SIGKILL)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	_ = os.Remove(socketPath)
	result.Signalled = true
	result.PID = killed
	return result, nil
}

// RestartResult captures the stop and start halves of a restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Restart stops a running daemon, if any, and launches a fresh one.
func Restart(socketPath string, cfg *config.Config, executablePath string, opts LaunchOptions, stopGrace, startTimeout time.Duration) (RestartResult, error) {
	var result RestartResult
	stop, err := StopAndTerminate(socketPath, cfg, stopGrace)
	switch {
	case errors.Is(err, ErrDaemonNotRunning):
	case err != nil:
		return result, err
	default:
		result.WasRunning = true
		result.Stop = stop
	}
	start, err := EnsureStarted(socketPath, executablePath, opts, startTimeout)
	if err != nil {
		return result, err
	}
	result.Start = start
	return result, nil
}

// BuildStatusSnapshot returns the daemon status, or an offline view built
// from the job store when the daemon is down. Readiness checks dial the
// remote endpoint, so they only run when checks is set.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config, checks bool) (api.DaemonStatus, error) {
	if cfg == nil {
		return api.DaemonStatus{}, errors.New("configuration not available")
	}
	if client, err := ipc.Dial(socketPath); err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(checks); statusErr == nil {
			return resp.Status, nil
		}
	}

	status := api.DaemonStatus{
		DeviceID:     cfg.Device.ID,
		Transport:    cfg.Queue.Transport,
		QueueDBPath:  cfg.DatabasePath(),
		LockFilePath: cfg.LockPath(),
		Service:      api.ServiceStatus{State: "stopped"},
	}
	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if store, err := queue.Open(cfg); err == nil {
		counts, countErr := store.StatusSummary(queryCtx)
		_ = store.Close()
		if countErr == nil {
			status.Service.Queued = counts[queue.StatusQueued]
			status.Service.Uploading = counts[queue.StatusUploading]
			status.Service.Completed = counts[queue.StatusCompleted]
			status.Service.Failed = counts[queue.StatusFailed]
			for _, n := range counts {
				status.Service.Total += n
			}
		} else {
			status.Service.LastError = countErr.Error()
		}
	} else {
		status.Service.LastError = err.Error()
	}
	if checks {
		status.Checks = api.FromPreflight(preflight.RunAll(ctx, cfg))
	}
	return status, nil
}

func isDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
