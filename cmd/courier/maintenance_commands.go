package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/api"
	"courier/internal/ipc"
	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/retention"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var req api.CleanupRequest
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete local files that were delivered",
		Long: "Delete local files whose upload completed and mark their jobs.\n\n" +
			"Runs inside the daemon when it is reachable, otherwise against the queue database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.OlderThanDays < 0 {
				return fmt.Errorf("--older-than-days must not be negative")
			}
			resp, err := ctx.runMaintenance(
				func(client *ipc.Client) (*api.CleanupResponse, error) { return client.Cleanup(req) },
				func(c context.Context, sweeper *retention.Sweeper) (retention.Result, error) {
					return sweeper.DeleteCompleted(c, api.ToSweepOptions(req))
				},
			)
			if err != nil {
				return err
			}
			return printCleanup(cmd, ctx, resp, fmt.Sprintf("Deleted %d of %d delivered file(s)", resp.Deleted, resp.Examined))
		},
	}
	cmd.Flags().IntVar(&req.OlderThanDays, "older-than-days", 0, "Only files delivered more than N days ago")
	cmd.Flags().StringVarP(&req.BatchID, "batch", "b", "", "Only files from this batch")
	cmd.Flags().StringVarP(&req.Reference, "reference", "r", "", "Only files with this caller reference")
	return cmd
}

func newPurgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove old job rows whose local files are gone",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.runMaintenance(
				func(client *ipc.Client) (*api.CleanupResponse, error) { return client.Purge() },
				func(c context.Context, sweeper *retention.Sweeper) (retention.Result, error) {
					return sweeper.Purge(c, time.Now())
				},
			)
			if err != nil {
				return err
			}
			return printCleanup(cmd, ctx, resp, fmt.Sprintf("Purged %d job row(s)", resp.Purged))
		},
	}
}

// runMaintenance prefers the daemon and falls back to a local sweeper over
// the queue database.
func (c *commandContext) runMaintenance(
	remote func(*ipc.Client) (*api.CleanupResponse, error),
	local func(context.Context, *retention.Sweeper) (retention.Result, error),
) (api.CleanupResponse, error) {
	if client, err := ipc.Dial(c.socketPath()); err == nil {
		defer client.Close()
		resp, err := remote(client)
		if err != nil {
			return api.CleanupResponse{}, err
		}
		return *resp, nil
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return api.CleanupResponse{}, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return api.CleanupResponse{}, fmt.Errorf("open queue database: %w", err)
	}
	defer store.Close()

	sweeper := retention.NewSweeper(cfg.Retention, store, logging.NewNop())
	result, err := local(context.Background(), sweeper)
	if err != nil {
		return api.CleanupResponse{}, err
	}
	return api.FromSweepResult(result), nil
}

func printCleanup(cmd *cobra.Command, ctx *commandContext, resp api.CleanupResponse, summary string) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, resp)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, summary)
	if resp.Marked > 0 {
		fmt.Fprintf(out, "Marked %d job(s) whose file was already gone\n", resp.Marked)
	}
	for _, msg := range resp.Errors {
		fmt.Fprintf(out, "  error: %s\n", msg)
	}
	return nil
}
