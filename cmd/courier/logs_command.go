package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		jobID  int64
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := logs.Options{Offset: -1, Limit: lines}
			if jobID > 0 {
				opts.Match = logs.JobFilter(jobID)
			}

			runCtx := cmd.Context()
			if runCtx == nil {
				runCtx = context.Background()
			}
			if follow {
				var stop context.CancelFunc
				runCtx, stop = signal.NotifyContext(runCtx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()
			}

			out := cmd.OutOrStdout()
			path := cfg.LogPath()
			for {
				chunk, err := logs.Read(runCtx, path, opts)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				if err != nil {
					return err
				}
				for _, line := range chunk.Lines {
					fmt.Fprintln(out, line)
				}
				if !follow {
					return nil
				}
				opts.Offset = chunk.Offset
				opts.Wait = 2 * time.Second
			}
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are written")
	cmd.Flags().Int64Var(&jobID, "job", 0, "Only lines logged for this job id")
	return cmd
}
