package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"courier/internal/api"
	"courier/internal/ipc"
	"courier/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the upload queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueBatchesCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var req api.ListRequest
	var order string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List upload jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch strings.ToLower(strings.TrimSpace(order)) {
			case "", "asc":
			case "desc":
				req.Descending = true
			default:
				return fmt.Errorf("invalid order %q (want asc or desc)", order)
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				jobs, err := q.List(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Batch", "File", "Type", "Status", "Pri", "Tries", "Size"},
					buildJobRows(jobs),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&req.Statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVarP(&req.BatchID, "batch", "b", "", "Filter by batch id")
	cmd.Flags().StringVarP(&req.Reference, "reference", "r", "", "Filter by caller reference")
	cmd.Flags().StringVarP(&req.FileType, "type", "t", "", "Filter by file type")
	cmd.Flags().IntVar(&req.OlderThanDays, "older-than-days", 0, "Only jobs created more than N days ago")
	cmd.Flags().StringVar(&req.SortBy, "sort", "", "Sort column (id, priority, created_at, updated_at, file_size)")
	cmd.Flags().StringVar(&order, "order", "", "Sort order (asc or desc)")
	cmd.Flags().IntVarP(&req.Limit, "limit", "n", 0, "Maximum rows to return")
	return cmd
}

func buildJobRows(jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.BatchID,
			job.FileName,
			job.FileType,
			statusLabel(job.Status),
			strconv.Itoa(job.Priority),
			strconv.Itoa(job.Attempts),
			humanize.IBytes(uint64(max(job.FileSize, 0))),
		})
	}
	return rows
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job and its delivery history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				resp, err := q.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if resp == nil {
					return fmt.Errorf("job %d not found", id)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				renderJobDetail(cmd, *resp)
				return nil
			})
		},
	}
}

func renderJobDetail(cmd *cobra.Command, resp api.JobResponse) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	job := resp.Job

	for _, line := range renderSectionHeader(fmt.Sprintf("Job %d", job.ID), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job.Status), statusLabel(job.Status), colorize))
	fmt.Fprintln(out, renderStatusLine("Batch", statusInfo, job.BatchID, colorize))
	if job.Reference != "" {
		fmt.Fprintln(out, renderStatusLine("Reference", statusInfo, job.Reference, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("File", statusInfo, job.FilePath, colorize))
	fmt.Fprintln(out, renderStatusLine("Type", statusInfo, job.FileType, colorize))
	fmt.Fprintln(out, renderStatusLine("Size", statusInfo, humanize.IBytes(uint64(max(job.FileSize, 0))), colorize))
	fmt.Fprintln(out, renderStatusLine("Priority", statusInfo, strconv.Itoa(job.Priority), colorize))
	fmt.Fprintln(out, renderStatusLine("Progress", statusInfo, fmt.Sprintf("%d%%", job.Progress), colorize))
	fmt.Fprintln(out, renderStatusLine("Local file deleted", statusInfo, yesNo(job.FileDeleted), colorize))
	if job.RemotePath != "" {
		fmt.Fprintln(out, renderStatusLine("Remote path", statusOK, job.RemotePath, colorize))
	}
	if job.RemoteURL != "" {
		fmt.Fprintln(out, renderStatusLine("Remote URL", statusOK, job.RemoteURL, colorize))
	}
	if job.UploadError != "" {
		fmt.Fprintln(out, renderStatusLine("Upload error", statusError, job.UploadError, colorize))
	}
	if job.FileError != "" {
		fmt.Fprintln(out, renderStatusLine("File error", statusError, job.FileError, colorize))
	}
	if created := api.ParseTime(job.CreatedAt); !created.IsZero() {
		fmt.Fprintln(out, renderStatusLine("Created", statusInfo, humanize.Time(created), colorize))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Attempts", colorize) {
		fmt.Fprintln(out, line)
	}
	if len(resp.Attempts) == 0 {
		fmt.Fprintln(out, "No delivery attempts yet")
		return
	}
	rows := make([][]string, 0, len(resp.Attempts))
	for _, attempt := range resp.Attempts {
		result := "ok"
		if !attempt.Success {
			result = attempt.Error
		}
		rows = append(rows, []string{attempt.UploadDate, yesNo(attempt.Success), attempt.RemotePath, result})
	}
	fmt.Fprintln(out, renderTable([]string{"When", "Success", "Remote", "Result"}, rows, nil))
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "retry [id...]",
		Short: "Re-queue failed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.RetryRequest{All: all}
			if !all {
				if len(args) == 0 {
					return errors.New("pass job ids or --all")
				}
				for _, arg := range args {
					id, err := parseJobID(arg)
					if err != nil {
						return err
					}
					req.IDs = append(req.IDs, id)
				}
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Retry(req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Successful) == 0 && len(resp.Failed) == 0 {
					fmt.Fprintln(out, "No failed jobs to retry")
					return nil
				}
				for _, id := range resp.Successful {
					fmt.Fprintf(out, "Job %d: re-queued\n", id)
				}
				for _, failure := range resp.Failed {
					fmt.Fprintf(out, "Job %d: %s\n", failure.ID, failure.Reason)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Retry every failed job")
	return cmd
}

func newQueueBatchesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "batches",
		Short: "Summarize upload batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queueaccess.Access) error {
				batches, err := q.Batches(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.BatchListResponse{Batches: batches})
				}
				out := cmd.OutOrStdout()
				if len(batches) == 0 {
					fmt.Fprintln(out, "No batches")
					return nil
				}
				rows := make([][]string, 0, len(batches))
				for _, batch := range batches {
					rows = append(rows, []string{
						batch.BatchID,
						batch.Reference,
						strconv.Itoa(batch.FileCount),
						formatStatusCounts(batch.Status),
						strings.Join(batch.FileTypes, ", "),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Batch", "Reference", "Files", "Status", "Types"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

// formatStatusCounts lists the non-zero counts in a stable order.
func formatStatusCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for key, n := range counts {
		if n > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", key, counts[key]))
	}
	return strings.Join(parts, " ")
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queueaccess.Access) error {
				health, err := q.Health(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, health)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				check := func(label string, ok bool, detail string) {
					kind := statusOK
					if !ok {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(label, kind, detail, colorize))
				}
				for _, line := range renderSectionHeader("Queue Database", colorize) {
					fmt.Fprintln(out, line)
				}
				check("Database", health.DatabaseExists && health.DatabaseReadable, health.DBPath)
				check("Schema", health.TableExists && len(health.MissingColumns) == 0,
					fmt.Sprintf("version %d", health.SchemaVersion))
				if len(health.MissingColumns) > 0 {
					check("Missing columns", false, strings.Join(health.MissingColumns, ", "))
				}
				check("Integrity", health.IntegrityCheck, "journal "+health.JournalMode)
				fmt.Fprintln(out, renderStatusLine("Jobs", statusInfo, strconv.Itoa(health.TotalJobs), colorize))
				fmt.Fprintln(out, renderStatusLine("Attempts", statusInfo, strconv.Itoa(health.TotalAttempts), colorize))
				if health.Error != "" {
					check("Error", false, health.Error)
				}
				return nil
			})
		},
	}
}

func parseJobID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", value)
	}
	return id, nil
}
