package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/api"
	"courier/internal/ipc"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		fileType   string
		subType    string
		resolution string
		reference  string
		priority   int
		manifest   string
		metadata   []string
	)

	cmd := &cobra.Command{
		Use:   "enqueue [file...]",
		Short: "Submit files as one upload batch",
		Long: "Submit files as one upload batch.\n\n" +
			"Files share the flags given on the command line. Use --manifest to submit a JSON\n" +
			"document with per-file types and metadata instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildEnqueueRequest(args, manifest, reference)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				meta, err := parseMetadataFlags(metadata)
				if err != nil {
					return err
				}
				for i := range req.Files {
					req.Files[i].Type = fileType
					req.Files[i].SubType = subType
					req.Files[i].Resolution = resolution
					req.Files[i].Metadata = meta
					if cmd.Flags().Changed("priority") {
						p := priority
						req.Files[i].Priority = &p
					}
				}
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Enqueue(req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Batch %s queued (%d file(s))\n", resp.BatchID, len(resp.JobIDs))
				for _, id := range resp.JobIDs {
					fmt.Fprintf(out, "  job %d\n", id)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&fileType, "type", "t", "", "File type (thumbnail, image, zip, ...)")
	cmd.Flags().StringVar(&subType, "sub-type", "", "Free-form sub type")
	cmd.Flags().StringVar(&resolution, "resolution", "", "Resolution label recorded with the job")
	cmd.Flags().StringVarP(&reference, "reference", "r", "", "Caller reference attached to the batch")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Explicit priority (lower runs first)")
	cmd.Flags().StringVar(&manifest, "manifest", "", "JSON batch manifest to submit")
	cmd.Flags().StringArrayVarP(&metadata, "meta", "m", nil, "Metadata entry key=value (repeatable)")
	return cmd
}

func buildEnqueueRequest(args []string, manifest, reference string) (api.EnqueueRequest, error) {
	manifest = strings.TrimSpace(manifest)
	switch {
	case manifest != "" && len(args) > 0:
		return api.EnqueueRequest{}, errors.New("pass files or --manifest, not both")
	case manifest != "":
		data, err := os.ReadFile(manifest)
		if err != nil {
			return api.EnqueueRequest{}, fmt.Errorf("read manifest: %w", err)
		}
		var req api.EnqueueRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return api.EnqueueRequest{}, fmt.Errorf("parse manifest %s: %w", manifest, err)
		}
		if reference != "" {
			req.Reference = reference
		}
		base := filepath.Dir(manifest)
		for i := range req.Files {
			if req.Files[i].Path != "" && !filepath.IsAbs(req.Files[i].Path) {
				req.Files[i].Path = filepath.Join(base, req.Files[i].Path)
			}
		}
		return req, nil
	case len(args) == 0:
		return api.EnqueueRequest{}, errors.New("at least one file is required")
	}

	req := api.EnqueueRequest{Reference: reference, Files: make([]api.FileSpec, 0, len(args))}
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return api.EnqueueRequest{}, fmt.Errorf("resolve %s: %w", arg, err)
		}
		req.Files = append(req.Files, api.FileSpec{Path: path})
	}
	return req, nil
}

func parseMetadataFlags(entries []string) (map[string]any, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	meta := make(map[string]any, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q (want key=value)", entry)
		}
		meta[key] = value
	}
	return meta, nil
}
