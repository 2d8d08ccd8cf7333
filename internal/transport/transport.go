// Package transport delivers local files to the remote endpoint. Remote paths
// are a pure function of batch, type, and name so a re-delivery after a crash
// overwrites the same object.
package transport

import (
	"context"
	"fmt"
	"path"
	"strings"

	"courier/internal/config"
	"courier/internal/services"
	"courier/internal/textutil"
)

// ProgressFunc receives delivery progress as a percentage in 0..100.
type ProgressFunc func(percent int)

// Request describes one file to deliver.
type Request struct {
	LocalPath string
	BatchID   string
	FileType  string
	FileName  string
	Size      int64
}

// Result reports where a delivered file landed.
type Result struct {
	RemotePath string
	RemoteURL  string
}

// Deliverer moves one file to the remote endpoint.
type Deliverer interface {
	Deliver(ctx context.Context, req Request, progress ProgressFunc) (Result, error)
	Name() string
}

// RemotePath joins root/batch/type/name with forward slashes and cleans the
// result. Batch, type, and name are each reduced to one safe segment so a
// caller-supplied name cannot climb out of the batch directory. Empty
// segments are skipped.
func RemotePath(root, batchID, fileType, fileName string) string {
	segments := make([]string, 0, 4)
	if root = strings.TrimSpace(strings.ReplaceAll(root, "\\", "/")); root != "" {
		segments = append(segments, root)
	}
	for _, segment := range []string{batchID, fileType, fileName} {
		if segment = textutil.SanitizeSegment(segment); segment != "" {
			segments = append(segments, segment)
		}
	}
	joined := path.Clean(path.Join(segments...))
	if strings.HasPrefix(strings.TrimSpace(root), "/") && !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined
}

// New builds the deliverer selected by queue.transport.
func New(ctx context.Context, cfg *config.Config) (Deliverer, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "transport", "new", "config is nil", nil)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Queue.Transport)) {
	case "", config.TransportFTP:
		return NewFTP(cfg.FTP), nil
	case config.TransportS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "transport", "new", fmt.Sprintf("unknown transport %q", cfg.Queue.Transport), nil)
	}
}

func transportError(name, operation string, err error) error {
	return services.Wrap(services.ErrTransport, name, operation, "", err)
}
