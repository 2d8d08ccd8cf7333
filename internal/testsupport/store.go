package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"courier/internal/config"
	"courier/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob inserts a queued job whose source file exists on disk and returns it.
func NewJob(t testing.TB, cfg *config.Config, store *queue.Store, batchID, name string, priority int) *queue.Job {
	t.Helper()

	path := filepath.Join(BaseDir(cfg), "files", batchID, name)
	WriteFile(t, path, 4096)
	job := &queue.Job{
		BatchID:  batchID,
		FilePath: path,
		FileName: name,
		FileType: "image",
		FileSize: 4096,
		Priority: priority,
	}
	if _, err := store.Insert(context.Background(), job); err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return job
}
