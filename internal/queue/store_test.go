package queue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"courier/internal/queue"
	"courier/internal/testsupport"
)

func TestInsertAssignsIncreasingIDs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := testsupport.NewJob(t, cfg, store, "b1", "a.jpg", 2)
	second := testsupport.NewJob(t, cfg, store, "b1", "b.jpg", 2)
	if first.ID == 0 || second.ID <= first.ID {
		t.Fatalf("expected increasing ids, got %d then %d", first.ID, second.ID)
	}

	fetched, err := store.Get(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected job to exist")
	}
	if fetched.Status != queue.StatusQueued {
		t.Fatalf("expected queued, got %s", fetched.Status)
	}
	if fetched.MetadataJSON != "{}" {
		t.Fatalf("expected empty metadata object, got %q", fetched.MetadataJSON)
	}
	if fetched.CreatedAt.IsZero() || fetched.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps, got %#v", fetched)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.Get(context.Background(), 999)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %#v", job)
	}
}

func TestUpdateMissingIsNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	changed, err := store.Update(context.Background(), 42, queue.NewPatch().Progress(10))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if changed {
		t.Fatal("expected no change for missing id")
	}
}

func TestUpdateRefreshesUpdatedAt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, cfg, store, "b1", "a.jpg", 2)
	before, _ := store.Get(ctx, job.ID)
	time.Sleep(2 * time.Millisecond)

	changed, err := store.Update(ctx, job.ID, queue.NewPatch().Progress(150).UploadError("boom"))
	if err != nil || !changed {
		t.Fatalf("Update: changed=%v err=%v", changed, err)
	}
	after, _ := store.Get(ctx, job.ID)
	if after.UploadProgress != 100 {
		t.Fatalf("expected progress clamped to 100, got %d", after.UploadProgress)
	}
	if after.UploadError != "boom" {
		t.Fatalf("expected upload error, got %q", after.UploadError)
	}
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Fatalf("expected updated_at to advance: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
}

func TestPatchIsImmutable(t *testing.T) {
	base := queue.NewPatch().Progress(10)
	_ = base.Status(queue.StatusFailed)
	if base.Empty() {
		t.Fatal("expected base patch to keep its assignment")
	}
	if !queue.NewPatch().Empty() {
		t.Fatal("expected new patch to be empty")
	}
}

func TestTransitionIsCompareAndSet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, cfg, store, "b1", "a.jpg", 2)

	ok, err := store.Claim(ctx, job.ID)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	ok, err = store.Claim(ctx, job.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatal("expected second claim to lose")
	}

	ok, err = store.Transition(ctx, job.ID, queue.StatusQueued, queue.NewPatch().Status(queue.StatusFailed))
	if err != nil || ok {
		t.Fatalf("expected guarded transition to miss: ok=%v err=%v", ok, err)
	}
	fetched, _ := store.Get(ctx, job.ID)
	if fetched.Status != queue.StatusUploading {
		t.Fatalf("expected uploading, got %s", fetched.Status)
	}
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, cfg, store, "b1", "a.jpg", 2)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker, err := store.Dedicated(ctx)
			if err != nil {
				t.Errorf("Dedicated: %v", err)
				return
			}
			defer worker.Close()
			ok, err := worker.Claim(ctx, job.ID)
			if err != nil {
				t.Errorf("Claim: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestSearchFiltersAndSorts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.NewJob(t, cfg, store, "b1", "a.jpg", 3)
	b := testsupport.NewJob(t, cfg, store, "b1", "b.jpg", 1)
	c := testsupport.NewJob(t, cfg, store, "b2", "c.jpg", 2)
	if _, err := store.Update(ctx, c.ID, queue.NewPatch().Status(queue.StatusFailed)); err != nil {
		t.Fatalf("Update: %v", err)
	}

	jobs, err := store.Search(ctx, queue.Filter{BatchID: "b1", SortBy: "priority"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != b.ID || jobs[1].ID != a.ID {
		t.Fatalf("unexpected order: %v", ids(jobs))
	}

	jobs, err = store.Search(ctx, queue.Filter{Statuses: []queue.Status{queue.StatusFailed}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != c.ID {
		t.Fatalf("expected only failed job, got %v", ids(jobs))
	}

	jobs, err = store.Search(ctx, queue.Filter{SortBy: "id", Descending: true, Limit: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != c.ID {
		t.Fatalf("expected newest first with limit, got %v", ids(jobs))
	}

	incomplete := false
	jobs, err = store.Search(ctx, queue.Filter{UploadComplete: &incomplete})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 incomplete jobs, got %d", len(jobs))
	}
}

func TestSearchRejectsUnknownSortColumn(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.Search(context.Background(), queue.Filter{SortBy: "file_path; DROP TABLE jobs"})
	if !errors.Is(err, queue.ErrUnknownSortColumn) {
		t.Fatalf("expected ErrUnknownSortColumn, got %v", err)
	}
}

func TestStatusSummaryIncludesEveryStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, cfg, store, "b1", "a.jpg", 2)
	job := testsupport.NewJob(t, cfg, store, "b1", "b.jpg", 2)
	if _, err := store.Update(ctx, job.ID, queue.NewPatch().Status(queue.StatusCompleted)); err != nil {
		t.Fatalf("Update: %v", err)
	}

	summary, err := store.StatusSummary(ctx)
	if err != nil {
		t.Fatalf("StatusSummary: %v", err)
	}
	for _, status := range queue.AllStatuses() {
		if _, ok := summary[status]; !ok {
			t.Fatalf("missing status %s in %v", status, summary)
		}
	}
	total := 0
	for _, n := range summary {
		total += n
	}
	count, _ := store.Count(ctx)
	if total != count || total != 2 {
		t.Fatalf("summary total %d does not match count %d", total, count)
	}
	if summary[queue.StatusQueued] != 1 || summary[queue.StatusCompleted] != 1 {
		t.Fatalf("unexpected summary %v", summary)
	}
}

func TestResetUploadingAndPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.NewJob(t, cfg, store, "b1", "a.jpg", 4)
	b := testsupport.NewJob(t, cfg, store, "b1", "b.jpg", 2)
	c := testsupport.NewJob(t, cfg, store, "b1", "c.jpg", 2)
	if _, err := store.Update(ctx, a.ID, queue.NewPatch().Status(queue.StatusUploading).Progress(40)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := store.Update(ctx, c.ID, queue.NewPatch().Status(queue.StatusCompleted)); err != nil {
		t.Fatalf("Update: %v", err)
	}

	n, err := store.ResetUploading(ctx)
	if err != nil {
		t.Fatalf("ResetUploading: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reset, got %d", n)
	}
	reset, _ := store.Get(ctx, a.ID)
	if reset.Status != queue.StatusQueued || reset.UploadProgress != 0 || reset.Priority != 4 {
		t.Fatalf("unexpected reset job %#v", reset)
	}

	pending, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if got := ids(pending); len(got) != 2 || got[0] != a.ID || got[1] != b.ID {
		t.Fatalf("unexpected pending ids %v", got)
	}
}

func TestAttemptsCascadeOnPurge(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, cfg, store, "b1", "a.jpg", 2)
	for i := 0; i < 2; i++ {
		if _, err := store.AppendAttempt(ctx, queue.Attempt{JobID: job.ID, BatchID: "b1", Error: fmt.Sprintf("try %d", i)}); err != nil {
			t.Fatalf("AppendAttempt: %v", err)
		}
	}
	attempts, err := store.Attempts(ctx, job.ID)
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if len(attempts) != 2 || attempts[0].Error != "try 0" || attempts[0].Success {
		t.Fatalf("unexpected attempts %#v", attempts)
	}

	if err := store.MarkFileDeleted(ctx, job.ID); err != nil {
		t.Fatalf("MarkFileDeleted: %v", err)
	}
	purged, err := store.PurgeDeleted(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("PurgeDeleted: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged row, got %d", purged)
	}
	attempts, err = store.Attempts(ctx, job.ID)
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if len(attempts) != 0 {
		t.Fatalf("expected attempts to cascade, got %d", len(attempts))
	}
}

func TestPurgeKeepsRecentAndUndeletedRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	kept := testsupport.NewJob(t, cfg, store, "b1", "a.jpg", 2)
	deleted := testsupport.NewJob(t, cfg, store, "b1", "b.jpg", 2)
	if err := store.MarkFileDeleted(ctx, deleted.ID); err != nil {
		t.Fatalf("MarkFileDeleted: %v", err)
	}

	purged, err := store.PurgeDeleted(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("PurgeDeleted: %v", err)
	}
	if purged != 0 {
		t.Fatalf("expected recent rows to survive, purged %d", purged)
	}
	if job, _ := store.Get(ctx, kept.ID); job == nil {
		t.Fatal("expected undeleted job to remain")
	}
}

func TestExpiredSelectsDeliveredFilesOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	done := testsupport.NewJob(t, cfg, store, "b1", "a.jpg", 2)
	failed := testsupport.NewJob(t, cfg, store, "b1", "b.jpg", 2)
	testsupport.NewJob(t, cfg, store, "b1", "c.jpg", 2)
	if _, err := store.Update(ctx, done.ID, queue.NewPatch().Status(queue.StatusCompleted).UploadComplete(true).Remote("/x/a.jpg", "ftp://h/x/a.jpg")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := store.Update(ctx, failed.ID, queue.NewPatch().Status(queue.StatusFailed)); err != nil {
		t.Fatalf("Update: %v", err)
	}

	expired, err := store.Expired(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Expired: %v", err)
	}
	if got := ids(expired); len(got) != 1 || got[0] != done.ID {
		t.Fatalf("expected only completed job, got %v", got)
	}
}

func TestBatchesSummarizeStatusAndTypes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, cfg, store, "older", "a.jpg", 2)
	time.Sleep(2 * time.Millisecond)
	job := testsupport.NewJob(t, cfg, store, "newer", "b.jpg", 2)
	thumb := &queue.Job{BatchID: "newer", FilePath: job.FilePath, FileName: "b_thumb.jpg", FileType: "thumbnail"}
	if _, err := store.Insert(ctx, thumb); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := store.Update(ctx, job.ID, queue.NewPatch().Status(queue.StatusFailed)); err != nil {
		t.Fatalf("Update: %v", err)
	}

	batches, err := store.Batches(ctx)
	if err != nil {
		t.Fatalf("Batches: %v", err)
	}
	if len(batches) != 2 || batches[0].BatchID != "newer" {
		t.Fatalf("expected newest batch first, got %#v", batches)
	}
	newer := batches[0]
	if newer.FileCount != 2 || newer.Status[queue.StatusFailed] != 1 || newer.Status[queue.StatusQueued] != 1 {
		t.Fatalf("unexpected batch summary %#v", newer)
	}
	if len(newer.FileTypes) != 2 || newer.FileTypes[0] != "image" || newer.FileTypes[1] != "thumbnail" {
		t.Fatalf("unexpected file types %v", newer.FileTypes)
	}
}

func TestCheckHealthReportsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, cfg, store, "b1", "a.jpg", 2)
	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists || !health.IntegrityCheck {
		t.Fatalf("unexpected health %#v", health)
	}
	if health.SchemaVersion != 1 || len(health.MissingColumns) != 0 || health.TotalJobs != 1 {
		t.Fatalf("unexpected health details %#v", health)
	}
	if health.JournalMode != "wal" {
		t.Fatalf("expected wal journal, got %q", health.JournalMode)
	}
}

func TestReopenKeepsJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	job := testsupport.NewJob(t, cfg, store, "b1", "a.jpg", 2)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	fetched, err := reopened.Get(context.Background(), job.ID)
	if err != nil || fetched == nil {
		t.Fatalf("expected job after reopen: %v", err)
	}
}

func ids(jobs []*queue.Job) []int64 {
	out := make([]int64, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.ID)
	}
	return out
}
