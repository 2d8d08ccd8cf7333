package api_test

import (
	"net/url"
	"testing"

	"courier/internal/api"
	"courier/internal/queue"
)

func TestParseListQuery(t *testing.T) {
	values := url.Values{
		"status": {"queued,failed", "uploading"},
		"batch":  {"b1"},
		"type":   {"Image"},
		"sort":   {"priority"},
		"order":  {"desc"},
		"limit":  {"10"},
	}
	req, err := api.ParseListQuery(values)
	if err != nil {
		t.Fatalf("ParseListQuery: %v", err)
	}
	filter, err := req.Filter()
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	want := []queue.Status{queue.StatusQueued, queue.StatusFailed, queue.StatusUploading}
	if len(filter.Statuses) != len(want) {
		t.Fatalf("statuses %v", filter.Statuses)
	}
	for i := range want {
		if filter.Statuses[i] != want[i] {
			t.Fatalf("statuses %v, want %v", filter.Statuses, want)
		}
	}
	if filter.BatchID != "b1" || filter.FileType != "image" || filter.SortBy != "priority" || !filter.Descending || filter.Limit != 10 {
		t.Fatalf("unexpected filter %+v", filter)
	}
}

func TestParseListQueryRejectsBadInput(t *testing.T) {
	cases := []url.Values{
		{"limit": {"ten"}},
		{"order": {"sideways"}},
		{"older_than_days": {"x"}},
	}
	for _, values := range cases {
		if _, err := api.ParseListQuery(values); err == nil {
			t.Fatalf("expected error for %v", values)
		}
	}
	if _, err := (api.ListRequest{Statuses: []string{"paused"}}).Filter(); err == nil {
		t.Fatal("expected unknown status error")
	}
	if _, err := (api.ListRequest{Limit: -1}).Filter(); err == nil {
		t.Fatal("expected negative limit error")
	}
}

func TestParseTime(t *testing.T) {
	if api.ParseTime("2026-03-01T12:00:00.000Z").IsZero() {
		t.Fatal("expected timestamp parsed")
	}
	if !api.ParseTime("not a time").IsZero() {
		t.Fatal("expected zero time for invalid input")
	}
}
