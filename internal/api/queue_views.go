package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"courier/internal/queue"
)

// ListRequest carries job list filters over IPC and query strings.
type ListRequest struct {
	Statuses      []string `json:"statuses,omitempty"`
	BatchID       string   `json:"batchId,omitempty"`
	Reference     string   `json:"reference,omitempty"`
	FileType      string   `json:"fileType,omitempty"`
	OlderThanDays int      `json:"olderThanDays,omitempty"`
	SortBy        string   `json:"sortBy,omitempty"`
	Descending    bool     `json:"descending,omitempty"`
	Limit         int      `json:"limit,omitempty"`
}

// Filter validates the request and converts it to a store filter.
func (r ListRequest) Filter() (queue.Filter, error) {
	filter := queue.Filter{
		BatchID:       strings.TrimSpace(r.BatchID),
		Reference:     strings.TrimSpace(r.Reference),
		FileType:      strings.ToLower(strings.TrimSpace(r.FileType)),
		OlderThanDays: r.OlderThanDays,
		SortBy:        strings.TrimSpace(r.SortBy),
		Descending:    r.Descending,
		Limit:         r.Limit,
	}
	for _, raw := range r.Statuses {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := queue.ParseStatus(part)
			if !ok {
				return queue.Filter{}, fmt.Errorf("unknown status %q", part)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if filter.Limit < 0 || filter.OlderThanDays < 0 {
		return queue.Filter{}, fmt.Errorf("limit and older_than_days must be non-negative")
	}
	return filter, nil
}

// ParseListQuery reads list filters from URL query parameters: status
// (repeatable or comma separated), batch, reference, type, older_than_days,
// sort, order (asc|desc), and limit.
func ParseListQuery(values url.Values) (ListRequest, error) {
	req := ListRequest{
		Statuses:  values["status"],
		BatchID:   values.Get("batch"),
		Reference: values.Get("reference"),
		FileType:  values.Get("type"),
		SortBy:    values.Get("sort"),
	}
	switch strings.ToLower(strings.TrimSpace(values.Get("order"))) {
	case "", "asc":
	case "desc":
		req.Descending = true
	default:
		return ListRequest{}, fmt.Errorf("order must be asc or desc")
	}
	var err error
	if req.Limit, err = intParam(values, "limit"); err != nil {
		return ListRequest{}, err
	}
	if req.OlderThanDays, err = intParam(values, "older_than_days"); err != nil {
		return ListRequest{}, err
	}
	return req, nil
}

func intParam(values url.Values, key string) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

// ParseTime parses an API timestamp for display. Invalid values yield zero.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
