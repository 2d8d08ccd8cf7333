package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "Courier/0.1.0"

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// Ntfy posts completion and failure events to an ntfy topic URL. Progress
// events are ignored.
type Ntfy struct {
	endpoint string
	client   *http.Client
}

// NewNtfy returns a sink for the topic URL. A timeout <= 0 defaults to 10s.
func NewNtfy(topic string, timeout time.Duration) *Ntfy {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{
		endpoint: strings.TrimSpace(topic),
		client:   &http.Client{Timeout: timeout},
	}
}

func (n *Ntfy) Notify(ctx context.Context, event Event) error {
	data, ok := ntfyPayload(event)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func ntfyPayload(event Event) (payload, bool) {
	name := strings.TrimSpace(event.FileName)
	device := strings.TrimSpace(event.DeviceID)
	tags := []string{"courier"}
	if device != "" {
		tags = append(tags, device)
	}

	switch event.Type {
	case EventUploadDone:
		message := fmt.Sprintf("Uploaded %s in %s", name, event.Duration.Round(time.Millisecond))
		if event.RemotePath != "" {
			message = fmt.Sprintf("%s\nPath: %s", message, event.RemotePath)
		}
		return payload{
			title:   "Courier - Upload Complete",
			message: message,
			tags:    append(tags, "upload", "completed"),
		}, true
	case EventUploadFailed:
		reason := strings.TrimSpace(event.Error)
		if reason == "" {
			reason = "unknown"
		}
		return payload{
			title:    "Courier - Upload Failed",
			message:  fmt.Sprintf("Upload failed: %s\nReason: %s", name, reason),
			tags:     append(tags, "upload", "error"),
			priority: "high",
		}, true
	default:
		return payload{}, false
	}
}

func (n *Ntfy) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil || n.endpoint == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
