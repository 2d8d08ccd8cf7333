package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/testsupport"
)

func doneEvent() notifications.Event {
	return notifications.Event{
		Type:       notifications.EventUploadDone,
		JobID:      7,
		BatchID:    "b1",
		Reference:  "ref-1",
		FileName:   "a.jpg",
		FileType:   "image",
		DeviceID:   "cam-01",
		Progress:   100,
		Duration:   1500 * time.Millisecond,
		RemotePath: "/b1/image/a.jpg",
		Timestamp:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestEventWireFormat(t *testing.T) {
	data, err := json.Marshal(doneEvent())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["notification_type"] != "UPLOAD_DONE" || raw["file"] != "a.jpg" || raw["device_id"] != "cam-01" {
		t.Fatalf("unexpected wire payload %s", data)
	}
	if raw["upload_duration"] != 1.5 {
		t.Fatalf("expected duration in seconds, got %v", raw["upload_duration"])
	}

	var decoded notifications.Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Duration != 1500*time.Millisecond || decoded.JobID != 7 {
		t.Fatalf("unexpected decoded event %+v", decoded)
	}
}

func TestMultiCallsEverySinkAndJoinsErrors(t *testing.T) {
	var calls int
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	multi := notifications.Multi{
		notifications.Func(func(context.Context, notifications.Event) error { calls++; return errA }),
		notifications.Nop{},
		notifications.Func(func(context.Context, notifications.Event) error { calls++; return errB }),
	}
	err := multi.Notify(context.Background(), doneEvent())
	if calls != 2 {
		t.Fatalf("expected both sinks called, got %d", calls)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected joined errors, got %v", err)
	}
}

func TestAsyncDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	var (
		mu       sync.Mutex
		received []notifications.EventType
	)
	inner := notifications.Func(func(_ context.Context, e notifications.Event) error {
		<-release
		mu.Lock()
		received = append(received, e.Type)
		mu.Unlock()
		return nil
	})
	async := notifications.NewAsync("test", inner, 1, logging.NewNop())

	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := async.Notify(context.Background(), doneEvent()); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Fatal("Notify blocked on a stalled sink")
	}
	close(release)
	async.Close()

	if async.Dropped() == 0 {
		t.Fatal("expected some events to be dropped")
	}
	mu.Lock()
	defer mu.Unlock()
	if uint64(len(received))+async.Dropped() != 10 {
		t.Fatalf("delivered %d + dropped %d != 10", len(received), async.Dropped())
	}
	if err := async.Notify(context.Background(), doneEvent()); err != nil {
		t.Fatalf("Notify after Close: %v", err)
	}
}

func TestNtfyPostsDoneAndFailedOnly(t *testing.T) {
	type request struct {
		title, tags, priority, body string
	}
	var (
		mu       sync.Mutex
		requests []request
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, request{r.Header.Get("Title"), r.Header.Get("Tags"), r.Header.Get("Priority"), string(body)})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := notifications.NewNtfy(server.URL, time.Second)
	ctx := context.Background()
	progress := doneEvent()
	progress.Type = notifications.EventUploadProgress
	if err := sink.Notify(ctx, progress); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if err := sink.Notify(ctx, doneEvent()); err != nil {
		t.Fatalf("done: %v", err)
	}
	failed := doneEvent()
	failed.Type = notifications.EventUploadFailed
	failed.Error = "530 login incorrect"
	if err := sink.Notify(ctx, failed); err != nil {
		t.Fatalf("failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(requests) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(requests))
	}
	if requests[0].title != "Courier - Upload Complete" || !strings.Contains(requests[0].body, "a.jpg") || requests[0].tags != "courier,cam-01,upload,completed" {
		t.Fatalf("unexpected done post %+v", requests[0])
	}
	if requests[1].priority != "high" || !strings.Contains(requests[1].body, "530 login incorrect") {
		t.Fatalf("unexpected failed post %+v", requests[1])
	}
}

func TestNtfyReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	err := notifications.NewNtfy(server.URL, time.Second).Notify(context.Background(), doneEvent())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestRedisPublishesJSON(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	sub := client.Subscribe(ctx, "image.uploads")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	messages := sub.Channel()

	publisher := notifications.NewRedis(client, "image.uploads", false)
	progress := doneEvent()
	progress.Type = notifications.EventUploadProgress
	if err := publisher.Notify(ctx, progress); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if err := publisher.Notify(ctx, doneEvent()); err != nil {
		t.Fatalf("done: %v", err)
	}

	select {
	case msg := <-messages:
		var event notifications.Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if event.Type != notifications.EventUploadDone || event.DeviceID != "cam-01" {
			t.Fatalf("expected done event first, got %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestHubBroadcastsToWebsocketClients(t *testing.T) {
	hub := notifications.NewHub(logging.NewNop())
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := hub.Notify(context.Background(), doneEvent()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event notifications.Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.JobID != 7 || event.Type != notifications.EventUploadDone {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestBuildWithoutTargetsIsNop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	built, err := notifications.Build(cfg, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer built.Close()
	if _, ok := built.Sink.(notifications.Nop); !ok {
		t.Fatalf("expected Nop sink, got %T", built.Sink)
	}

	cfg.Notifications.RedisURL = "://bad"
	if _, err := notifications.Build(cfg, nil, logging.NewNop()); err == nil {
		t.Fatal("expected error for malformed redis url")
	}
}
