package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"curator/internal/config"
)

const userAgent = "Curator-Go/0.1.0"

// Event enumerates the notifications the pipeline can publish.
type Event string

const (
	EventReviewRequired Event = "review_required"
	EventUnitFailed     Event = "unit_failed"
	EventScanCompleted  Event = "scan_completed"
	EventTest           Event = "test"
)

// Payload carries event fields. Known keys: key, displayName, reason, score,
// error, context, dispatched.
type Payload map[string]any

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		review:   cfg.Notifications.Review,
		errors:   cfg.Notifications.Errors,
		window:   time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		sent:     make(map[string]time.Time),
		now:      time.Now,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	review   bool
	errors   bool
	window   time.Duration
	now      func() time.Time

	mu   sync.Mutex
	sent map[string]time.Time
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if !n.enabled(event) {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	if n.duplicate(event, payload) {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventReviewRequired:
		return n.review
	case EventUnitFailed:
		return n.errors
	}
	return true
}

// duplicate records the send and reports whether the same event for the same
// key was already delivered inside the window.
func (n *ntfyService) duplicate(event Event, payload Payload) bool {
	key := payloadString(payload, "key")
	if n.window <= 0 || key == "" {
		return false
	}
	id := string(event) + "|" + key
	now := n.now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.sent[id]; ok && now.Sub(last) < n.window {
		return true
	}
	n.sent[id] = now
	for k, at := range n.sent {
		if now.Sub(at) >= n.window {
			delete(n.sent, k)
		}
	}
	return false
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventReviewRequired:
		name := firstNonEmpty(payloadString(payload, "displayName"), payloadString(payload, "key"))
		body := fmt.Sprintf("🔎 Review needed: %s", name)
		if reason := payloadString(payload, "reason"); reason != "" {
			body += "\nReason: " + reason
		}
		if score, ok := payload["score"].(float64); ok {
			body += fmt.Sprintf("\nScore: %.1f", score)
		}
		return message{
			title: "Curator - Review Required",
			body:  body,
			tags:  []string{"curator", "review"},
		}, true
	case EventUnitFailed:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := firstNonEmpty(payloadString(payload, "displayName"), payloadString(payload, "context")); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		builder.WriteString(firstNonEmpty(payloadString(payload, "error"), "unknown"))
		return message{
			title:    "Curator - Error",
			body:     builder.String(),
			tags:     []string{"curator", "error", "alert"},
			priority: "high",
		}, true
	case EventScanCompleted:
		return message{
			title: "Curator - Scan Complete",
			body:  fmt.Sprintf("Library scan complete: %s items dispatched", firstNonEmpty(payloadString(payload, "dispatched"), "0")),
			tags:  []string{"curator", "scan", "completed"},
		}, true
	case EventTest:
		return message{
			title:    "Curator - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"curator", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
