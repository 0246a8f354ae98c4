package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"discripper/internal/config"
)

const userAgent = "discripper/0.1.0"

// Service defines the notification surface exposed to the job pipeline.
type Service interface {
	NotifyJobStarted(ctx context.Context, label, discType string) error
	NotifyRipCompleted(ctx context.Context, title string) error
	NotifyTranscodeCompleted(ctx context.Context, title string) error
	NotifyJobCompleted(ctx context.Context, title, path string) error
	NotifyJobFailed(ctx context.Context, title string, err error) error
	NotifyRenameBatch(ctx context.Context, series string, succeeded, failed int) error
	TestNotification(ctx context.Context) error
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

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyJobStarted(ctx context.Context, label, discType string) error {
	label = strings.TrimSpace(label)
	discType = strings.TrimSpace(discType)
	if discType == "" {
		discType = "unknown"
	}
	data := payload{
		title:   "discripper - Job Started",
		message: fmt.Sprintf("📀 Disc loaded: %s (%s)", label, discType),
		tags:    []string{"discripper", "job", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRipCompleted(ctx context.Context, title string) error {
	data := payload{
		title:   "discripper - Rip Complete",
		message: fmt.Sprintf("💿 Rip complete: %s", strings.TrimSpace(title)),
		tags:    []string{"discripper", "rip", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTranscodeCompleted(ctx context.Context, title string) error {
	data := payload{
		title:   "discripper - Transcoded",
		message: fmt.Sprintf("🎞️ Transcode complete: %s", strings.TrimSpace(title)),
		tags:    []string{"discripper", "transcode", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, title, path string) error {
	message := fmt.Sprintf("✅ Ready: %s", strings.TrimSpace(title))
	if path = strings.TrimSpace(path); path != "" {
		message = fmt.Sprintf("%s\nPath: %s", message, path)
	}
	data := payload{
		title:    "discripper - Complete",
		message:  message,
		tags:     []string{"discripper", "job", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, title string, err error) error {
	var builder strings.Builder
	builder.WriteString("❌ Job failed")
	if title = strings.TrimSpace(title); title != "" {
		builder.WriteString(": ")
		builder.WriteString(title)
	}
	if err != nil {
		builder.WriteString("\n")
		builder.WriteString(strings.TrimSpace(err.Error()))
	}
	data := payload{
		title:    "discripper - Error",
		message:  builder.String(),
		tags:     []string{"discripper", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRenameBatch(ctx context.Context, series string, succeeded, failed int) error {
	title := "discripper - Rename Complete"
	message := fmt.Sprintf("Renamed %d discs of %s", succeeded, strings.TrimSpace(series))
	if failed > 0 {
		title = "discripper - Rename Complete (with errors)"
		message = fmt.Sprintf("Renamed %d discs of %s, %d failed", succeeded, strings.TrimSpace(series), failed)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"discripper", "rename"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "discripper - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"discripper", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
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

type noopService struct{}

func (noopService) NotifyJobStarted(context.Context, string, string) error    { return nil }
func (noopService) NotifyRipCompleted(context.Context, string) error          { return nil }
func (noopService) NotifyTranscodeCompleted(context.Context, string) error    { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, string) error  { return nil }
func (noopService) NotifyJobFailed(context.Context, string, error) error      { return nil }
func (noopService) NotifyRenameBatch(context.Context, string, int, int) error { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
