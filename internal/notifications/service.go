package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"vidqueue/internal/config"
)

const userAgent = "vidqueue/0.1.0"

// ProjectSummary describes a finished project for notification purposes.
type ProjectSummary struct {
	Name       string
	Status     string
	Completed  int
	Failed     int
	Canceled   int
	BytesSaved int64
	Duration   time.Duration
}

// Service defines the notification surface exposed to the queue manager.
type Service interface {
	NotifyQueueStarted(ctx context.Context, projects int) error
	NotifyProjectFinished(ctx context.Context, summary ProjectSummary) error
	NotifyQueueCompleted(ctx context.Context, processed, failed int, bytesSaved int64, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
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
		project:  cfg.Notifications.Project,
		queue:    cfg.Notifications.Queue,
		errors:   cfg.Notifications.Errors,
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
	project  bool
	queue    bool
	errors   bool
}

func (n *ntfyService) NotifyQueueStarted(ctx context.Context, projects int) error {
	if !n.queue {
		return nil
	}
	noun := "projects"
	if projects == 1 {
		noun = "project"
	}
	return n.send(ctx, payload{
		title:   "vidqueue - Queue Started",
		message: fmt.Sprintf("Started compressing %d %s", projects, noun),
		tags:    []string{"vidqueue", "queue", "started"},
	})
}

func (n *ntfyService) NotifyProjectFinished(ctx context.Context, summary ProjectSummary) error {
	if !n.project {
		return nil
	}
	name := strings.TrimSpace(summary.Name)
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d completed", name, summary.Completed)
	if summary.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", summary.Failed)
	}
	if summary.Canceled > 0 {
		fmt.Fprintf(&b, ", %d canceled", summary.Canceled)
	}
	if summary.BytesSaved > 0 {
		fmt.Fprintf(&b, "\nSaved %s", humanize.Bytes(uint64(summary.BytesSaved)))
	}
	if summary.Duration > 0 {
		fmt.Fprintf(&b, " in %s", summary.Duration.Round(time.Second))
	}

	data := payload{
		title:   "vidqueue - Project Complete",
		message: b.String(),
		tags:    []string{"vidqueue", "project", strings.ToLower(strings.TrimSpace(summary.Status))},
	}
	if summary.Failed > 0 {
		data.title = "vidqueue - Project Complete (with errors)"
		data.priority = "high"
	}
	if summary.Status == "canceled" {
		data.title = "vidqueue - Project Canceled"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, processed, failed int, bytesSaved int64, duration time.Duration) error {
	if !n.queue {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	saved := ""
	if bytesSaved > 0 {
		saved = fmt.Sprintf(", saved %s", humanize.Bytes(uint64(bytesSaved)))
	}

	data := payload{
		title:   "vidqueue - Queue Complete",
		message: fmt.Sprintf("Queue drained: %d files compressed in %s%s", processed, duration, saved),
		tags:    []string{"vidqueue", "queue", "completed"},
	}
	if failed > 0 {
		data.title = "vidqueue - Queue Complete (with errors)"
		data.message = fmt.Sprintf("Queue drained: %d succeeded, %d failed in %s%s", processed, failed, duration, saved)
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "vidqueue - Error",
		message:  builder.String(),
		tags:     []string{"vidqueue", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "vidqueue - Test",
		message:  "Notification system test",
		tags:     []string{"vidqueue", "test"},
		priority: "low",
	})
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

func (noopService) NotifyQueueStarted(context.Context, int) error                              { return nil }
func (noopService) NotifyProjectFinished(context.Context, ProjectSummary) error                { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, int64, time.Duration) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                           { return nil }
func (noopService) TestNotification(context.Context) error                                     { return nil }
