package workflow

import (
	"context"
	"errors"
	"time"

	"vidqueue/internal/logging"
	"vidqueue/internal/notifications"
)

func (m *Manager) notifyTimeout() time.Duration {
	if m.cfg != nil && m.cfg.Notifications.RequestTimeout > 0 {
		return time.Duration(m.cfg.Notifications.RequestTimeout) * time.Second
	}
	return 10 * time.Second
}

// notifyAsync sends a notification without holding up the caller. Close waits
// for outstanding sends.
func (m *Manager) notifyAsync(label string, send func(context.Context, notifications.Service) error) {
	if m.notifier == nil {
		return
	}
	m.notifyWG.Add(1)
	go func() {
		defer m.notifyWG.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(m.baseCtx), m.notifyTimeout())
		defer cancel()
		if err := send(ctx, m.notifier); err != nil {
			if errors.Is(err, context.Canceled) {
				m.logger.Debug("shutting down, could not send notification", logging.String("notification", label))
				return
			}
			m.logger.Debug("notification failed",
				logging.String("notification", label),
				logging.Error(err),
			)
		}
	}()
}

func (m *Manager) notifyErrorAsync(err error, label string) {
	m.notifyAsync("error", func(ctx context.Context, n notifications.Service) error {
		return n.NotifyError(ctx, err, label)
	})
}
