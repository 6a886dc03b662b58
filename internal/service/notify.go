// Notification dispatcher
//
// Notifications are handed over after the business transaction committed and
// delivered by a bounded worker pool:
//  1. Enqueue submits the notification to the pool without waiting; a full
//     queue drops it and reports the error to the caller
//  2. a worker sends it through every channel (email, Slack, webhooks)
//  3. each channel result is logged and counted
//
// Delivery is attempted once per channel. Failures never reach the caller.

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/slatrack/backend/internal/config"
	"github.com/slatrack/backend/internal/model"
	"github.com/slatrack/backend/internal/telemetry"
)

var ErrDispatcherStopped = errors.New("notification dispatcher stopped")

const channelSendTimeout = 30 * time.Second

// NotificationChannel delivers a notification to one outbound system.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, n model.Notification) error
}

type NotificationDispatcher struct {
	pool     pond.Pool
	channels []NotificationChannel
	stopped  atomic.Bool
}

func NewNotificationDispatcher(cfg config.NotifyConfig, channels ...NotificationChannel) *NotificationDispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &NotificationDispatcher{
		pool: pond.NewPool(
			workers,
			pond.WithQueueSize(cfg.QueueSize),
			pond.WithNonBlocking(true),
		),
		channels: channels,
	}
}

// Enqueue hands n to the worker pool. It returns pond.ErrQueueFull when the
// queue is saturated and ErrDispatcherStopped once Stop was called.
func (d *NotificationDispatcher) Enqueue(n model.Notification) error {
	if d.stopped.Load() {
		return ErrDispatcherStopped
	}
	err := d.pool.Go(func() {
		d.deliver(n)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pond.ErrPoolStopped):
		return ErrDispatcherStopped
	default:
		telemetry.NotificationsTotal.WithLabelValues("queue", "dropped").Inc()
		return fmt.Errorf("submit notification %s: %w", n.ID, err)
	}
}

func (d *NotificationDispatcher) deliver(n model.Notification) {
	for _, ch := range d.channels {
		ctx, cancel := context.WithTimeout(context.Background(), channelSendTimeout)
		err := ch.Send(ctx, n)
		cancel()

		if err != nil {
			telemetry.NotificationsTotal.WithLabelValues(ch.Name(), "failed").Inc()
			slog.Warn("[Notify] delivery failed",
				"channel", ch.Name(),
				"notification_id", n.ID,
				"kind", n.Kind,
				"item", n.Item.Code,
				"error", err,
			)
			continue
		}
		telemetry.NotificationsTotal.WithLabelValues(ch.Name(), "sent").Inc()
		slog.Debug("[Notify] delivered", "channel", ch.Name(), "notification_id", n.ID)
	}
}

// Stop rejects new notifications and waits for queued ones to finish.
func (d *NotificationDispatcher) Stop() {
	if d.stopped.CompareAndSwap(false, true) {
		d.pool.StopAndWait()
	}
}
