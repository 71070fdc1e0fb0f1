// Package notifier drains the notification outbox to a delivery sink.
// Notifications are enqueued transactionally by the services; this worker is
// the only reader. Delivery is best-effort: a failed row keeps its error and
// stays claimable for a later pass.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"econexus/internal/domain"
	"econexus/internal/ports"
)

const deliverTimeout = 5 * time.Second

// SlogSink logs the payload contract. Stands in for whatever transport
// delivers notifications in a given deployment.
type SlogSink struct {
	Log *slog.Logger
}

func (s SlogSink) Deliver(_ context.Context, n domain.Notification) error {
	s.Log.Info("notification",
		"notification_id", n.ID,
		"company_id", n.CompanyID,
		"kind", n.Kind,
		"deal_id", n.DealID,
		"passport_id", n.PassportID,
		"title", n.Title,
		"message", n.Message,
	)
	return nil
}

// Run starts worker goroutines fed by a polling dispatcher. Returns when ctx
// is cancelled.
func Run(ctx context.Context, repo ports.NotificationRepository, sink ports.NotificationSink, log *slog.Logger, concurrency int, pollInterval time.Duration) {
	if concurrency < 1 {
		return
	}
	inbox := make(chan domain.Notification, concurrency)

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(inbox)
				return
			case <-ticker.C:
				for {
					n, found, err := repo.ClaimNext(ctx)
					if err != nil {
						log.Error("notification claim failed", "err", err)
						break
					}
					if !found {
						break
					}
					select {
					case inbox <- *n:
					case <-ctx.Done():
						close(inbox)
						return
					}
				}
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		go func() {
			for n := range inbox {
				deliver(ctx, repo, sink, log, n)
			}
		}()
	}
}

func deliver(ctx context.Context, repo ports.NotificationRepository, sink ports.NotificationSink, log *slog.Logger, n domain.Notification) {
	dctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	if err := sink.Deliver(dctx, n); err != nil {
		if merr := repo.MarkFailed(dctx, n.ID, err.Error()); merr != nil {
			log.Error("mark notification failed", "notification_id", n.ID, "err", merr)
		}
		log.Warn("notification delivery failed", "notification_id", n.ID, "err", err)
		return
	}
	if err := repo.MarkDelivered(dctx, n.ID); err != nil {
		log.Error("mark notification delivered", "notification_id", n.ID, "err", err)
	}
}

// Drain claims and delivers until the outbox is empty. Used inline in tests
// and by deployments without background workers.
func Drain(ctx context.Context, repo ports.NotificationRepository, sink ports.NotificationSink, log *slog.Logger) error {
	for {
		n, found, err := repo.ClaimNext(ctx)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		deliver(ctx, repo, sink, log, *n)
	}
}
