package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"econexus/internal/domain"
)

type notificationRepo struct{ q querier }

func (r *notificationRepo) Enqueue(ctx context.Context, n *domain.Notification) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO notifications (id, company_id, kind, deal_id, passport_id, title, message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, n.ID, n.CompanyID, n.Kind, n.DealID, n.PassportID, n.Title, n.Message, n.CreatedAt)
	if err != nil {
		return wrapInfra(err, "enqueue notification "+n.ID.String())
	}
	return nil
}

// ClaimNext picks the oldest deliverable row with SKIP LOCKED so concurrent
// workers never double-claim; a claim is invisible to other claimers for 30s.
func (r *notificationRepo) ClaimNext(ctx context.Context) (*domain.Notification, bool, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE notifications
		SET claimed_at = now()
		WHERE id = (
			SELECT id FROM notifications
			WHERE delivered_at IS NULL
			  AND (claimed_at IS NULL OR claimed_at < now() - interval '30 seconds')
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, company_id, kind, deal_id, passport_id, title, message, created_at, claimed_at, delivered_at, attempts, last_error
	`)
	var n domain.Notification
	err := row.Scan(&n.ID, &n.CompanyID, &n.Kind, &n.DealID, &n.PassportID, &n.Title, &n.Message,
		&n.CreatedAt, &n.ClaimedAt, &n.DeliveredAt, &n.Attempts, &n.LastError)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapInfra(err, "claim notification")
	}
	return &n, true, nil
}

func (r *notificationRepo) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `UPDATE notifications SET delivered_at = now() WHERE id = $1`, id)
	if err != nil {
		return wrapInfra(err, "mark notification "+id.String()+" delivered")
	}
	if tag.RowsAffected() == 0 {
		return notFound("notification", id.String())
	}
	return nil
}

func (r *notificationRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE notifications SET attempts = attempts + 1, last_error = $2 WHERE id = $1
	`, id, reason)
	if err != nil {
		return wrapInfra(err, "mark notification "+id.String()+" failed")
	}
	if tag.RowsAffected() == 0 {
		return notFound("notification", id.String())
	}
	return nil
}
