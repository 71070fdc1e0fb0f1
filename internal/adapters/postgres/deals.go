package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"econexus/internal/apperrors"
	"econexus/internal/domain"
)

type dealRepo struct{ q querier }

const dealColumns = `id, seller_company_id, buyer_company_id, passport_id, volume, unit,
	material_category, price_per_unit, total_value, quality_tier, payment_terms,
	status, seller_approved_at, buyer_approved_at, agent_reasoning, created_at, updated_at`

func (r *dealRepo) Create(ctx context.Context, d *domain.Deal) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO deals (id, seller_company_id, buyer_company_id, passport_id, volume, unit,
			material_category, price_per_unit, total_value, quality_tier, payment_terms,
			status, agent_reasoning, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, d.ID, d.SellerCompanyID, d.BuyerCompanyID, d.PassportID, d.Volume, d.Unit,
		d.MaterialCategory, d.PricePerUnit, d.TotalValue, d.QualityTier, d.PaymentTerms,
		d.Status, d.AgentReasoning, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return wrapInfra(err, "insert deal "+d.ID.String())
	}
	return nil
}

func (r *dealRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate locks the deal row for the rest of the transaction so
// concurrent decisions against the same deal serialize.
func (r *dealRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *dealRepo) get(ctx context.Context, id uuid.UUID, lock string) (*domain.Deal, error) {
	row := r.q.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`+lock, id)
	var d domain.Deal
	err := row.Scan(&d.ID, &d.SellerCompanyID, &d.BuyerCompanyID, &d.PassportID, &d.Volume, &d.Unit,
		&d.MaterialCategory, &d.PricePerUnit, &d.TotalValue, &d.QualityTier, &d.PaymentTerms,
		&d.Status, &d.SellerApprovedAt, &d.BuyerApprovedAt, &d.AgentReasoning, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("deal", id.String())
	}
	if err != nil {
		return nil, wrapInfra(err, "select deal "+id.String())
	}
	return &d, nil
}

// Update writes the mutable deal fields guarded by the expected prior status.
// Zero rows affected means another writer got there first.
func (r *dealRepo) Update(ctx context.Context, d *domain.Deal, expect domain.DealStatus) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE deals
		SET status = $2, seller_approved_at = $3, buyer_approved_at = $4, updated_at = $5
		WHERE id = $1 AND status = $6
	`, d.ID, d.Status, d.SellerApprovedAt, d.BuyerApprovedAt, d.UpdatedAt, expect)
	if err != nil {
		return wrapInfra(err, "update deal "+d.ID.String())
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.CodeInternal, "deal "+d.ID.String()+" changed concurrently")
	}
	return nil
}
