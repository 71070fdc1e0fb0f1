package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"econexus/internal/domain"
)

type passportRepo struct{ q querier }

const passportColumns = `id, waste_stream_id, material_category, material_subtype, physical_form,
	volume, unit, quality_grade, quality_tier, contamination_level, carbon_footprint,
	verification_status, verification_score, technical_properties,
	current_owner_company_id, previous_owner_company_id, transfer_date, created_at, updated_at`

func (r *passportRepo) Create(ctx context.Context, p *domain.MaterialPassport) error {
	props, err := json.Marshal(p.TechnicalProperties)
	if err != nil {
		return wrapInfra(err, "encode technical properties for passport "+p.ID.String())
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO material_passports (id, waste_stream_id, material_category, material_subtype,
			physical_form, volume, unit, quality_grade, quality_tier, contamination_level,
			carbon_footprint, verification_status, verification_score, technical_properties,
			current_owner_company_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, p.ID, p.WasteStreamID, p.MaterialCategory, p.MaterialSubtype, p.PhysicalForm,
		p.Volume, p.Unit, p.QualityGrade, p.QualityTier, p.ContaminationLevel,
		p.CarbonFootprint, p.VerificationStatus, p.VerificationScore, props,
		p.CurrentOwnerCompanyID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return wrapInfra(err, "insert passport "+p.ID.String())
	}
	return nil
}

func (r *passportRepo) Get(ctx context.Context, id uuid.UUID) (*domain.MaterialPassport, error) {
	row := r.q.QueryRow(ctx, `SELECT `+passportColumns+` FROM material_passports WHERE id = $1`, id)
	var p domain.MaterialPassport
	var props []byte
	err := row.Scan(&p.ID, &p.WasteStreamID, &p.MaterialCategory, &p.MaterialSubtype, &p.PhysicalForm,
		&p.Volume, &p.Unit, &p.QualityGrade, &p.QualityTier, &p.ContaminationLevel, &p.CarbonFootprint,
		&p.VerificationStatus, &p.VerificationScore, &props,
		&p.CurrentOwnerCompanyID, &p.PreviousOwnerCompanyID, &p.TransferDate, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("passport", id.String())
	}
	if err != nil {
		return nil, wrapInfra(err, "select passport "+id.String())
	}
	if len(props) > 0 {
		if err := json.Unmarshal(props, &p.TechnicalProperties); err != nil {
			return nil, wrapInfra(err, "decode technical properties for passport "+id.String())
		}
	}
	return &p, nil
}

func (r *passportRepo) Update(ctx context.Context, p *domain.MaterialPassport) error {
	props, err := json.Marshal(p.TechnicalProperties)
	if err != nil {
		return wrapInfra(err, "encode technical properties for passport "+p.ID.String())
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE material_passports
		SET verification_status = $2, verification_score = $3, technical_properties = $4,
			current_owner_company_id = $5, previous_owner_company_id = $6, transfer_date = $7,
			updated_at = $8
		WHERE id = $1
	`, p.ID, p.VerificationStatus, p.VerificationScore, props,
		p.CurrentOwnerCompanyID, p.PreviousOwnerCompanyID, p.TransferDate, p.UpdatedAt)
	if err != nil {
		return wrapInfra(err, "update passport "+p.ID.String())
	}
	if tag.RowsAffected() == 0 {
		return notFound("passport", p.ID.String())
	}
	return nil
}

type eventRepo struct{ q querier }

// Append is idempotent on (passport_id, event_type, ref): a retried write for
// the same occurrence is a no-op.
func (r *eventRepo) Append(ctx context.Context, e *domain.PassportEvent) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO passport_events (id, passport_id, event_type, ref, actor_company_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (passport_id, event_type, ref) DO NOTHING
	`, e.ID, e.PassportID, e.Type, e.Ref, e.ActorCompanyID, e.Detail, e.CreatedAt)
	if err != nil {
		return wrapInfra(err, "append event for passport "+e.PassportID.String())
	}
	return nil
}

func (r *eventRepo) ListByPassport(ctx context.Context, passportID uuid.UUID) ([]domain.PassportEvent, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, passport_id, event_type, ref, actor_company_id, detail, created_at
		FROM passport_events
		WHERE passport_id = $1
		ORDER BY created_at, id
	`, passportID)
	if err != nil {
		return nil, wrapInfra(err, "list events for passport "+passportID.String())
	}
	defer rows.Close()
	var out []domain.PassportEvent
	for rows.Next() {
		var e domain.PassportEvent
		if err := rows.Scan(&e.ID, &e.PassportID, &e.Type, &e.Ref, &e.ActorCompanyID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, wrapInfra(err, "scan event for passport "+passportID.String())
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type transferRepo struct{ q querier }

func (r *transferRepo) Append(ctx context.Context, t *domain.PassportTransfer) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO passport_transfers (id, passport_id, deal_id, from_company_id, to_company_id,
			volume, price_per_unit, total_value, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, t.ID, t.PassportID, t.DealID, t.FromCompanyID, t.ToCompanyID,
		t.Volume, t.PricePerUnit, t.TotalValue, t.CreatedAt)
	if err != nil {
		return wrapInfra(err, "append transfer for passport "+t.PassportID.String())
	}
	return nil
}

func (r *transferRepo) ListByPassport(ctx context.Context, passportID uuid.UUID) ([]domain.PassportTransfer, error) {
	return r.list(ctx, `passport_id`, passportID)
}

func (r *transferRepo) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]domain.PassportTransfer, error) {
	return r.list(ctx, `deal_id`, dealID)
}

func (r *transferRepo) list(ctx context.Context, col string, id uuid.UUID) ([]domain.PassportTransfer, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, passport_id, deal_id, from_company_id, to_company_id, volume, price_per_unit, total_value, created_at
		FROM passport_transfers
		WHERE `+col+` = $1
		ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, wrapInfra(err, "list transfers by "+col+" "+id.String())
	}
	defer rows.Close()
	var out []domain.PassportTransfer
	for rows.Next() {
		var t domain.PassportTransfer
		if err := rows.Scan(&t.ID, &t.PassportID, &t.DealID, &t.FromCompanyID, &t.ToCompanyID,
			&t.Volume, &t.PricePerUnit, &t.TotalValue, &t.CreatedAt); err != nil {
			return nil, wrapInfra(err, "scan transfer")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type documentRepo struct{ q querier }

func (r *documentRepo) Create(ctx context.Context, d *domain.PassportDocument) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO passport_documents (id, passport_id, document_type, file_reference, verification_status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, d.ID, d.PassportID, d.DocumentType, d.FileReference, d.VerificationStatus, d.CreatedAt)
	if err != nil {
		return wrapInfra(err, "insert document for passport "+d.PassportID.String())
	}
	return nil
}

func (r *documentRepo) ListByPassport(ctx context.Context, passportID uuid.UUID) ([]domain.PassportDocument, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, passport_id, document_type, file_reference, verification_status, created_at
		FROM passport_documents
		WHERE passport_id = $1
		ORDER BY created_at, id
	`, passportID)
	if err != nil {
		return nil, wrapInfra(err, "list documents for passport "+passportID.String())
	}
	defer rows.Close()
	var out []domain.PassportDocument
	for rows.Next() {
		var d domain.PassportDocument
		if err := rows.Scan(&d.ID, &d.PassportID, &d.DocumentType, &d.FileReference, &d.VerificationStatus, &d.CreatedAt); err != nil {
			return nil, wrapInfra(err, "scan document")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CascadePending is a conditional update over still-pending documents, so
// re-running it after a partial failure converges without touching documents
// that already moved.
func (r *documentRepo) CascadePending(ctx context.Context, passportID uuid.UUID, status domain.VerificationStatus) (int, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE passport_documents
		SET verification_status = $2
		WHERE passport_id = $1 AND verification_status = 'pending'
	`, passportID, status)
	if err != nil {
		return 0, wrapInfra(err, "cascade documents for passport "+passportID.String())
	}
	return int(tag.RowsAffected()), nil
}
