package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"econexus/internal/domain"
)

type companyRepo struct{ q querier }

func (r *companyRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	row := r.q.QueryRow(ctx, `SELECT id, name, entity_type, created_at FROM companies WHERE id = $1`, id)
	var c domain.Company
	err := row.Scan(&c.ID, &c.Name, &c.EntityType, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("company", id.String())
	}
	if err != nil {
		return nil, wrapInfra(err, "select company "+id.String())
	}
	return &c, nil
}

type materialRepo struct{ q querier }

const materialColumns = `id, company_id, name, flow_category, material_category, material_subtype,
	physical_form, quantity, unit, cost, carbon_footprint, recorded_at`

func (r *materialRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Material, error) {
	row := r.q.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = $1`, id)
	m, err := scanMaterial(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("material", id.String())
	}
	if err != nil {
		return nil, wrapInfra(err, "select material "+id.String())
	}
	return m, nil
}

func (r *materialRepo) ListForPeriod(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]domain.Material, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+materialColumns+`
		FROM materials
		WHERE company_id = $1 AND recorded_at >= $2 AND recorded_at < $3
		ORDER BY recorded_at, id
	`, companyID, from, to)
	if err != nil {
		return nil, wrapInfra(err, "list materials for company "+companyID.String())
	}
	defer rows.Close()
	var out []domain.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, wrapInfra(err, "scan material")
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMaterial(row pgx.Row) (*domain.Material, error) {
	var m domain.Material
	err := row.Scan(&m.ID, &m.CompanyID, &m.Name, &m.FlowCategory, &m.MaterialCategory, &m.MaterialSubtype,
		&m.PhysicalForm, &m.Quantity, &m.Unit, &m.Cost, &m.CarbonFootprint, &m.RecordedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type wasteStreamRepo struct{ q querier }

const wasteStreamColumns = `id, company_id, material_id, classification, quality_grade,
	contamination_level, monthly_volume, current_disposal_cost, potential_value,
	passport_id, processability_score, recyclable_score, created_at`

func (r *wasteStreamRepo) Get(ctx context.Context, id uuid.UUID) (*domain.WasteStream, error) {
	row := r.q.QueryRow(ctx, `SELECT `+wasteStreamColumns+` FROM waste_streams WHERE id = $1`, id)
	w, err := scanWasteStream(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("waste stream", id.String())
	}
	if err != nil {
		return nil, wrapInfra(err, "select waste stream "+id.String())
	}
	return w, nil
}

func (r *wasteStreamRepo) ListForPeriod(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]domain.WasteStream, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+wasteStreamColumns+`
		FROM waste_streams
		WHERE company_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at, id
	`, companyID, from, to)
	if err != nil {
		return nil, wrapInfra(err, "list waste streams for company "+companyID.String())
	}
	defer rows.Close()
	var out []domain.WasteStream
	for rows.Next() {
		w, err := scanWasteStream(rows)
		if err != nil {
			return nil, wrapInfra(err, "scan waste stream")
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func scanWasteStream(row pgx.Row) (*domain.WasteStream, error) {
	var w domain.WasteStream
	err := row.Scan(&w.ID, &w.CompanyID, &w.MaterialID, &w.Classification, &w.QualityGrade,
		&w.ContaminationLevel, &w.MonthlyVolume, &w.CurrentDisposalCost, &w.PotentialValue,
		&w.PassportID, &w.ProcessabilityScore, &w.RecyclableScore, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *wasteStreamRepo) SetPassport(ctx context.Context, id, passportID uuid.UUID, processability, recyclable int) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE waste_streams
		SET passport_id = $2, processability_score = $3, recyclable_score = $4
		WHERE id = $1
	`, id, passportID, processability, recyclable)
	if err != nil {
		return wrapInfra(err, "link passport to waste stream "+id.String())
	}
	if tag.RowsAffected() == 0 {
		return notFound("waste stream", id.String())
	}
	return nil
}
