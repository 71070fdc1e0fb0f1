package postgres

import (
	"context"

	"github.com/google/uuid"

	"econexus/internal/domain"
)

type kpiRepo struct{ q querier }

func (r *kpiRepo) Insert(ctx context.Context, s *domain.KPISnapshot) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO kpi_snapshots (id, company_id, period_start, total_input, total_output,
			total_waste, landfill_waste, mci_score, landfill_diversion, total_waste_cost,
			potential_circular_revenue, waste_to_value_ratio, net_circular_value,
			carbon_emissions, carbon_saved_potential, emission_intensity, computed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, s.ID, s.CompanyID, s.PeriodStart, s.TotalInput, s.TotalOutput,
		s.TotalWaste, s.LandfillWaste, s.MCIScore, s.LandfillDiversion, s.TotalWasteCost,
		s.PotentialCircularRevenue, s.WasteToValueRatio, s.NetCircularValue,
		s.CarbonEmissions, s.CarbonSavedPotential, s.EmissionIntensity, s.ComputedAt)
	if err != nil {
		return wrapInfra(err, "insert kpi snapshot "+s.ID.String())
	}
	return nil
}

func (r *kpiRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]domain.KPISnapshot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, company_id, period_start, total_input, total_output, total_waste, landfill_waste,
			mci_score, landfill_diversion, total_waste_cost, potential_circular_revenue,
			waste_to_value_ratio, net_circular_value, carbon_emissions, carbon_saved_potential,
			emission_intensity, computed_at
		FROM kpi_snapshots
		WHERE company_id = $1
		ORDER BY period_start, computed_at
	`, companyID)
	if err != nil {
		return nil, wrapInfra(err, "list kpi snapshots for company "+companyID.String())
	}
	defer rows.Close()
	var out []domain.KPISnapshot
	for rows.Next() {
		var s domain.KPISnapshot
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.PeriodStart, &s.TotalInput, &s.TotalOutput,
			&s.TotalWaste, &s.LandfillWaste, &s.MCIScore, &s.LandfillDiversion, &s.TotalWasteCost,
			&s.PotentialCircularRevenue, &s.WasteToValueRatio, &s.NetCircularValue,
			&s.CarbonEmissions, &s.CarbonSavedPotential, &s.EmissionIntensity, &s.ComputedAt); err != nil {
			return nil, wrapInfra(err, "scan kpi snapshot")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
