// Package kpi batch-computes circularity, economic and environmental metrics
// for one company and period. Aggregate is pure; the service around it only
// fetches rows and persists the snapshot.
package kpi

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"econexus/internal/apperrors"
	"econexus/internal/domain"
	"econexus/internal/platform/metrics"
	"econexus/internal/ports"
)

const computeTimeout = 15 * time.Second

type Service struct {
	store   ports.DataStore
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

func New(store ports.DataStore, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{store: store, metrics: m, log: log, now: time.Now}
}

// Compute aggregates one period and inserts a new immutable snapshot. The
// period defaults to the current calendar month and is normalized to its
// first day, UTC. NotFound when the company has no materials in the period.
func (s *Service) Compute(ctx context.Context, companyID uuid.UUID, period *time.Time) (*domain.KPISnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, computeTimeout)
	defer cancel()

	start := normalizePeriod(period, s.now())
	end := start.AddDate(0, 1, 0)

	materials, err := s.store.Materials().ListForPeriod(ctx, companyID, start, end)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "list materials for company "+companyID.String())
	}
	if len(materials) == 0 {
		return nil, apperrors.New(apperrors.CodeNotFound,
			"no materials recorded for company "+companyID.String()+" in period "+start.Format("2006-01"))
	}
	waste, err := s.store.WasteStreams().ListForPeriod(ctx, companyID, start, end)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "list waste streams for company "+companyID.String())
	}

	snap := Aggregate(companyID, start, materials, waste)
	snap.ID = uuid.New()
	snap.ComputedAt = s.now()
	if err := s.store.KPI().Insert(ctx, &snap); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "insert kpi snapshot for company "+companyID.String())
	}
	if s.metrics != nil {
		s.metrics.KPISnapshots.Inc()
	}
	s.log.Info("kpi snapshot computed", "company_id", companyID, "period", start.Format("2006-01"), "mci", snap.MCIScore)
	return &snap, nil
}

func normalizePeriod(period *time.Time, now time.Time) time.Time {
	t := now
	if period != nil {
		t = *period
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Aggregate computes the snapshot from already-fetched rows. Pure: no I/O, no
// clock. Ratios with a zero denominator come out as 0, except
// WasteToValueRatio which is nil because "not computable" must stay
// distinguishable from zero.
func Aggregate(companyID uuid.UUID, periodStart time.Time, materials []domain.Material, waste []domain.WasteStream) domain.KPISnapshot {
	snap := domain.KPISnapshot{CompanyID: companyID, PeriodStart: periodStart}

	byID := make(map[uuid.UUID]domain.Material, len(materials))
	for _, m := range materials {
		byID[m.ID] = m
		switch m.FlowCategory {
		case domain.FlowInput:
			snap.TotalInput += m.Quantity
			snap.CarbonEmissions += m.CarbonFootprint
		case domain.FlowOutput, domain.FlowByproduct:
			snap.TotalOutput += m.Quantity
		}
	}

	for _, w := range waste {
		snap.TotalWaste += w.MonthlyVolume
		if w.Classification == domain.ClassificationLandfill {
			snap.LandfillWaste += w.MonthlyVolume
		} else if w.MaterialID != nil {
			if m, ok := byID[*w.MaterialID]; ok {
				snap.CarbonSavedPotential += m.CarbonFootprint
			}
		}
		snap.TotalWasteCost += w.CurrentDisposalCost
		snap.PotentialCircularRevenue += w.PotentialValue
	}

	if snap.TotalInput > 0 {
		snap.MCIScore = (1 - snap.TotalWaste/snap.TotalInput) * 100
	}
	if snap.TotalWaste > 0 {
		snap.LandfillDiversion = (1 - snap.LandfillWaste/snap.TotalWaste) * 100
	}
	if snap.PotentialCircularRevenue > 0 {
		ratio := round2(snap.TotalWasteCost / snap.PotentialCircularRevenue)
		snap.WasteToValueRatio = &ratio
	}
	snap.NetCircularValue = snap.PotentialCircularRevenue - snap.TotalWasteCost
	if snap.TotalOutput > 0 {
		snap.EmissionIntensity = snap.CarbonEmissions / snap.TotalOutput
	}

	snap.TotalInput = round2(snap.TotalInput)
	snap.TotalOutput = round2(snap.TotalOutput)
	snap.TotalWaste = round2(snap.TotalWaste)
	snap.LandfillWaste = round2(snap.LandfillWaste)
	snap.MCIScore = round2(snap.MCIScore)
	snap.LandfillDiversion = round2(snap.LandfillDiversion)
	snap.TotalWasteCost = round2(snap.TotalWasteCost)
	snap.PotentialCircularRevenue = round2(snap.PotentialCircularRevenue)
	snap.NetCircularValue = round2(snap.NetCircularValue)
	snap.CarbonEmissions = round2(snap.CarbonEmissions)
	snap.CarbonSavedPotential = round2(snap.CarbonSavedPotential)
	snap.EmissionIntensity = round2(snap.EmissionIntensity)
	return snap
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
