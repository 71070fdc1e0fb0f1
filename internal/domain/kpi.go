package domain

import (
	"time"

	"github.com/google/uuid"
)

// KPISnapshot is one immutable per-company aggregation for a period. A new
// run inserts a new row; prior snapshots are never updated.
type KPISnapshot struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	PeriodStart time.Time

	TotalInput    float64
	TotalOutput   float64
	TotalWaste    float64
	LandfillWaste float64

	MCIScore          float64
	LandfillDiversion float64

	TotalWasteCost           float64
	PotentialCircularRevenue float64
	// WasteToValueRatio is nil when potential revenue is zero: the ratio is
	// not computable, which is different from being zero.
	WasteToValueRatio *float64
	NetCircularValue  float64

	CarbonEmissions      float64
	CarbonSavedPotential float64
	EmissionIntensity    float64

	ComputedAt time.Time
}
