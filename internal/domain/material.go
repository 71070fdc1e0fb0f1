package domain

import (
	"time"

	"github.com/google/uuid"
)

// FlowCategory classifies a material record by its direction through the
// company: input, output, waste or byproduct.
type FlowCategory string

const (
	FlowInput     FlowCategory = "input"
	FlowOutput    FlowCategory = "output"
	FlowWaste     FlowCategory = "waste"
	FlowByproduct FlowCategory = "byproduct"
)

// Material is an immutable material record owned by one company. Corrections
// create new rows; nothing updates these in place.
type Material struct {
	ID               uuid.UUID
	CompanyID        uuid.UUID
	Name             string
	FlowCategory     FlowCategory
	MaterialCategory string // plastic, metal, glass, ...
	MaterialSubtype  string
	PhysicalForm     string
	Quantity         float64
	Unit             string
	Cost             float64
	CarbonFootprint  float64
	RecordedAt       time.Time
}

// WasteClassification routes a waste stream to its disposal/recovery path.
type WasteClassification string

const (
	ClassificationReusable       WasteClassification = "reusable"
	ClassificationProcessable    WasteClassification = "processable"
	ClassificationRecyclable     WasteClassification = "recyclable"
	ClassificationEnergyRecovery WasteClassification = "energy_recovery"
	ClassificationLandfill       WasteClassification = "landfill"
)

// QualityGrade ranks batch quality from A (best) to D (worst).
type QualityGrade string

const (
	GradeA QualityGrade = "A"
	GradeB QualityGrade = "B"
	GradeC QualityGrade = "C"
	GradeD QualityGrade = "D"
)

func (g QualityGrade) Valid() bool {
	switch g {
	case GradeA, GradeB, GradeC, GradeD:
		return true
	}
	return false
}

// WasteStream is derived from a waste/byproduct material record. It owns at
// most one passport.
type WasteStream struct {
	ID                  uuid.UUID
	CompanyID           uuid.UUID
	MaterialID          *uuid.UUID
	Classification      WasteClassification
	QualityGrade        QualityGrade
	ContaminationLevel  float64 // 0..100
	MonthlyVolume       float64
	CurrentDisposalCost float64
	PotentialValue      float64
	PassportID          *uuid.UUID
	ProcessabilityScore *int
	RecyclableScore     *int
	CreatedAt           time.Time
}
