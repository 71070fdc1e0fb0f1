// Package scoring holds the pure quality and trust scoring functions. No I/O,
// no clock: everything here is deterministic in its inputs.
package scoring

import (
	"math"

	"econexus/internal/domain"
)

var gradeBaseTier = map[domain.QualityGrade]int{
	domain.GradeA: 1,
	domain.GradeB: 2,
	domain.GradeC: 3,
	domain.GradeD: 4,
}

// contaminationPenaltyThreshold is the contamination level above which a
// batch drops one quality tier.
const contaminationPenaltyThreshold = 20.0

// QualityTier derives the 1 (best) .. 4 (worst) tier from grade and
// contamination. Worse grade or higher contamination never improves the tier.
// Unknown grades rank worst.
func QualityTier(grade domain.QualityGrade, contamination float64) int {
	tier, ok := gradeBaseTier[grade]
	if !ok {
		tier = 4
	}
	if contamination > contaminationPenaltyThreshold {
		tier++
	}
	if tier > 4 {
		tier = 4
	}
	return tier
}

var processabilityBase = map[string]float64{
	"metal":   85,
	"plastic": 75,
}

// ProcessabilityScore estimates how readily a material category can be
// reprocessed, penalized by contamination.
func ProcessabilityScore(category string, contamination float64) int {
	base := 70.0
	if b, ok := processabilityBase[category]; ok {
		base = b
	}
	return int(math.Round(clamp(base-0.5*contamination, 0, 100)))
}

// RecyclableScore estimates recyclability from category and quality tier.
func RecyclableScore(category string, tier int) int {
	score := 80.0 - 10.0*float64(tier)
	if category == "glass" {
		score += 5
	}
	return int(clamp(score, 0, 100))
}

var methodBaseScore = map[domain.VerificationMethod]float64{
	domain.MethodVisualInspection: 40,
	domain.MethodDocument:         60,
	domain.MethodSensor:           85,
	domain.MethodLabTest:          90,
}

// VerificationScore computes 0..100 confidence from inspection method and
// quality tier. Better tiers earn a larger bonus.
func VerificationScore(method domain.VerificationMethod, tier int) int {
	base := methodBaseScore[method]
	return int(clamp(base+float64(5-tier)*5, 0, 100))
}

// Verification status thresholds. Shared by every path that computes
// verification so the derivation cannot drift.
const (
	verifiedThreshold = 70
	pendingThreshold  = 50
)

// VerificationStatusFor derives status from score. Pure and total: every
// score maps to exactly one status.
func VerificationStatusFor(score int) domain.VerificationStatus {
	switch {
	case score >= verifiedThreshold:
		return domain.VerificationVerified
	case score >= pendingThreshold:
		return domain.VerificationPending
	default:
		return domain.VerificationFailed
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
