package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"econexus/internal/domain"
)

// SettlementResult is the outcome of one submitted decision.
type SettlementResult struct {
	Status  domain.DealStatus
	Message string
}

// DealSettler drives the deal approval state machine.
type DealSettler interface {
	SubmitDecision(ctx context.Context, dealID, actorCompanyID uuid.UUID, action domain.DealAction) (SettlementResult, error)
}

// VerificationResult is the outcome of one verification submission.
type VerificationResult struct {
	PassportID         uuid.UUID
	VerificationStatus domain.VerificationStatus
	VerificationScore  int
	Method             domain.VerificationMethod
	VerifiedBy         string
	Timestamp          time.Time
}

// PassportManager owns the passport lifecycle: creation, verification,
// documents, and the audit trail reads.
type PassportManager interface {
	CreateFromWasteStream(ctx context.Context, wasteStreamID uuid.UUID) (*domain.MaterialPassport, *domain.WasteStream, error)
	SubmitVerification(ctx context.Context, passportID uuid.UUID, method domain.VerificationMethod, verifiedBy, findings string, evidence []string) (VerificationResult, error)
	RecordDocument(ctx context.Context, passportID uuid.UUID, documentType, fileReference string) (*domain.PassportDocument, error)
	Get(ctx context.Context, passportID uuid.UUID) (*domain.MaterialPassport, error)
	Events(ctx context.Context, passportID uuid.UUID) ([]domain.PassportEvent, error)
	Transfers(ctx context.Context, passportID uuid.UUID) ([]domain.PassportTransfer, error)
}

// KPIReporter computes and persists one KPI snapshot for a company/period.
type KPIReporter interface {
	Compute(ctx context.Context, companyID uuid.UUID, period *time.Time) (*domain.KPISnapshot, error)
}

// ArtifactRequester asks the external collaborator for a verification
// artifact (QR). Best-effort: callers log failures and move on.
type ArtifactRequester interface {
	RequestQR(ctx context.Context, passportID uuid.UUID) error
}

// NotificationSink delivers one notification payload. The transport behind it
// is out of scope; the payload contract is not.
type NotificationSink interface {
	Deliver(ctx context.Context, n domain.Notification) error
}
