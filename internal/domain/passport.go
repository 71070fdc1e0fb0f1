package domain

import (
	"time"

	"github.com/google/uuid"
)

// VerificationStatus tracks how much trust a passport has earned.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
	VerificationFailed     VerificationStatus = "failed"
)

// VerificationMethod is the closed set of accepted inspection methods.
type VerificationMethod string

const (
	MethodVisualInspection VerificationMethod = "visual_inspection"
	MethodDocument         VerificationMethod = "document"
	MethodSensor           VerificationMethod = "sensor"
	MethodLabTest          VerificationMethod = "lab_test"
)

func (m VerificationMethod) Valid() bool {
	switch m {
	case MethodVisualInspection, MethodDocument, MethodSensor, MethodLabTest:
		return true
	}
	return false
}

// MaterialPassport is the durable, transferable quality and ownership record
// for one material batch. Created once per waste stream, mutated only by
// verification submissions and ownership transfers, never deleted.
type MaterialPassport struct {
	ID                     uuid.UUID
	WasteStreamID          uuid.UUID
	MaterialCategory       string
	MaterialSubtype        string
	PhysicalForm           string
	Volume                 float64
	Unit                   string
	QualityGrade           QualityGrade
	QualityTier            int // 1 best .. 4 worst
	ContaminationLevel     float64
	CarbonFootprint        float64
	VerificationStatus     VerificationStatus
	VerificationScore      int
	TechnicalProperties    TechnicalProperties
	CurrentOwnerCompanyID  uuid.UUID
	PreviousOwnerCompanyID *uuid.UUID
	TransferDate           *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// PassportEventType enumerates the auditable passport lifecycle events.
type PassportEventType string

const (
	EventCreation          PassportEventType = "creation"
	EventDocumentUploaded  PassportEventType = "document_uploaded"
	EventHumanApproval     PassportEventType = "human_approval"
	EventVerification      PassportEventType = "verification"
	EventOwnershipTransfer PassportEventType = "ownership_transfer"
)

// PassportEvent is one append-only audit entry. Ref deduplicates retried
// writes for the same logical occurrence: a passport never carries two events
// with the same (Type, Ref).
type PassportEvent struct {
	ID             uuid.UUID
	PassportID     uuid.UUID
	Type           PassportEventType
	Ref            string
	ActorCompanyID *uuid.UUID
	Detail         string
	CreatedAt      time.Time
}

// PassportTransfer is one immutable ledger row per completed ownership change.
type PassportTransfer struct {
	ID            uuid.UUID
	PassportID    uuid.UUID
	DealID        uuid.UUID
	FromCompanyID uuid.UUID
	ToCompanyID   uuid.UUID
	Volume        float64
	PricePerUnit  float64
	TotalValue    float64
	CreatedAt     time.Time
}

// PassportDocument is an uploaded supporting document. Its status follows the
// passport's verification outcome while the document is still pending.
type PassportDocument struct {
	ID                 uuid.UUID
	PassportID         uuid.UUID
	DocumentType       string
	FileReference      string
	VerificationStatus VerificationStatus
	CreatedAt          time.Time
}
