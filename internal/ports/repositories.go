package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"econexus/internal/domain"
)

// CompanyRepository resolves trading parties.
type CompanyRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Company, error)
}

// MaterialRepository reads immutable material records.
type MaterialRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Material, error)
	ListForPeriod(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]domain.Material, error)
}

// WasteStreamRepository reads waste streams and back-fills passport linkage.
type WasteStreamRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.WasteStream, error)
	ListForPeriod(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]domain.WasteStream, error)
	// SetPassport links the created passport and records the computed scores.
	SetPassport(ctx context.Context, id, passportID uuid.UUID, processability, recyclable int) error
}

// DealRepository manages deal rows. GetForUpdate must lock the row for the
// remainder of the surrounding unit of work so concurrent decisions on the
// same deal serialize.
type DealRepository interface {
	Create(ctx context.Context, deal *domain.Deal) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Deal, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Deal, error)
	// Update persists the deal guarded by the expected prior status; a
	// mismatch means the row changed underneath us and the write is refused.
	Update(ctx context.Context, deal *domain.Deal, expect domain.DealStatus) error
}

// PassportRepository manages passport rows.
type PassportRepository interface {
	Create(ctx context.Context, p *domain.MaterialPassport) error
	Get(ctx context.Context, id uuid.UUID) (*domain.MaterialPassport, error)
	Update(ctx context.Context, p *domain.MaterialPassport) error
}

// PassportEventRepository is the append-only audit log. Append is idempotent
// on (passport, type, ref): retried writes for the same occurrence are no-ops.
type PassportEventRepository interface {
	Append(ctx context.Context, e *domain.PassportEvent) error
	ListByPassport(ctx context.Context, passportID uuid.UUID) ([]domain.PassportEvent, error)
}

// PassportTransferRepository is the immutable transfer ledger.
type PassportTransferRepository interface {
	Append(ctx context.Context, t *domain.PassportTransfer) error
	ListByPassport(ctx context.Context, passportID uuid.UUID) ([]domain.PassportTransfer, error)
	ListByDeal(ctx context.Context, dealID uuid.UUID) ([]domain.PassportTransfer, error)
}

// PassportDocumentRepository manages uploaded documents and the verification
// cascade over pending ones.
type PassportDocumentRepository interface {
	Create(ctx context.Context, d *domain.PassportDocument) error
	ListByPassport(ctx context.Context, passportID uuid.UUID) ([]domain.PassportDocument, error)
	// CascadePending moves every pending document of the passport to the
	// given status. Safe to re-run: already-moved documents are untouched.
	CascadePending(ctx context.Context, passportID uuid.UUID, status domain.VerificationStatus) (int, error)
}

// NotificationRepository is the outbox. Enqueue participates in the caller's
// unit of work; the claim/mark methods are used by the notifier worker only.
type NotificationRepository interface {
	Enqueue(ctx context.Context, n *domain.Notification) error
	ClaimNext(ctx context.Context) (*domain.Notification, bool, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// KPIRepository stores immutable KPI snapshots.
type KPIRepository interface {
	Insert(ctx context.Context, s *domain.KPISnapshot) error
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]domain.KPISnapshot, error)
}

// Store bundles the repositories that can share one unit of work.
type Store interface {
	Companies() CompanyRepository
	Materials() MaterialRepository
	WasteStreams() WasteStreamRepository
	Deals() DealRepository
	Passports() PassportRepository
	Events() PassportEventRepository
	Transfers() PassportTransferRepository
	Documents() PassportDocumentRepository
	Notifications() NotificationRepository
	KPI() KPIRepository
}

// DataStore is a Store that can open transactional scopes. Everything fn
// writes through the passed Store commits together or not at all.
type DataStore interface {
	Store
	RunInTx(ctx context.Context, fn func(Store) error) error
}
