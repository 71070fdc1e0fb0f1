package deals

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"econexus/internal/adapters/memory"
	"econexus/internal/apperrors"
	"econexus/internal/domain"
	passportsvc "econexus/internal/services/passports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store   *memory.Store
	svc     *Service
	seller  uuid.UUID
	buyer   uuid.UUID
	outside uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	log := testLogger()
	f := &fixture{
		store:   store,
		svc:     New(store, passportsvc.New(store, nil, nil, log), nil, log),
		seller:  uuid.New(),
		buyer:   uuid.New(),
		outside: uuid.New(),
	}
	store.AddCompany(domain.Company{ID: f.seller, Name: "Alpha Metals", EntityType: domain.EntityManufacturer})
	store.AddCompany(domain.Company{ID: f.buyer, Name: "Beta Recycling", EntityType: domain.EntityRecycler})
	return f
}

func (f *fixture) seedDeal(t *testing.T, status domain.DealStatus, passportID *uuid.UUID) *domain.Deal {
	t.Helper()
	now := time.Now()
	d := &domain.Deal{
		ID:               uuid.New(),
		SellerCompanyID:  f.seller,
		BuyerCompanyID:   f.buyer,
		PassportID:       passportID,
		Volume:           12.5,
		Unit:             "tons",
		MaterialCategory: "metal",
		PricePerUnit:     40,
		TotalValue:       500,
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, f.store.Deals().Create(context.Background(), d))
	return d
}

func (f *fixture) seedPassport(t *testing.T) *domain.MaterialPassport {
	t.Helper()
	now := time.Now()
	p := &domain.MaterialPassport{
		ID:                    uuid.New(),
		WasteStreamID:         uuid.New(),
		MaterialCategory:      "metal",
		MaterialSubtype:       "aluminum",
		PhysicalForm:          "shavings",
		Volume:                12.5,
		Unit:                  "tons",
		QualityGrade:          domain.GradeA,
		QualityTier:           1,
		VerificationStatus:    domain.VerificationUnverified,
		CurrentOwnerCompanyID: f.seller,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	require.NoError(t, f.store.Passports().Create(context.Background(), p))
	return p
}

func TestSellerApprovalAdvancesDeal(t *testing.T) {
	f := newFixture(t)
	deal := f.seedDeal(t, domain.DealPendingSellerApproval, nil)

	res, err := f.svc.SubmitDecision(context.Background(), deal.ID, f.seller, domain.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, domain.DealPendingBuyerApproval, res.Status)

	got, err := f.store.Deals().Get(context.Background(), deal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DealPendingBuyerApproval, got.Status)
	require.NotNil(t, got.SellerApprovedAt)
	assert.Nil(t, got.BuyerApprovedAt)

	notes := f.store.AllNotifications()
	require.Len(t, notes, 1)
	assert.Equal(t, f.buyer, notes[0].CompanyID)
	assert.Equal(t, domain.NotifyDealAdvanced, notes[0].Kind)
}

func TestBuyerApprovalSettlesAndTransfersPassport(t *testing.T) {
	f := newFixture(t)
	p := f.seedPassport(t)
	deal := f.seedDeal(t, domain.DealPendingSellerApproval, &p.ID)
	ctx := context.Background()

	_, err := f.svc.SubmitDecision(ctx, deal.ID, f.seller, domain.ActionApprove)
	require.NoError(t, err)

	res, err := f.svc.SubmitDecision(ctx, deal.ID, f.buyer, domain.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, domain.DealActive, res.Status)
	assert.Contains(t, res.Message, "transferred")

	got, err := f.store.Deals().Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DealActive, got.Status)
	require.NotNil(t, got.SellerApprovedAt)
	require.NotNil(t, got.BuyerApprovedAt)

	owned, err := f.store.Passports().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, f.buyer, owned.CurrentOwnerCompanyID)
	require.NotNil(t, owned.PreviousOwnerCompanyID)
	assert.Equal(t, f.seller, *owned.PreviousOwnerCompanyID)
	require.NotNil(t, owned.TransferDate)
	assert.Equal(t, deal.ID.String(), owned.TechnicalProperties.LastTransferDealID)

	ledger, err := f.store.Transfers().ListByDeal(ctx, deal.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, f.seller, ledger[0].FromCompanyID)
	assert.Equal(t, f.buyer, ledger[0].ToCompanyID)

	events, err := f.store.Events().ListByPassport(ctx, p.ID)
	require.NoError(t, err)
	var transferEvents int
	for _, e := range events {
		if e.Type == domain.EventOwnershipTransfer {
			transferEvents++
		}
	}
	assert.Equal(t, 1, transferEvents)

	notes := f.store.AllNotifications()
	require.Len(t, notes, 2)
	assert.Equal(t, domain.NotifyDealSettled, notes[1].Kind)
	assert.Equal(t, f.seller, notes[1].CompanyID)
}

func TestBuyerApprovalWithoutPassportSettlesWithoutTransfer(t *testing.T) {
	f := newFixture(t)
	deal := f.seedDeal(t, domain.DealPendingBuyerApproval, nil)
	ctx := context.Background()

	res, err := f.svc.SubmitDecision(ctx, deal.ID, f.buyer, domain.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, domain.DealActive, res.Status)
	assert.NotContains(t, res.Message, "transferred")

	ledger, err := f.store.Transfers().ListByDeal(ctx, deal.ID)
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestRejectCancelsFromAnyNonTerminalState(t *testing.T) {
	states := []domain.DealStatus{
		domain.DealNegotiating,
		domain.DealPendingSellerApproval,
		domain.DealPendingBuyerApproval,
	}
	for _, status := range states {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			deal := f.seedDeal(t, status, nil)

			res, err := f.svc.SubmitDecision(context.Background(), deal.ID, f.buyer, domain.ActionReject)
			require.NoError(t, err)
			assert.Equal(t, domain.DealCancelled, res.Status)

			got, err := f.store.Deals().Get(context.Background(), deal.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.DealCancelled, got.Status)

			notes := f.store.AllNotifications()
			require.Len(t, notes, 1)
			assert.Equal(t, f.seller, notes[0].CompanyID)
			assert.Equal(t, domain.NotifyDealCancelled, notes[0].Kind)
		})
	}
}

func TestSellerMayRetractAfterOwnApproval(t *testing.T) {
	f := newFixture(t)
	deal := f.seedDeal(t, domain.DealPendingSellerApproval, nil)
	ctx := context.Background()

	_, err := f.svc.SubmitDecision(ctx, deal.ID, f.seller, domain.ActionApprove)
	require.NoError(t, err)

	res, err := f.svc.SubmitDecision(ctx, deal.ID, f.seller, domain.ActionReject)
	require.NoError(t, err)
	assert.Equal(t, domain.DealCancelled, res.Status)
}

func TestDecisionOnFinalizedDeal(t *testing.T) {
	for _, status := range []domain.DealStatus{domain.DealActive, domain.DealCancelled} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			deal := f.seedDeal(t, status, nil)

			_, err := f.svc.SubmitDecision(context.Background(), deal.ID, f.buyer, domain.ActionApprove)
			assert.True(t, apperrors.Is(err, apperrors.CodeAlreadyFinalized), "got %v", err)
		})
	}
}

func TestOutsiderIsNotAuthorized(t *testing.T) {
	f := newFixture(t)
	deal := f.seedDeal(t, domain.DealPendingSellerApproval, nil)

	_, err := f.svc.SubmitDecision(context.Background(), deal.ID, f.outside, domain.ActionApprove)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotAuthorized), "got %v", err)
	assert.Empty(t, f.store.AllNotifications())
}

func TestApproveOutOfTurnIsInvalidTransition(t *testing.T) {
	tests := []struct {
		name   string
		status domain.DealStatus
		actor  func(*fixture) uuid.UUID
	}{
		{"buyer before seller", domain.DealPendingSellerApproval, func(f *fixture) uuid.UUID { return f.buyer }},
		{"seller approving twice", domain.DealPendingBuyerApproval, func(f *fixture) uuid.UUID { return f.seller }},
		{"approve while negotiating", domain.DealNegotiating, func(f *fixture) uuid.UUID { return f.seller }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			deal := f.seedDeal(t, tt.status, nil)

			_, err := f.svc.SubmitDecision(context.Background(), deal.ID, tt.actor(f), domain.ActionApprove)
			assert.True(t, apperrors.Is(err, apperrors.CodeInvalidTransition), "got %v", err)

			got, gerr := f.store.Deals().Get(context.Background(), deal.ID)
			require.NoError(t, gerr)
			assert.Equal(t, tt.status, got.Status)
		})
	}
}

func TestUnknownActionRejected(t *testing.T) {
	f := newFixture(t)
	deal := f.seedDeal(t, domain.DealPendingSellerApproval, nil)

	_, err := f.svc.SubmitDecision(context.Background(), deal.ID, f.seller, domain.DealAction("ponder"))
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation), "got %v", err)
}

func TestUnknownDealNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SubmitDecision(context.Background(), uuid.New(), f.seller, domain.ActionApprove)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound), "got %v", err)
}

// Concurrent terminal approvals must produce exactly one transfer: one
// submission wins, every other sees the finalized deal.
func TestConcurrentApprovalsTransferOnce(t *testing.T) {
	f := newFixture(t)
	p := f.seedPassport(t)
	deal := f.seedDeal(t, domain.DealPendingBuyerApproval, &p.ID)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.SubmitDecision(ctx, deal.ID, f.buyer, domain.ActionApprove)
		}(i)
	}
	wg.Wait()

	var won, finalized int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case apperrors.Is(err, apperrors.CodeAlreadyFinalized):
			finalized++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, finalized)

	ledger, err := f.store.Transfers().ListByDeal(ctx, deal.ID)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)
}

func TestTransferFailureRollsBackSettlement(t *testing.T) {
	f := newFixture(t)
	p := f.seedPassport(t)
	deal := f.seedDeal(t, domain.DealPendingBuyerApproval, &p.ID)
	ctx := context.Background()

	f.store.FailTransferAppend = errors.New("ledger unavailable")
	_, err := f.svc.SubmitDecision(ctx, deal.ID, f.buyer, domain.ActionApprove)
	assert.True(t, apperrors.Is(err, apperrors.CodeTransferFailed), "got %v", err)

	got, gerr := f.store.Deals().Get(ctx, deal.ID)
	require.NoError(t, gerr)
	assert.Equal(t, domain.DealPendingBuyerApproval, got.Status)
	assert.Nil(t, got.BuyerApprovedAt)

	owned, perr := f.store.Passports().Get(ctx, p.ID)
	require.NoError(t, perr)
	assert.Equal(t, f.seller, owned.CurrentOwnerCompanyID)
	assert.Empty(t, f.store.AllNotifications())

	// Retry succeeds once the ledger is back.
	f.store.FailTransferAppend = nil
	res, err := f.svc.SubmitDecision(ctx, deal.ID, f.buyer, domain.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, domain.DealActive, res.Status)
}
