package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"econexus/internal/apperrors"
	"econexus/internal/domain"
	"econexus/internal/ports"
)

func TestRunInTxRollsBackOnError(t *testing.T) {
	store := New()
	ctx := context.Background()
	dealID := uuid.New()

	err := store.RunInTx(ctx, func(st ports.Store) error {
		if err := st.Deals().Create(ctx, &domain.Deal{ID: dealID, Status: domain.DealNegotiating}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = store.Deals().Get(ctx, dealID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound), "got %v", err)
}

func TestRunInTxCommits(t *testing.T) {
	store := New()
	ctx := context.Background()
	dealID := uuid.New()

	require.NoError(t, store.RunInTx(ctx, func(st ports.Store) error {
		return st.Deals().Create(ctx, &domain.Deal{ID: dealID, Status: domain.DealNegotiating})
	}))

	got, err := store.Deals().Get(ctx, dealID)
	require.NoError(t, err)
	assert.Equal(t, domain.DealNegotiating, got.Status)
}

func TestRunInTxCancelledContext(t *testing.T) {
	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.RunInTx(ctx, func(ports.Store) error { return nil })
	assert.True(t, apperrors.Is(err, apperrors.CodeTimeout), "got %v", err)
}

func TestDealUpdateGuardsExpectedStatus(t *testing.T) {
	store := New()
	ctx := context.Background()
	d := &domain.Deal{ID: uuid.New(), Status: domain.DealPendingBuyerApproval}
	require.NoError(t, store.Deals().Create(ctx, d))

	d.Status = domain.DealActive
	err := store.Deals().Update(ctx, d, domain.DealPendingSellerApproval)
	require.Error(t, err)

	got, gerr := store.Deals().Get(ctx, d.ID)
	require.NoError(t, gerr)
	assert.Equal(t, domain.DealPendingBuyerApproval, got.Status)
}

func TestEventAppendDeduplicates(t *testing.T) {
	store := New()
	ctx := context.Background()
	passportID := uuid.New()

	e := domain.PassportEvent{
		ID:         uuid.New(),
		PassportID: passportID,
		Type:       domain.EventVerification,
		Ref:        "submission-1",
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.Events().Append(ctx, &e))

	retry := e
	retry.ID = uuid.New()
	require.NoError(t, store.Events().Append(ctx, &retry))

	other := e
	other.ID = uuid.New()
	other.Ref = "submission-2"
	require.NoError(t, store.Events().Append(ctx, &other))

	events, err := store.Events().ListByPassport(ctx, passportID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestClaimNextSkipsClaimedRows(t *testing.T) {
	store := New()
	ctx := context.Background()
	n := domain.Notification{ID: uuid.New(), CompanyID: uuid.New(), Kind: domain.NotifyDealSettled, CreatedAt: time.Now()}
	require.NoError(t, store.Notifications().Enqueue(ctx, &n))

	claimed, found, err := store.Notifications().ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, n.ID, claimed.ID)

	_, found, err = store.Notifications().ClaimNext(ctx)
	require.NoError(t, err)
	assert.False(t, found, "claimed row must stay invisible inside the retry window")

	require.NoError(t, store.Notifications().MarkDelivered(ctx, n.ID))
	_, found, err = store.Notifications().ClaimNext(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}
