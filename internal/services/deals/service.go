// Package deals implements the two-phase approval state machine that settles
// bilateral trades.
package deals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"econexus/internal/apperrors"
	"econexus/internal/domain"
	"econexus/internal/platform/metrics"
	"econexus/internal/ports"
)

const decisionTimeout = 10 * time.Second

// Transferrer executes the passport ownership transfer inside the caller's
// unit of work. Satisfied by the passports service.
type Transferrer interface {
	TransferOwnership(ctx context.Context, st ports.Store, deal *domain.Deal) error
}

type Service struct {
	store     ports.DataStore
	transfers Transferrer
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

func New(store ports.DataStore, transfers Transferrer, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{store: store, transfers: transfers, metrics: m, log: log, now: time.Now}
}

// SubmitDecision applies one party's approve/reject to the deal. The whole
// read-validate-write sequence, including the ownership transfer on the
// terminal approval, runs in one transaction against a locked deal row, so
// concurrent decisions on the same deal serialize and at most one transfer
// ever succeeds per deal.
func (s *Service) SubmitDecision(ctx context.Context, dealID, actorCompanyID uuid.UUID, action domain.DealAction) (ports.SettlementResult, error) {
	ctx, cancel := context.WithTimeout(ctx, decisionTimeout)
	defer cancel()

	if !action.Valid() {
		return ports.SettlementResult{}, apperrors.New(apperrors.CodeValidation, "unknown action "+string(action))
	}

	var res ports.SettlementResult
	err := s.store.RunInTx(ctx, func(st ports.Store) error {
		deal, err := st.Deals().GetForUpdate(ctx, dealID)
		if err != nil {
			return err
		}
		if deal.Status.Terminal() {
			return apperrors.New(apperrors.CodeAlreadyFinalized,
				fmt.Sprintf("deal %s is already %s", deal.ID, deal.Status))
		}
		role := deal.RoleOf(actorCompanyID)
		if role == domain.RoleNone {
			return apperrors.New(apperrors.CodeNotAuthorized,
				fmt.Sprintf("company %s is not a party to deal %s", actorCompanyID, deal.ID))
		}

		switch action {
		case domain.ActionReject:
			res, err = s.reject(ctx, st, deal, actorCompanyID)
		case domain.ActionApprove:
			res, err = s.approve(ctx, st, deal, actorCompanyID, role)
		}
		return err
	})
	if err != nil {
		return ports.SettlementResult{}, err
	}

	s.log.Info("deal decision applied",
		"deal_id", dealID, "actor", actorCompanyID, "action", action, "status", res.Status)
	return res, nil
}

// reject cancels the deal from any non-terminal state. Deliberately more
// permissive than approve: either party may retract at any point before the
// deal finalizes, even after its own approval.
func (s *Service) reject(ctx context.Context, st ports.Store, deal *domain.Deal, actor uuid.UUID) (ports.SettlementResult, error) {
	prev := deal.Status
	now := s.now()
	deal.Status = domain.DealCancelled
	deal.UpdatedAt = now
	if err := st.Deals().Update(ctx, deal, prev); err != nil {
		return ports.SettlementResult{}, err
	}
	if err := s.notify(ctx, st, deal, deal.Counterpart(actor), domain.NotifyDealCancelled,
		"Deal cancelled",
		fmt.Sprintf("Deal %s for %.2f %s of %s was rejected by the counterpart.", deal.ID, deal.Volume, deal.Unit, deal.MaterialCategory)); err != nil {
		return ports.SettlementResult{}, err
	}
	if s.metrics != nil {
		s.metrics.DealsCancelled.Inc()
	}
	return ports.SettlementResult{
		Status:  domain.DealCancelled,
		Message: "deal rejected and cancelled",
	}, nil
}

// approve is the core tie-break: only the party whose approval is pending may
// move the machine forward.
func (s *Service) approve(ctx context.Context, st ports.Store, deal *domain.Deal, actor uuid.UUID, role domain.DealRole) (ports.SettlementResult, error) {
	now := s.now()
	switch {
	case deal.Status == domain.DealPendingSellerApproval && role == domain.RoleSeller:
		prev := deal.Status
		deal.Status = domain.DealPendingBuyerApproval
		deal.SellerApprovedAt = &now
		deal.UpdatedAt = now
		if err := st.Deals().Update(ctx, deal, prev); err != nil {
			return ports.SettlementResult{}, err
		}
		if err := s.notify(ctx, st, deal, deal.BuyerCompanyID, domain.NotifyDealAdvanced,
			"Deal awaiting your approval",
			fmt.Sprintf("The seller approved deal %s; your approval settles it.", deal.ID)); err != nil {
			return ports.SettlementResult{}, err
		}
		return ports.SettlementResult{
			Status:  domain.DealPendingBuyerApproval,
			Message: "approved; awaiting buyer approval",
		}, nil

	case deal.Status == domain.DealPendingBuyerApproval && role == domain.RoleBuyer:
		prev := deal.Status
		deal.Status = domain.DealActive
		deal.BuyerApprovedAt = &now
		deal.UpdatedAt = now
		if err := st.Deals().Update(ctx, deal, prev); err != nil {
			return ports.SettlementResult{}, err
		}
		msg := "approved; deal is now active"
		if deal.PassportID != nil {
			if err := s.transfers.TransferOwnership(ctx, st, deal); err != nil {
				// Roll the whole unit of work back; the deal stays
				// pending_buyer_approval and the caller may retry.
				return ports.SettlementResult{}, apperrors.Wrap(err, apperrors.CodeTransferFailed,
					"ownership transfer failed for deal "+deal.ID.String())
			}
			msg = "approved; deal is now active and the passport was transferred"
		}
		if err := s.notify(ctx, st, deal, deal.SellerCompanyID, domain.NotifyDealSettled,
			"Deal settled",
			fmt.Sprintf("The buyer approved deal %s; the deal is active.", deal.ID)); err != nil {
			return ports.SettlementResult{}, err
		}
		if s.metrics != nil {
			s.metrics.DealsSettled.Inc()
		}
		return ports.SettlementResult{Status: domain.DealActive, Message: msg}, nil

	default:
		return ports.SettlementResult{}, apperrors.New(apperrors.CodeInvalidTransition,
			fmt.Sprintf("%s may not approve deal %s while it is %s", role, deal.ID, deal.Status))
	}
}

func (s *Service) notify(ctx context.Context, st ports.Store, deal *domain.Deal, to uuid.UUID, kind domain.NotificationKind, title, message string) error {
	did := deal.ID
	n := &domain.Notification{
		ID:        uuid.New(),
		CompanyID: to,
		Kind:      kind,
		DealID:    &did,
		Title:     title,
		Message:   message,
		CreatedAt: s.now(),
	}
	if deal.PassportID != nil {
		pid := *deal.PassportID
		n.PassportID = &pid
	}
	if err := st.Notifications().Enqueue(ctx, n); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "enqueue notification for deal "+deal.ID.String())
	}
	return nil
}
