// Package passports implements the passport lifecycle: creation from waste
// streams, verification, document bookkeeping, and ownership transfer.
package passports

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"econexus/internal/apperrors"
	"econexus/internal/domain"
	"econexus/internal/platform/metrics"
	"econexus/internal/ports"
	"econexus/internal/scoring"
)

const opTimeout = 10 * time.Second

type Service struct {
	store     ports.DataStore
	artifacts ports.ArtifactRequester
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

func New(store ports.DataStore, artifacts ports.ArtifactRequester, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{store: store, artifacts: artifacts, metrics: m, log: log, now: time.Now}
}

// CreateFromWasteStream mints the passport for a waste stream. Validation is
// a strict gate: a missing material reference or descriptive attribute
// rejects the request before any write.
func (s *Service) CreateFromWasteStream(ctx context.Context, wasteStreamID uuid.UUID) (*domain.MaterialPassport, *domain.WasteStream, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		passport *domain.MaterialPassport
		stream   *domain.WasteStream
	)
	err := s.store.RunInTx(ctx, func(st ports.Store) error {
		ws, err := st.WasteStreams().Get(ctx, wasteStreamID)
		if err != nil {
			return err
		}
		if ws.PassportID != nil {
			return apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("waste stream %s already has passport %s", ws.ID, *ws.PassportID))
		}
		if ws.MaterialID == nil {
			return apperrors.New(apperrors.CodeValidation,
				"waste stream "+ws.ID.String()+" has no material reference")
		}
		mat, err := st.Materials().Get(ctx, *ws.MaterialID)
		if err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				return apperrors.Wrap(err, apperrors.CodeValidation,
					"waste stream "+ws.ID.String()+" references a missing material")
			}
			return err
		}
		if err := validatePassportInputs(mat, ws); err != nil {
			return err
		}

		tier := scoring.QualityTier(ws.QualityGrade, ws.ContaminationLevel)
		processability := scoring.ProcessabilityScore(mat.MaterialCategory, ws.ContaminationLevel)
		recyclable := scoring.RecyclableScore(mat.MaterialCategory, tier)

		now := s.now()
		p := &domain.MaterialPassport{
			ID:                 uuid.New(),
			WasteStreamID:      ws.ID,
			MaterialCategory:   mat.MaterialCategory,
			MaterialSubtype:    mat.MaterialSubtype,
			PhysicalForm:       mat.PhysicalForm,
			Volume:             ws.MonthlyVolume,
			Unit:               mat.Unit,
			QualityGrade:       ws.QualityGrade,
			QualityTier:        tier,
			ContaminationLevel: ws.ContaminationLevel,
			CarbonFootprint:    mat.CarbonFootprint,
			VerificationStatus: domain.VerificationUnverified,
			TechnicalProperties: domain.TechnicalProperties{
				SchemaVersion:       domain.TechnicalPropertiesSchemaVersion,
				Classification:      ws.Classification,
				ProcessabilityScore: processability,
				RecyclableScore:     recyclable,
			},
			CurrentOwnerCompanyID: ws.CompanyID,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := st.Passports().Create(ctx, p); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "create passport for waste stream "+ws.ID.String())
		}
		if err := st.Events().Append(ctx, &domain.PassportEvent{
			ID:         uuid.New(),
			PassportID: p.ID,
			Type:       domain.EventCreation,
			Ref:        p.ID.String(),
			Detail:     "passport created from waste stream " + ws.ID.String(),
			CreatedAt:  now,
		}); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "append creation event for passport "+p.ID.String())
		}
		if err := st.WasteStreams().SetPassport(ctx, ws.ID, p.ID, processability, recyclable); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "link passport to waste stream "+ws.ID.String())
		}

		pid := p.ID
		ws.PassportID = &pid
		ws.ProcessabilityScore = &processability
		ws.RecyclableScore = &recyclable
		passport, stream = p, ws
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.PassportsCreated.Inc()
	}
	s.requestArtifact(passport.ID)
	return passport, stream, nil
}

// requestArtifact asks for the QR artifact off the request path. Failures are
// logged and never surfaced: the passport exists either way.
func (s *Service) requestArtifact(passportID uuid.UUID) {
	if s.artifacts == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := s.artifacts.RequestQR(ctx, passportID); err != nil {
			s.log.Warn("qr artifact request failed", "passport_id", passportID, "err", err)
		}
	}()
}

func validatePassportInputs(mat *domain.Material, ws *domain.WasteStream) error {
	var missing []string
	if mat.MaterialCategory == "" {
		missing = append(missing, "material_category")
	}
	if mat.MaterialSubtype == "" {
		missing = append(missing, "material_subtype")
	}
	if mat.PhysicalForm == "" {
		missing = append(missing, "physical_form")
	}
	if mat.Unit == "" {
		missing = append(missing, "unit")
	}
	if !ws.QualityGrade.Valid() {
		missing = append(missing, "quality_grade")
	}
	if len(missing) > 0 {
		return apperrors.New(apperrors.CodeValidation,
			"material "+mat.ID.String()+" missing required fields: "+strings.Join(missing, ", "))
	}
	return nil
}

// TransferOwnership flips passport ownership for a settled deal and appends
// the ledger row. It runs inside the caller's unit of work: the deal status
// change and this transfer commit together or not at all.
func (s *Service) TransferOwnership(ctx context.Context, st ports.Store, deal *domain.Deal) error {
	if deal.PassportID == nil {
		return apperrors.New(apperrors.CodeValidation, "deal "+deal.ID.String()+" has no passport")
	}
	p, err := st.Passports().Get(ctx, *deal.PassportID)
	if err != nil {
		return err
	}
	now := s.now()
	prev := p.CurrentOwnerCompanyID
	p.CurrentOwnerCompanyID = deal.BuyerCompanyID
	p.PreviousOwnerCompanyID = &prev
	p.TransferDate = &now
	p.TechnicalProperties.LastTransferDealID = deal.ID.String()
	p.UpdatedAt = now
	if err := st.Passports().Update(ctx, p); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "update passport "+p.ID.String()+" ownership")
	}
	if err := st.Transfers().Append(ctx, &domain.PassportTransfer{
		ID:            uuid.New(),
		PassportID:    p.ID,
		DealID:        deal.ID,
		FromCompanyID: deal.SellerCompanyID,
		ToCompanyID:   deal.BuyerCompanyID,
		Volume:        deal.Volume,
		PricePerUnit:  deal.PricePerUnit,
		TotalValue:    deal.TotalValue,
		CreatedAt:     now,
	}); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "append transfer ledger row for deal "+deal.ID.String())
	}
	seller := deal.SellerCompanyID
	if err := st.Events().Append(ctx, &domain.PassportEvent{
		ID:             uuid.New(),
		PassportID:     p.ID,
		Type:           domain.EventOwnershipTransfer,
		Ref:            deal.ID.String(),
		ActorCompanyID: &seller,
		Detail:         fmt.Sprintf("ownership transferred from %s to %s", deal.SellerCompanyID, deal.BuyerCompanyID),
		CreatedAt:      now,
	}); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "append transfer event for passport "+p.ID.String())
	}
	if s.metrics != nil {
		s.metrics.TransfersRecorded.Inc()
	}
	return nil
}

// SubmitVerification scores the passport with the shared derivation and
// cascades the outcome to still-pending documents. The cascade runs outside
// the passport transaction but is idempotent, so a retry after a partial
// failure converges.
func (s *Service) SubmitVerification(ctx context.Context, passportID uuid.UUID, method domain.VerificationMethod, verifiedBy, findings string, evidence []string) (ports.VerificationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if !method.Valid() {
		return ports.VerificationResult{}, apperrors.New(apperrors.CodeValidation,
			"unrecognized verification method "+string(method))
	}
	if verifiedBy == "" {
		return ports.VerificationResult{}, apperrors.New(apperrors.CodeValidation, "verified_by is required")
	}

	submissionID := uuid.New()
	var res ports.VerificationResult
	err := s.store.RunInTx(ctx, func(st ports.Store) error {
		p, err := st.Passports().Get(ctx, passportID)
		if err != nil {
			return err
		}
		score := scoring.VerificationScore(method, p.QualityTier)
		status := scoring.VerificationStatusFor(score)
		now := s.now()
		p.VerificationScore = score
		p.VerificationStatus = status
		p.UpdatedAt = now
		if err := st.Passports().Update(ctx, p); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "update passport "+p.ID.String()+" verification")
		}
		detail := fmt.Sprintf("method=%s score=%d status=%s by=%s", method, score, status, verifiedBy)
		if findings != "" {
			detail += " findings=" + findings
		}
		if len(evidence) > 0 {
			detail += " evidence=" + strings.Join(evidence, ",")
		}
		if err := st.Events().Append(ctx, &domain.PassportEvent{
			ID:         uuid.New(),
			PassportID: p.ID,
			Type:       domain.EventVerification,
			Ref:        submissionID.String(),
			Detail:     detail,
			CreatedAt:  now,
		}); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "append verification event for passport "+p.ID.String())
		}
		res = ports.VerificationResult{
			PassportID:         p.ID,
			VerificationStatus: status,
			VerificationScore:  score,
			Method:             method,
			VerifiedBy:         verifiedBy,
			Timestamp:          now,
		}
		return nil
	})
	if err != nil {
		return ports.VerificationResult{}, err
	}

	if n, err := s.store.Documents().CascadePending(ctx, passportID, res.VerificationStatus); err != nil {
		// The passport update is committed; the cascade will be retried by
		// the next submission. Log, don't fail.
		s.log.Warn("document cascade failed", "passport_id", passportID, "err", err)
	} else if n > 0 {
		s.log.Debug("documents cascaded", "passport_id", passportID, "count", n, "status", res.VerificationStatus)
	}

	if s.metrics != nil {
		s.metrics.Verifications.WithLabelValues(string(res.VerificationStatus)).Inc()
	}
	return res, nil
}

// RecordDocument inserts one document row and its audit event. Pure
// bookkeeping; no scoring.
func (s *Service) RecordDocument(ctx context.Context, passportID uuid.UUID, documentType, fileReference string) (*domain.PassportDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if documentType == "" || fileReference == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "document_type and file_reference are required")
	}
	var doc *domain.PassportDocument
	err := s.store.RunInTx(ctx, func(st ports.Store) error {
		if _, err := st.Passports().Get(ctx, passportID); err != nil {
			return err
		}
		now := s.now()
		doc = &domain.PassportDocument{
			ID:                 uuid.New(),
			PassportID:         passportID,
			DocumentType:       documentType,
			FileReference:      fileReference,
			VerificationStatus: domain.VerificationPending,
			CreatedAt:          now,
		}
		if err := st.Documents().Create(ctx, doc); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "create document for passport "+passportID.String())
		}
		if err := st.Events().Append(ctx, &domain.PassportEvent{
			ID:         uuid.New(),
			PassportID: passportID,
			Type:       domain.EventDocumentUploaded,
			Ref:        doc.ID.String(),
			Detail:     "document uploaded: " + documentType,
			CreatedAt:  now,
		}); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "append document event for passport "+passportID.String())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) Get(ctx context.Context, passportID uuid.UUID) (*domain.MaterialPassport, error) {
	return s.store.Passports().Get(ctx, passportID)
}

func (s *Service) Events(ctx context.Context, passportID uuid.UUID) ([]domain.PassportEvent, error) {
	if _, err := s.store.Passports().Get(ctx, passportID); err != nil {
		return nil, err
	}
	return s.store.Events().ListByPassport(ctx, passportID)
}

func (s *Service) Transfers(ctx context.Context, passportID uuid.UUID) ([]domain.PassportTransfer, error) {
	if _, err := s.store.Passports().Get(ctx, passportID); err != nil {
		return nil, err
	}
	return s.store.Transfers().ListByPassport(ctx, passportID)
}
