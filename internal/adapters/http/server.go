// Package httpadapter exposes the settlement core over REST. Handlers stay
// thin: decode, call the service port, encode, map error codes to statuses.
package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"econexus/internal/apperrors"
	"econexus/internal/domain"
	"econexus/internal/ports"
)

type Server struct {
	deals         ports.DealSettler
	passports     ports.PassportManager
	kpi           ports.KPIReporter
	log           *slog.Logger
	exposeMetrics bool
}

func New(deals ports.DealSettler, passports ports.PassportManager, kpi ports.KPIReporter, log *slog.Logger, exposeMetrics bool) *Server {
	return &Server{deals: deals, passports: passports, kpi: kpi, log: log, exposeMetrics: exposeMetrics}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	if s.exposeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Post("/deals/{dealID}/decision", s.handleDealDecision)

	r.Route("/passports", func(r chi.Router) {
		r.Post("/", s.handleCreatePassport)
		r.Get("/{passportID}", s.handleGetPassport)
		r.Post("/{passportID}/verification", s.handleVerification)
		r.Post("/{passportID}/documents", s.handleRecordDocument)
		r.Get("/{passportID}/events", s.handleListEvents)
		r.Get("/{passportID}/transfers", s.handleListTransfers)
	})

	r.Post("/companies/{companyID}/kpi", s.handleComputeKPI)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type decisionRequest struct {
	ActorCompanyID string `json:"actor_company_id"`
	Action         string `json:"action"`
}

type decisionResponse struct {
	Status  domain.DealStatus `json:"status"`
	Message string            `json:"message"`
}

func (s *Server) handleDealDecision(w http.ResponseWriter, r *http.Request) {
	dealID, err := uuid.Parse(chi.URLParam(r, "dealID"))
	if err != nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeValidation, "malformed deal id"))
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeValidation, "malformed request body"))
		return
	}
	if req.ActorCompanyID == "" {
		s.writeError(w, r, apperrors.New(apperrors.CodeNotAuthenticated, "actor identity is required"))
		return
	}
	actorID, err := uuid.Parse(req.ActorCompanyID)
	if err != nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeNotAuthenticated, "actor identity is not a valid company id"))
		return
	}
	res, err := s.deals.SubmitDecision(r.Context(), dealID, actorID, domain.DealAction(req.Action))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse{Status: res.Status, Message: res.Message})
}

type createPassportRequest struct {
	WasteStreamID string `json:"waste_stream_id"`
}

func (s *Server) handleCreatePassport(w http.ResponseWriter, r *http.Request) {
	var req createPassportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeValidation, "malformed request body"))
		return
	}
	wasteStreamID, err := uuid.Parse(req.WasteStreamID)
	if err != nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeValidation, "malformed waste_stream_id"))
		return
	}
	passport, stream, err := s.passports.CreateFromWasteStream(r.Context(), wasteStreamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"passport":     passportView(passport),
		"waste_stream": wasteStreamView(stream),
	})
}

func (s *Server) handleGetPassport(w http.ResponseWriter, r *http.Request) {
	passportID, err := uuid.Parse(chi.URLParam(r, "passportID"))
	if err != nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeValidation, "malformed passport id"))
		return
	}
	p, err := s.passports.Get(r.Context(), passportID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, passportView(p))
}

type verificationRequest struct {
	Method            string   `json:"method"`
	VerifiedBy        string   `json:"verified_by"`
	Findings          string   `json:"findings,omitempty"`
	EvidenceDocuments []string `json:"evidence_documents,omitempty"`
}

type verificationResponse struct {
	VerificationStatus domain.VerificationStatus `json:"verification_status"`
	VerificationScore  int                       `json:"verification_score"`
	Method             domain.VerificationMethod `json:"method"`
	VerifiedBy         string                    `json:"verified_by"`
	Timestamp          time.Time                 `json:"timestamp"`
}

func (s *Server) handleVerification(w http.ResponseWriter, r *http.Request) {
	passportID, err := uuid.Parse(chi.URLParam(r, "passportID"))
	if err != nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeValidation, "malformed passport id"))
		return
	}
	var req verificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeValidation, "malformed request body"))
		return
	}
	res, err := s.passports.SubmitVerification(r.Context(), passportID,
		domain.VerificationMethod(req.Method), req.VerifiedBy, req.Findings, req.EvidenceDocuments)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verificationResponse{
		VerificationStatus: res.VerificationStatus,
		VerificationScore:  res.VerificationScore,
		Method:             res.Method,
		VerifiedBy:         res.VerifiedBy,
		Timestamp:          res.Timestamp,
	})
}

type recordDocumentRequest struct {
	DocumentType  string `json:"document_type"`
	FileReference string `json:"file_reference"`
}

func (s *Server) handleRecordDocument(w http.ResponseWriter, r *http.Request) {
	passportID, err := uuid.Parse(chi.URLParam(r, "passportID"))
	if err != nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeValidation, "malformed passport id"))
		return
	}
	var req recordDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeValidation, "malformed request body"))
		return
	}
	doc, err := s.passports.RecordDocument(r.Context(), passportID, req.DocumentType, req.FileReference)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":                  doc.ID,
		"passport_id":         doc.PassportID,
		"document_type":       doc.DocumentType,
		"file_reference":      doc.FileReference,
		"verification_status": doc.VerificationStatus,
		"created_at":          doc.CreatedAt,
	})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	passportID, err := uuid.Parse(chi.URLParam(r, "passportID"))
	if err != nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeValidation, "malformed passport id"))
		return
	}
	events, err := s.passports.Events(r.Context(), passportID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]map[string]any, 0, len(events))
	for _, e := range events {
		views = append(views, map[string]any{
			"id":               e.ID,
			"passport_id":      e.PassportID,
			"event_type":       e.Type,
			"ref":              e.Ref,
			"actor_company_id": e.ActorCompanyID,
			"detail":           e.Detail,
			"created_at":       e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": views})
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	passportID, err := uuid.Parse(chi.URLParam(r, "passportID"))
	if err != nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeValidation, "malformed passport id"))
		return
	}
	transfers, err := s.passports.Transfers(r.Context(), passportID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]map[string]any, 0, len(transfers))
	for _, tr := range transfers {
		views = append(views, map[string]any{
			"id":              tr.ID,
			"passport_id":     tr.PassportID,
			"deal_id":         tr.DealID,
			"from_company_id": tr.FromCompanyID,
			"to_company_id":   tr.ToCompanyID,
			"volume":          tr.Volume,
			"price_per_unit":  tr.PricePerUnit,
			"total_value":     tr.TotalValue,
			"created_at":      tr.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"transfers": views})
}

type kpiRequest struct {
	Period *time.Time `json:"period,omitempty"`
}

func (s *Server) handleComputeKPI(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeValidation, "malformed company id"))
		return
	}
	var req kpiRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, apperrors.New(apperrors.CodeValidation, "malformed request body"))
			return
		}
	}
	snap, err := s.kpi.Compute(r.Context(), companyID, req.Period)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshotView(snap))
}

func snapshotView(s *domain.KPISnapshot) map[string]any {
	return map[string]any{
		"id":                         s.ID,
		"company_id":                 s.CompanyID,
		"period_start":               s.PeriodStart,
		"total_input":                s.TotalInput,
		"total_output":               s.TotalOutput,
		"total_waste":                s.TotalWaste,
		"landfill_waste":             s.LandfillWaste,
		"mci_score":                  s.MCIScore,
		"landfill_diversion":         s.LandfillDiversion,
		"total_waste_cost":           s.TotalWasteCost,
		"potential_circular_revenue": s.PotentialCircularRevenue,
		"waste_to_value_ratio":       s.WasteToValueRatio,
		"net_circular_value":         s.NetCircularValue,
		"carbon_emissions":           s.CarbonEmissions,
		"carbon_saved_potential":     s.CarbonSavedPotential,
		"emission_intensity":         s.EmissionIntensity,
		"computed_at":                s.ComputedAt,
	}
}

// Views keep wire names stable regardless of struct field naming.

func passportView(p *domain.MaterialPassport) map[string]any {
	return map[string]any{
		"id":                        p.ID,
		"waste_stream_id":           p.WasteStreamID,
		"material_category":         p.MaterialCategory,
		"material_subtype":          p.MaterialSubtype,
		"physical_form":             p.PhysicalForm,
		"volume":                    p.Volume,
		"unit":                      p.Unit,
		"quality_grade":             p.QualityGrade,
		"quality_tier":              p.QualityTier,
		"contamination_level":       p.ContaminationLevel,
		"carbon_footprint":          p.CarbonFootprint,
		"verification_status":       p.VerificationStatus,
		"verification_score":        p.VerificationScore,
		"technical_properties":      p.TechnicalProperties,
		"current_owner_company_id":  p.CurrentOwnerCompanyID,
		"previous_owner_company_id": p.PreviousOwnerCompanyID,
		"transfer_date":             p.TransferDate,
		"created_at":                p.CreatedAt,
	}
}

func wasteStreamView(w *domain.WasteStream) map[string]any {
	return map[string]any{
		"id":                   w.ID,
		"company_id":           w.CompanyID,
		"material_id":          w.MaterialID,
		"classification":       w.Classification,
		"quality_grade":        w.QualityGrade,
		"contamination_level":  w.ContaminationLevel,
		"monthly_volume":       w.MonthlyVolume,
		"passport_id":          w.PassportID,
		"processability_score": w.ProcessabilityScore,
		"recyclable_score":     w.RecyclableScore,
	}
}

type errorBody struct {
	Error struct {
		Code    apperrors.Code `json:"code"`
		Message string         `json:"message"`
	} `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "code", code, "err", err)
	}
	var body errorBody
	body.Error.Code = code
	body.Error.Message = err.Error()
	writeJSON(w, status, body)
}

func statusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeNotAuthenticated:
		return http.StatusUnauthorized
	case apperrors.CodeNotAuthorized:
		return http.StatusForbidden
	case apperrors.CodeValidation:
		return http.StatusBadRequest
	case apperrors.CodeInvalidTransition, apperrors.CodeAlreadyFinalized:
		return http.StatusConflict
	case apperrors.CodeTransferFailed:
		return http.StatusBadGateway
	case apperrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already out; an encode failure here is unrecoverable.
	_ = json.NewEncoder(w).Encode(v)
}
