package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"econexus/internal/adapters/memory"
	"econexus/internal/domain"
	dealsvc "econexus/internal/services/deals"
	kpisvc "econexus/internal/services/kpi"
	passportsvc "econexus/internal/services/passports"
)

type env struct {
	store  *memory.Store
	srv    *httptest.Server
	seller uuid.UUID
	buyer  uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	passports := passportsvc.New(store, nil, nil, log)
	deals := dealsvc.New(store, passports, nil, log)
	kpi := kpisvc.New(store, nil, log)

	e := &env{
		store:  store,
		seller: uuid.New(),
		buyer:  uuid.New(),
	}
	store.AddCompany(domain.Company{ID: e.seller, Name: "Alpha Metals", EntityType: domain.EntityManufacturer})
	store.AddCompany(domain.Company{ID: e.buyer, Name: "Beta Recycling", EntityType: domain.EntityRecycler})

	e.srv = httptest.NewServer(New(deals, passports, kpi, log, false).Routes())
	t.Cleanup(e.srv.Close)
	return e
}

func (e *env) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func (e *env) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *env) seedStream(t *testing.T) uuid.UUID {
	t.Helper()
	now := time.Now()
	mat := domain.Material{
		ID:               uuid.New(),
		CompanyID:        e.seller,
		FlowCategory:     domain.FlowWaste,
		MaterialCategory: "metal",
		MaterialSubtype:  "aluminum",
		PhysicalForm:     "shavings",
		Quantity:         12.5,
		Unit:             "tons",
		RecordedAt:       now,
	}
	e.store.AddMaterial(mat)
	ws := domain.WasteStream{
		ID:             uuid.New(),
		CompanyID:      e.seller,
		MaterialID:     &mat.ID,
		Classification: domain.ClassificationRecyclable,
		QualityGrade:   domain.GradeA,
		MonthlyVolume:  12.5,
		CreatedAt:      now,
	}
	e.store.AddWasteStream(ws)
	return ws.ID
}

func (e *env) seedDeal(t *testing.T, status domain.DealStatus, passportID *uuid.UUID) uuid.UUID {
	t.Helper()
	now := time.Now()
	d := &domain.Deal{
		ID:               uuid.New(),
		SellerCompanyID:  e.seller,
		BuyerCompanyID:   e.buyer,
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
	require.NoError(t, e.store.Deals().Create(context.Background(), d))
	return d.ID
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	resp := e.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestCreatePassportEndpoint(t *testing.T) {
	e := newEnv(t)
	wsID := e.seedStream(t)

	resp := e.post(t, "/passports", map[string]string{"waste_stream_id": wsID.String()})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decode[map[string]json.RawMessage](t, resp)
	var passport map[string]any
	require.NoError(t, json.Unmarshal(body["passport"], &passport))
	assert.Equal(t, "metal", passport["material_category"])
	assert.Equal(t, "unverified", passport["verification_status"])
	assert.Equal(t, float64(1), passport["quality_tier"])

	var stream map[string]any
	require.NoError(t, json.Unmarshal(body["waste_stream"], &stream))
	assert.Equal(t, passport["id"], stream["passport_id"])
}

func TestDealDecisionEndpoint(t *testing.T) {
	e := newEnv(t)
	dealID := e.seedDeal(t, domain.DealPendingSellerApproval, nil)

	resp := e.post(t, fmt.Sprintf("/deals/%s/decision", dealID),
		map[string]string{"actor_company_id": e.seller.String(), "action": "approve"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "pending_buyer_approval", body["status"])
}

func TestVerificationEndpoint(t *testing.T) {
	e := newEnv(t)
	wsID := e.seedStream(t)
	resp := e.post(t, "/passports", map[string]string{"waste_stream_id": wsID.String()})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]json.RawMessage](t, resp)
	var passport struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(created["passport"], &passport))

	resp = e.post(t, fmt.Sprintf("/passports/%s/verification", passport.ID),
		map[string]string{"method": "lab_test", "verified_by": "lab-east"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "verified", body["verification_status"])
	assert.Equal(t, float64(100), body["verification_score"])
}

func TestErrorStatusMapping(t *testing.T) {
	e := newEnv(t)
	activeDeal := e.seedDeal(t, domain.DealActive, nil)
	pendingSeller := e.seedDeal(t, domain.DealPendingSellerApproval, nil)

	tests := []struct {
		name   string
		path   string
		body   map[string]string
		status int
		code   string
	}{
		{
			"unknown deal is 404",
			fmt.Sprintf("/deals/%s/decision", uuid.New()),
			map[string]string{"actor_company_id": e.seller.String(), "action": "approve"},
			http.StatusNotFound, "not_found",
		},
		{
			"missing actor is 401",
			fmt.Sprintf("/deals/%s/decision", pendingSeller),
			map[string]string{"action": "approve"},
			http.StatusUnauthorized, "not_authenticated",
		},
		{
			"garbage actor is 401",
			fmt.Sprintf("/deals/%s/decision", pendingSeller),
			map[string]string{"actor_company_id": "not-a-uuid", "action": "approve"},
			http.StatusUnauthorized, "not_authenticated",
		},
		{
			"outsider is 403",
			fmt.Sprintf("/deals/%s/decision", pendingSeller),
			map[string]string{"actor_company_id": uuid.New().String(), "action": "approve"},
			http.StatusForbidden, "not_authorized",
		},
		{
			"finalized deal is 409",
			fmt.Sprintf("/deals/%s/decision", activeDeal),
			map[string]string{"actor_company_id": e.seller.String(), "action": "approve"},
			http.StatusConflict, "already_finalized",
		},
		{
			"out-of-turn approval is 409",
			fmt.Sprintf("/deals/%s/decision", pendingSeller),
			map[string]string{"actor_company_id": e.buyer.String(), "action": "approve"},
			http.StatusConflict, "invalid_transition",
		},
		{
			"unknown action is 400",
			fmt.Sprintf("/deals/%s/decision", pendingSeller),
			map[string]string{"actor_company_id": e.seller.String(), "action": "ponder"},
			http.StatusBadRequest, "validation",
		},
		{
			"unknown waste stream is 404",
			"/passports",
			map[string]string{"waste_stream_id": uuid.New().String()},
			http.StatusNotFound, "not_found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.post(t, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode[errorBody](t, resp)
			assert.Equal(t, tt.code, string(body.Error.Code))
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestComputeKPIEndpoint(t *testing.T) {
	e := newEnv(t)
	recorded := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	e.store.AddMaterial(domain.Material{
		ID: uuid.New(), CompanyID: e.seller, FlowCategory: domain.FlowInput,
		Quantity: 100, RecordedAt: recorded,
	})

	resp := e.post(t, fmt.Sprintf("/companies/%s/kpi", e.seller),
		map[string]string{"period": "2026-03-17T00:00:00Z"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, float64(100), body["total_input"])
	assert.Equal(t, float64(100), body["mci_score"])
	assert.Nil(t, body["waste_to_value_ratio"])
}

func TestAuditTrailEndpoints(t *testing.T) {
	e := newEnv(t)
	wsID := e.seedStream(t)
	resp := e.post(t, "/passports", map[string]string{"waste_stream_id": wsID.String()})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]json.RawMessage](t, resp)
	var passport struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(created["passport"], &passport))

	resp = e.get(t, fmt.Sprintf("/passports/%s/events", passport.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := decode[map[string][]map[string]any](t, resp)
	require.Len(t, events["events"], 1)
	assert.Equal(t, "creation", events["events"][0]["event_type"])

	resp = e.get(t, fmt.Sprintf("/passports/%s/transfers", passport.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	transfers := decode[map[string][]map[string]any](t, resp)
	assert.Empty(t, transfers["transfers"])
}

func TestMalformedIDsAreBadRequests(t *testing.T) {
	e := newEnv(t)

	resp := e.post(t, "/deals/not-a-uuid/decision",
		map[string]string{"actor_company_id": e.seller.String(), "action": "approve"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = e.get(t, "/passports/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
