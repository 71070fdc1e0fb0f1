// Package memory provides an in-memory ports.DataStore. It mirrors the
// postgres adapter closely enough that services can be exercised in tests
// without a database: transactions are snapshot-and-swap under one coarse
// lock, which also serializes concurrent units of work the way row locks do.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"econexus/internal/apperrors"
	"econexus/internal/domain"
	"econexus/internal/ports"
)

type state struct {
	companies     map[uuid.UUID]domain.Company
	materials     map[uuid.UUID]domain.Material
	wasteStreams  map[uuid.UUID]domain.WasteStream
	deals         map[uuid.UUID]domain.Deal
	passports     map[uuid.UUID]domain.MaterialPassport
	events        []domain.PassportEvent
	transfers     []domain.PassportTransfer
	documents     map[uuid.UUID]domain.PassportDocument
	notifications []domain.Notification
	snapshots     []domain.KPISnapshot
}

func newState() *state {
	return &state{
		companies:    map[uuid.UUID]domain.Company{},
		materials:    map[uuid.UUID]domain.Material{},
		wasteStreams: map[uuid.UUID]domain.WasteStream{},
		deals:        map[uuid.UUID]domain.Deal{},
		passports:    map[uuid.UUID]domain.MaterialPassport{},
		documents:    map[uuid.UUID]domain.PassportDocument{},
	}
}

func (s *state) clone() *state {
	c := &state{
		companies:     make(map[uuid.UUID]domain.Company, len(s.companies)),
		materials:     make(map[uuid.UUID]domain.Material, len(s.materials)),
		wasteStreams:  make(map[uuid.UUID]domain.WasteStream, len(s.wasteStreams)),
		deals:         make(map[uuid.UUID]domain.Deal, len(s.deals)),
		passports:     make(map[uuid.UUID]domain.MaterialPassport, len(s.passports)),
		documents:     make(map[uuid.UUID]domain.PassportDocument, len(s.documents)),
		events:        append([]domain.PassportEvent(nil), s.events...),
		transfers:     append([]domain.PassportTransfer(nil), s.transfers...),
		notifications: append([]domain.Notification(nil), s.notifications...),
		snapshots:     append([]domain.KPISnapshot(nil), s.snapshots...),
	}
	for k, v := range s.companies {
		c.companies[k] = v
	}
	for k, v := range s.materials {
		c.materials[k] = v
	}
	for k, v := range s.wasteStreams {
		c.wasteStreams[k] = v
	}
	for k, v := range s.deals {
		c.deals[k] = v
	}
	for k, v := range s.passports {
		c.passports[k] = v
	}
	for k, v := range s.documents {
		c.documents[k] = v
	}
	return c
}

// Store is the in-memory DataStore.
type Store struct {
	mu sync.Mutex
	st *state

	// FailTransferAppend, when set, makes transfer ledger appends fail. Used
	// to exercise settlement rollback.
	FailTransferAppend error
}

func New() *Store {
	return &Store{st: newState()}
}

// view resolves reads/writes either against a transaction snapshot or, when
// st is nil, against the live state under the store lock.
type view struct {
	s  *Store
	st *state // nil outside transactions
}

func (v *view) enter() (*state, func()) {
	if v.st != nil {
		return v.st, func() {}
	}
	v.s.mu.Lock()
	return v.s.st, v.s.mu.Unlock
}

func (s *Store) RunInTx(ctx context.Context, fn func(ports.Store) error) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeTimeout, "transaction aborted")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.st.clone()
	tx := &txStore{view: view{s: s, st: snap}}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeTimeout, "transaction aborted before commit")
	}
	s.st = snap
	return nil
}

type txStore struct{ view view }

func (t *txStore) Companies() ports.CompanyRepository          { return &companyRepo{v: &t.view} }
func (t *txStore) Materials() ports.MaterialRepository         { return &materialRepo{v: &t.view} }
func (t *txStore) WasteStreams() ports.WasteStreamRepository   { return &wasteStreamRepo{v: &t.view} }
func (t *txStore) Deals() ports.DealRepository                 { return &dealRepo{v: &t.view} }
func (t *txStore) Passports() ports.PassportRepository         { return &passportRepo{v: &t.view} }
func (t *txStore) Events() ports.PassportEventRepository       { return &eventRepo{v: &t.view} }
func (t *txStore) Transfers() ports.PassportTransferRepository { return &transferRepo{v: &t.view} }
func (t *txStore) Documents() ports.PassportDocumentRepository { return &documentRepo{v: &t.view} }
func (t *txStore) Notifications() ports.NotificationRepository { return &notificationRepo{v: &t.view} }
func (t *txStore) KPI() ports.KPIRepository                    { return &kpiRepo{v: &t.view} }

func (s *Store) Companies() ports.CompanyRepository          { return &companyRepo{v: &view{s: s}} }
func (s *Store) Materials() ports.MaterialRepository         { return &materialRepo{v: &view{s: s}} }
func (s *Store) WasteStreams() ports.WasteStreamRepository   { return &wasteStreamRepo{v: &view{s: s}} }
func (s *Store) Deals() ports.DealRepository                 { return &dealRepo{v: &view{s: s}} }
func (s *Store) Passports() ports.PassportRepository         { return &passportRepo{v: &view{s: s}} }
func (s *Store) Events() ports.PassportEventRepository       { return &eventRepo{v: &view{s: s}} }
func (s *Store) Transfers() ports.PassportTransferRepository { return &transferRepo{v: &view{s: s}} }
func (s *Store) Documents() ports.PassportDocumentRepository { return &documentRepo{v: &view{s: s}} }
func (s *Store) Notifications() ports.NotificationRepository { return &notificationRepo{v: &view{s: s}} }
func (s *Store) KPI() ports.KPIRepository                    { return &kpiRepo{v: &view{s: s}} }

// Seeding helpers for tests.

func (s *Store) AddCompany(c domain.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.companies[c.ID] = c
}

func (s *Store) AddMaterial(m domain.Material) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.materials[m.ID] = m
}

func (s *Store) AddWasteStream(w domain.WasteStream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.wasteStreams[w.ID] = w
}

// AllNotifications returns a copy of the outbox in enqueue order.
func (s *Store) AllNotifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification(nil), s.st.notifications...)
}

// Repositories.

type companyRepo struct{ v *view }

func (r *companyRepo) Get(_ context.Context, id uuid.UUID) (*domain.Company, error) {
	st, done := r.v.enter()
	defer done()
	c, ok := st.companies[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "company "+id.String()+" not found")
	}
	out := c
	return &out, nil
}

type materialRepo struct{ v *view }

func (r *materialRepo) Get(_ context.Context, id uuid.UUID) (*domain.Material, error) {
	st, done := r.v.enter()
	defer done()
	m, ok := st.materials[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "material "+id.String()+" not found")
	}
	out := m
	return &out, nil
}

func (r *materialRepo) ListForPeriod(_ context.Context, companyID uuid.UUID, from, to time.Time) ([]domain.Material, error) {
	st, done := r.v.enter()
	defer done()
	var out []domain.Material
	for _, m := range st.materials {
		if m.CompanyID == companyID && !m.RecordedAt.Before(from) && m.RecordedAt.Before(to) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

type wasteStreamRepo struct{ v *view }

func (r *wasteStreamRepo) Get(_ context.Context, id uuid.UUID) (*domain.WasteStream, error) {
	st, done := r.v.enter()
	defer done()
	w, ok := st.wasteStreams[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "waste stream "+id.String()+" not found")
	}
	out := w
	return &out, nil
}

func (r *wasteStreamRepo) ListForPeriod(_ context.Context, companyID uuid.UUID, from, to time.Time) ([]domain.WasteStream, error) {
	st, done := r.v.enter()
	defer done()
	var out []domain.WasteStream
	for _, w := range st.wasteStreams {
		if w.CompanyID == companyID && !w.CreatedAt.Before(from) && w.CreatedAt.Before(to) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *wasteStreamRepo) SetPassport(_ context.Context, id, passportID uuid.UUID, processability, recyclable int) error {
	st, done := r.v.enter()
	defer done()
	w, ok := st.wasteStreams[id]
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, "waste stream "+id.String()+" not found")
	}
	pid := passportID
	w.PassportID = &pid
	p, rc := processability, recyclable
	w.ProcessabilityScore = &p
	w.RecyclableScore = &rc
	st.wasteStreams[id] = w
	return nil
}

type dealRepo struct{ v *view }

func (r *dealRepo) Create(_ context.Context, deal *domain.Deal) error {
	st, done := r.v.enter()
	defer done()
	st.deals[deal.ID] = *deal
	return nil
}

func (r *dealRepo) Get(_ context.Context, id uuid.UUID) (*domain.Deal, error) {
	st, done := r.v.enter()
	defer done()
	d, ok := st.deals[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "deal "+id.String()+" not found")
	}
	out := d
	return &out, nil
}

// GetForUpdate has the same semantics as Get here: RunInTx already holds the
// store lock for the whole unit of work.
func (r *dealRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	return r.Get(ctx, id)
}

func (r *dealRepo) Update(_ context.Context, deal *domain.Deal, expect domain.DealStatus) error {
	st, done := r.v.enter()
	defer done()
	cur, ok := st.deals[deal.ID]
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, "deal "+deal.ID.String()+" not found")
	}
	if cur.Status != expect {
		return apperrors.New(apperrors.CodeInternal, "deal "+deal.ID.String()+" changed concurrently")
	}
	st.deals[deal.ID] = *deal
	return nil
}

type passportRepo struct{ v *view }

func (r *passportRepo) Create(_ context.Context, p *domain.MaterialPassport) error {
	st, done := r.v.enter()
	defer done()
	st.passports[p.ID] = *p
	return nil
}

func (r *passportRepo) Get(_ context.Context, id uuid.UUID) (*domain.MaterialPassport, error) {
	st, done := r.v.enter()
	defer done()
	p, ok := st.passports[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "passport "+id.String()+" not found")
	}
	out := p
	return &out, nil
}

func (r *passportRepo) Update(_ context.Context, p *domain.MaterialPassport) error {
	st, done := r.v.enter()
	defer done()
	if _, ok := st.passports[p.ID]; !ok {
		return apperrors.New(apperrors.CodeNotFound, "passport "+p.ID.String()+" not found")
	}
	st.passports[p.ID] = *p
	return nil
}

type eventRepo struct{ v *view }

func (r *eventRepo) Append(_ context.Context, e *domain.PassportEvent) error {
	st, done := r.v.enter()
	defer done()
	for _, have := range st.events {
		if have.PassportID == e.PassportID && have.Type == e.Type && have.Ref == e.Ref {
			return nil // already recorded
		}
	}
	st.events = append(st.events, *e)
	return nil
}

func (r *eventRepo) ListByPassport(_ context.Context, passportID uuid.UUID) ([]domain.PassportEvent, error) {
	st, done := r.v.enter()
	defer done()
	var out []domain.PassportEvent
	for _, e := range st.events {
		if e.PassportID == passportID {
			out = append(out, e)
		}
	}
	return out, nil
}

type transferRepo struct{ v *view }

func (r *transferRepo) Append(_ context.Context, t *domain.PassportTransfer) error {
	if err := r.v.s.FailTransferAppend; err != nil {
		return err
	}
	st, done := r.v.enter()
	defer done()
	st.transfers = append(st.transfers, *t)
	return nil
}

func (r *transferRepo) ListByPassport(_ context.Context, passportID uuid.UUID) ([]domain.PassportTransfer, error) {
	st, done := r.v.enter()
	defer done()
	var out []domain.PassportTransfer
	for _, t := range st.transfers {
		if t.PassportID == passportID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *transferRepo) ListByDeal(_ context.Context, dealID uuid.UUID) ([]domain.PassportTransfer, error) {
	st, done := r.v.enter()
	defer done()
	var out []domain.PassportTransfer
	for _, t := range st.transfers {
		if t.DealID == dealID {
			out = append(out, t)
		}
	}
	return out, nil
}

type documentRepo struct{ v *view }

func (r *documentRepo) Create(_ context.Context, d *domain.PassportDocument) error {
	st, done := r.v.enter()
	defer done()
	st.documents[d.ID] = *d
	return nil
}

func (r *documentRepo) ListByPassport(_ context.Context, passportID uuid.UUID) ([]domain.PassportDocument, error) {
	st, done := r.v.enter()
	defer done()
	var out []domain.PassportDocument
	for _, d := range st.documents {
		if d.PassportID == passportID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *documentRepo) CascadePending(_ context.Context, passportID uuid.UUID, status domain.VerificationStatus) (int, error) {
	st, done := r.v.enter()
	defer done()
	n := 0
	for id, d := range st.documents {
		if d.PassportID == passportID && d.VerificationStatus == domain.VerificationPending {
			d.VerificationStatus = status
			st.documents[id] = d
			n++
		}
	}
	return n, nil
}

type notificationRepo struct{ v *view }

func (r *notificationRepo) Enqueue(_ context.Context, n *domain.Notification) error {
	st, done := r.v.enter()
	defer done()
	st.notifications = append(st.notifications, *n)
	return nil
}

// claimRetryAfter is how long a claimed but unfinished row stays invisible
// before another claimer may pick it up.
const claimRetryAfter = 30 * time.Second

func (r *notificationRepo) ClaimNext(_ context.Context) (*domain.Notification, bool, error) {
	st, done := r.v.enter()
	defer done()
	now := time.Now()
	for i := range st.notifications {
		n := &st.notifications[i]
		if n.DeliveredAt != nil {
			continue
		}
		if n.ClaimedAt != nil && now.Sub(*n.ClaimedAt) < claimRetryAfter {
			continue
		}
		claimed := now
		n.ClaimedAt = &claimed
		out := *n
		return &out, true, nil
	}
	return nil, false, nil
}

func (r *notificationRepo) MarkDelivered(_ context.Context, id uuid.UUID) error {
	st, done := r.v.enter()
	defer done()
	for i := range st.notifications {
		if st.notifications[i].ID == id {
			now := time.Now()
			st.notifications[i].DeliveredAt = &now
			return nil
		}
	}
	return apperrors.New(apperrors.CodeNotFound, "notification "+id.String()+" not found")
}

func (r *notificationRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	st, done := r.v.enter()
	defer done()
	for i := range st.notifications {
		if st.notifications[i].ID == id {
			st.notifications[i].Attempts++
			st.notifications[i].LastError = reason
			return nil
		}
	}
	return apperrors.New(apperrors.CodeNotFound, "notification "+id.String()+" not found")
}

type kpiRepo struct{ v *view }

func (r *kpiRepo) Insert(_ context.Context, s *domain.KPISnapshot) error {
	st, done := r.v.enter()
	defer done()
	st.snapshots = append(st.snapshots, *s)
	return nil
}

func (r *kpiRepo) ListByCompany(_ context.Context, companyID uuid.UUID) ([]domain.KPISnapshot, error) {
	st, done := r.v.enter()
	defer done()
	var out []domain.KPISnapshot
	for _, s := range st.snapshots {
		if s.CompanyID == companyID {
			out = append(out, s)
		}
	}
	return out, nil
}
