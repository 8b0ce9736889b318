package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/dbx"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/actors"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/artifacts"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/history"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/localsignatures"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/records"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/sequences"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/signaturerequests"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/tasks"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/waivers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// store is an in-memory stand-in for the database shared by the fake repos.
type store struct {
	mu sync.Mutex

	records    map[string]*models.Record
	seq        map[string]int64
	requests   []*models.SignatureRequest
	artifacts  []*models.SignatureArtifact
	localSigs  []*models.LocalSignature
	history    []*models.HistoryEntry
	tasks      []*models.Task
	waivers    map[string]*models.Waiver
	atts       []*models.Attachment
	actors     map[string]*models.Actor
	verifyRuns int

	updateStateErr error
	historyErr     error
	// beforeUpdateState runs under the lock just before the conditional
	// state update, to simulate a concurrent writer.
	beforeUpdateState func(r *models.Record)
}

func newStore() *store {
	return &store{
		records: map[string]*models.Record{},
		seq:     map[string]int64{},
		waivers: map[string]*models.Waiver{},
		actors:  map[string]*models.Actor{},
	}
}

func copyRecord(r *models.Record) *models.Record {
	c := *r
	return &c
}

func (s *store) addRecord(entityType, state string, fields string) *models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	r := &models.Record{
		ID:            uuid.NewString(),
		EntityType:    entityType,
		RecordNumber:  "X-2026-0001",
		State:         state,
		Fields:        json.RawMessage(fields),
		RecordVersion: 1,
		CreatedBy:     "seed",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.records[r.ID] = r
	return copyRecord(r)
}

func (s *store) record(id string) *models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRecord(s.records[id])
}

func (s *store) actions(entityID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, h := range s.history {
		if h.EntityID == entityID {
			out = append(out, h.Action)
		}
	}
	return out
}

type fakeRecords struct{ s *store }

func (f *fakeRecords) Create(ctx context.Context, rec *models.Record) (*models.Record, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c := copyRecord(rec)
	c.ID = uuid.NewString()
	c.UpdatedAt = c.CreatedAt
	f.s.records[c.ID] = c
	return copyRecord(c), nil
}

func (f *fakeRecords) GetByID(ctx context.Context, id string) (*models.Record, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.records[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyRecord(r), nil
}

func (f *fakeRecords) List(ctx context.Context, entityType, state string) ([]*models.Record, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.Record
	for _, r := range f.s.records {
		if r.EntityType == entityType && (state == "" || r.State == state) {
			out = append(out, copyRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRecords) UpdateFields(ctx context.Context, id string, fields json.RawMessage, expectedVersion int64, at time.Time) (*models.Record, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.records[id]
	if !ok || r.RecordVersion != expectedVersion {
		return nil, common.ErrVersionConflict
	}
	r.Fields = fields
	r.RecordVersion++
	r.UpdatedAt = at
	return copyRecord(r), nil
}

func (f *fakeRecords) UpdateState(ctx context.Context, ch models.StateChange) (*models.Record, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.updateStateErr != nil {
		return nil, f.s.updateStateErr
	}
	r, ok := f.s.records[ch.ID]
	if ok && f.s.beforeUpdateState != nil {
		f.s.beforeUpdateState(r)
	}
	if !ok || r.State != ch.From {
		return nil, common.ErrVersionConflict
	}
	r.State = ch.To
	r.RecordVersion++
	r.UpdatedAt = ch.At
	if ch.SetClosedAt {
		at := ch.At
		r.ClosedAt = &at
	}
	if ch.SetFinalizedAt {
		at := ch.At
		r.FinalizedAt = &at
	}
	return copyRecord(r), nil
}

type fakeSequences struct{ s *store }

func (f *fakeSequences) Next(ctx context.Context, key string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.seq[key]++
	return f.s.seq[key], nil
}

type fakeRequests struct{ s *store }

func (f *fakeRequests) Create(ctx context.Context, req *models.SignatureRequest) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c := *req
	f.s.requests = append(f.s.requests, &c)
	return nil
}

func (f *fakeRequests) GetByID(ctx context.Context, id string) (*models.SignatureRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.requests {
		if r.ID == id {
			c := *r
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRequests) FindByCorrelation(ctx context.Context, entityID, correlationID string) (*models.SignatureRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.requests {
		if r.EntityID == entityID && r.CorrelationID != nil && *r.CorrelationID == correlationID {
			c := *r
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRequests) ListPending(ctx context.Context, entityID string) ([]*models.SignatureRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.SignatureRequest
	for _, r := range f.s.requests {
		if r.EntityID == entityID && r.Status == models.RequestPending {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeRequests) MarkSigned(ctx context.Context, id, artifactID string, at time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.requests {
		if r.ID == id && r.Status == models.RequestPending {
			r.Status = models.RequestSigned
			r.ArtifactID = &artifactID
			r.SignedAt = &at
			return nil
		}
	}
	return common.ErrAlreadySigned
}

type fakeArtifacts struct{ s *store }

func (f *fakeArtifacts) Create(ctx context.Context, a *models.SignatureArtifact) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c := *a
	f.s.artifacts = append(f.s.artifacts, &c)
	return nil
}

func (f *fakeArtifacts) GetByID(ctx context.Context, id string) (*models.SignatureArtifact, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, a := range f.s.artifacts {
		if a.ID == id {
			c := *a
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeArtifacts) GetLatest(ctx context.Context, entityID string) (*models.SignatureArtifact, error) {
	list, _ := f.ListByEntity(ctx, entityID)
	if len(list) == 0 {
		return nil, common.ErrorNotFound
	}
	return list[0], nil
}

func (f *fakeArtifacts) ListByEntity(ctx context.Context, entityID string) ([]*models.SignatureArtifact, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.SignatureArtifact
	for _, a := range f.s.artifacts {
		if a.EntityID == entityID {
			c := *a
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SignedAt.After(out[j].SignedAt) })
	return out, nil
}

func (f *fakeArtifacts) UpdateVerification(ctx context.Context, id, status, reason string, at time.Time) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, a := range f.s.artifacts {
		if a.ID != id {
			continue
		}
		if a.VerificationStatus != nil && *a.VerificationStatus == status && derefOr(a.VerificationReason, "") == reason {
			return false, nil
		}
		f.s.verifyRuns++
		a.VerificationStatus, a.VerificationReason, a.VerifiedAt = &status, strPtr(reason), &at
		return true, nil
	}
	return false, nil
}

type fakeLocalSigs struct{ s *store }

func (f *fakeLocalSigs) Create(ctx context.Context, sig *models.LocalSignature) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c := *sig
	f.s.localSigs = append(f.s.localSigs, &c)
	return nil
}

func (f *fakeLocalSigs) ListByEntity(ctx context.Context, entityID string) ([]*models.LocalSignature, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.LocalSignature
	for _, sig := range f.s.localSigs {
		if sig.EntityID == entityID {
			c := *sig
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeHistory struct{ s *store }

func (f *fakeHistory) Append(ctx context.Context, e *models.HistoryEntry) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.historyErr != nil {
		return f.s.historyErr
	}
	c := *e
	f.s.history = append(f.s.history, &c)
	return nil
}

func (f *fakeHistory) ListByEntity(ctx context.Context, entityID string) ([]*models.HistoryEntry, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.HistoryEntry
	for _, h := range f.s.history {
		if h.EntityID == entityID {
			c := *h
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeTasks struct{ s *store }

func (f *fakeTasks) Create(ctx context.Context, t *models.Task) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c := *t
	f.s.tasks = append(f.s.tasks, &c)
	return nil
}

func (f *fakeTasks) Complete(ctx context.Context, entityID, taskID string, at time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, t := range f.s.tasks {
		if t.ID == taskID && t.EntityID == entityID && !t.Completed {
			t.Completed = true
			t.CompletedAt = &at
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeTasks) ListByEntity(ctx context.Context, entityID string) ([]*models.Task, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.Task
	for _, t := range f.s.tasks {
		if t.EntityID == entityID {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeWaivers struct{ s *store }

func (f *fakeWaivers) Upsert(ctx context.Context, w *models.Waiver) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c := *w
	f.s.waivers[w.EntityID] = &c
	return nil
}

func (f *fakeWaivers) Get(ctx context.Context, entityID string) (*models.Waiver, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	w, ok := f.s.waivers[entityID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *w
	return &c, nil
}

type fakeAttachments struct{ s *store }

func (f *fakeAttachments) Create(ctx context.Context, a *models.Attachment) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c := *a
	f.s.atts = append(f.s.atts, &c)
	return nil
}

func (f *fakeAttachments) ListByEntity(ctx context.Context, entityID string) ([]*models.Attachment, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.Attachment
	for _, a := range f.s.atts {
		if a.EntityID == entityID {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeActors struct{ s *store }

func (f *fakeActors) Create(ctx context.Context, a *models.Actor) (*models.Actor, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, existing := range f.s.actors {
		if existing.UserName == a.UserName {
			return nil, common.ErrAlreadyExists
		}
	}
	c := *a
	c.ID = uuid.NewString()
	f.s.actors[c.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeActors) GetByID(ctx context.Context, id string) (*models.Actor, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	a, ok := f.s.actors[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeActors) GetByUserName(ctx context.Context, userName string) (*models.Actor, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, a := range f.s.actors {
		if a.UserName == userName {
			c := *a
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeRepoManager struct{ s *store }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Records(dbx.DBTX) records.Repository         { return &fakeRecords{m.s} }
func (m *fakeRepoManager) Sequences(dbx.DBTX) sequences.Repository     { return &fakeSequences{m.s} }
func (m *fakeRepoManager) SignatureRequests(dbx.DBTX) signaturerequests.Repository {
	return &fakeRequests{m.s}
}
func (m *fakeRepoManager) Artifacts(dbx.DBTX) artifacts.Repository { return &fakeArtifacts{m.s} }
func (m *fakeRepoManager) LocalSignatures(dbx.DBTX) localsignatures.Repository {
	return &fakeLocalSigs{m.s}
}
func (m *fakeRepoManager) History(dbx.DBTX) history.Repository         { return &fakeHistory{m.s} }
func (m *fakeRepoManager) Tasks(dbx.DBTX) tasks.Repository             { return &fakeTasks{m.s} }
func (m *fakeRepoManager) Waivers(dbx.DBTX) waivers.Repository         { return &fakeWaivers{m.s} }
func (m *fakeRepoManager) Attachments(dbx.DBTX) attachments.Repository { return &fakeAttachments{m.s} }
func (m *fakeRepoManager) Actors(dbx.DBTX) actors.Repository           { return &fakeActors{m.s} }

// newMockDB returns a sqlmock database that accepts any number of
// transactions, for tests whose repositories are fakes.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// expectTx registers n transactions that end with the given outcome.
func expectTx(mock sqlmock.Sqlmock, commits, rollbacks int) {
	for i := 0; i < commits; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
	for i := 0; i < rollbacks; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}
}

type fakeEvidence struct {
	enabled bool
	present map[string]bool
	err     error
}

func (f *fakeEvidence) Enabled() bool { return f.enabled }

func (f *fakeEvidence) PresignPut(ctx context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://objects.example/" + key + "?signed", nil
}

func (f *fakeEvidence) Exists(ctx context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.present[key], nil
}
