package services

import (
	"crypto/ed25519"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophqms/internal/logging"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/dmitrijs2005/gophqms/internal/signature"
	"github.com/dmitrijs2005/gophqms/internal/workflow"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2026, 6, 2, 9, 30, 0, 0, time.UTC)

func fixedClock() Clock { return func() time.Time { return testNow } }

type testEnv struct {
	s    *store
	db   *sql.DB
	mock sqlmock.Sqlmock
	rm   *fakeRepoManager
	v    *workflow.Validator
	ev   *fakeEvidence
	priv ed25519.PrivateKey
	keys signature.KeyConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock := newMockDB(t)
	s := newStore()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	keys, err := signature.KeyConfigFromPublicKey(pub)
	require.NoError(t, err)

	return &testEnv{
		s:    s,
		db:   db,
		mock: mock,
		rm:   &fakeRepoManager{s: s},
		v:    workflow.NewValidator(workflow.NewRegistry()),
		ev:   &fakeEvidence{present: map[string]bool{}},
		priv: priv,
		keys: keys,
	}
}

func (e *testEnv) integrity(keys signature.KeyConfig) *IntegrityService {
	svc := NewIntegrityService(e.db, e.rm, signature.NewVerifier(keys), logging.Discard())
	svc.now = fixedClock()
	return svc
}

func (e *testEnv) ledger() *LedgerService {
	svc := NewLedgerService(e.db, e.rm, logging.Discard())
	svc.now = fixedClock()
	return svc
}

func (e *testEnv) workflow() *WorkflowService {
	svc := NewWorkflowService(e.db, e.rm, e.v, e.ev, logging.Discard())
	svc.now = fixedClock()
	return svc
}

func (e *testEnv) esign() *EsignService {
	svc := NewEsignService(e.db, e.rm, e.v, e.ev, logging.Discard())
	svc.now = fixedClock()
	return svc
}

func (e *testEnv) records() *RecordService {
	svc := NewRecordService(e.db, e.rm, e.v, e.ev, logging.Discard())
	svc.now = fixedClock()
	return svc
}

// addActor stores an actor with a cheap bcrypt credential.
func (e *testEnv) addActor(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	id := uuid.NewString()
	e.s.mu.Lock()
	e.s.actors[id] = &models.Actor{ID: id, UserName: "user-" + id[:8], Scheme: "bcrypt", Verifier: hash, CreatedAt: testNow}
	e.s.mu.Unlock()
	return id
}

func (e *testEnv) addTask(entityID, kind string, completed bool) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	e.s.tasks = append(e.s.tasks, &models.Task{ID: uuid.NewString(), EntityID: entityID, Kind: kind, Completed: completed})
}

const capaFields = `{"title":"Burr on housing","problemStatement":"Sharp edge found at final inspection"}`
