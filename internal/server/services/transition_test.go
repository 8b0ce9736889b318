package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/dmitrijs2005/gophqms/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_Commits(t *testing.T) {
	e := newTestEnv(t)
	expectTx(e.mock, 1, 0)
	rec := e.s.addRecord("CAPA", "DRAFT", capaFields)

	out, err := e.workflow().Transition(context.Background(), TransitionInput{
		EntityType: "capa", EntityID: rec.ID, To: "open", Reason: " triaged ", ActorID: "qa",
	})
	require.NoError(t, err)
	assert.Equal(t, "OPEN", out.State)
	assert.Equal(t, int64(2), out.RecordVersion)
	assert.Nil(t, out.ClosedAt)

	h, err := e.records().History(context.Background(), "CAPA", rec.ID)
	require.NoError(t, err)
	require.Len(t, h, 1)
	assert.Equal(t, models.ActionTransitioned, h[0].Action)
	assert.Equal(t, "DRAFT", *h[0].FromState)
	assert.Equal(t, "OPEN", *h[0].ToState)
	assert.Equal(t, "triaged", h[0].Reason)
	assert.Equal(t, "qa", h[0].ActorID)
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestTransition_InputValidation(t *testing.T) {
	e := newTestEnv(t)
	rec := e.s.addRecord("CAPA", "DRAFT", capaFields)

	tests := []struct {
		name  string
		in    TransitionInput
		field string
	}{
		{"reason", TransitionInput{EntityType: "CAPA", EntityID: rec.ID, To: "OPEN", Reason: "  ", ActorID: "qa"}, "reason"},
		{"target", TransitionInput{EntityType: "CAPA", EntityID: rec.ID, Reason: "x", ActorID: "qa"}, "to"},
		{"actor", TransitionInput{EntityType: "CAPA", EntityID: rec.ID, To: "OPEN", Reason: "x"}, "actorId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.workflow().Transition(context.Background(), tt.in)
			var ve *common.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Equal(t, "DRAFT", e.s.record(rec.ID).State)
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestTransition_IllegalEdge(t *testing.T) {
	e := newTestEnv(t)
	expectTx(e.mock, 0, 1)
	rec := e.s.addRecord("CAPA", "DRAFT", capaFields)

	_, err := e.workflow().Transition(context.Background(), TransitionInput{
		EntityType: "CAPA", EntityID: rec.ID, To: "CLOSED", Reason: "skip", ActorID: "qa",
	})
	var ite *workflow.IllegalTransitionError
	require.True(t, errors.As(err, &ite), "got %v", err)
	assert.Equal(t, "DRAFT", ite.From)
	assert.Equal(t, []string{"OPEN", "CANCELLED"}, ite.Allowed)
	assert.ErrorIs(t, err, common.ErrIllegalTransition)

	assert.Equal(t, "DRAFT", e.s.record(rec.ID).State)
	assert.Empty(t, e.s.actions(rec.ID))
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestTransition_GatedEdgeNeedsEsign(t *testing.T) {
	e := newTestEnv(t)
	expectTx(e.mock, 0, 1)
	rec := e.s.addRecord("CAPA", "PLAN_APPROVAL", capaFields)

	_, err := e.workflow().Transition(context.Background(), TransitionInput{
		EntityType: "CAPA", EntityID: rec.ID, To: "IMPLEMENTATION", Reason: "go", ActorID: "qa",
	})
	var pe *workflow.PreconditionError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, workflow.ReasonEsignRequired, pe.Reason)
	assert.Equal(t, []string{"IMPLEMENTATION", "RCA_COMPLETE", "CANCELLED"}, pe.Allowed)
	assert.Equal(t, "PLAN_APPROVAL", e.s.record(rec.ID).State)
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestTransition_DocumentBodyRequired(t *testing.T) {
	e := newTestEnv(t)
	expectTx(e.mock, 1, 1)
	empty := e.s.addRecord("DOCUMENT", "DRAFT", `{"title":"Cleaning SOP","versionMajor":1,"versionMinor":0,"body":""}`)
	full := e.s.addRecord("DOCUMENT", "DRAFT", `{"title":"Cleaning SOP","versionMajor":1,"versionMinor":0,"body":"Wipe down."}`)

	_, err := e.workflow().Transition(context.Background(), TransitionInput{
		EntityType: "DOCUMENT", EntityID: empty.ID, To: "IN_REVIEW", Reason: "ready", ActorID: "author",
	})
	var pe *workflow.PreconditionError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, workflow.ReasonEmptyBody, pe.Reason)

	out, err := e.workflow().Transition(context.Background(), TransitionInput{
		EntityType: "DOCUMENT", EntityID: full.ID, To: "IN_REVIEW", Reason: "ready", ActorID: "author",
	})
	require.NoError(t, err)
	assert.Equal(t, "IN_REVIEW", out.State)
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestTransition_LosesRaceToConcurrentWriter(t *testing.T) {
	e := newTestEnv(t)
	expectTx(e.mock, 0, 1)
	rec := e.s.addRecord("CAPA", "OPEN", capaFields)
	e.s.beforeUpdateState = func(r *models.Record) { r.State = "CANCELLED" }

	_, err := e.workflow().Transition(context.Background(), TransitionInput{
		EntityType: "CAPA", EntityID: rec.ID, To: "INVESTIGATION", Reason: "start", ActorID: "qa",
	})
	var ite *workflow.IllegalTransitionError
	require.True(t, errors.As(err, &ite), "got %v", err)
	assert.Equal(t, "CANCELLED", ite.From)
	assert.Equal(t, "INVESTIGATION", ite.To)
	assert.Empty(t, ite.Allowed)
	assert.Empty(t, e.s.actions(rec.ID))
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestTransition_HistoryFailureRollsBack(t *testing.T) {
	e := newTestEnv(t)
	expectTx(e.mock, 0, 1)
	rec := e.s.addRecord("CAPA", "DRAFT", capaFields)
	boom := errors.New("disk full")
	e.s.historyErr = boom

	_, err := e.workflow().Transition(context.Background(), TransitionInput{
		EntityType: "CAPA", EntityID: rec.ID, To: "OPEN", Reason: "triaged", ActorID: "qa",
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestAllowedTargets(t *testing.T) {
	e := newTestEnv(t)
	rec := e.s.addRecord("CHANGE_REQUEST", "APPROVAL", `{"title":"New supplier","description":"Qualify vendor B"}`)

	got, err := e.workflow().AllowedTargets(context.Background(), "CHANGE_REQUEST", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"IMPLEMENTATION", "IMPACT_ASSESSMENT", "REJECTED"}, got)
}
