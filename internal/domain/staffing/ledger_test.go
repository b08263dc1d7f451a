package staffing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsched/medsched/internal/domain/roster"
	"github.com/medsched/medsched/internal/platform/apperr"
)

// ledgerFixture has Monday consultation units for Cardiology (AM and PM) and
// a Monday AM consultation unit for Surgery.
func ledgerFixture(t *testing.T) (*fixture, *WorkUnit, *WorkUnit, *WorkUnit) {
	t.Helper()
	f := newFixture(t)
	f.addRecurring(f.drA, f.cardio, nil, time.Monday, roster.PeriodFullDay)
	f.addRecurring(f.drB, f.surgery, nil, time.Monday, roster.PeriodAM)
	f.regenerate(t, "2026-03-02", "2026-03-08")
	return f,
		f.unit(f.cardio, "2026-03-02", roster.PeriodAM, nil),
		f.unit(f.cardio, "2026-03-02", roster.PeriodPM, nil),
		f.unit(f.surgery, "2026-03-02", roster.PeriodAM, nil)
}

func TestCreateAssignment_Secretary(t *testing.T) {
	f, am, _, _ := ledgerFixture(t)

	a, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: am.ID, StaffID: f.sec1.ID, RoleID: &f.role})
	require.NoError(t, err)

	assert.Equal(t, AssignSecretary, a.Kind)
	assert.Equal(t, OriginManual, a.Origin)
	assert.Equal(t, StatusProposed, a.Status)
	assert.Equal(t, am.ID, a.WorkUnitID.UUID)
	assert.Equal(t, f.role, *a.RoleID)
	assert.Contains(t, f.store.assignments, a.ID)
}

func TestCreateAssignment_Doctor(t *testing.T) {
	f, _, _, surgeryAM := ledgerFixture(t)

	a, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: surgeryAM.ID, StaffID: f.drC.ID})
	require.NoError(t, err)
	assert.Equal(t, AssignDoctor, a.Kind)
	assert.Equal(t, StatusProposed, a.Status)
}

func TestCreateAssignment_MissingUnit(t *testing.T) {
	f, _, _, _ := ledgerFixture(t)
	count := len(f.store.assignments)

	_, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: uuid.New(), StaffID: f.sec1.ID})

	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Len(t, f.store.assignments, count)
}

func TestCreateAssignment_Rejections(t *testing.T) {
	f, am, _, _ := ledgerFixture(t)
	f.sec2.Active = false

	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"missing staff id", CreateRequest{WorkUnitID: am.ID}, apperr.ErrValidation},
		{"unknown staff", CreateRequest{WorkUnitID: am.ID, StaffID: uuid.New()}, apperr.ErrNotFound},
		{"inactive staff", CreateRequest{WorkUnitID: am.ID, StaffID: f.sec2.ID}, apperr.ErrValidation},
		{"doctor already on unit", CreateRequest{WorkUnitID: am.ID, StaffID: f.drA.ID}, apperr.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAssignment(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateAssignment_SecretaryDoubleBooked(t *testing.T) {
	f, am, pm, surgeryAM := ledgerFixture(t)

	_, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: am.ID, StaffID: f.sec1.ID})
	require.NoError(t, err)

	_, err = f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: am.ID, StaffID: f.sec1.ID})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: surgeryAM.ID, StaffID: f.sec1.ID})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: pm.ID, StaffID: f.sec1.ID})
	assert.NoError(t, err)
}

func TestCreateAssignment_AfterCancelSlotIsFree(t *testing.T) {
	f, am, _, surgeryAM := ledgerFixture(t)

	a, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: am.ID, StaffID: f.sec1.ID})
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), a.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: surgeryAM.ID, StaffID: f.sec1.ID})
	assert.NoError(t, err)
}

func TestApplyProposals_AllOrNothing(t *testing.T) {
	f, am, pm, _ := ledgerFixture(t)
	count := len(f.store.assignments)

	_, err := f.svc.ApplyProposals(context.Background(), []CreateRequest{
		{WorkUnitID: am.ID, StaffID: f.sec1.ID},
		{WorkUnitID: pm.ID, StaffID: f.sec2.ID},
		{WorkUnitID: uuid.New(), StaffID: f.sec2.ID},
	})

	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Len(t, f.store.assignments, count)

	created, err := f.svc.ApplyProposals(context.Background(), []CreateRequest{
		{WorkUnitID: am.ID, StaffID: f.sec1.ID},
		{WorkUnitID: pm.ID, StaffID: f.sec2.ID},
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Len(t, f.store.assignments, count+2)
}

func TestMove(t *testing.T) {
	f, am, _, surgeryAM := ledgerFixture(t)
	a, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: am.ID, StaffID: f.sec1.ID, SkillID: &f.skill})
	require.NoError(t, err)

	moved, err := f.svc.Move(context.Background(), a.ID, surgeryAM.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, f.store.assignments[a.ID].Status)
	assert.NotEqual(t, a.ID, moved.ID)
	assert.Equal(t, surgeryAM.ID, moved.WorkUnitID.UUID)
	assert.Equal(t, StatusProposed, moved.Status)
	assert.Equal(t, f.skill, *moved.SkillID)
}

func TestMove_MissingTargetRollsBack(t *testing.T) {
	f, am, _, _ := ledgerFixture(t)
	a, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: am.ID, StaffID: f.sec1.ID})
	require.NoError(t, err)
	count := len(f.store.assignments)

	_, err = f.svc.Move(context.Background(), a.ID, uuid.New())

	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, StatusProposed, f.store.assignments[a.ID].Status)
	assert.Len(t, f.store.assignments, count)
}

func TestMove_SameUnit(t *testing.T) {
	f, am, _, _ := ledgerFixture(t)
	a, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: am.ID, StaffID: f.sec1.ID})
	require.NoError(t, err)

	_, err = f.svc.Move(context.Background(), a.ID, am.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, StatusProposed, f.store.assignments[a.ID].Status)
}

func TestMove_TerminalSource(t *testing.T) {
	f, am, pm, _ := ledgerFixture(t)
	a, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: am.ID, StaffID: f.sec1.ID})
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), a.ID)
	require.NoError(t, err)

	_, err = f.svc.Move(context.Background(), a.ID, pm.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestSwap(t *testing.T) {
	f, am, pm, _ := ledgerFixture(t)
	a, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: am.ID, StaffID: f.sec1.ID})
	require.NoError(t, err)
	b, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: pm.ID, StaffID: f.sec2.ID})
	require.NoError(t, err)

	newA, newB, err := f.svc.Swap(context.Background(), a.ID, b.ID)
	require.NoError(t, err)

	assert.Equal(t, f.sec1.ID, newA.StaffID)
	assert.Equal(t, pm.ID, newA.WorkUnitID.UUID)
	assert.Equal(t, f.sec2.ID, newB.StaffID)
	assert.Equal(t, am.ID, newB.WorkUnitID.UUID)
	assert.Equal(t, StatusCancelled, f.store.assignments[a.ID].Status)
	assert.Equal(t, StatusCancelled, f.store.assignments[b.ID].Status)
}

func TestSwap_FailureRollsBack(t *testing.T) {
	f, am, pm, _ := ledgerFixture(t)
	a, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: am.ID, StaffID: f.sec1.ID})
	require.NoError(t, err)
	b, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: pm.ID, StaffID: f.sec2.ID})
	require.NoError(t, err)
	count := len(f.store.assignments)

	f.store.failOn = "assignments.create"
	_, _, err = f.svc.Swap(context.Background(), a.ID, b.ID)

	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, StatusProposed, f.store.assignments[a.ID].Status)
	assert.Equal(t, StatusProposed, f.store.assignments[b.ID].Status)
	assert.Len(t, f.store.assignments, count)
}

func TestSwap_Rejections(t *testing.T) {
	f, am, _, _ := ledgerFixture(t)
	a, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: am.ID, StaffID: f.sec1.ID})
	require.NoError(t, err)
	b, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: am.ID, StaffID: f.sec2.ID})
	require.NoError(t, err)

	_, _, err = f.svc.Swap(context.Background(), a.ID, a.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, _, err = f.svc.Swap(context.Background(), a.ID, b.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, _, err = f.svc.Swap(context.Background(), a.ID, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCancel(t *testing.T) {
	f, am, _, _ := ledgerFixture(t)
	a, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: am.ID, StaffID: f.sec1.ID})
	require.NoError(t, err)

	got, err := f.svc.Cancel(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Contains(t, f.store.assignments, a.ID)

	_, err = f.svc.Cancel(context.Background(), a.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = f.svc.Cancel(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTransition(t *testing.T) {
	f, am, _, _ := ledgerFixture(t)
	a, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: am.ID, StaffID: f.sec1.ID})
	require.NoError(t, err)
	ctx := context.Background()

	got, err := f.svc.Transition(ctx, a.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)

	got, err = f.svc.Transition(ctx, a.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)

	got, err = f.svc.Transition(ctx, a.ID, StatusPublished)
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, got.Status)

	_, err = f.svc.Transition(ctx, a.ID, StatusConfirmed)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = f.svc.Transition(ctx, a.ID, StatusCancelled)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Transition(ctx, a.ID, StatusProposed)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, StatusPublished, f.store.assignments[a.ID].Status)
}

func TestTransition_FromTerminal(t *testing.T) {
	f, am, _, _ := ledgerFixture(t)
	a, err := f.svc.CreateAssignment(context.Background(), CreateRequest{WorkUnitID: am.ID, StaffID: f.sec1.ID})
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), a.ID)
	require.NoError(t, err)

	_, err = f.svc.Transition(context.Background(), a.ID, StatusPublished)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestLedger_LocksStaffBeforeWriting(t *testing.T) {
	f, am, pm, _ := ledgerFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateAssignment(ctx, CreateRequest{WorkUnitID: am.ID, StaffID: f.sec1.ID})
	require.NoError(t, err)
	require.Len(t, f.store.ledgerLocks, 1)
	assert.Equal(t, []uuid.UUID{f.sec1.ID}, f.store.ledgerLocks[0])

	b, err := f.svc.CreateAssignment(ctx, CreateRequest{WorkUnitID: pm.ID, StaffID: f.sec2.ID})
	require.NoError(t, err)

	f.store.ledgerLocks = nil
	_, _, err = f.svc.Swap(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.NotEmpty(t, f.store.ledgerLocks)
	assert.ElementsMatch(t, []uuid.UUID{f.sec1.ID, f.sec2.ID}, f.store.ledgerLocks[0])

	f.store.ledgerLocks = nil
	_, err = f.svc.ApplyProposals(ctx, []CreateRequest{
		{WorkUnitID: am.ID, StaffID: f.sec2.ID},
		{WorkUnitID: pm.ID, StaffID: f.sec1.ID},
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	require.NotEmpty(t, f.store.ledgerLocks)
	assert.ElementsMatch(t, []uuid.UUID{f.sec2.ID, f.sec1.ID}, f.store.ledgerLocks[0])

	f.store.ledgerLocks = nil
	_, err = f.svc.DeclareLeave(ctx, &roster.Leave{StaffID: f.drA.ID, StartDate: date("2026-03-02"), EndDate: date("2026-03-02")})
	require.NoError(t, err)
	require.NotEmpty(t, f.store.ledgerLocks)
	assert.Equal(t, []uuid.UUID{f.drA.ID}, f.store.ledgerLocks[0])
}
