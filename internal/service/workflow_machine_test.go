package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

func TestEvaluateTableRows(t *testing.T) {
	cases := []struct {
		from   models.WorkflowStatus
		action models.WorkflowAction
		role   models.Role
		to     models.WorkflowStatus
	}{
		{models.StatusDraft, models.ActionSubmit, models.RoleLecturer, models.StatusPendingReview},
		{models.StatusPendingReview, models.ActionApprove, models.RoleHOD, models.StatusPendingApproval},
		{models.StatusPendingReview, models.ActionReject, models.RoleHOD, models.StatusRejected},
		{models.StatusPendingReview, models.ActionRequireEdit, models.RoleHOD, models.StatusDraft},
		{models.StatusPendingApproval, models.ActionApprove, models.RoleAcademicAffairs, models.StatusPendingApproval},
		{models.StatusPendingApproval, models.ActionApprove, models.RoleRector, models.StatusApproved},
		{models.StatusPendingApproval, models.ActionReject, models.RoleRector, models.StatusRejected},
		{models.StatusPendingApproval, models.ActionReject, models.RoleAcademicAffairs, models.StatusRejected},
		{models.StatusApproved, models.ActionPublish, models.RoleAdmin, models.StatusPublished},
		{models.StatusApproved, models.ActionPublish, models.RoleAcademicAffairs, models.StatusPublished},
		{models.StatusRejected, models.ActionNewVersion, models.RoleLecturer, models.StatusDraft},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+string(tc.action)+"/"+string(tc.role), func(t *testing.T) {
			got, err := Evaluate(tc.from, tc.action, tc.role, "looks fine")
			require.NoError(t, err)
			assert.Equal(t, tc.to, got.To)
			assert.True(t, got.RequiresHistoryEntry)
		})
	}
}

func TestEvaluateIsTotal(t *testing.T) {
	allowed := 0
	for _, status := range models.WorkflowStatuses {
		for _, action := range models.WorkflowActions {
			for _, role := range models.Roles {
				got, err := Evaluate(status, action, role, "comment")
				if err == nil {
					allowed++
					assert.NotEmpty(t, got.To)
					continue
				}
				var invalid *InvalidTransitionError
				require.True(t, errors.As(err, &invalid), "%s %s %s", status, action, role)
				assert.Equal(t, status, invalid.Status)
				assert.Equal(t, action, invalid.Action)
				assert.Equal(t, role, invalid.Role)
				assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.CodeOf(err))
			}
		}
	}
	assert.Equal(t, 11, allowed)
}

func TestEvaluateRequiresComment(t *testing.T) {
	_, err := Evaluate(models.StatusPendingReview, models.ActionReject, models.RoleHOD, "   ")
	assert.True(t, errors.Is(err, appErrors.ErrMissingComment))

	_, err = Evaluate(models.StatusPendingReview, models.ActionRequireEdit, models.RoleHOD, "")
	assert.True(t, errors.Is(err, appErrors.ErrMissingComment))

	_, err = Evaluate(models.StatusPendingReview, models.ActionApprove, models.RoleHOD, "")
	assert.NoError(t, err)
}

func TestEvaluateNormalizesRolePrefix(t *testing.T) {
	got, err := Evaluate(models.StatusPendingReview, models.ActionApprove, models.Role("ROLE_HOD"), "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleHOD, got.Role)
}

func TestSubmitTwiceAsHODFails(t *testing.T) {
	first, err := Evaluate(models.StatusDraft, models.ActionSubmit, models.RoleLecturer, "")
	require.NoError(t, err)
	_, err = Evaluate(first.To, models.ActionSubmit, models.RoleHOD, "")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestAllowedActions(t *testing.T) {
	assert.Equal(t, []models.WorkflowAction{models.ActionApprove, models.ActionReject, models.ActionRequireEdit},
		AllowedActions(models.StatusPendingReview, models.RoleHOD))
	assert.Equal(t, []models.WorkflowAction{models.ActionApprove, models.ActionReject},
		AllowedActions(models.StatusPendingApproval, models.RoleAcademicAffairs))
	assert.Empty(t, AllowedActions(models.StatusPublished, models.RoleAdmin))
}

func TestRoleMayPerform(t *testing.T) {
	assert.True(t, RoleMayPerform(models.ActionSubmit, models.RoleLecturer))
	assert.False(t, RoleMayPerform(models.ActionSubmit, models.RoleHOD))
	assert.True(t, RoleMayPerform(models.ActionReject, models.RoleAcademicAffairs))
	assert.False(t, RoleMayPerform(models.ActionApprove, models.RoleLecturer))
}

func TestProjectState(t *testing.T) {
	assert.Equal(t, models.StateDraft, ProjectState(models.StatusDraft))
	assert.Equal(t, models.StateReview, ProjectState(models.StatusPendingReview))
	assert.Equal(t, models.StateReview, ProjectState(models.StatusPendingApproval))
	assert.Equal(t, models.StateApproved, ProjectState(models.StatusPublished))
	assert.Equal(t, models.StateRejected, ProjectState(models.StatusRejected))
}

func historyAt(base time.Time, steps ...models.WorkflowHistoryEntry) []models.WorkflowHistoryEntry {
	for i := range steps {
		steps[i].Timestamp = base.Add(time.Duration(i) * time.Minute)
	}
	return steps
}

func TestReplayHistoryAndVerify(t *testing.T) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	history := historyAt(base,
		models.WorkflowHistoryEntry{ActorID: "l1", Role: models.RoleLecturer, Action: models.ActionSubmit},
		models.WorkflowHistoryEntry{ActorID: "h1", Role: models.RoleHOD, Action: models.ActionApprove},
		models.WorkflowHistoryEntry{ActorID: "a1", Role: models.RoleAcademicAffairs, Action: models.ActionApprove},
		models.WorkflowHistoryEntry{ActorID: "r1", Role: models.RoleRector, Action: models.ActionApprove},
	)
	status, err := ReplayHistory(history)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, status)

	require.NoError(t, VerifyInstance(models.WorkflowInstance{ID: "w1", State: models.StateApproved, History: history}))
	err = VerifyInstance(models.WorkflowInstance{ID: "w1", State: models.StateReview, History: history})
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))

	status, err = ReplayHistory(nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, status)
}

func TestReplayHistoryRejectsDisorder(t *testing.T) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	history := historyAt(base,
		models.WorkflowHistoryEntry{Role: models.RoleLecturer, Action: models.ActionSubmit},
		models.WorkflowHistoryEntry{Role: models.RoleHOD, Action: models.ActionReject},
	)
	history[1].Timestamp = base.Add(-time.Minute)
	_, err := ReplayHistory(history)
	assert.Error(t, err)

	bad := historyAt(base, models.WorkflowHistoryEntry{Role: models.RoleHOD, Action: models.ActionApprove})
	_, err = ReplayHistory(bad)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}
