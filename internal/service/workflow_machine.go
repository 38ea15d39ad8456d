package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

// Transition is the outcome of a permitted workflow step.
type Transition struct {
	From                 models.WorkflowStatus `json:"from"`
	To                   models.WorkflowStatus `json:"to"`
	Action               models.WorkflowAction `json:"action"`
	Role                 models.Role           `json:"role"`
	RequiresHistoryEntry bool                  `json:"requiresHistoryEntry"`
}

// InvalidTransitionError names the rejected (status, action, role) triple.
type InvalidTransitionError struct {
	Status models.WorkflowStatus
	Action models.WorkflowAction
	Role   models.Role
}

func (e *InvalidTransitionError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("%s cannot %s", e.Role, e.Action)
	}
	return fmt.Sprintf("%s cannot %s a syllabus in %s", e.Role, e.Action, e.Status)
}

type commentRule int

const (
	commentNone commentRule = iota
	commentOptional
	commentRequired
)

type transitionRule struct {
	from    models.WorkflowStatus
	action  models.WorkflowAction
	roles   []models.Role
	to      models.WorkflowStatus
	comment commentRule
}

// transitionTable is the only place role gating lives. Any triple missing
// here is forbidden.
var transitionTable = []transitionRule{
	{models.StatusDraft, models.ActionSubmit, []models.Role{models.RoleLecturer}, models.StatusPendingReview, commentNone},
	{models.StatusPendingReview, models.ActionApprove, []models.Role{models.RoleHOD}, models.StatusPendingApproval, commentOptional},
	{models.StatusPendingReview, models.ActionReject, []models.Role{models.RoleHOD}, models.StatusRejected, commentRequired},
	{models.StatusPendingReview, models.ActionRequireEdit, []models.Role{models.RoleHOD}, models.StatusDraft, commentRequired},
	{models.StatusPendingApproval, models.ActionApprove, []models.Role{models.RoleAcademicAffairs}, models.StatusPendingApproval, commentOptional},
	{models.StatusPendingApproval, models.ActionApprove, []models.Role{models.RoleRector}, models.StatusApproved, commentOptional},
	{models.StatusPendingApproval, models.ActionReject, []models.Role{models.RoleRector, models.RoleAcademicAffairs}, models.StatusRejected, commentRequired},
	{models.StatusApproved, models.ActionPublish, []models.Role{models.RoleAdmin, models.RoleAcademicAffairs}, models.StatusPublished, commentNone},
	{models.StatusRejected, models.ActionNewVersion, []models.Role{models.RoleLecturer}, models.StatusDraft, commentNone},
}

func (r transitionRule) allows(role models.Role) bool {
	for _, allowed := range r.roles {
		if allowed == role {
			return true
		}
	}
	return false
}

func lookupRule(status models.WorkflowStatus, action models.WorkflowAction, role models.Role) (transitionRule, bool) {
	for _, rule := range transitionTable {
		if rule.from == status && rule.action == action && rule.allows(role) {
			return rule, true
		}
	}
	return transitionRule{}, false
}

// NewInvalidTransition builds the application error for a forbidden triple.
func NewInvalidTransition(status models.WorkflowStatus, action models.WorkflowAction, role models.Role) *appErrors.Error {
	cause := &InvalidTransitionError{Status: status, Action: action, Role: role}
	return &appErrors.Error{
		Code:    appErrors.ErrInvalidTransition.Code,
		Status:  appErrors.ErrInvalidTransition.Status,
		Message: cause.Error(),
		Err:     cause,
	}
}

// CommentRequired reports whether action always needs a comment.
func CommentRequired(action models.WorkflowAction) bool {
	return action == models.ActionReject || action == models.ActionRequireEdit
}

// Evaluate decides whether role may apply action to a syllabus in status.
// It never performs I/O and fails with INVALID_TRANSITION for every triple
// outside the table, or MISSING_COMMENT when a required comment is blank.
func Evaluate(status models.WorkflowStatus, action models.WorkflowAction, role models.Role, comment string) (Transition, error) {
	return evaluate(status, action, role, comment, true)
}

func evaluate(status models.WorkflowStatus, action models.WorkflowAction, role models.Role, comment string, checkComment bool) (Transition, error) {
	role = models.NormalizeRole(string(role))
	action = models.WorkflowAction(strings.ToUpper(strings.TrimSpace(string(action))))
	rule, ok := lookupRule(status, action, role)
	if !ok {
		return Transition{}, NewInvalidTransition(status, action, role)
	}
	if checkComment && rule.comment == commentRequired && strings.TrimSpace(comment) == "" {
		return Transition{}, appErrors.Clone(appErrors.ErrMissingComment, fmt.Sprintf("a comment is required to %s", strings.ToLower(strings.ReplaceAll(string(action), "_", " "))))
	}
	return Transition{
		From:                 rule.from,
		To:                   rule.to,
		Action:               action,
		Role:                 role,
		RequiresHistoryEntry: true,
	}, nil
}

// AllowedActions lists the actions role may take from status, in table order.
func AllowedActions(status models.WorkflowStatus, role models.Role) []models.WorkflowAction {
	role = models.NormalizeRole(string(role))
	actions := make([]models.WorkflowAction, 0, 2)
	seen := make(map[models.WorkflowAction]struct{})
	for _, rule := range transitionTable {
		if rule.from != status || !rule.allows(role) {
			continue
		}
		if _, dup := seen[rule.action]; dup {
			continue
		}
		seen[rule.action] = struct{}{}
		actions = append(actions, rule.action)
	}
	return actions
}

// RoleMayPerform reports whether role appears anywhere in the table for
// action, regardless of status.
func RoleMayPerform(action models.WorkflowAction, role models.Role) bool {
	role = models.NormalizeRole(string(role))
	for _, rule := range transitionTable {
		if rule.action == action && rule.allows(role) {
			return true
		}
	}
	return false
}

// ProjectState maps a status onto the reviewer projection.
func ProjectState(status models.WorkflowStatus) models.WorkflowState {
	switch status {
	case models.StatusPendingReview, models.StatusPendingApproval:
		return models.StateReview
	case models.StatusApproved, models.StatusPublished:
		return models.StateApproved
	case models.StatusRejected:
		return models.StateRejected
	default:
		return models.StateDraft
	}
}

// ReplayHistory applies entries in order starting from DRAFT. Timestamps
// must not go backwards and every step must be a permitted transition.
// Comments are not re-checked since the server may redact them.
func ReplayHistory(entries []models.WorkflowHistoryEntry) (models.WorkflowStatus, error) {
	status := models.StatusDraft
	for i, entry := range entries {
		if i > 0 && entry.Timestamp.Before(entries[i-1].Timestamp) {
			return status, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("history entry %d is older than its predecessor", i))
		}
		next, err := evaluate(status, ParseAction(string(entry.Action)), models.NormalizeRole(string(entry.Role)), entry.Comment, false)
		if err != nil {
			return status, err
		}
		status = next.To
	}
	return status, nil
}

// VerifyInstance checks that the stored state equals the projection of the
// replayed history.
func VerifyInstance(instance models.WorkflowInstance) error {
	status, err := ReplayHistory(instance.History)
	if err != nil {
		return err
	}
	if projected := ProjectState(status); projected != instance.State {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("workflow %s is %s but its history projects %s", instance.ID, instance.State, projected))
	}
	return nil
}
