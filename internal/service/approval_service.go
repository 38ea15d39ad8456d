package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/logger"
)

type workflowBackend interface {
	List(ctx context.Context, session *models.SessionContext, state models.WorkflowState, page, size int) (*models.Page[models.WorkflowInstance], error)
	Review(ctx context.Context, session *models.SessionContext, id string) (*models.WorkflowReview, error)
	History(ctx context.Context, session *models.SessionContext, id string) ([]models.WorkflowHistoryEntry, error)
	Act(ctx context.Context, session *models.SessionContext, id string, action models.WorkflowAction, comment, idempotencyKey string) error
}

type actionRecorder interface {
	RecordWorkflowAction(action models.WorkflowAction, outcome string)
}

// ApprovalDispatcher runs review actions against workflow instances. Local
// checks happen before any request; the server stays the final authority
// and its history is refetched after every action.
type ApprovalDispatcher struct {
	backend  workflowBackend
	metrics  actionRecorder
	logger   *zap.Logger
	inflight *inflightGuard
	newKey   func() string
	settled  func(syllabusIDs ...string)
}

// ApprovalOption configures the dispatcher.
type ApprovalOption func(*ApprovalDispatcher)

// WithSettledHook is called with the reviewed syllabus id after the server
// accepted an action, so cached statuses elsewhere can be dropped.
func WithSettledHook(fn func(syllabusIDs ...string)) ApprovalOption {
	return func(d *ApprovalDispatcher) {
		d.settled = fn
	}
}

// NewApprovalDispatcher constructs the dispatcher. metrics may be nil.
func NewApprovalDispatcher(backend workflowBackend, metrics actionRecorder, logger *zap.Logger, opts ...ApprovalOption) *ApprovalDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &ApprovalDispatcher{
		backend:  backend,
		metrics:  metrics,
		logger:   logger,
		inflight: newInflightGuard(),
		newKey:   uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// DispatchResult is the server-confirmed outcome of an action.
type DispatchResult struct {
	Entry   models.WorkflowHistoryEntry
	History []models.WorkflowHistoryEntry
	State   models.WorkflowState
}

// ParseAction normalizes user input such as "require-edit".
func ParseAction(raw string) models.WorkflowAction {
	value := strings.ToUpper(strings.TrimSpace(raw))
	return models.WorkflowAction(strings.ReplaceAll(value, "-", "_"))
}

// Dispatch performs action on the workflow as the session's actor and
// returns the history entry the server appended.
func (d *ApprovalDispatcher) Dispatch(ctx context.Context, session *models.SessionContext, workflowID string, action models.WorkflowAction, comment string) (*DispatchResult, error) {
	action = ParseAction(string(action))
	result, err := d.dispatch(ctx, session, workflowID, action, comment)
	outcome := "ok"
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	if d.metrics != nil {
		d.metrics.RecordWorkflowAction(action, outcome)
	}
	fields := append(logger.SessionFields(session),
		zap.String("workflow_id", workflowID),
		zap.String("action", string(action)),
		zap.String("outcome", outcome),
	)
	if err != nil {
		d.logger.Warn("workflow action refused", append(fields, zap.Error(err))...)
		return nil, err
	}
	d.logger.Info("workflow action dispatched", fields...)
	return result, nil
}

func (d *ApprovalDispatcher) dispatch(ctx context.Context, session *models.SessionContext, workflowID string, action models.WorkflowAction, comment string) (*DispatchResult, error) {
	comment = strings.TrimSpace(comment)
	if CommentRequired(action) && comment == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingComment, fmt.Sprintf("a comment is required to %s", strings.ToLower(strings.ReplaceAll(string(action), "_", " "))))
	}
	if !session.Authenticated() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "an actor is required to review")
	}
	role := sessionRole(session)
	if !RoleMayPerform(action, role) {
		return nil, NewInvalidTransition("", action, role)
	}
	if strings.TrimSpace(workflowID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "workflow id is required")
	}

	release, err := d.inflight.acquire("workflow:" + workflowID)
	if err != nil {
		return nil, err
	}
	defer release()

	review, err := d.backend.Review(ctx, session, workflowID)
	if err != nil {
		return nil, err
	}
	status, err := currentStatus(review)
	if err != nil {
		return nil, err
	}
	if _, err := Evaluate(status, action, role, comment); err != nil {
		return nil, err
	}

	if err := d.backend.Act(ctx, session, workflowID, action, comment, d.newKey()); err != nil {
		return nil, err
	}
	if d.settled != nil {
		d.settled(reviewedIDs(review)...)
	}

	history, err := d.backend.History(ctx, session, workflowID)
	if err != nil {
		return nil, err
	}
	if before := len(review.Workflow.History); before > 0 && len(history) != before+1 {
		d.logger.Warn("unexpected history growth after action",
			zap.String("workflow_id", workflowID),
			zap.Int("before", before),
			zap.Int("after", len(history)),
		)
	}
	entry, ok := latestEntry(history, action, session.ActorID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("workflow %s history does not record the %s action", workflowID, action))
	}
	replayed, err := ReplayHistory(history)
	state := ProjectState(replayed)
	if err != nil {
		d.logger.Warn("server history does not replay cleanly", zap.String("workflow_id", workflowID), zap.Error(err))
		state = ""
	}
	return &DispatchResult{Entry: entry, History: history, State: state}, nil
}

// currentStatus prefers the status of the version under review and falls
// back to replaying the instance history.
func currentStatus(review *models.WorkflowReview) (models.WorkflowStatus, error) {
	if review.Syllabus != nil && review.Syllabus.Status != "" {
		return review.Syllabus.Status, nil
	}
	return ReplayHistory(review.Workflow.History)
}

func reviewedIDs(review *models.WorkflowReview) []string {
	ids := make([]string, 0, 2)
	if review.Syllabus != nil && review.Syllabus.ID != "" {
		ids = append(ids, review.Syllabus.ID)
	}
	if id := review.Workflow.EntityID; id != "" && (len(ids) == 0 || ids[0] != id) {
		ids = append(ids, id)
	}
	return ids
}

// latestEntry finds the newest entry for action by actorID. Backends may
// record actions in any spelling, so entries are normalized first.
func latestEntry(history []models.WorkflowHistoryEntry, action models.WorkflowAction, actorID string) (models.WorkflowHistoryEntry, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		if ParseAction(string(entry.Action)) == action && (actorID == "" || entry.ActorID == actorID) {
			return entry, true
		}
	}
	return models.WorkflowHistoryEntry{}, false
}

// Queue lists workflows in the given projected state.
func (d *ApprovalDispatcher) Queue(ctx context.Context, session *models.SessionContext, state models.WorkflowState, page, size int) (*models.Page[models.WorkflowInstance], error) {
	return d.backend.List(ctx, session, state, page, size)
}

// Review loads a workflow and the version under review.
func (d *ApprovalDispatcher) Review(ctx context.Context, session *models.SessionContext, workflowID string) (*models.WorkflowReview, error) {
	return d.backend.Review(ctx, session, workflowID)
}

// History returns the server history of a workflow.
func (d *ApprovalDispatcher) History(ctx context.Context, session *models.SessionContext, workflowID string) ([]models.WorkflowHistoryEntry, error) {
	return d.backend.History(ctx, session, workflowID)
}

// AllowedActions resolves the workflow status and lists what the session's
// role may do next.
func (d *ApprovalDispatcher) AllowedActions(ctx context.Context, session *models.SessionContext, workflowID string) (models.WorkflowStatus, []models.WorkflowAction, error) {
	review, err := d.backend.Review(ctx, session, workflowID)
	if err != nil {
		return "", nil, err
	}
	status, err := currentStatus(review)
	if err != nil {
		return "", nil, err
	}
	return status, AllowedActions(status, sessionRole(session)), nil
}
