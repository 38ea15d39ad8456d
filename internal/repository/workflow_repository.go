package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/pkg/httpclient"
)

// WorkflowRepository talks to the workflow/approval backend.
type WorkflowRepository struct {
	client *httpclient.Client
}

// NewWorkflowRepository constructs the repository.
func NewWorkflowRepository(client *httpclient.Client) *WorkflowRepository {
	return &WorkflowRepository{client: client}
}

// List returns the review queue filtered by projected state.
func (r *WorkflowRepository) List(ctx context.Context, session *models.SessionContext, state models.WorkflowState, page, size int) (*models.Page[models.WorkflowInstance], error) {
	query := url.Values{}
	if state != "" {
		query.Set("state", string(state))
	}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		query.Set("size", strconv.Itoa(size))
	}
	return httpclient.GetPage[models.WorkflowInstance](ctx, r.client, httpclient.Request{
		Path:      "/workflows",
		Query:     query,
		Session:   session,
		Operation: "list_workflows",
	})
}

// Review loads a workflow instance together with the version under review.
// A bare instance response is accepted as well.
func (r *WorkflowRepository) Review(ctx context.Context, session *models.SessionContext, id string) (*models.WorkflowReview, error) {
	var raw json.RawMessage
	err := r.client.Do(ctx, httpclient.Request{
		Path:      fmt.Sprintf("/workflows/%s/review", url.PathEscape(id)),
		Session:   session,
		Operation: "get_workflow_review",
	}, &raw)
	if err != nil {
		return nil, err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("decode workflow review: %w", err)
	}
	review := &models.WorkflowReview{}
	if _, nested := keys["workflow"]; nested {
		if err := json.Unmarshal(raw, review); err != nil {
			return nil, fmt.Errorf("decode workflow review: %w", err)
		}
		return review, nil
	}
	if err := json.Unmarshal(raw, &review.Workflow); err != nil {
		return nil, fmt.Errorf("decode workflow instance: %w", err)
	}
	if syllabus, ok := keys["syllabus"]; ok {
		var version models.SyllabusVersion
		if err := json.Unmarshal(syllabus, &version); err == nil && version.ID != "" {
			review.Syllabus = &version
		}
	}
	return review, nil
}

// History returns the append-only history, oldest first as sent.
func (r *WorkflowRepository) History(ctx context.Context, session *models.SessionContext, id string) ([]models.WorkflowHistoryEntry, error) {
	page, err := httpclient.GetPage[models.WorkflowHistoryEntry](ctx, r.client, httpclient.Request{
		Path:      fmt.Sprintf("/workflows/%s/history", url.PathEscape(id)),
		Session:   session,
		Operation: "get_workflow_history",
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// ActionPath maps an action onto its endpoint segment.
func ActionPath(action models.WorkflowAction) string {
	return strings.ReplaceAll(strings.ToLower(string(action)), "_", "-")
}

// Act performs a review action. Actor and role travel as query parameters,
// the comment in the body.
func (r *WorkflowRepository) Act(ctx context.Context, session *models.SessionContext, id string, action models.WorkflowAction, comment, idempotencyKey string) error {
	query := url.Values{}
	if session != nil {
		query.Set("actorId", session.ActorID)
		query.Set("role", string(session.Role))
	}
	var body interface{}
	if comment != "" {
		body = map[string]string{"comment": comment}
	}
	return r.client.Do(ctx, httpclient.Request{
		Method:    http.MethodPost,
		Path:      fmt.Sprintf("/workflows/%s/%s", url.PathEscape(id), ActionPath(action)),
		Query:     query,
		Body:      body,
		Headers:   idempotencyHeader(idempotencyKey),
		Session:   session,
		Operation: "workflow_" + ActionPath(action),
	}, nil)
}
