package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/pkg/httpclient"
)

// AssistRepository talks to the AI-assist job backend.
type AssistRepository struct {
	client *httpclient.Client
}

// NewAssistRepository constructs the repository.
func NewAssistRepository(client *httpclient.Client) *AssistRepository {
	return &AssistRepository{client: client}
}

// Start enqueues a job and returns its id.
func (r *AssistRepository) Start(ctx context.Context, session *models.SessionContext, kind models.AssistKind, payload json.RawMessage) (string, error) {
	var out struct {
		JobID string `json:"jobId"`
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	err := r.client.Do(ctx, httpclient.Request{
		Method:    http.MethodPost,
		Path:      "/ai/" + url.PathEscape(string(kind)),
		Body:      payload,
		Session:   session,
		Operation: "assist_" + string(kind),
	}, &out)
	if err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", fmt.Errorf("assist %s: response carried no jobId", kind)
	}
	return out.JobID, nil
}

// Job returns the current job state.
func (r *AssistRepository) Job(ctx context.Context, session *models.SessionContext, jobID string) (*models.AssistJob, error) {
	var job models.AssistJob
	err := r.client.Do(ctx, httpclient.Request{
		Path:      "/ai/jobs/" + url.PathEscape(jobID),
		Session:   session,
		Operation: "assist_job_status",
	}, &job)
	if err != nil {
		return nil, err
	}
	if job.JobID == "" {
		job.JobID = jobID
	}
	return &job, nil
}
