package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/pkg/httpclient"
)

// SyllabusPayload is the create-draft / new-version request body. Content
// holds either a models.Content or its string encoding.
type SyllabusPayload struct {
	SubjectCode string      `json:"subjectCode"`
	SubjectName string      `json:"subjectName"`
	Summary     string      `json:"summary,omitempty"`
	Content     interface{} `json:"content"`
}

// SyllabusComparison is the backend compare response.
type SyllabusComparison struct {
	Left  *models.SyllabusVersion `json:"left"`
	Right *models.SyllabusVersion `json:"right"`
}

// SyllabusRepository talks to the versioning backend.
type SyllabusRepository struct {
	client *httpclient.Client
}

// NewSyllabusRepository constructs the repository.
func NewSyllabusRepository(client *httpclient.Client) *SyllabusRepository {
	return &SyllabusRepository{client: client}
}

// List returns a normalized page of syllabuses.
func (r *SyllabusRepository) List(ctx context.Context, session *models.SessionContext, filter models.SyllabusFilter) (*models.Page[models.SyllabusVersion], error) {
	query := url.Values{}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}
	if filter.SubjectCode != "" {
		query.Set("subjectCode", filter.SubjectCode)
	}
	if filter.Search != "" {
		query.Set("q", filter.Search)
	}
	if filter.Page > 0 {
		query.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Size > 0 {
		query.Set("size", strconv.Itoa(filter.Size))
	}
	return httpclient.GetPage[models.SyllabusVersion](ctx, r.client, httpclient.Request{
		Path:      "/syllabuses",
		Query:     query,
		Session:   session,
		Operation: "list_syllabuses",
	})
}

// Get fetches one version by id.
func (r *SyllabusRepository) Get(ctx context.Context, session *models.SessionContext, id string) (*models.SyllabusVersion, error) {
	var version models.SyllabusVersion
	err := r.client.Do(ctx, httpclient.Request{
		Path:      "/syllabuses/" + url.PathEscape(id),
		Session:   session,
		Operation: "get_syllabus",
	}, &version)
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// Create persists a brand new lineage.
func (r *SyllabusRepository) Create(ctx context.Context, session *models.SessionContext, payload SyllabusPayload) (*models.SyllabusVersion, error) {
	var version models.SyllabusVersion
	err := r.client.Do(ctx, httpclient.Request{
		Method:    http.MethodPost,
		Path:      "/syllabuses",
		Body:      payload,
		Session:   session,
		Operation: "create_syllabus",
	}, &version)
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// CreateVersion appends a version to the lineage rootID.
func (r *SyllabusRepository) CreateVersion(ctx context.Context, session *models.SessionContext, rootID string, payload SyllabusPayload) (*models.SyllabusVersion, error) {
	var version models.SyllabusVersion
	err := r.client.Do(ctx, httpclient.Request{
		Method:    http.MethodPost,
		Path:      fmt.Sprintf("/syllabuses/%s/versions", url.PathEscape(rootID)),
		Body:      payload,
		Session:   session,
		Operation: "create_syllabus_version",
	}, &version)
	if err != nil {
		return nil, err
	}
	return &version, nil
}

const (
	lineagePageSize  = 100
	lineagePageLimit = 50
)

// ListVersions returns every version of a lineage, following the server's
// pages until all of them are read.
func (r *SyllabusRepository) ListVersions(ctx context.Context, session *models.SessionContext, rootID string) (*models.Page[models.SyllabusVersion], error) {
	query := url.Values{}
	query.Set("size", strconv.Itoa(lineagePageSize))
	lineage := &models.Page[models.SyllabusVersion]{Items: []models.SyllabusVersion{}}

	for fetched := 1; fetched <= lineagePageLimit; fetched++ {
		page, err := httpclient.GetPage[models.SyllabusVersion](ctx, r.client, httpclient.Request{
			Path:      fmt.Sprintf("/syllabuses/%s/versions", url.PathEscape(rootID)),
			Query:     query,
			Session:   session,
			Operation: "list_syllabus_versions",
		})
		if err != nil {
			return nil, err
		}
		lineage.Items = append(lineage.Items, page.Items...)
		if page.TotalItems > lineage.TotalItems {
			lineage.TotalItems = page.TotalItems
		}
		if len(page.Items) == 0 || page.TotalPages <= fetched || len(lineage.Items) >= page.TotalItems {
			break
		}
		query.Set("page", strconv.Itoa(page.Page+1))
	}

	if lineage.TotalItems < len(lineage.Items) {
		lineage.TotalItems = len(lineage.Items)
	}
	lineage.Size = len(lineage.Items)
	lineage.TotalPages = 1
	return lineage, nil
}

// Compare fetches two versions of a lineage by version number. Both
// {left,right} and {v1,v2} response shapes are accepted.
func (r *SyllabusRepository) Compare(ctx context.Context, session *models.SessionContext, rootID string, v1, v2 int) (*SyllabusComparison, error) {
	query := url.Values{}
	query.Set("v1", strconv.Itoa(v1))
	query.Set("v2", strconv.Itoa(v2))

	var raw struct {
		Left  *models.SyllabusVersion `json:"left"`
		Right *models.SyllabusVersion `json:"right"`
		V1    *models.SyllabusVersion `json:"v1"`
		V2    *models.SyllabusVersion `json:"v2"`
	}
	err := r.client.Do(ctx, httpclient.Request{
		Path:      fmt.Sprintf("/syllabuses/%s/compare", url.PathEscape(rootID)),
		Query:     query,
		Session:   session,
		Operation: "compare_syllabus_versions",
	}, &raw)
	if err != nil {
		return nil, err
	}
	out := &SyllabusComparison{Left: raw.Left, Right: raw.Right}
	if out.Left == nil {
		out.Left = raw.V1
	}
	if out.Right == nil {
		out.Right = raw.V2
	}
	return out, nil
}

// Submit moves a draft into review. The backend may answer with the updated
// version or with an empty body.
func (r *SyllabusRepository) Submit(ctx context.Context, session *models.SessionContext, id, idempotencyKey string) (*models.SyllabusVersion, error) {
	var raw json.RawMessage
	err := r.client.Do(ctx, httpclient.Request{
		Method:    http.MethodPost,
		Path:      fmt.Sprintf("/syllabuses/%s/submit", url.PathEscape(id)),
		Headers:   idempotencyHeader(idempotencyKey),
		Session:   session,
		Operation: "submit_syllabus",
	}, &raw)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var version models.SyllabusVersion
	if err := json.Unmarshal(raw, &version); err != nil {
		return nil, fmt.Errorf("decode submitted syllabus: %w", err)
	}
	if version.ID == "" {
		return nil, nil
	}
	return &version, nil
}

func idempotencyHeader(key string) map[string]string {
	if key == "" {
		return nil
	}
	return map[string]string{"Idempotency-Key": key}
}
