package repository

import (
	"context"
	"net/http"
	"net/url"

	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/pkg/httpclient"
)

// NewReviewComment is the create payload.
type NewReviewComment struct {
	SyllabusID string            `json:"syllabusId"`
	SectionKey models.SectionKey `json:"sectionKey"`
	Content    string            `json:"content"`
	AuthorID   string            `json:"authorId,omitempty"`
}

// ReviewCommentRepository talks to the review comments backend.
type ReviewCommentRepository struct {
	client *httpclient.Client
}

// NewReviewCommentRepository constructs the repository.
func NewReviewCommentRepository(client *httpclient.Client) *ReviewCommentRepository {
	return &ReviewCommentRepository{client: client}
}

func (r *ReviewCommentRepository) Create(ctx context.Context, session *models.SessionContext, comment NewReviewComment) (*models.ReviewComment, error) {
	var created models.ReviewComment
	err := r.client.Do(ctx, httpclient.Request{
		Method:    http.MethodPost,
		Path:      "/review-comments",
		Body:      comment,
		Session:   session,
		Operation: "create_review_comment",
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *ReviewCommentRepository) ListBySyllabus(ctx context.Context, session *models.SessionContext, syllabusID string) ([]models.ReviewComment, error) {
	page, err := httpclient.GetPage[models.ReviewComment](ctx, r.client, httpclient.Request{
		Path:      "/review-comments/syllabus/" + url.PathEscape(syllabusID),
		Session:   session,
		Operation: "list_review_comments",
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (r *ReviewCommentRepository) Delete(ctx context.Context, session *models.SessionContext, id string) error {
	return r.client.Do(ctx, httpclient.Request{
		Method:    http.MethodDelete,
		Path:      "/review-comments/" + url.PathEscape(id),
		Session:   session,
		Operation: "delete_review_comment",
	}, nil)
}
