package service

import (
	"context"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/dto"
	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/repository"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

type reviewCommentBackend interface {
	Create(ctx context.Context, session *models.SessionContext, comment repository.NewReviewComment) (*models.ReviewComment, error)
	ListBySyllabus(ctx context.Context, session *models.SessionContext, syllabusID string) ([]models.ReviewComment, error)
	Delete(ctx context.Context, session *models.SessionContext, id string) error
}

// ReviewThreadService manages section-scoped review comments.
type ReviewThreadService struct {
	backend   reviewCommentBackend
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReviewThreadService constructs the service.
func NewReviewThreadService(backend reviewCommentBackend, validate *validator.Validate, logger *zap.Logger) *ReviewThreadService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewThreadService{backend: backend, validator: validate, logger: logger}
}

// List fetches the comments of a syllabus and groups them per section.
func (s *ReviewThreadService) List(ctx context.Context, session *models.SessionContext, syllabusID string) (*models.ReviewThread, error) {
	if strings.TrimSpace(syllabusID) == "" {
		return nil, appErrors.ErrMissingSyllabusID
	}
	comments, err := s.backend.ListBySyllabus(ctx, session, syllabusID)
	if err != nil {
		return nil, err
	}
	return GroupComments(syllabusID, comments), nil
}

// GroupComments buckets comments by normalized section key in the fixed
// section order, oldest first within a bucket. Empty sections are omitted.
func GroupComments(syllabusID string, comments []models.ReviewComment) *models.ReviewThread {
	buckets := make(map[models.SectionKey][]models.ReviewComment, len(models.SectionKeys))
	for _, c := range comments {
		c.SectionKey = models.NormalizeSectionKey(string(c.SectionKey))
		buckets[c.SectionKey] = append(buckets[c.SectionKey], c)
	}
	thread := &models.ReviewThread{SyllabusID: syllabusID, Total: len(comments), Sections: make([]models.ReviewSection, 0, len(buckets))}
	for _, key := range models.SectionKeys {
		group, ok := buckets[key]
		if !ok {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].CreatedAt.Before(group[j].CreatedAt) })
		thread.Sections = append(thread.Sections, models.ReviewSection{SectionKey: key, Comments: group})
	}
	return thread
}

// Add posts a comment. Without a syllabus id the call is refused locally
// since the comment could not be attached to anything.
func (s *ReviewThreadService) Add(ctx context.Context, session *models.SessionContext, req dto.AddCommentRequest) (*models.ReviewComment, error) {
	if strings.TrimSpace(req.SyllabusID) == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingSyllabusID, "save the syllabus first: comments can only be attached to a syllabus that exists on the server")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment content is required")
	}
	comment := repository.NewReviewComment{
		SyllabusID: strings.TrimSpace(req.SyllabusID),
		SectionKey: models.NormalizeSectionKey(req.SectionKey),
		Content:    content,
	}
	if session != nil {
		comment.AuthorID = session.ActorID
	}
	created, err := s.backend.Create(ctx, session, comment)
	if err != nil {
		return nil, err
	}
	created.SectionKey = models.NormalizeSectionKey(string(created.SectionKey))
	return created, nil
}

// Delete removes a comment. The server decides who may delete.
func (s *ReviewThreadService) Delete(ctx context.Context, session *models.SessionContext, id string) error {
	if strings.TrimSpace(id) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "comment id is required")
	}
	if err := s.backend.Delete(ctx, session, id); err != nil {
		return err
	}
	s.logger.Debug("review comment deleted", zap.String("comment_id", id))
	return nil
}
