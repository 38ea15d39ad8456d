package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-portal/internal/dto"
	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/repository"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

type commentBackendStub struct {
	comments []models.ReviewComment
	created  []repository.NewReviewComment
	deleted  []string
	calls    int
}

func (s *commentBackendStub) Create(ctx context.Context, session *models.SessionContext, c repository.NewReviewComment) (*models.ReviewComment, error) {
	s.calls++
	s.created = append(s.created, c)
	return &models.ReviewComment{ID: "c-new", SyllabusID: c.SyllabusID, SectionKey: c.SectionKey, Content: c.Content, AuthorID: c.AuthorID}, nil
}

func (s *commentBackendStub) ListBySyllabus(ctx context.Context, session *models.SessionContext, syllabusID string) ([]models.ReviewComment, error) {
	s.calls++
	return s.comments, nil
}

func (s *commentBackendStub) Delete(ctx context.Context, session *models.SessionContext, id string) error {
	s.calls++
	s.deleted = append(s.deleted, id)
	return nil
}

func TestGroupCommentsOrdering(t *testing.T) {
	base := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	at := func(m int) time.Time { return base.Add(time.Duration(m) * time.Minute) }
	comments := []models.ReviewComment{
		{ID: "1", SectionKey: "clo", CreatedAt: at(5)},
		{ID: "2", SectionKey: "", CreatedAt: at(3)},
		{ID: "3", SectionKey: "CLO", CreatedAt: at(1)},
		{ID: "4", SectionKey: "unknown-tab", CreatedAt: at(0)},
		{ID: "5", SectionKey: "assessment", CreatedAt: at(2)},
		{ID: "6", SectionKey: "clo", CreatedAt: at(1)},
	}

	thread := GroupComments("S1", comments)
	assert.Equal(t, 6, thread.Total)

	sum := 0
	keys := make([]models.SectionKey, 0)
	for _, section := range thread.Sections {
		sum += len(section.Comments)
		keys = append(keys, section.SectionKey)
		for i := 1; i < len(section.Comments); i++ {
			assert.False(t, section.Comments[i].CreatedAt.Before(section.Comments[i-1].CreatedAt))
		}
	}
	assert.Equal(t, len(comments), sum)
	assert.Equal(t, []models.SectionKey{models.SectionGeneral, models.SectionCLO, models.SectionAssessment}, keys)

	assert.Equal(t, []string{"4", "2"}, ids(thread.Sections[0].Comments))
	assert.Equal(t, []string{"3", "6", "1"}, ids(thread.Sections[1].Comments))
}

func ids(comments []models.ReviewComment) []string {
	out := make([]string, len(comments))
	for i, c := range comments {
		out[i] = c.ID
	}
	return out
}

func TestAddRequiresSyllabusID(t *testing.T) {
	backend := &commentBackendStub{}
	svc := NewReviewThreadService(backend, nil, nil)
	_, err := svc.Add(context.Background(), hodSession, dto.AddCommentRequest{SectionKey: "clo", Content: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMissingSyllabusID))
	assert.Contains(t, err.Error(), "save the syllabus first")
	assert.Equal(t, 0, backend.calls)
}

func TestAddNormalizesSectionAndAuthor(t *testing.T) {
	backend := &commentBackendStub{}
	svc := NewReviewThreadService(backend, nil, nil)
	created, err := svc.Add(context.Background(), hodSession, dto.AddCommentRequest{SyllabusID: "S1", SectionKey: "bogus", Content: "  tighten CLO-2  "})
	require.NoError(t, err)
	assert.Equal(t, models.SectionGeneral, created.SectionKey)
	require.Len(t, backend.created, 1)
	assert.Equal(t, "tighten CLO-2", backend.created[0].Content)
	assert.Equal(t, "hod-1", backend.created[0].AuthorID)
}

func TestAddRejectsBlankContent(t *testing.T) {
	backend := &commentBackendStub{}
	svc := NewReviewThreadService(backend, nil, nil)
	_, err := svc.Add(context.Background(), hodSession, dto.AddCommentRequest{SyllabusID: "S1", Content: "   "})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, 0, backend.calls)
}

func TestListAndDelete(t *testing.T) {
	backend := &commentBackendStub{comments: []models.ReviewComment{{ID: "a", SectionKey: "plo"}}}
	svc := NewReviewThreadService(backend, nil, nil)

	_, err := svc.List(context.Background(), hodSession, " ")
	assert.True(t, errors.Is(err, appErrors.ErrMissingSyllabusID))

	thread, err := svc.List(context.Background(), hodSession, "S1")
	require.NoError(t, err)
	require.Len(t, thread.Sections, 1)
	assert.Equal(t, models.SectionPLO, thread.Sections[0].SectionKey)

	require.NoError(t, svc.Delete(context.Background(), hodSession, "a"))
	assert.Equal(t, []string{"a"}, backend.deleted)
}
