package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/syllabus-portal/internal/dto"
	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/response"
)

type reviewThreadService interface {
	List(ctx context.Context, session *models.SessionContext, syllabusID string) (*models.ReviewThread, error)
	Add(ctx context.Context, session *models.SessionContext, req dto.AddCommentRequest) (*models.ReviewComment, error)
	Delete(ctx context.Context, session *models.SessionContext, id string) error
}

// CommentHandler exposes section-scoped review comments.
type CommentHandler struct {
	service reviewThreadService
}

// NewCommentHandler constructs the handler.
func NewCommentHandler(svc reviewThreadService) *CommentHandler {
	return &CommentHandler{service: svc}
}

// List godoc
// @Summary Review comments grouped by section
// @Tags Comments
// @Produce json
// @Param id path string true "Syllabus ID"
// @Success 200 {object} response.Envelope
// @Router /syllabuses/{id}/comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	thread, err := h.service.List(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, thread)
}

// Add godoc
// @Summary Add a review comment
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path string true "Syllabus ID"
// @Param payload body dto.AddCommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Router /syllabuses/{id}/comments [post]
func (h *CommentHandler) Add(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	req.SyllabusID = c.Param("id")
	comment, err := h.service.Add(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// Delete godoc
// @Summary Delete a review comment
// @Tags Comments
// @Param id path string true "Comment ID"
// @Success 204
// @Router /comments/{id} [delete]
func (h *CommentHandler) Delete(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), session, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
