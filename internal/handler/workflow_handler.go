package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/syllabus-portal/internal/dto"
	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/service"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/response"
)

type approvalService interface {
	Dispatch(ctx context.Context, session *models.SessionContext, workflowID string, action models.WorkflowAction, comment string) (*service.DispatchResult, error)
	Queue(ctx context.Context, session *models.SessionContext, state models.WorkflowState, page, size int) (*models.Page[models.WorkflowInstance], error)
	Review(ctx context.Context, session *models.SessionContext, workflowID string) (*models.WorkflowReview, error)
	History(ctx context.Context, session *models.SessionContext, workflowID string) ([]models.WorkflowHistoryEntry, error)
	AllowedActions(ctx context.Context, session *models.SessionContext, workflowID string) (models.WorkflowStatus, []models.WorkflowAction, error)
}

// WorkflowHandler exposes the reviewer queue and review actions.
type WorkflowHandler struct {
	service   approvalService
	validator *validator.Validate
}

// NewWorkflowHandler constructs the handler.
func NewWorkflowHandler(svc approvalService, validate *validator.Validate) *WorkflowHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &WorkflowHandler{service: svc, validator: validate}
}

// Queue godoc
// @Summary Reviewer queue
// @Tags Workflows
// @Produce json
// @Param state query string false "DRAFT, REVIEW, APPROVED or REJECTED"
// @Param page query int false "Page"
// @Param size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /workflows [get]
func (h *WorkflowHandler) Queue(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var query dto.WorkflowQueueQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	if err := h.validator.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	page, err := h.service.Queue(c.Request.Context(), session, models.WorkflowState(query.State), query.Page, query.Size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page.Items, pagination(page))
}

// Review godoc
// @Summary Workflow with the syllabus under review
// @Tags Workflows
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} response.Envelope
// @Router /workflows/{id}/review [get]
func (h *WorkflowHandler) Review(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	review, err := h.service.Review(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, review)
}

// History godoc
// @Summary Workflow history
// @Tags Workflows
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} response.Envelope
// @Router /workflows/{id}/history [get]
func (h *WorkflowHandler) History(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	history, err := h.service.History(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, history)
}

// Dispatch godoc
// @Summary Perform a review action
// @Description REJECT and REQUIRE_EDIT require a non-blank comment.
// @Tags Workflows
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Param payload body dto.DispatchActionRequest true "Action"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /workflows/{id}/actions [post]
func (h *WorkflowHandler) Dispatch(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.DispatchActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	result, err := h.service.Dispatch(c.Request.Context(), session, c.Param("id"), service.ParseAction(req.Action), req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, dto.DispatchResponse{Entry: &result.Entry, History: result.History, State: result.State})
}

// AllowedActions godoc
// @Summary Actions the current actor may perform
// @Tags Workflows
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} response.Envelope
// @Router /workflows/{id}/allowed-actions [get]
func (h *WorkflowHandler) AllowedActions(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	status, actions, err := h.service.AllowedActions(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, dto.AllowedActionsResponse{
		WorkflowID: c.Param("id"),
		Status:     status,
		Role:       session.Role,
		Actions:    actions,
	})
}
