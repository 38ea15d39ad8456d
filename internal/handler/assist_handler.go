package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/syllabus-portal/internal/dto"
	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/response"
)

type assistService interface {
	Start(ctx context.Context, session *models.SessionContext, kind models.AssistKind, payload json.RawMessage) (string, error)
	Await(ctx context.Context, session *models.SessionContext, jobID string) (*models.AssistJob, error)
	Job(ctx context.Context, session *models.SessionContext, jobID string) (*models.AssistJob, error)
}

// AssistHandler exposes AI-assist jobs.
type AssistHandler struct {
	service assistService
}

// NewAssistHandler constructs the handler.
func NewAssistHandler(svc assistService) *AssistHandler {
	return &AssistHandler{service: svc}
}

// Start godoc
// @Summary Start an AI-assist job
// @Description With wait=true the call polls the job until it finishes or the poll budget runs out.
// @Tags Assist
// @Accept json
// @Produce json
// @Param kind path string true "suggest, chat, diff, clo-check or summary"
// @Param payload body dto.AssistRequest true "Job input"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /assist/{kind} [post]
func (h *AssistHandler) Start(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	kind, valid := models.ParseAssistKind(c.Param("kind"))
	if !valid {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown assist kind"))
		return
	}
	var req dto.AssistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}

	jobID, err := h.service.Start(c.Request.Context(), session, kind, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !req.Wait {
		response.JSON(c, http.StatusAccepted, dto.AssistStarted{JobID: jobID}, nil)
		return
	}
	job, err := h.service.Await(c.Request.Context(), session, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, job)
}

// Job godoc
// @Summary AI-assist job status
// @Tags Assist
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /assist/jobs/{id} [get]
func (h *AssistHandler) Job(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	job, err := h.service.Job(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, job)
}
