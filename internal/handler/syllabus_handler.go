package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/syllabus-portal/internal/dto"
	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/service"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/response"
)

type syllabusService interface {
	List(ctx context.Context, session *models.SessionContext, filter models.SyllabusFilter) (*models.Page[models.SyllabusVersion], error)
	Get(ctx context.Context, session *models.SessionContext, id string) (*models.SyllabusVersion, error)
	SaveDraft(ctx context.Context, session *models.SessionContext, form models.SyllabusForm) (*models.SyllabusVersion, error)
	Submit(ctx context.Context, session *models.SessionContext, id string) (*models.SyllabusVersion, error)
	ListVersions(ctx context.Context, session *models.SessionContext, rootID string) (*models.Page[models.SyllabusVersion], error)
	Compare(ctx context.Context, session *models.SessionContext, rootID string, v1, v2 int) (*dto.VersionComparison, error)
	LoadDraft(ctx context.Context, session *models.SessionContext, key string) (*models.LocalDraft, error)
	StoreDraft(ctx context.Context, session *models.SessionContext, key string, form models.SyllabusForm) (*models.LocalDraft, error)
	DiscardDraft(ctx context.Context, session *models.SessionContext, key string) error
}

type comparisonExporter interface {
	Export(cmp *dto.VersionComparison, format service.ExportFormat) (*service.RenderedExport, error)
}

// SyllabusHandler exposes syllabus editing, submission and comparison.
type SyllabusHandler struct {
	service   syllabusService
	exporter  comparisonExporter
	validator *validator.Validate
}

// NewSyllabusHandler constructs the handler.
func NewSyllabusHandler(svc syllabusService, exporter comparisonExporter, validate *validator.Validate) *SyllabusHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &SyllabusHandler{service: svc, exporter: exporter, validator: validate}
}

// List godoc
// @Summary List syllabuses
// @Tags Syllabuses
// @Produce json
// @Param status query string false "Workflow status"
// @Param subjectCode query string false "Subject code"
// @Param q query string false "Search text"
// @Param page query int false "Page"
// @Param size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /syllabuses [get]
func (h *SyllabusHandler) List(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var query dto.SyllabusListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	if err := h.validator.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	page, err := h.service.List(c.Request.Context(), session, models.SyllabusFilter{
		Status:      models.WorkflowStatus(query.Status),
		SubjectCode: query.SubjectCode,
		Search:      query.Search,
		Page:        query.Page,
		Size:        query.Size,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page.Items, pagination(page))
}

// Get godoc
// @Summary Get syllabus version
// @Tags Syllabuses
// @Produce json
// @Param id path string true "Syllabus ID"
// @Success 200 {object} response.Envelope
// @Router /syllabuses/{id} [get]
func (h *SyllabusHandler) Get(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	version, err := h.service.Get(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, version)
}

// SaveDraft godoc
// @Summary Persist the editor form as a new version
// @Description Creates the first version when id is empty, otherwise a new version of the lineage.
// @Tags Syllabuses
// @Accept json
// @Produce json
// @Param payload body dto.SaveDraftRequest true "Editor form"
// @Success 201 {object} response.Envelope
// @Router /syllabuses/drafts [post]
func (h *SyllabusHandler) SaveDraft(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	version, err := h.service.SaveDraft(c.Request.Context(), session, req.Form())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, version)
}

// LoadDraft godoc
// @Summary Load a local draft
// @Tags Drafts
// @Produce json
// @Param key path string true "Draft key (syllabus id or new)"
// @Success 200 {object} response.Envelope
// @Router /drafts/{key} [get]
func (h *SyllabusHandler) LoadDraft(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	draft, err := h.service.LoadDraft(c.Request.Context(), session, c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, draft)
}

// StoreDraft godoc
// @Summary Store a local draft without contacting the backend
// @Tags Drafts
// @Accept json
// @Produce json
// @Param key path string true "Draft key"
// @Param payload body dto.SaveDraftRequest true "Editor form"
// @Success 200 {object} response.Envelope
// @Router /drafts/{key} [put]
func (h *SyllabusHandler) StoreDraft(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	draft, err := h.service.StoreDraft(c.Request.Context(), session, c.Param("key"), req.Form())
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, draft)
}

// DiscardDraft godoc
// @Summary Discard a local draft
// @Tags Drafts
// @Param key path string true "Draft key"
// @Success 204
// @Router /drafts/{key} [delete]
func (h *SyllabusHandler) DiscardDraft(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := h.service.DiscardDraft(c.Request.Context(), session, c.Param("key")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit a version for review
// @Tags Syllabuses
// @Produce json
// @Param id path string true "Syllabus ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /syllabuses/{id}/submit [post]
func (h *SyllabusHandler) Submit(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	version, err := h.service.Submit(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, version)
}

// ListVersions godoc
// @Summary List versions of a lineage
// @Tags Syllabuses
// @Produce json
// @Param id path string true "Root ID"
// @Success 200 {object} response.Envelope
// @Router /syllabuses/{id}/versions [get]
func (h *SyllabusHandler) ListVersions(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	page, err := h.service.ListVersions(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page.Items, pagination(page))
}

// Compare godoc
// @Summary Compare two versions
// @Tags Syllabuses
// @Produce json
// @Param id path string true "Root ID"
// @Param v1 query int true "First version number"
// @Param v2 query int true "Second version number"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /syllabuses/{id}/compare [get]
func (h *SyllabusHandler) Compare(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	cmp, err := h.compare(c, session)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, cmp)
}

// ExportComparison godoc
// @Summary Download a version comparison
// @Tags Syllabuses
// @Produce text/csv,application/pdf
// @Param id path string true "Root ID"
// @Param v1 query int true "First version number"
// @Param v2 query int true "Second version number"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /syllabuses/{id}/compare/export [get]
func (h *SyllabusHandler) ExportComparison(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export not configured"))
		return
	}
	cmp, err := h.compare(c, session)
	if err != nil {
		response.Error(c, err)
		return
	}
	rendered, err := h.exporter.Export(cmp, service.ExportFormat(strings.ToLower(c.Query("format"))))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rendered.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, rendered.ContentType, rendered.Data)
}

func (h *SyllabusHandler) compare(c *gin.Context, session *models.SessionContext) (*dto.VersionComparison, error) {
	var query dto.CompareQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "v1 and v2 must be version numbers")
	}
	if err := h.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "v1 and v2 are required")
	}
	return h.service.Compare(c.Request.Context(), session, c.Param("id"), query.V1, query.V2)
}
