package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/syllabus-portal/internal/middleware"
	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/response"
)

// sessionFromContext returns the authenticated session or writes 401.
func sessionFromContext(c *gin.Context) (*models.SessionContext, bool) {
	session := middleware.Session(c)
	if !session.Authenticated() {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return session, true
}

func pagination[T any](page *models.Page[T]) *response.Pagination {
	if page == nil {
		return nil
	}
	return &response.Pagination{
		Page:       page.Page,
		Size:       page.Size,
		TotalItems: page.TotalItems,
		TotalPages: page.TotalPages,
	}
}

func respondOK(c *gin.Context, data interface{}) {
	response.JSON(c, http.StatusOK, data, nil, middleware.ExtractMeta(c))
}
