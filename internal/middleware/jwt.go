package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/logger"
	"github.com/noah-isme/syllabus-portal/pkg/response"
)

// ContextSessionKey is the gin context key storing the *models.SessionContext.
const ContextSessionKey = logger.SessionKey

// TokenValidator resolves a bearer token to a session.
type TokenValidator interface {
	ValidateToken(token string) (*models.SessionContext, error)
}

// JWT requires a valid bearer token and stores the session it carries.
func JWT(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			if c.GetHeader("Authorization") == "" {
				response.Error(c, appErrors.ErrUnauthorized)
			} else {
				response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			}
			c.Abort()
			return
		}

		session, err := auth.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextSessionKey, session)
		c.Next()
	}
}

// OptionalJWT attaches the session when present but does not block.
func OptionalJWT(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}
		if session, err := auth.ValidateToken(token); err == nil {
			c.Set(ContextSessionKey, session)
		}
		c.Next()
	}
}

// Session returns the session stored by JWT, or nil.
func Session(c *gin.Context) *models.SessionContext {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil
	}
	session, _ := value.(*models.SessionContext)
	return session
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
