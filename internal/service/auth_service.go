package service

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

// AuthService turns bearer tokens issued by the auth service into a
// SessionContext. Tokens are never minted here.
type AuthService struct {
	secret []byte
}

// NewAuthService constructs the service. With an empty secret tokens are
// decoded without signature verification and the backends remain the
// authority.
func NewAuthService(secret string) *AuthService {
	return &AuthService{secret: []byte(secret)}
}

// Verifies reports whether signatures are checked.
func (s *AuthService) Verifies() bool {
	return len(s.secret) > 0
}

// ValidateToken parses the token and returns the session it identifies.
func (s *AuthService) ValidateToken(tokenString string) (*models.SessionContext, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing token")
	}
	if !s.Verifies() {
		return s.InspectToken(tokenString)
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return sessionFromClaims(tokenString, claims)
}

// InspectToken decodes the claims without checking the signature. The CLI
// uses it to learn who it is logged in as.
func (s *AuthService) InspectToken(tokenString string) (*models.SessionContext, error) {
	claims := &models.SessionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(tokenString), claims); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "malformed token")
	}
	return sessionFromClaims(tokenString, claims)
}

func sessionFromClaims(token string, claims *models.SessionClaims) (*models.SessionContext, error) {
	actor := claims.UserID
	if actor == "" {
		actor = claims.Subject
	}
	if actor == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no user")
	}
	return &models.SessionContext{
		Token:     strings.TrimSpace(token),
		ActorID:   actor,
		Role:      models.NormalizeRole(claims.Role),
		DisplayID: claims.DisplayID,
	}, nil
}
