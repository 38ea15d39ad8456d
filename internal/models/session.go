package models

import "github.com/golang-jwt/jwt/v5"

// SessionContext identifies the actor on whose behalf backend calls are made.
type SessionContext struct {
	Token     string `json:"token"`
	ActorID   string `json:"actorId"`
	Role      Role   `json:"role"`
	DisplayID string `json:"displayId,omitempty"`
}

// Authenticated reports whether the session carries an actor.
func (s *SessionContext) Authenticated() bool {
	return s != nil && s.ActorID != ""
}

// SessionClaims is the JWT payload issued by the auth service.
type SessionClaims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	DisplayID string `json:"display_id,omitempty"`
	jwt.RegisteredClaims
}
