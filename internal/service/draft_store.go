package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/repository"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

// DraftStore keeps the editor form of each syllabus locally until the
// server confirms a save. One draft per key, last write wins.
type DraftStore struct {
	kv  repository.KeyValueStore
	now func() time.Time
}

// NewDraftStore wraps a key/value backend.
func NewDraftStore(kv repository.KeyValueStore) *DraftStore {
	if kv == nil {
		kv = repository.NewMemoryKVStore()
	}
	return &DraftStore{kv: kv, now: time.Now}
}

// draftKey scopes drafts per actor so two users of one gateway never share
// a "new" draft.
func draftKey(session *models.SessionContext, key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		key = models.NewDraftKey
	}
	if session != nil && session.ActorID != "" {
		return "draft:" + session.ActorID + ":" + key
	}
	return "draft:" + key
}

// Save overwrites the draft stored under key.
func (s *DraftStore) Save(ctx context.Context, session *models.SessionContext, key string, form models.SyllabusForm) (*models.LocalDraft, error) {
	if strings.TrimSpace(key) == "" {
		key = form.DraftKey()
	}
	form.Content = form.Content.Normalized()
	draft := &models.LocalDraft{Key: key, Form: form, SavedAt: s.now().UTC()}
	raw, err := json.Marshal(draft)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode draft")
	}
	if err := s.kv.Set(ctx, draftKey(session, key), raw); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store draft")
	}
	return draft, nil
}

// Load returns the stored draft or DRAFT_NOT_FOUND.
func (s *DraftStore) Load(ctx context.Context, session *models.SessionContext, key string) (*models.LocalDraft, error) {
	raw, err := s.kv.Get(ctx, draftKey(session, key))
	if err != nil {
		if errors.Is(err, repository.ErrKeyNotFound) {
			return nil, appErrors.Clone(appErrors.ErrDraftNotFound, fmt.Sprintf("no local draft stored for %q", key))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read draft")
	}
	var draft models.LocalDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored draft is corrupt")
	}
	return &draft, nil
}

// Discard removes the draft under key. Missing drafts are not an error.
func (s *DraftStore) Discard(ctx context.Context, session *models.SessionContext, key string) error {
	if err := s.kv.Remove(ctx, draftKey(session, key)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discard draft")
	}
	return nil
}

// Rekey moves a draft from a transient key to the server-assigned one.
func (s *DraftStore) Rekey(ctx context.Context, session *models.SessionContext, from, to string, form models.SyllabusForm) error {
	if _, err := s.Save(ctx, session, to, form); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	return s.Discard(ctx, session, from)
}

const (
	sessionTokenKey   = "session:token"
	sessionActorKey   = "session:actorId"
	sessionRoleKey    = "session:role"
	sessionDisplayKey = "session:displayId"
)

// SessionStore persists the actor session under fixed keys.
type SessionStore struct {
	kv repository.KeyValueStore
}

// NewSessionStore wraps a key/value backend.
func NewSessionStore(kv repository.KeyValueStore) *SessionStore {
	if kv == nil {
		kv = repository.NewMemoryKVStore()
	}
	return &SessionStore{kv: kv}
}

// Save writes every session field.
func (s *SessionStore) Save(ctx context.Context, session models.SessionContext) error {
	values := map[string]string{
		sessionTokenKey:   session.Token,
		sessionActorKey:   session.ActorID,
		sessionRoleKey:    string(session.Role),
		sessionDisplayKey: session.DisplayID,
	}
	for key, value := range values {
		if err := s.kv.Set(ctx, key, []byte(value)); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store session")
		}
	}
	return nil
}

// Load restores the session. A missing token yields UNAUTHORIZED.
func (s *SessionStore) Load(ctx context.Context) (*models.SessionContext, error) {
	read := func(key string) (string, error) {
		raw, err := s.kv.Get(ctx, key)
		if errors.Is(err, repository.ErrKeyNotFound) {
			return "", nil
		}
		return string(raw), err
	}
	token, err := read(sessionTokenKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read session")
	}
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not logged in")
	}
	session := &models.SessionContext{Token: token}
	actor, err := read(sessionActorKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read session")
	}
	role, err := read(sessionRoleKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read session")
	}
	display, err := read(sessionDisplayKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read session")
	}
	session.ActorID = actor
	session.Role = models.NormalizeRole(role)
	session.DisplayID = display
	return session, nil
}

// Clear tears the session down. Drafts are kept.
func (s *SessionStore) Clear(ctx context.Context) error {
	for _, key := range []string{sessionTokenKey, sessionActorKey, sessionRoleKey, sessionDisplayKey} {
		if err := s.kv.Remove(ctx, key); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear session")
		}
	}
	return nil
}
