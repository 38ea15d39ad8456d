package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/dto"
	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/repository"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/httpclient"
	"github.com/noah-isme/syllabus-portal/pkg/logger"
)

type syllabusBackend interface {
	List(ctx context.Context, session *models.SessionContext, filter models.SyllabusFilter) (*models.Page[models.SyllabusVersion], error)
	Get(ctx context.Context, session *models.SessionContext, id string) (*models.SyllabusVersion, error)
	Create(ctx context.Context, session *models.SessionContext, payload repository.SyllabusPayload) (*models.SyllabusVersion, error)
	CreateVersion(ctx context.Context, session *models.SessionContext, rootID string, payload repository.SyllabusPayload) (*models.SyllabusVersion, error)
	ListVersions(ctx context.Context, session *models.SessionContext, rootID string) (*models.Page[models.SyllabusVersion], error)
	Compare(ctx context.Context, session *models.SessionContext, rootID string, v1, v2 int) (*repository.SyllabusComparison, error)
	Submit(ctx context.Context, session *models.SessionContext, id, idempotencyKey string) (*models.SyllabusVersion, error)
}

const knownVersionsLimit = 1024

// VersioningService hides the create-draft / new-version branching from
// callers and keeps local drafts in step with server-confirmed versions.
type VersioningService struct {
	backend        syllabusBackend
	drafts         *DraftStore
	logger         *zap.Logger
	stringFallback bool
	inflight       *inflightGuard
	newKey         func() string

	mu    sync.Mutex
	known map[string]models.SyllabusVersion
}

// VersioningOption configures the service.
type VersioningOption func(*VersioningService)

// WithContentStringFallback toggles the single retry with string-encoded
// content after a 400.
func WithContentStringFallback(enabled bool) VersioningOption {
	return func(s *VersioningService) {
		s.stringFallback = enabled
	}
}

// WithIdempotencyKeys overrides the key generator.
func WithIdempotencyKeys(fn func() string) VersioningOption {
	return func(s *VersioningService) {
		if fn != nil {
			s.newKey = fn
		}
	}
}

// NewVersioningService constructs the service with the fallback enabled.
func NewVersioningService(backend syllabusBackend, drafts *DraftStore, logger *zap.Logger, opts ...VersioningOption) *VersioningService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if drafts == nil {
		drafts = NewDraftStore(nil)
	}
	svc := &VersioningService{
		backend:        backend,
		drafts:         drafts,
		logger:         logger,
		stringFallback: true,
		inflight:       newInflightGuard(),
		newKey:         uuid.NewString,
		known:          make(map[string]models.SyllabusVersion),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

func (s *VersioningService) remember(versions ...models.SyllabusVersion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.known)+len(versions) > knownVersionsLimit {
		s.known = make(map[string]models.SyllabusVersion)
	}
	for _, v := range versions {
		if v.ID != "" {
			s.known[v.ID] = v
		}
	}
}

// Forget drops the cached status of a version so the next pre-flight asks
// the server again.
func (s *VersioningService) Forget(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.known, id)
	}
}

func (s *VersioningService) lastKnown(id string) (models.SyllabusVersion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.known[id]
	return v, ok
}

// SaveDraft stores the form locally, then persists it as a new lineage or
// as the next version of an existing one. The local draft survives any
// failure; on success it is re-keyed under the server id.
func (s *VersioningService) SaveDraft(ctx context.Context, session *models.SessionContext, form models.SyllabusForm) (*models.SyllabusVersion, error) {
	previousKey := form.DraftKey()
	if _, err := s.drafts.Save(ctx, session, previousKey, form); err != nil {
		s.logger.Warn("failed to keep local draft before save", append(logger.SessionFields(session), zap.String("draft_key", previousKey), zap.Error(err))...)
	}

	payload := repository.SyllabusPayload{
		SubjectCode: form.SubjectCode,
		SubjectName: form.SubjectName,
		Summary:     form.Summary,
		Content:     form.Content,
	}

	var (
		persist  func(repository.SyllabusPayload) (*models.SyllabusVersion, error)
		expected int
	)
	if form.ID == "" {
		expected = 1
		persist = func(p repository.SyllabusPayload) (*models.SyllabusVersion, error) {
			return s.backend.Create(ctx, session, p)
		}
	} else {
		rootID := form.RootID
		if rootID == "" {
			rootID = form.ID
		}
		expected = form.VersionNo + 1
		persist = func(p repository.SyllabusPayload) (*models.SyllabusVersion, error) {
			return s.backend.CreateVersion(ctx, session, rootID, p)
		}
	}

	version, err := s.persistWithFallback(payload, form.Content, persist)
	if err != nil {
		return nil, err
	}

	if version.VersionNo != expected {
		s.logger.Info("server assigned a different version number",
			zap.String("root_id", version.RootID),
			zap.Int("assumed", expected),
			zap.Int("assigned", version.VersionNo),
		)
	}
	s.remember(*version)

	if version.ID != "" {
		if err := s.drafts.Rekey(ctx, session, previousKey, version.ID, models.FormFromVersion(version)); err != nil {
			s.logger.Warn("failed to re-key local draft", append(logger.SessionFields(session), zap.String("draft_key", previousKey), zap.String("syllabus_id", version.ID), zap.Error(err))...)
		}
	}
	return version, nil
}

// persistWithFallback sends content as an object and, on a 400, retries
// exactly once with the string encoding.
func (s *VersioningService) persistWithFallback(payload repository.SyllabusPayload, content models.Content, persist func(repository.SyllabusPayload) (*models.SyllabusVersion, error)) (*models.SyllabusVersion, error) {
	version, err := persist(payload)
	if err == nil {
		return version, nil
	}
	if !s.stringFallback || httpclient.StatusCode(err) != http.StatusBadRequest {
		return nil, err
	}
	encoded, encErr := content.EncodeString()
	if encErr != nil {
		return nil, err
	}
	s.logger.Debug("retrying save with string-encoded content", zap.Error(err))
	payload.Content = encoded
	return persist(payload)
}

// Submit moves a draft into review after a local pre-flight check. A role
// that can never submit is refused before any network call.
func (s *VersioningService) Submit(ctx context.Context, session *models.SessionContext, id string) (*models.SyllabusVersion, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "syllabus id is required")
	}
	role := sessionRole(session)
	if !RoleMayPerform(models.ActionSubmit, role) {
		status := models.WorkflowStatus("")
		if known, ok := s.lastKnown(id); ok {
			status = known.Status
		}
		return nil, NewInvalidTransition(status, models.ActionSubmit, role)
	}

	release, err := s.inflight.acquire("syllabus:" + id)
	if err != nil {
		return nil, err
	}
	defer release()

	// A status seen earlier decides locally; an unknown one is fetched and
	// the server's answer is checked again.
	if known, ok := s.lastKnown(id); ok {
		if _, err := Evaluate(known.Status, models.ActionSubmit, role, ""); err != nil {
			return nil, err
		}
	}
	current, err := s.backend.Get(ctx, session, id)
	if err != nil {
		return nil, err
	}
	s.remember(*current)
	if _, err := Evaluate(current.Status, models.ActionSubmit, role, ""); err != nil {
		return nil, err
	}

	submitted, err := s.backend.Submit(ctx, session, id, s.newKey())
	if err != nil {
		return nil, err
	}
	if submitted == nil {
		if submitted, err = s.backend.Get(ctx, session, id); err != nil {
			return nil, err
		}
	}
	s.remember(*submitted)
	s.logger.Info("syllabus submitted", append(logger.SessionFields(session), zap.String("syllabus_id", id), zap.String("status", string(submitted.Status)))...)
	return submitted, nil
}

// Compare returns two versions of a lineage side by side with a field diff.
func (s *VersioningService) Compare(ctx context.Context, session *models.SessionContext, rootID string, v1, v2 int) (*dto.VersionComparison, error) {
	if v1 == v2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "choose two different versions")
	}
	lineage, err := s.backend.ListVersions(ctx, session, rootID)
	if err != nil {
		return nil, err
	}
	if len(lineage.Items) < 2 {
		return nil, appErrors.Clone(appErrors.ErrNotEnoughVersions, fmt.Sprintf("syllabus %s has %d version(s); at least two are required to compare", rootID, len(lineage.Items)))
	}
	s.remember(lineage.Items...)
	byNumber := make(map[int]models.SyllabusVersion, len(lineage.Items))
	for _, v := range lineage.Items {
		byNumber[v.VersionNo] = v
	}
	for _, n := range []int{v1, v2} {
		if _, ok := byNumber[n]; !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("version %d does not exist in syllabus %s", n, rootID))
		}
	}

	snapshots, err := s.backend.Compare(ctx, session, rootID, v1, v2)
	if err != nil {
		return nil, err
	}
	left, right := snapshots.Left, snapshots.Right
	if left == nil {
		v := byNumber[v1]
		left = &v
	}
	if right == nil {
		v := byNumber[v2]
		right = &v
	}
	return &dto.VersionComparison{
		RootID:  rootID,
		Left:    left,
		Right:   right,
		Changes: DiffVersions(left, right),
	}, nil
}

// DiffVersions lists differing top-level and content fields, in a stable
// order.
func DiffVersions(left, right *models.SyllabusVersion) []dto.FieldChange {
	l, r := flattenVersion(left), flattenVersion(right)
	fields := make([]string, 0, len(l)+len(r))
	seen := make(map[string]struct{}, len(l)+len(r))
	for _, src := range []map[string]string{l, r} {
		for k := range src {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				fields = append(fields, k)
			}
		}
	}
	sort.Strings(fields)
	changes := make([]dto.FieldChange, 0)
	for _, f := range fields {
		if l[f] != r[f] {
			changes = append(changes, dto.FieldChange{Field: f, Left: l[f], Right: r[f]})
		}
	}
	return changes
}

func flattenVersion(v *models.SyllabusVersion) map[string]string {
	out := make(map[string]string)
	if v == nil {
		return out
	}
	out["subjectCode"] = v.SubjectCode
	out["subjectName"] = v.SubjectName
	out["summary"] = v.Summary
	out["status"] = string(v.Status)
	raw, err := v.Content.Encode()
	if err != nil {
		return out
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return out
	}
	for k, value := range fields {
		out["content."+k] = string(value)
	}
	return out
}

// Get fetches one version.
func (s *VersioningService) Get(ctx context.Context, session *models.SessionContext, id string) (*models.SyllabusVersion, error) {
	version, err := s.backend.Get(ctx, session, id)
	if err != nil {
		return nil, err
	}
	s.remember(*version)
	return version, nil
}

// List returns a normalized page.
func (s *VersioningService) List(ctx context.Context, session *models.SessionContext, filter models.SyllabusFilter) (*models.Page[models.SyllabusVersion], error) {
	page, err := s.backend.List(ctx, session, filter)
	if err != nil {
		return nil, err
	}
	s.remember(page.Items...)
	return page, nil
}

// ListVersions returns the lineage ordered by version number.
func (s *VersioningService) ListVersions(ctx context.Context, session *models.SessionContext, rootID string) (*models.Page[models.SyllabusVersion], error) {
	page, err := s.backend.ListVersions(ctx, session, rootID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(page.Items, func(i, j int) bool { return page.Items[i].VersionNo < page.Items[j].VersionNo })
	s.remember(page.Items...)
	return page, nil
}

// LoadDraft returns the local draft for key.
func (s *VersioningService) LoadDraft(ctx context.Context, session *models.SessionContext, key string) (*models.LocalDraft, error) {
	return s.drafts.Load(ctx, session, key)
}

// StoreDraft overwrites the local draft for key without contacting the server.
func (s *VersioningService) StoreDraft(ctx context.Context, session *models.SessionContext, key string, form models.SyllabusForm) (*models.LocalDraft, error) {
	return s.drafts.Save(ctx, session, key, form)
}

// DiscardDraft drops the local draft for key.
func (s *VersioningService) DiscardDraft(ctx context.Context, session *models.SessionContext, key string) error {
	return s.drafts.Discard(ctx, session, key)
}

func sessionRole(session *models.SessionContext) models.Role {
	if session == nil {
		return ""
	}
	return models.NormalizeRole(string(session.Role))
}
