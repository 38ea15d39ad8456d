package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

func signToken(t *testing.T, user, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, models.SessionClaims{UserID: user, Role: role}).SignedString([]byte("issuer-secret"))
	require.NoError(t, err)
	return signed
}

type harness struct {
	t        *testing.T
	stateDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{t: t, stateDir: t.TempDir()}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand("test", &out)
	cmd.SetArgs(append([]string{"--state-dir", h.stateDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (h *harness) login(user, role string) {
	h.t.Helper()
	out, err := h.run("login", "--token", signToken(h.t, user, role))
	require.NoError(h.t, err)
	require.Contains(h.t, out, "Logged in as "+user)
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)
	h.login("lect-1", "ROLE_LECTURER")

	out, err := h.run("whoami")
	require.NoError(t, err)
	var who map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &who))
	assert.Equal(t, "lect-1", who["actorId"])
	assert.Equal(t, "LECTURER", who["role"])

	_, err = h.run("logout")
	require.NoError(t, err)

	_, err = h.run("whoami")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestLoginRequiresToken(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("login", "--token", "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")
}

func TestLoginVerifyRejectsForeignSignature(t *testing.T) {
	t.Setenv("JWT_SECRET", "gateway-secret")
	h := newHarness(t)
	_, err := h.run("login", "--verify", "--token", signToken(t, "hod-1", "HOD"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestCommandsRequireLogin(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("submit", "s-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
	assert.Contains(t, err.Error(), "syllabusctl login")
}

func workflowServer(t *testing.T, calls *int64) *httptest.Server {
	t.Helper()
	submitted := models.WorkflowHistoryEntry{ActorID: "lect-1", Role: models.RoleLecturer, Action: models.ActionSubmit, Timestamp: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
	var approved int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/workflows/wf-1/review":
			_ = json.NewEncoder(w).Encode(models.WorkflowReview{
				Workflow: models.WorkflowInstance{ID: "wf-1", EntityID: "s-1", History: []models.WorkflowHistoryEntry{submitted}},
				Syllabus: &models.SyllabusVersion{ID: "s-1", Status: models.StatusPendingReview},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/workflows/wf-1/approve":
			atomic.AddInt64(&approved, 1)
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == "/workflows/wf-1/history":
			history := []models.WorkflowHistoryEntry{submitted}
			if atomic.LoadInt64(&approved) > 0 {
				history = append(history, models.WorkflowHistoryEntry{ActorID: "hod-1", Role: models.RoleHOD, Action: models.ActionApprove, Timestamp: submitted.Timestamp.Add(time.Hour)})
			}
			_ = json.NewEncoder(w).Encode(history)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestApproveUsesStoredSession(t *testing.T) {
	var calls int64
	srv := workflowServer(t, &calls)
	t.Setenv("WORKFLOW_SERVICE_URL", srv.URL)

	h := newHarness(t)
	h.login("hod-1", "HOD")

	out, err := h.run("approve", "wf-1")
	require.NoError(t, err)
	assert.Contains(t, out, "APPROVE by hod-1")
	assert.Contains(t, out, "workflow now REVIEW (2 history entries)")
}

func TestRejectWithoutMessageMakesNoCall(t *testing.T) {
	var calls int64
	srv := workflowServer(t, &calls)
	t.Setenv("WORKFLOW_SERVICE_URL", srv.URL)

	h := newHarness(t)
	h.login("hod-1", "HOD")

	_, err := h.run("reject", "wf-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMissingComment))
	assert.Zero(t, atomic.LoadInt64(&calls))
}

func TestLecturerCannotApprove(t *testing.T) {
	var calls int64
	srv := workflowServer(t, &calls)
	t.Setenv("WORKFLOW_SERVICE_URL", srv.URL)

	h := newHarness(t)
	h.login("lect-1", "LECTURER")

	_, err := h.run("approve", "wf-1", "-m", "looks good")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Zero(t, atomic.LoadInt64(&calls))
}

func TestDraftSaveRekeysLocalDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/syllabuses" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.SyllabusVersion{
			ID: "s-9", RootID: "s-9", VersionNo: 1, Status: models.StatusDraft,
			SubjectCode: "IF-101", SubjectName: "Algorithms",
		})
	}))
	t.Cleanup(srv.Close)
	t.Setenv("SYLLABUS_SERVICE_URL", srv.URL)

	h := newHarness(t)
	h.login("lect-1", "LECTURER")

	form := filepath.Join(t.TempDir(), "form.json")
	require.NoError(t, os.WriteFile(form, []byte(`{"subjectCode":"IF-101","subjectName":"Algorithms","content":{"prerequisites":["IF-100"]}}`), 0o600))

	out, err := h.run("draft", "save", form)
	require.NoError(t, err)
	var saved models.SyllabusVersion
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	assert.Equal(t, "s-9", saved.ID)
	assert.Equal(t, 1, saved.VersionNo)

	out, err = h.run("draft", "show", "s-9")
	require.NoError(t, err)
	assert.Contains(t, out, `"subjectCode": "IF-101"`)

	_, err = h.run("draft", "show")
	require.Error(t, err)
}

func TestUnauthorizedBackendClearsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expired"}`))
	}))
	t.Cleanup(srv.Close)
	t.Setenv("SYLLABUS_SERVICE_URL", srv.URL)

	h := newHarness(t)
	h.login("lect-1", "LECTURER")

	_, err := h.run("versions", "s-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")

	_, err = h.run("whoami")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAssistRejectsUnknownKind(t *testing.T) {
	h := newHarness(t)
	h.login("lect-1", "LECTURER")

	_, err := h.run("assist", "translate", "-")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.True(t, strings.Contains(err.Error(), "translate"))
}
