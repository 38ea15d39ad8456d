package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

type observerStub struct {
	calls []int
}

func (o *observerStub) ObserveBackendCall(backend, operation string, status int, duration time.Duration) {
	o.calls = append(o.calls, status)
}

func TestDoSendsSessionHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "u-1", r.Header.Get("X-User-Id"))
		assert.Equal(t, "HOD", r.Header.Get("X-User-Role"))
		assert.Equal(t, "/api/syllabuses/S1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"S1","versionNo":3}`))
	}))
	t.Cleanup(server.Close)

	obs := &observerStub{}
	c := New(Options{Name: "syllabus", BaseURL: server.URL + "/api/", HTTPClient: server.Client(), Observer: obs})
	var out models.SyllabusVersion
	err := c.Do(context.Background(), Request{
		Path:    "/syllabuses/S1",
		Session: &models.SessionContext{Token: "tok", ActorID: "u-1", Role: models.RoleHOD},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, out.VersionNo)
	assert.Equal(t, []int{http.StatusOK}, obs.calls)
}

func TestDoUnwrapsDataEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"jobId":"j-1"}}`))
	}))
	t.Cleanup(server.Close)

	c := New(Options{Name: "ai", BaseURL: server.URL, HTTPClient: server.Client()})
	var out struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/ai/chat", Body: map[string]string{"q": "hi"}}, &out))
	assert.Equal(t, "j-1", out.JobID)
}

func TestDoSurfacesUpstreamMessageVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Syllabus already under review"}`))
	}))
	t.Cleanup(server.Close)

	c := New(Options{Name: "workflow", BaseURL: server.URL, HTTPClient: server.Client()})
	err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/workflows/1/approve"}, nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUpstreamRejected.Code, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "Syllabus already under review", appErr.Message)
	assert.Equal(t, http.StatusConflict, StatusCode(err))
}

func TestDoUnauthorizedTriggersHook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"token expired"}}`))
	}))
	t.Cleanup(server.Close)

	var torn int32
	c := New(Options{
		Name:       "syllabus",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		OnUnauthorized: func(ctx context.Context, s *models.SessionContext) {
			atomic.AddInt32(&torn, 1)
		},
	})
	err := c.Do(context.Background(), Request{Path: "/syllabuses"}, nil)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
	assert.Equal(t, "token expired", appErrors.FromError(err).Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&torn))
}

func TestDoUnreachable(t *testing.T) {
	c := New(Options{Name: "syllabus", BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	err := c.Do(context.Background(), Request{Path: "/syllabuses"}, nil)
	require.ErrorIs(t, err, appErrors.ErrUpstreamUnavailable)
}

func TestDoSendsRawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"a":1}`, string(body))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	c := New(Options{Name: "x", BaseURL: server.URL, HTTPClient: server.Client()})
	var out map[string]interface{}
	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/x", Body: json.RawMessage(`{"a":1}`)}, &out))
	assert.Nil(t, out)
}

func TestDecodePageShapes(t *testing.T) {
	spring := json.RawMessage(`{"content":[{"id":"a"},{"id":"b"}],"number":1,"size":2,"totalElements":5,"totalPages":3}`)
	page, err := DecodePage[models.SyllabusVersion](spring)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.Size)
	assert.Equal(t, 5, page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)

	bare, err := DecodePage[models.SyllabusVersion](json.RawMessage(`[{"id":"a"}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, bare.TotalItems)

	empty, err := DecodePage[models.SyllabusVersion](json.RawMessage(`{"content":null,"totalElements":0}`))
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
}
