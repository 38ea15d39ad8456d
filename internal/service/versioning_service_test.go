package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/repository"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/httpclient"
)

// fakeSyllabusBackend is an in-memory versioning server.
type fakeSyllabusBackend struct {
	mu       sync.Mutex
	versions map[string]*models.SyllabusVersion
	calls    int32
	bodies   []json.RawMessage
	reject   func(body map[string]json.RawMessage) bool
}

func newFakeSyllabusBackend() *fakeSyllabusBackend {
	return &fakeSyllabusBackend{versions: make(map[string]*models.SyllabusVersion)}
}

func (f *fakeSyllabusBackend) add(v models.SyllabusVersion) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions[v.ID] = &v
}

func (f *fakeSyllabusBackend) lineage(rootID string) []models.SyllabusVersion {
	out := make([]models.SyllabusVersion, 0)
	for _, v := range f.versions {
		if v.RootID == rootID {
			out = append(out, *v)
		}
	}
	return out
}

func (f *fakeSyllabusBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	writeJSON := func(v interface{}) {
		_ = json.NewEncoder(w).Encode(v)
	}
	readBody := func() (map[string]json.RawMessage, bool) {
		raw, _ := io.ReadAll(r.Body)
		f.bodies = append(f.bodies, raw)
		var body map[string]json.RawMessage
		_ = json.Unmarshal(raw, &body)
		if f.reject != nil && f.reject(body) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"content must be a string"}`))
			return nil, false
		}
		return body, true
	}
	build := func(body map[string]json.RawMessage, id, rootID string, n int) *models.SyllabusVersion {
		v := &models.SyllabusVersion{ID: id, RootID: rootID, VersionNo: n, Status: models.StatusDraft}
		_ = json.Unmarshal(body["subjectCode"], &v.SubjectCode)
		_ = json.Unmarshal(body["subjectName"], &v.SubjectName)
		content, _ := models.DecodeContent(body["content"])
		v.Content = content
		f.versions[id] = v
		return v
	}

	switch {
	case r.Method == http.MethodPost && len(parts) == 1:
		body, ok := readBody()
		if !ok {
			return
		}
		id := fmt.Sprintf("S%d", len(f.versions)+1)
		writeJSON(build(body, id, "R"+id, 1))
	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "versions":
		body, ok := readBody()
		if !ok {
			return
		}
		next := 0
		for _, v := range f.lineage(parts[1]) {
			if v.VersionNo > next {
				next = v.VersionNo
			}
		}
		id := fmt.Sprintf("%s-v%d", parts[1], next+1)
		writeJSON(build(body, id, parts[1], next+1))
	case r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "versions":
		writeJSON(map[string]interface{}{"content": f.lineage(parts[1]), "number": 0, "size": 20, "totalElements": len(f.lineage(parts[1])), "totalPages": 1})
	case r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "compare":
		var left, right *models.SyllabusVersion
		for _, v := range f.lineage(parts[1]) {
			v := v
			if fmt.Sprint(v.VersionNo) == r.URL.Query().Get("v1") {
				left = &v
			}
			if fmt.Sprint(v.VersionNo) == r.URL.Query().Get("v2") {
				right = &v
			}
		}
		writeJSON(map[string]interface{}{"left": left, "right": right})
	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "submit":
		v, ok := f.versions[parts[1]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		v.Status = models.StatusPendingReview
		writeJSON(v)
	case r.Method == http.MethodGet && len(parts) == 2:
		v, ok := f.versions[parts[1]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(v)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeSyllabusBackend) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

func newVersioningFixture(t *testing.T, opts ...VersioningOption) (*VersioningService, *fakeSyllabusBackend, *DraftStore) {
	t.Helper()
	fake := newFakeSyllabusBackend()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	client := httpclient.New(httpclient.Options{Name: "syllabus", BaseURL: server.URL, HTTPClient: server.Client()})
	drafts := NewDraftStore(repository.NewMemoryKVStore())
	svc := NewVersioningService(repository.NewSyllabusRepository(client), drafts, nil, opts...)
	return svc, fake, drafts
}

var lecturerSession = &models.SessionContext{Token: "t", ActorID: "lect-1", Role: models.RoleLecturer}

func TestSaveDraftCreatesLineageAndRekeysDraft(t *testing.T) {
	svc, fake, drafts := newVersioningFixture(t)
	ctx := context.Background()

	version, err := svc.SaveDraft(ctx, lecturerSession, sampleForm())
	require.NoError(t, err)
	assert.Equal(t, 1, version.VersionNo)
	assert.Equal(t, models.StatusDraft, version.Status)
	assert.Equal(t, 1, fake.callCount())

	_, err = drafts.Load(ctx, lecturerSession, models.NewDraftKey)
	assert.True(t, errors.Is(err, appErrors.ErrDraftNotFound))
	rekeyed, err := drafts.Load(ctx, lecturerSession, version.ID)
	require.NoError(t, err)
	assert.Equal(t, version.ID, rekeyed.Form.ID)
	assert.Equal(t, "Algorithms", rekeyed.Form.SubjectName)
}

func TestSaveDraftAllowsEmptySubject(t *testing.T) {
	svc, _, _ := newVersioningFixture(t)
	version, err := svc.SaveDraft(context.Background(), lecturerSession, models.SyllabusForm{})
	require.NoError(t, err)
	assert.Equal(t, 1, version.VersionNo)
}

func TestSaveDraftTrustsServerVersionNumber(t *testing.T) {
	svc, fake, _ := newVersioningFixture(t)
	for n := 1; n <= 3; n++ {
		fake.add(models.SyllabusVersion{ID: fmt.Sprintf("R1-v%d", n), RootID: "R1", VersionNo: n, Status: models.StatusPublished})
	}

	form := sampleForm()
	form.ID, form.RootID, form.VersionNo = "R1-v1", "R1", 1
	version, err := svc.SaveDraft(context.Background(), lecturerSession, form)
	require.NoError(t, err)
	assert.Equal(t, 4, version.VersionNo)
	assert.Equal(t, models.StatusDraft, version.Status)

	form = models.FormFromVersion(version)
	next, err := svc.SaveDraft(context.Background(), lecturerSession, form)
	require.NoError(t, err)
	assert.Equal(t, 5, next.VersionNo)
}

func TestSaveDraftRetriesOnceWithStringContent(t *testing.T) {
	svc, fake, _ := newVersioningFixture(t)
	fake.reject = func(body map[string]json.RawMessage) bool {
		return len(body["content"]) > 0 && body["content"][0] == '{'
	}
	form := models.SyllabusForm{
		SubjectCode: "IF101",
		Content: models.Content{
			PLOs: []models.LearningOutcome{{Code: "PLO-1", Description: "a"}},
			CLOs: []models.LearningOutcome{{Code: "CLO-1", Description: "b"}},
		},
	}

	version, err := svc.SaveDraft(context.Background(), lecturerSession, form)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.callCount())
	require.Len(t, fake.bodies, 2)

	var second map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(fake.bodies[1], &second))
	var encoded string
	require.NoError(t, json.Unmarshal(second["content"], &encoded))
	assert.JSONEq(t, `{"plos":[{"code":"PLO-1","description":"a"}],"clos":[{"code":"CLO-1","description":"b"}]}`, encoded)
	assert.Equal(t, form.Content, version.Content)
}

func TestSaveDraftFallbackDisabledKeepsDraft(t *testing.T) {
	svc, fake, drafts := newVersioningFixture(t, WithContentStringFallback(false))
	fake.reject = func(map[string]json.RawMessage) bool { return true }

	_, err := svc.SaveDraft(context.Background(), lecturerSession, sampleForm())
	require.Error(t, err)
	assert.Equal(t, 1, fake.callCount())
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
	assert.Equal(t, "content must be a string", appErrors.FromError(err).Message)

	kept, err := drafts.Load(context.Background(), lecturerSession, models.NewDraftKey)
	require.NoError(t, err)
	assert.Equal(t, sampleForm(), kept.Form)
}

func TestSaveDraftNoThirdAttempt(t *testing.T) {
	svc, fake, _ := newVersioningFixture(t)
	fake.reject = func(map[string]json.RawMessage) bool { return true }
	_, err := svc.SaveDraft(context.Background(), lecturerSession, sampleForm())
	require.Error(t, err)
	assert.Equal(t, 2, fake.callCount())
}

func TestSubmitScenario(t *testing.T) {
	svc, fake, _ := newVersioningFixture(t, WithIdempotencyKeys(func() string { return "fixed" }))
	fake.add(models.SyllabusVersion{ID: "S1", RootID: "R1", VersionNo: 1, Status: models.StatusDraft})

	submitted, err := svc.Submit(context.Background(), lecturerSession, "S1")
	require.NoError(t, err)
	assert.Equal(t, 1, submitted.VersionNo)
	assert.Equal(t, models.StatusPendingReview, submitted.Status)
	callsAfterSubmit := fake.callCount()

	hod := &models.SessionContext{ActorID: "hod-1", Role: models.RoleHOD}
	_, err = svc.Submit(context.Background(), hod, "S1")
	require.Error(t, err)
	var invalid *InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, models.StatusPendingReview, invalid.Status)
	assert.Equal(t, models.ActionSubmit, invalid.Action)
	assert.Equal(t, models.RoleHOD, invalid.Role)
	assert.Equal(t, callsAfterSubmit, fake.callCount())
}

func TestSubmitPreflightOnStatus(t *testing.T) {
	svc, fake, _ := newVersioningFixture(t)
	fake.add(models.SyllabusVersion{ID: "S1", RootID: "R1", VersionNo: 1, Status: models.StatusApproved})

	// Unknown status: fetched once, then refused.
	_, err := svc.Submit(context.Background(), lecturerSession, "S1")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Equal(t, 1, fake.callCount())
}

func TestSubmitKnownStatusRefusedWithoutNetwork(t *testing.T) {
	svc, fake, _ := newVersioningFixture(t)
	fake.add(models.SyllabusVersion{ID: "S1", RootID: "R1", VersionNo: 1, Status: models.StatusApproved})

	_, err := svc.Get(context.Background(), lecturerSession, "S1")
	require.NoError(t, err)
	before := fake.callCount()

	_, err = svc.Submit(context.Background(), lecturerSession, "S1")
	var invalid *InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, models.StatusApproved, invalid.Status)
	assert.Equal(t, before, fake.callCount())

	svc.Forget("S1")
	_, err = svc.Submit(context.Background(), lecturerSession, "S1")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Equal(t, before+1, fake.callCount())
}

func TestCompare(t *testing.T) {
	svc, fake, _ := newVersioningFixture(t)
	fake.add(models.SyllabusVersion{ID: "a", RootID: "R1", VersionNo: 1, SubjectName: "Algo"})

	_, err := svc.Compare(context.Background(), lecturerSession, "R1", 1, 2)
	assert.True(t, errors.Is(err, appErrors.ErrNotEnoughVersions))

	fake.add(models.SyllabusVersion{ID: "b", RootID: "R1", VersionNo: 2, SubjectName: "Algorithms",
		Content: models.Content{Prerequisites: []string{"IF100"}}})
	cmp, err := svc.Compare(context.Background(), lecturerSession, "R1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "a", cmp.Left.ID)
	assert.Equal(t, "b", cmp.Right.ID)
	require.Len(t, cmp.Changes, 2)
	assert.Equal(t, "content.prerequisites", cmp.Changes[0].Field)
	assert.Equal(t, `["IF100"]`, cmp.Changes[0].Right)
	assert.Equal(t, "subjectName", cmp.Changes[1].Field)

	_, err = svc.Compare(context.Background(), lecturerSession, "R1", 1, 7)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestListVersionsSorted(t *testing.T) {
	svc, fake, _ := newVersioningFixture(t)
	for _, n := range []int{3, 1, 2} {
		fake.add(models.SyllabusVersion{ID: fmt.Sprint(n), RootID: "R1", VersionNo: n})
	}
	page, err := svc.ListVersions(context.Background(), lecturerSession, "R1")
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	for i, v := range page.Items {
		assert.Equal(t, i+1, v.VersionNo)
	}
}

func TestInflightGuard(t *testing.T) {
	guard := newInflightGuard()
	release, err := guard.acquire("w1")
	require.NoError(t, err)
	_, err = guard.acquire("w1")
	assert.True(t, errors.Is(err, appErrors.ErrActionInFlight))
	release()
	_, err = guard.acquire("w1")
	assert.NoError(t, err)
}
