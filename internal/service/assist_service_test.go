package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/repository"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/httpclient"
	"github.com/noah-isme/syllabus-portal/pkg/jobs"
)

type pollRecorderStub struct {
	mu       sync.Mutex
	outcomes []string
}

func (p *pollRecorderStub) RecordPoll(target, outcome string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, target+":"+outcome)
}

// assistServer answers job polls with statuses[i] on the i-th poll and
// the last status afterwards.
func assistServer(t *testing.T, statuses ...models.AssistJobStatus) (*repository.AssistRepository, *int64) {
	t.Helper()
	var polls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/ai/"):
			_, _ = w.Write([]byte(`{"jobId":"job-1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/ai/jobs/job-1":
			n := atomic.AddInt64(&polls, 1)
			idx := int(n) - 1
			if idx >= len(statuses) {
				idx = len(statuses) - 1
			}
			job := models.AssistJob{JobID: "job-1", Status: statuses[idx]}
			if job.Status == models.AssistSucceeded {
				job.Result = json.RawMessage(`{"suggestion":"add CLO-3"}`)
			}
			if job.Status == models.AssistFailed {
				job.Error = "model overloaded"
			}
			_ = json.NewEncoder(w).Encode(job)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	client := httpclient.New(httpclient.Options{Name: "assist", BaseURL: srv.URL})
	return repository.NewAssistRepository(client), &polls
}

func TestAssistRunSucceeds(t *testing.T) {
	repo, polls := assistServer(t, models.AssistQueued, models.AssistRunning, models.AssistSucceeded)
	metrics := &pollRecorderStub{}
	svc := NewAssistService(repo, jobs.Poller{Interval: time.Millisecond, MaxAttempts: 10}, metrics, nil)

	job, err := svc.Run(context.Background(), lecturerSession, models.AssistSuggest, json.RawMessage(`{"section":"clos"}`))
	require.NoError(t, err)
	assert.Equal(t, models.AssistSucceeded, job.Status)
	assert.JSONEq(t, `{"suggestion":"add CLO-3"}`, string(job.Result))
	assert.EqualValues(t, 3, atomic.LoadInt64(polls))
	assert.Equal(t, []string{"assist_job:succeeded"}, metrics.outcomes)
}

func TestAssistAwaitFailedAndCanceled(t *testing.T) {
	repo, _ := assistServer(t, models.AssistRunning, models.AssistFailed)
	svc := NewAssistService(repo, jobs.Poller{Interval: time.Millisecond, MaxAttempts: 10}, nil, nil)
	_, err := svc.Await(context.Background(), lecturerSession, "job-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrJobFailed.Code, appErrors.CodeOf(err))
	assert.Contains(t, err.Error(), "model overloaded")

	repo, _ = assistServer(t, models.AssistCanceled)
	svc = NewAssistService(repo, jobs.Poller{Interval: time.Millisecond, MaxAttempts: 10}, nil, nil)
	_, err = svc.Await(context.Background(), lecturerSession, "job-1")
	assert.Equal(t, appErrors.ErrJobCanceled.Code, appErrors.CodeOf(err))
}

func TestAssistAwaitStopsAtAttemptBudget(t *testing.T) {
	repo, polls := assistServer(t, models.AssistRunning)
	metrics := &pollRecorderStub{}
	svc := NewAssistService(repo, jobs.Poller{Interval: time.Millisecond, MaxAttempts: 60}, metrics, nil)

	job, err := svc.Await(context.Background(), lecturerSession, "job-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPollTimeout))
	assert.NotEqual(t, appErrors.ErrJobFailed.Code, appErrors.CodeOf(err))
	require.NotNil(t, job)
	assert.Equal(t, models.AssistRunning, job.Status)
	assert.EqualValues(t, 60, atomic.LoadInt64(polls))
	assert.Equal(t, []string{"assist_job:POLL_TIMEOUT"}, metrics.outcomes)
}

func TestAssistStartRejectsUnknownKind(t *testing.T) {
	repo, polls := assistServer(t, models.AssistSucceeded)
	svc := NewAssistService(repo, jobs.Poller{}, nil, nil)
	_, err := svc.Start(context.Background(), lecturerSession, models.AssistKind("poem"), nil)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))
	assert.Zero(t, atomic.LoadInt64(polls))
}
