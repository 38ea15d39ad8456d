package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/jobs"
	"github.com/noah-isme/syllabus-portal/pkg/logger"
)

type assistBackend interface {
	Start(ctx context.Context, session *models.SessionContext, kind models.AssistKind, payload json.RawMessage) (string, error)
	Job(ctx context.Context, session *models.SessionContext, jobID string) (*models.AssistJob, error)
}

type pollRecorder interface {
	RecordPoll(target, outcome string)
}

// AssistService starts AI-assist jobs and waits for their outcome.
type AssistService struct {
	backend assistBackend
	poller  jobs.Poller
	metrics pollRecorder
	logger  *zap.Logger
}

// NewAssistService constructs the service.
func NewAssistService(backend assistBackend, poller jobs.Poller, metrics pollRecorder, logger *zap.Logger) *AssistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssistService{
		backend: backend,
		poller:  jobs.NewPoller(poller.Interval, poller.MaxAttempts),
		metrics: metrics,
		logger:  logger,
	}
}

// Start enqueues a job of the given kind and returns its id.
func (s *AssistService) Start(ctx context.Context, session *models.SessionContext, kind models.AssistKind, payload json.RawMessage) (string, error) {
	if _, ok := models.ParseAssistKind(string(kind)); !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown assist kind "+string(kind))
	}
	return s.backend.Start(ctx, session, kind, payload)
}

// Job returns the current state of one job without waiting.
func (s *AssistService) Job(ctx context.Context, session *models.SessionContext, jobID string) (*models.AssistJob, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "jobId is required")
	}
	return s.backend.Job(ctx, session, jobID)
}

// Await polls the job until it finishes or the attempt budget runs out.
// A failed job yields JOB_FAILED, a canceled one JOB_CANCELED, and an
// exhausted budget POLL_TIMEOUT.
func (s *AssistService) Await(ctx context.Context, session *models.SessionContext, jobID string) (*models.AssistJob, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "jobId is required")
	}

	var last *models.AssistJob
	err := s.poller.Poll(ctx, func(ctx context.Context, attempt int) (bool, error) {
		job, err := s.backend.Job(ctx, session, jobID)
		if err != nil {
			return false, err
		}
		last = job
		switch job.Status {
		case models.AssistSucceeded:
			return true, nil
		case models.AssistFailed:
			msg := job.Error
			if msg == "" {
				msg = appErrors.ErrJobFailed.Message
			}
			return false, appErrors.Clone(appErrors.ErrJobFailed, msg)
		case models.AssistCanceled:
			return false, appErrors.Clone(appErrors.ErrJobCanceled, "job "+jobID+" was canceled")
		}
		return false, nil
	})

	outcome := "succeeded"
	if err != nil {
		outcome = appErrors.CodeOf(err)
		if outcome == "" {
			outcome = "error"
		}
	}
	if s.metrics != nil {
		s.metrics.RecordPoll("assist_job", outcome)
	}
	if err != nil {
		fields := append(logger.SessionFields(session), zap.String("job_id", jobID), zap.String("outcome", outcome))
		if errors.Is(err, appErrors.ErrPollTimeout) {
			s.logger.Warn("assist job still running after poll budget", fields...)
		} else {
			s.logger.Info("assist job did not succeed", append(fields, zap.Error(err))...)
		}
		return last, err
	}
	return last, nil
}

// Run starts a job and waits for it.
func (s *AssistService) Run(ctx context.Context, session *models.SessionContext, kind models.AssistKind, payload json.RawMessage) (*models.AssistJob, error) {
	jobID, err := s.Start(ctx, session, kind, payload)
	if err != nil {
		return nil, err
	}
	return s.Await(ctx, session, jobID)
}
