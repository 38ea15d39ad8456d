package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/jobs"
)

// HealthTarget is one backend to probe.
type HealthTarget struct {
	Name    string
	BaseURL string
}

// HealthService probes the backends the portal depends on.
type HealthService struct {
	targets []HealthTarget
	client  *http.Client
	poller  jobs.Poller
	metrics *MetricsService
	logger  *zap.Logger
}

// NewHealthService constructs a HealthService. Targets without a base URL
// are still reported, as unreachable.
func NewHealthService(targets []HealthTarget, timeout time.Duration, poller jobs.Poller, metrics *MetricsService, logger *zap.Logger) *HealthService {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sorted := append([]HealthTarget(nil), targets...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &HealthService{
		targets: sorted,
		client:  &http.Client{Timeout: timeout},
		poller:  jobs.NewPoller(poller.Interval, poller.MaxAttempts),
		metrics: metrics,
		logger:  logger,
	}
}

// Targets lists the probed backends by name.
func (s *HealthService) Targets() []HealthTarget {
	return append([]HealthTarget(nil), s.targets...)
}

// ProbeAll probes every backend concurrently, in target order.
func (s *HealthService) ProbeAll(ctx context.Context) []models.ServiceHealth {
	results := make([]models.ServiceHealth, len(s.targets))
	var wg sync.WaitGroup
	for i, target := range s.targets {
		wg.Add(1)
		go func(i int, target HealthTarget) {
			defer wg.Done()
			results[i], _ = s.probe(ctx, target)
		}(i, target)
	}
	wg.Wait()
	return results
}

// Probe checks a single backend by name.
func (s *HealthService) Probe(ctx context.Context, name string) (models.ServiceHealth, error) {
	target, ok := s.target(name)
	if !ok {
		return models.ServiceHealth{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown backend %q", name))
	}
	return s.probe(ctx, target)
}

// WaitHealthy polls a backend until it answers below 500. Running out of
// attempts yields POLL_TIMEOUT.
func (s *HealthService) WaitHealthy(ctx context.Context, name string) (models.ServiceHealth, error) {
	target, ok := s.target(name)
	if !ok {
		return models.ServiceHealth{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown backend %q", name))
	}

	var last models.ServiceHealth
	err := s.poller.Poll(ctx, func(ctx context.Context, attempt int) (bool, error) {
		var probeErr error
		last, probeErr = s.probe(ctx, target)
		if probeErr != nil {
			s.logger.Debug("backend not healthy yet", zap.String("backend", name), zap.Int("attempt", attempt), zap.Error(probeErr))
		}
		return last.Reachable, nil
	})

	outcome := "healthy"
	if err != nil {
		outcome = appErrors.CodeOf(err)
		if outcome == "" {
			outcome = "error"
		}
	}
	s.metrics.RecordPoll("health_"+name, outcome)
	return last, err
}

// Report bundles a full probe with the gateway metrics snapshot.
func (s *HealthService) Report(ctx context.Context) models.HealthReport {
	services := s.ProbeAll(ctx)
	healthy := true
	for _, svc := range services {
		if !svc.Reachable {
			healthy = false
		}
	}
	return models.HealthReport{
		Services: services,
		Healthy:  healthy,
		Metrics:  s.metrics.Snapshot(),
	}
}

func (s *HealthService) target(name string) (HealthTarget, bool) {
	for _, t := range s.targets {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return HealthTarget{}, false
}

func (s *HealthService) probe(ctx context.Context, target HealthTarget) (models.ServiceHealth, error) {
	result := models.ServiceHealth{
		Service:    target.Name,
		ObservedAt: time.Now().UTC(),
	}
	if target.BaseURL == "" {
		err := errors.New("base URL not configured")
		result.Error = err.Error()
		return result, err
	}
	result.URL = strings.TrimRight(target.BaseURL, "/") + "/health"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, result.URL, nil)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	result.Duration = time.Since(start)

	status := 0
	if err != nil {
		result.Error = err.Error()
	} else {
		defer resp.Body.Close() //nolint:errcheck
		status = resp.StatusCode
		result.StatusCode = resp.StatusCode
		result.Reachable = resp.StatusCode < http.StatusInternalServerError
		if !result.Reachable {
			result.Error = fmt.Sprintf("received status %d", resp.StatusCode)
			err = fmt.Errorf("%s health check failed: %s", target.Name, result.Error)
		}
	}
	s.metrics.ObserveBackendCall(target.Name, "health", status, result.Duration)
	return result, err
}
