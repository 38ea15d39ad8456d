package models

import "time"

// ServiceHealth is the outcome of probing one backend.
type ServiceHealth struct {
	Service    string        `json:"service"`
	URL        string        `json:"url"`
	Reachable  bool          `json:"reachable"`
	StatusCode int           `json:"statusCode,omitempty"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	ObservedAt time.Time     `json:"observedAt"`
}

// GatewayMetrics summarizes gateway traffic since start.
type GatewayMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	BackendCallsTotal        uint64    `json:"backendCallsTotal"`
	BackendFailuresTotal     uint64    `json:"backendFailuresTotal"`
	AverageBackendDurationMs float64   `json:"averageBackendDurationMs"`
	WorkflowActionsTotal     uint64    `json:"workflowActionsTotal"`
	PollTimeoutsTotal        uint64    `json:"pollTimeoutsTotal"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// HealthReport is the admin service-health dashboard payload.
type HealthReport struct {
	Services []ServiceHealth `json:"services"`
	Healthy  bool            `json:"healthy"`
	Metrics  GatewayMetrics  `json:"metrics"`
}
