package models

import (
	"encoding/json"
	"strings"
)

// AssistKind selects the AI-assist operation.
type AssistKind string

const (
	AssistSuggest  AssistKind = "suggest"
	AssistChat     AssistKind = "chat"
	AssistDiff     AssistKind = "diff"
	AssistCLOCheck AssistKind = "clo-check"
	AssistSummary  AssistKind = "summary"
)

// ParseAssistKind validates a raw kind.
func ParseAssistKind(raw string) (AssistKind, bool) {
	kind := AssistKind(strings.ToLower(strings.TrimSpace(raw)))
	switch kind {
	case AssistSuggest, AssistChat, AssistDiff, AssistCLOCheck, AssistSummary:
		return kind, true
	default:
		return "", false
	}
}

// AssistJobStatus captures the lifecycle of an AI-assist job.
type AssistJobStatus string

const (
	AssistQueued    AssistJobStatus = "queued"
	AssistRunning   AssistJobStatus = "running"
	AssistSucceeded AssistJobStatus = "succeeded"
	AssistFailed    AssistJobStatus = "failed"
	AssistCanceled  AssistJobStatus = "canceled"
)

// Finished reports whether polling can stop.
func (s AssistJobStatus) Finished() bool {
	return s == AssistSucceeded || s == AssistFailed || s == AssistCanceled
}

// AssistJob is the polled job state.
type AssistJob struct {
	JobID    string          `json:"jobId"`
	Status   AssistJobStatus `json:"status"`
	Progress int             `json:"progress"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}
