package models

import "time"

// WorkflowStatus captures the lifecycle of a syllabus version.
type WorkflowStatus string

const (
	StatusDraft           WorkflowStatus = "DRAFT"
	StatusPendingReview   WorkflowStatus = "PENDING_REVIEW"
	StatusPendingApproval WorkflowStatus = "PENDING_APPROVAL"
	StatusApproved        WorkflowStatus = "APPROVED"
	StatusPublished       WorkflowStatus = "PUBLISHED"
	StatusRejected        WorkflowStatus = "REJECTED"
)

// WorkflowStatuses lists every status.
var WorkflowStatuses = []WorkflowStatus{
	StatusDraft,
	StatusPendingReview,
	StatusPendingApproval,
	StatusApproved,
	StatusPublished,
	StatusRejected,
}

// IsTerminal reports whether no further review step applies.
func (s WorkflowStatus) IsTerminal() bool {
	return s == StatusPublished || s == StatusRejected
}

// WorkflowAction is a requested workflow step.
type WorkflowAction string

const (
	ActionSubmit      WorkflowAction = "SUBMIT"
	ActionApprove     WorkflowAction = "APPROVE"
	ActionReject      WorkflowAction = "REJECT"
	ActionRequireEdit WorkflowAction = "REQUIRE_EDIT"
	ActionPublish     WorkflowAction = "PUBLISH"
	ActionNewVersion  WorkflowAction = "NEW_VERSION"
)

// WorkflowActions lists every action.
var WorkflowActions = []WorkflowAction{
	ActionSubmit,
	ActionApprove,
	ActionReject,
	ActionRequireEdit,
	ActionPublish,
	ActionNewVersion,
}

// WorkflowState is the simplified projection shown in reviewer screens.
type WorkflowState string

const (
	StateDraft    WorkflowState = "DRAFT"
	StateReview   WorkflowState = "REVIEW"
	StateApproved WorkflowState = "APPROVED"
	StateRejected WorkflowState = "REJECTED"
)

// WorkflowHistoryEntry records one performed action.
type WorkflowHistoryEntry struct {
	ActorID   string         `json:"actorId"`
	Role      Role           `json:"role"`
	Action    WorkflowAction `json:"action"`
	Comment   string         `json:"comment,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// WorkflowInstance tracks approval of an entity, separate from its content.
type WorkflowInstance struct {
	ID         string                 `json:"id"`
	EntityID   string                 `json:"entityId"`
	EntityType string                 `json:"entityType"`
	State      WorkflowState          `json:"state"`
	History    []WorkflowHistoryEntry `json:"history,omitempty"`
}

// WorkflowReview bundles an instance with the syllabus version under review.
type WorkflowReview struct {
	Workflow WorkflowInstance `json:"workflow"`
	Syllabus *SyllabusVersion `json:"syllabus,omitempty"`
}
