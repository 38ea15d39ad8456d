package dto

import "github.com/noah-isme/syllabus-portal/internal/models"

// DispatchActionRequest asks for a review action on a workflow.
type DispatchActionRequest struct {
	Action  string `json:"action" validate:"required,oneof=APPROVE REJECT REQUIRE_EDIT PUBLISH approve reject require_edit require-edit publish"`
	Comment string `json:"comment" validate:"max=4000"`
}

// WorkflowQueueQuery binds the review queue filter.
type WorkflowQueueQuery struct {
	State string `form:"state" validate:"omitempty,oneof=DRAFT REVIEW APPROVED REJECTED"`
	Page  int    `form:"page" validate:"gte=0"`
	Size  int    `form:"size" validate:"gte=0,lte=200"`
}

// DispatchResponse returns the recorded entry and the refetched history.
type DispatchResponse struct {
	Entry   *models.WorkflowHistoryEntry  `json:"entry"`
	History []models.WorkflowHistoryEntry `json:"history"`
	State   models.WorkflowState          `json:"state"`
}

// AllowedActionsResponse lists what the current actor may do.
type AllowedActionsResponse struct {
	WorkflowID string                  `json:"workflowId"`
	Status     models.WorkflowStatus   `json:"status"`
	Role       models.Role             `json:"role"`
	Actions    []models.WorkflowAction `json:"actions"`
}
