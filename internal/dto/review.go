package dto

// AddCommentRequest creates a review comment.
type AddCommentRequest struct {
	SyllabusID string `json:"syllabusId"`
	SectionKey string `json:"sectionKey" validate:"max=64"`
	Content    string `json:"content" validate:"max=4000"`
}

// AssistRequest starts an AI-assist job. When Wait is set the call blocks
// until the job finishes or polling times out.
type AssistRequest struct {
	Payload map[string]interface{} `json:"payload"`
	Wait    bool                   `json:"wait"`
}

// AssistStarted is returned for asynchronous starts.
type AssistStarted struct {
	JobID string `json:"jobId"`
}

// SessionLoginRequest is what the CLI persists on login.
type SessionLoginRequest struct {
	Token string `json:"token" validate:"required"`
}
