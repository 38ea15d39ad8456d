package dto

import "github.com/noah-isme/syllabus-portal/internal/models"

// SaveDraftRequest carries the editor form. ID is empty for a syllabus
// that was never persisted.
type SaveDraftRequest struct {
	ID          string         `json:"id" validate:"omitempty,max=64"`
	RootID      string         `json:"rootId" validate:"omitempty,max=64"`
	VersionNo   int            `json:"versionNo" validate:"gte=0"`
	SubjectCode string         `json:"subjectCode" validate:"max=32"`
	SubjectName string         `json:"subjectName" validate:"max=255"`
	Summary     string         `json:"summary"`
	Content     models.Content `json:"content"`
}

// Form converts the request into the editor model.
func (r SaveDraftRequest) Form() models.SyllabusForm {
	return models.SyllabusForm{
		ID:          r.ID,
		RootID:      r.RootID,
		VersionNo:   r.VersionNo,
		SubjectCode: r.SubjectCode,
		SubjectName: r.SubjectName,
		Summary:     r.Summary,
		Content:     r.Content,
	}
}

// SyllabusListQuery binds list filters.
type SyllabusListQuery struct {
	Status      string `form:"status" validate:"omitempty,oneof=DRAFT PENDING_REVIEW PENDING_APPROVAL APPROVED PUBLISHED REJECTED"`
	SubjectCode string `form:"subjectCode"`
	Search      string `form:"q"`
	Page        int    `form:"page" validate:"gte=0"`
	Size        int    `form:"size" validate:"gte=0,lte=200"`
}

// CompareQuery binds the two version numbers to compare.
type CompareQuery struct {
	V1     int    `form:"v1" validate:"required,gte=1"`
	V2     int    `form:"v2" validate:"required,gte=1"`
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// FieldChange is one differing field between two versions.
type FieldChange struct {
	Field string `json:"field"`
	Left  string `json:"left"`
	Right string `json:"right"`
}

// VersionComparison is the side-by-side view of two versions.
type VersionComparison struct {
	RootID  string                  `json:"rootId"`
	Left    *models.SyllabusVersion `json:"left"`
	Right   *models.SyllabusVersion `json:"right"`
	Changes []FieldChange           `json:"changes"`
}

// ExportResult describes a rendered comparison file.
type ExportResult struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}
