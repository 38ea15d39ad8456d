package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// SyllabusVersion is one persisted version of a syllabus lineage.
type SyllabusVersion struct {
	ID              string         `json:"id"`
	RootID          string         `json:"rootId"`
	SubjectCode     string         `json:"subjectCode"`
	SubjectName     string         `json:"subjectName"`
	Summary         string         `json:"summary,omitempty"`
	VersionNo       int            `json:"versionNo"`
	Status          WorkflowStatus `json:"status"`
	Content         Content        `json:"content"`
	CreatedBy       string         `json:"createdBy,omitempty"`
	UpdatedBy       string         `json:"updatedBy,omitempty"`
	CreatedAt       *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time     `json:"updatedAt,omitempty"`
	SubmittedAt     *time.Time     `json:"submittedAt,omitempty"`
	ReviewedAt      *time.Time     `json:"reviewedAt,omitempty"`
	ApprovedAt      *time.Time     `json:"approvedAt,omitempty"`
	PublishedAt     *time.Time     `json:"publishedAt,omitempty"`
	RejectedAt      *time.Time     `json:"rejectedAt,omitempty"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
}

// SyllabusFilter constrains syllabus listings.
type SyllabusFilter struct {
	Status      WorkflowStatus
	SubjectCode string
	Search      string
	Page        int
	Size        int
}

// SyllabusForm is the editor's in-progress model. ID and RootID are empty
// until the server has persisted the syllabus once.
type SyllabusForm struct {
	ID          string  `json:"id,omitempty"`
	RootID      string  `json:"rootId,omitempty"`
	VersionNo   int     `json:"versionNo,omitempty"`
	SubjectCode string  `json:"subjectCode"`
	SubjectName string  `json:"subjectName"`
	Summary     string  `json:"summary,omitempty"`
	Content     Content `json:"content"`
}

// NewDraftKey is the draft key used before the server assigns an id.
const NewDraftKey = "new"

// DraftKey returns the local draft key for the form.
func (f SyllabusForm) DraftKey() string {
	if f.ID == "" {
		return NewDraftKey
	}
	return f.ID
}

// FormFromVersion builds an editor model from a persisted version.
func FormFromVersion(v *SyllabusVersion) SyllabusForm {
	if v == nil {
		return SyllabusForm{}
	}
	return SyllabusForm{
		ID:          v.ID,
		RootID:      v.RootID,
		VersionNo:   v.VersionNo,
		SubjectCode: v.SubjectCode,
		SubjectName: v.SubjectName,
		Summary:     v.Summary,
		Content:     v.Content,
	}
}

// LocalDraft is the client-side copy of an unsaved form.
type LocalDraft struct {
	Key     string       `json:"key"`
	Form    SyllabusForm `json:"form"`
	SavedAt time.Time    `json:"savedAt"`
}

// LearningOutcome is a PLO or CLO entry.
type LearningOutcome struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Level       string `json:"level,omitempty"`
}

// Relation links the subject to another subject.
type Relation struct {
	SubjectCode string `json:"subjectCode"`
	Type        string `json:"type"`
}

// OutcomeMapping maps a CLO onto a PLO.
type OutcomeMapping struct {
	CLO   string `json:"clo"`
	PLO   string `json:"plo"`
	Level string `json:"level,omitempty"`
}

// AssessmentWeight is one graded component.
type AssessmentWeight struct {
	Name   string   `json:"name"`
	Weight float64  `json:"weight"`
	CLOs   []string `json:"clos,omitempty"`
}

// Content is the structured syllabus payload. Unknown keys survive a
// decode/encode cycle through Extra.
type Content struct {
	Prerequisites     []string                   `json:"prerequisites,omitempty"`
	Relations         []Relation                 `json:"relations,omitempty"`
	PLOs              []LearningOutcome          `json:"plos,omitempty"`
	CLOs              []LearningOutcome          `json:"clos,omitempty"`
	OutcomeMapping    []OutcomeMapping           `json:"mapping,omitempty"`
	AssessmentWeights []AssessmentWeight         `json:"assessments,omitempty"`
	Extra             map[string]json.RawMessage `json:"-"`
}

var contentKeys = []string{"prerequisites", "relations", "plos", "clos", "mapping", "assessments"}

type contentFields Content

// MarshalJSON merges Extra keys into the object.
func (c Content) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(contentFields(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return known, nil
	}
	merged := make(map[string]json.RawMessage, len(c.Extra)+len(contentKeys))
	for k, v := range c.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON accepts an object or a JSON string holding an object.
func (c *Content) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeContent(data)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

// Normalized returns a copy with empty slices and an empty Extra set to
// nil, the shape a decode of the encoding yields.
func (c Content) Normalized() Content {
	out := Content{
		Prerequisites:  nilIfEmpty(c.Prerequisites),
		Relations:      nilIfEmpty(c.Relations),
		PLOs:           nilIfEmpty(c.PLOs),
		CLOs:           nilIfEmpty(c.CLOs),
		OutcomeMapping: nilIfEmpty(c.OutcomeMapping),
		Extra:          c.Extra,
	}
	if len(c.Extra) == 0 {
		out.Extra = nil
	}
	if len(c.AssessmentWeights) > 0 {
		out.AssessmentWeights = make([]AssessmentWeight, len(c.AssessmentWeights))
		for i, w := range c.AssessmentWeights {
			w.CLOs = nilIfEmpty(w.CLOs)
			out.AssessmentWeights[i] = w
		}
	}
	return out
}

func nilIfEmpty[T any](items []T) []T {
	if len(items) == 0 {
		return nil
	}
	return items
}

// Encode returns the canonical object encoding.
func (c Content) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// EncodeString returns the object encoding wrapped in a JSON string, the
// form accepted by older backends.
func (c Content) EncodeString() (string, error) {
	raw, err := c.Encode()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeContent parses either encoding produced by Encode or EncodeString.
func DecodeContent(data []byte) (Content, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Content{}, nil
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return Content{}, fmt.Errorf("decode content string: %w", err)
		}
		if inner == "" {
			return Content{}, nil
		}
		return DecodeContent([]byte(inner))
	}

	var fields contentFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return Content{}, fmt.Errorf("decode content: %w", err)
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return Content{}, fmt.Errorf("decode content keys: %w", err)
	}
	for _, key := range contentKeys {
		delete(all, key)
	}
	content := Content(fields)
	if len(all) > 0 {
		content.Extra = all
	}
	return content, nil
}
