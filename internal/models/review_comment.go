package models

import (
	"strings"
	"time"
)

// SectionKey tags the syllabus section a review comment targets.
type SectionKey string

const (
	SectionGeneral        SectionKey = "general"
	SectionOverview       SectionKey = "overview"
	SectionPrerequisites  SectionKey = "prerequisites"
	SectionRelations      SectionKey = "relations"
	SectionPLO            SectionKey = "plo"
	SectionCLO            SectionKey = "clo"
	SectionOutcomeMapping SectionKey = "outcome_mapping"
	SectionAssessment     SectionKey = "assessment"
	SectionMaterials      SectionKey = "materials"
)

// SectionKeys is the fixed section set in display order.
var SectionKeys = []SectionKey{
	SectionGeneral,
	SectionOverview,
	SectionPrerequisites,
	SectionRelations,
	SectionPLO,
	SectionCLO,
	SectionOutcomeMapping,
	SectionAssessment,
	SectionMaterials,
}

// NormalizeSectionKey maps unknown or empty keys onto SectionGeneral.
func NormalizeSectionKey(raw string) SectionKey {
	key := SectionKey(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range SectionKeys {
		if key == known {
			return key
		}
	}
	return SectionGeneral
}

// ReviewComment is a section-scoped remark on a syllabus version.
type ReviewComment struct {
	ID         string     `json:"id"`
	SyllabusID string     `json:"syllabusId"`
	SectionKey SectionKey `json:"sectionKey"`
	Content    string     `json:"content"`
	AuthorID   string     `json:"authorId"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// ReviewSection groups the comments of one section, oldest first.
type ReviewSection struct {
	SectionKey SectionKey      `json:"sectionKey"`
	Comments   []ReviewComment `json:"comments"`
}

// ReviewThread is the grouped comment stream of a syllabus version.
type ReviewThread struct {
	SyllabusID string          `json:"syllabusId"`
	Total      int             `json:"total"`
	Sections   []ReviewSection `json:"sections"`
}
