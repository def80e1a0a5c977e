package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SectionCoverage   = "Coverage"
	SectionExclusion  = "Exclusion"
	SectionCondition  = "Condition"
	SectionDefinition = "Definition"
)

var PolicySections = []string{SectionCoverage, SectionExclusion, SectionCondition, SectionDefinition}

func IsPolicySection(section string) bool {
	for _, s := range PolicySections {
		if s == section {
			return true
		}
	}
	return false
}

// PolicyDocument is one clause of a policy wording. Rows arrive with a nil
// Embedding and the ingestion sweep fills it in.
type PolicyDocument struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Section   string         `gorm:"size:32;not null;index" json:"section"`
	PlanType  string         `gorm:"size:64;not null;index" json:"plan_type"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Metadata  datatypes.JSON `json:"metadata"`
	Embedding *Embedding     `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// PolicyMatch is a document returned by similarity search.
type PolicyMatch struct {
	ID         uint           `json:"id"`
	Section    string         `json:"section"`
	PlanType   string         `json:"plan_type"`
	Content    string         `json:"content"`
	Metadata   datatypes.JSON `json:"metadata"`
	Similarity float64        `json:"similarity"`
}
