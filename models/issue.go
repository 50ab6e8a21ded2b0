package models

// Severity classifies how serious a red-flag finding is
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Weight returns the numeric weight used for prioritization
func (s Severity) Weight() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 2
	}
}

// Issue represents a single compliance finding in a document.
// Immutable once created; the citation is attached after retrieval.
type Issue struct {
	Description string    `json:"issue"`
	Severity    Severity  `json:"severity"`
	Suggestion  string    `json:"suggestion,omitempty"`
	Section     string    `json:"section,omitempty"`
	Document    string    `json:"document,omitempty"`
	Citation    *Citation `json:"citation"`
}

// SeverityScore aggregates issue severities for prioritization
type SeverityScore struct {
	TotalScore     int              `json:"total_score"`
	SeverityCounts map[Severity]int `json:"severity_counts"`
	Priority       Severity         `json:"priority"`
}
