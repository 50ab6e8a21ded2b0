package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReviewJobStatus represents the status of a review job
type ReviewJobStatus string

const (
	JobStatusPending    ReviewJobStatus = "pending"
	JobStatusInProgress ReviewJobStatus = "in_progress"
	JobStatusCompleted  ReviewJobStatus = "completed"
	JobStatusFailed     ReviewJobStatus = "failed"
)

// ReviewStep represents one step of the review pipeline for one document
type ReviewStep struct {
	Name        string `json:"name"`
	Status      string `json:"status"` // "pending", "in_progress", "completed", "failed"
	Description string `json:"description,omitempty"`
}

// ReviewSteps represents the ordered list of review steps
type ReviewSteps []ReviewStep

// Value implements driver.Valuer for JSONB
func (s ReviewSteps) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *ReviewSteps) Scan(value interface{}) error {
	if value == nil {
		*s = make(ReviewSteps, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*s = make(ReviewSteps, 0)
		return nil
	}

	if len(bytes) == 0 {
		*s = make(ReviewSteps, 0)
		return nil
	}

	return json.Unmarshal(bytes, s)
}

// StringList is a JSONB-backed list of strings (storage keys, file names)
type StringList []string

// Value implements driver.Valuer for JSONB
func (l StringList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = make(StringList, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*l = make(StringList, 0)
		return nil
	}

	if len(bytes) == 0 {
		*l = make(StringList, 0)
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// ReviewJob represents an asynchronous document review run
type ReviewJob struct {
	ID           uuid.UUID       `json:"id"`
	Status       ReviewJobStatus `json:"status"`
	CurrentStep  *string         `json:"current_step,omitempty"`
	Steps        ReviewSteps     `json:"steps"`
	InputKeys    StringList      `json:"input_keys"`
	OutputKeys   StringList      `json:"output_keys"`
	ReportJSON   *string         `json:"report,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}
