package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditRunStatus represents the lifecycle state of an audit run
type AuditRunStatus string

const (
	RunStatusPending    AuditRunStatus = "pending"
	RunStatusInProgress AuditRunStatus = "in_progress"
	RunStatusCompleted  AuditRunStatus = "completed"
	RunStatusFailed     AuditRunStatus = "failed"
)

// AuditRunRequest carries everything needed to start a run
type AuditRunRequest struct {
	Framework   Framework `json:"framework"`
	Institution string    `json:"institution"`
	Examiner    string    `json:"examiner,omitempty"`
	SectionIDs  []string  `json:"sections,omitempty"`
}

// AuditRun represents one execution of a catalog against the indexed corpus
type AuditRun struct {
	ID             uuid.UUID         `json:"id"`
	Request        AuditRunRequest   `json:"request"`
	Status         AuditRunStatus    `json:"status"`
	CurrentSection *string           `json:"current_section,omitempty"`
	FieldsTotal    int               `json:"fields_total"`
	FieldsDone     int               `json:"fields_done"`
	Sections       []SectionResult   `json:"sections,omitempty"`
	Reports        map[string]string `json:"reports,omitempty"`
	ErrorMessage   *string           `json:"error_message,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}
