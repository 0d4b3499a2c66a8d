// Package domain holds record types shared across the service.
package domain

import "time"

// Session states recorded in the history store. They mirror the poller's
// exit states; ACTIVE is the only non-final state.
const (
	StateActive    = "ACTIVE"
	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
	StateTimedOut  = "TIMED_OUT"
	StateAbandoned = "ABANDONED"
)

// SessionRecord is one bridged session as written to the history store.
// The live registry never reads these back; they exist for auditing only.
type SessionRecord struct {
	SessionName  string    `json:"sessionName"`
	ConnectionID string    `json:"connectionId"`
	Prompt       string    `json:"prompt"`
	SourceName   string    `json:"sourceName,omitempty"`
	BranchName   string    `json:"branchName,omitempty"`
	State        string    `json:"state"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// StatusRecord is one status update pushed to a client, as recorded in the
// history store.
type StatusRecord struct {
	SessionName string    `json:"sessionName"`
	ActivityID  string    `json:"activityId"`
	Status      string    `json:"status"`
	Details     string    `json:"details,omitempty"`
	CreateTime  string    `json:"createTime,omitempty"`
	RecordedAt  time.Time `json:"recordedAt"`
}
