// Package jules provides a client for the Jules remote job API.
package jules

import "encoding/json"

// Session is a remote job session as returned by the API. Raw keeps the
// unparsed response object so callers can forward it to clients verbatim.
type Session struct {
	Name string
	Raw  json.RawMessage
}

// Activity is one event record describing a step in a remote job's progress.
// Exactly one of the variant pointers is set on well-formed records.
type Activity struct {
	ID         string `json:"id"`
	CreateTime string `json:"createTime"`
	Originator string `json:"originator"`

	SessionCompleted *SessionCompleted `json:"sessionCompleted,omitempty"`
	SessionFailed    *SessionFailed    `json:"sessionFailed,omitempty"`
	PlanGenerated    *PlanGenerated    `json:"planGenerated,omitempty"`
	ProgressUpdated  *ProgressUpdated  `json:"progressUpdated,omitempty"`
	AgentMessaged    *AgentMessaged    `json:"agentMessaged,omitempty"`
	PlanApproved     *PlanApproved     `json:"planApproved,omitempty"`

	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// SessionCompleted marks a session that finished successfully.
type SessionCompleted struct{}

// SessionFailed carries the upstream failure reason.
type SessionFailed struct {
	Error string `json:"error"`
}

// PlanGenerated carries the plan produced by the agent.
type PlanGenerated struct {
	Plan Plan `json:"plan"`
}

// Plan is an ordered list of steps the agent intends to execute.
type Plan struct {
	ID    string     `json:"id,omitempty"`
	Steps []PlanStep `json:"steps"`
}

// PlanStep is a single step in a generated plan.
type PlanStep struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
}

// ProgressUpdated reports incremental progress on the running job.
type ProgressUpdated struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// AgentMessaged carries a free-form message from the agent.
type AgentMessaged struct {
	Message string `json:"message,omitempty"`
}

// PlanApproved records approval of a previously generated plan.
type PlanApproved struct {
	PlanID string `json:"planId,omitempty"`
}

// Artifact is a typed output attached to a terminal activity.
type Artifact struct {
	PullRequest *PullRequest `json:"pullRequest,omitempty"`
	ChangeSet   *ChangeSet   `json:"changeSet,omitempty"`
}

// PullRequest references a pull request opened by the remote job.
type PullRequest struct {
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// ChangeSet describes code changes produced by the remote job.
type ChangeSet struct {
	SuggestedCommitMessage string `json:"suggestedCommitMessage,omitempty"`
}
