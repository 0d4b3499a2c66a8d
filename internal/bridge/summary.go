package bridge

import (
	"fmt"

	"github.com/peropkp00-ai/IA-EVOLUTIVA/internal/jules"
)

// Status is the normalized state reported in a status update.
type Status string

// Known status values. SESSION_COMPLETED and SESSION_FAILED are terminal:
// once one is pushed, no further polling for the session is meaningful.
const (
	StatusSessionCompleted Status = "SESSION_COMPLETED"
	StatusSessionFailed    Status = "SESSION_FAILED"
	StatusPlanGenerated    Status = "PLAN_GENERATED"
	StatusProgressUpdated  Status = "PROGRESS_UPDATED"
	StatusAgentMessaged    Status = "AGENT_MESSAGED"
	StatusPlanApproved     Status = "PLAN_APPROVED"
	StatusUnknownActivity  Status = "UNKNOWN_ACTIVITY"
)

// Terminal reports whether no further updates can follow this status.
func (s Status) Terminal() bool {
	return s == StatusSessionCompleted || s == StatusSessionFailed
}

// Output is one typed artifact attached to a terminal summary.
type Output struct {
	Type    string `json:"type"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// Output types.
const (
	OutputPullRequest   = "pullRequest"
	OutputCommitMessage = "commitMessage"
)

// Summary is the normalized view of one raw activity record.
type Summary struct {
	ActivityID string   `json:"activityId"`
	CreateTime string   `json:"createTime"`
	Originator string   `json:"originator"`
	Status     Status   `json:"status"`
	Details    string   `json:"details"`
	Outputs    []Output `json:"outputs,omitempty"`
}

// Summarize maps a raw activity record to a normalized summary. It is a pure
// function and total over the known activity variants.
func Summarize(activity jules.Activity) Summary {
	summary := Summary{
		ActivityID: activity.ID,
		CreateTime: activity.CreateTime,
		Originator: activity.Originator,
	}

	switch {
	case activity.SessionCompleted != nil:
		summary.Status = StatusSessionCompleted
		summary.Details = "Session finished successfully."
		summary.Outputs = collectOutputs(activity.Artifacts)

	case activity.SessionFailed != nil:
		summary.Status = StatusSessionFailed
		summary.Details = activity.SessionFailed.Error
		if summary.Details == "" {
			summary.Details = "Session failed."
		}

	case activity.PlanGenerated != nil:
		summary.Status = StatusPlanGenerated
		summary.Details = fmt.Sprintf("Plan generated with %d steps.", len(activity.PlanGenerated.Plan.Steps))

	case activity.ProgressUpdated != nil:
		summary.Status = StatusProgressUpdated
		summary.Details = activity.ProgressUpdated.Title
		if summary.Details == "" {
			summary.Details = "Progress update."
		}

	case activity.AgentMessaged != nil:
		summary.Status = StatusAgentMessaged
		summary.Details = "The agent sent a message."

	case activity.PlanApproved != nil:
		summary.Status = StatusPlanApproved
		planID := activity.PlanApproved.PlanID
		if planID == "" {
			planID = "unknown"
		}
		summary.Details = fmt.Sprintf("Plan %s approved.", planID)

	default:
		summary.Status = StatusUnknownActivity
		summary.Details = "Unrecognized activity."
	}

	return summary
}

func collectOutputs(artifacts []jules.Artifact) []Output {
	var outputs []Output
	for _, artifact := range artifacts {
		if pr := artifact.PullRequest; pr != nil {
			outputs = append(outputs, Output{Type: OutputPullRequest, URL: pr.URL, Title: pr.Title})
		}
		if cs := artifact.ChangeSet; cs != nil && cs.SuggestedCommitMessage != "" {
			outputs = append(outputs, Output{Type: OutputCommitMessage, Message: cs.SuggestedCommitMessage})
		}
	}
	return outputs
}
