// Package bridge converts the poll-only Jules API into a per-connection
// push stream over WebSocket.
package bridge

import "encoding/json"

// Inbound command types.
const (
	msgTypeStart       = "start"
	msgTypeSendMessage = "sendMessage"
)

// Outbound message types.
const (
	msgTypeSessionCreated = "session_created"
	msgTypeStatusUpdate   = "status_update"
	msgTypeError          = "error"
)

// clientMessage is the envelope for all inbound client commands.
type clientMessage struct {
	Type        string `json:"type"`
	Prompt      string `json:"prompt,omitempty"`
	SourceName  string `json:"sourceName,omitempty"`
	BranchName  string `json:"branchName,omitempty"`
	SessionName string `json:"sessionName,omitempty"`
}

// sessionCreatedMessage confirms a successful start command. Session carries
// the remote session object exactly as the API returned it.
type sessionCreatedMessage struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Session json.RawMessage `json:"session"`
}

// statusUpdateMessage pushes one summarized activity to the client.
type statusUpdateMessage struct {
	Type string `json:"type"`
	Summary
}

// errorMessage reports a failure scoped to the receiving connection.
type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
