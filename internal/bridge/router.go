package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/peropkp00-ai/IA-EVOLUTIVA/internal/config"
	"github.com/peropkp00-ai/IA-EVOLUTIVA/internal/domain"
	"github.com/peropkp00-ai/IA-EVOLUTIVA/internal/jules"
	"github.com/peropkp00-ai/IA-EVOLUTIVA/internal/store"
)

// Bridge owns the session registry and routes client commands to the Jules
// API. One Bridge serves every connection; per-session state lives in the
// pollers it spawns.
type Bridge struct {
	client   jules.Client
	registry *Registry
	recorder store.Recorder
	cfg      *config.Config
	logger   *slog.Logger
}

// New creates a Bridge. recorder may be nil, in which case no session
// history is written.
func New(client jules.Client, registry *Registry, recorder store.Recorder, cfg *config.Config, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		client:   client,
		registry: registry,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}
}

// Registry exposes the session registry for handlers that need presence
// checks.
func (b *Bridge) Registry() *Registry {
	return b.registry
}

// HandleMessage parses one inbound client frame and dispatches it. Protocol
// errors are reported to the offending connection only; the connection
// stays open.
func (b *Bridge) HandleMessage(ctx context.Context, conn ClientConn, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		b.logger.Warn("Failed to parse client message", "error", err, "conn", conn.ID())
		b.sendError(conn, "invalid JSON message", nil)
		return
	}

	b.logger.Info("Received client command", "type", msg.Type, "conn", conn.ID())

	switch msg.Type {
	case msgTypeStart:
		if msg.Prompt == "" {
			b.sendError(conn, `the "start" command requires a "prompt"`, nil)
			return
		}
		b.handleStart(ctx, conn, msg)

	case msgTypeSendMessage:
		if msg.SessionName == "" || msg.Prompt == "" {
			b.sendError(conn, `the "sendMessage" command requires a "sessionName" and a "prompt"`, nil)
			return
		}
		b.handleSendMessage(ctx, conn, msg)

	default:
		b.sendError(conn, fmt.Sprintf("unrecognized message type: %q", msg.Type), nil)
	}
}

// handleStart creates a remote session, registers it, confirms to the
// client, and spawns the poller. A creation failure is terminal for the
// connection.
func (b *Bridge) handleStart(ctx context.Context, conn ClientConn, msg clientMessage) {
	sourceName := msg.SourceName
	if sourceName == "" {
		sourceName = b.cfg.SourceName
	}
	branchName := msg.BranchName
	if branchName == "" {
		branchName = b.cfg.BranchName
	}

	session, err := b.client.CreateSession(ctx, msg.Prompt, sourceName, branchName)
	if err != nil {
		b.logger.Error("Error creating session", "error", err, "conn", conn.ID())
		b.sendError(conn, "failed to create session", upstreamDetails(err))
		conn.Close("session creation failed")
		return
	}

	conn.Manage(session.Name)
	b.registry.Register(session.Name, conn)
	b.recordSession(ctx, conn, session.Name, msg.Prompt, sourceName, branchName)

	reply := sessionCreatedMessage{
		Type:    msgTypeSessionCreated,
		Message: fmt.Sprintf("Session created: %s. Now watching for updates.", session.Name),
		Session: session.Raw,
	}
	if err := conn.Send(reply); err != nil {
		b.logger.Debug("Failed to send session_created", "error", err, "session", session.Name)
	}

	p := newPoller(b, conn, session.Name)
	go p.Run(ctx)
}

// handleSendMessage forwards a prompt into an existing session. The registry
// check and the remote call are not atomic; a session deregistered in
// between still gets the remote call, which the upstream API rejects or
// absorbs on its own terms.
func (b *Bridge) handleSendMessage(ctx context.Context, conn ClientConn, msg clientMessage) {
	if !b.registry.Contains(msg.SessionName) {
		b.sendError(conn, fmt.Sprintf("session %q is not active or does not exist", msg.SessionName), nil)
		return
	}

	if err := b.client.SendMessage(ctx, msg.SessionName, msg.Prompt); err != nil {
		b.logger.Error("Error sending message to session", "error", err, "session", msg.SessionName)
		b.sendError(conn, "failed to send message", upstreamDetails(err))
		return
	}

	// No reply on success: the session's poller surfaces the effect.
	b.logger.Info("Message forwarded to session", "session", msg.SessionName)
}

// CleanupConnection removes every session the connection still owns from
// the registry. It never waits for in-flight polls; the pollers observe the
// removal on their next iteration.
func (b *Bridge) CleanupConnection(conn ClientConn) {
	for _, sessionName := range conn.Managed() {
		if b.registry.Remove(sessionName) {
			b.logger.Info("Stopped polling for disconnected client", "session", sessionName, "conn", conn.ID())
			b.recordSessionState(sessionName, domain.StateAbandoned)
		}
	}
}

// sendError pushes an error reply if the transport is still open. Sends on
// a closed transport are skipped, not retried.
func (b *Bridge) sendError(conn ClientConn, message string, details any) {
	if !conn.Open() {
		b.logger.Debug("Skipping error send on closed connection", "conn", conn.ID(), "message", message)
		return
	}
	if err := conn.Send(errorMessage{Type: msgTypeError, Message: message, Details: details}); err != nil {
		b.logger.Debug("Failed to send error to client", "error", err, "conn", conn.ID())
		return
	}
	b.logger.Warn("Sent error to client", "message", message, "conn", conn.ID())
}

// upstreamDetails extracts the structured error body from a remote API
// failure, or wraps the local error text.
func upstreamDetails(err error) any {
	var apiErr *jules.APIError
	if errors.As(err, &apiErr) && len(apiErr.Body) > 0 {
		if json.Valid(apiErr.Body) {
			return json.RawMessage(apiErr.Body)
		}
		return string(apiErr.Body)
	}
	return map[string]string{"error": err.Error()}
}

func (b *Bridge) recordSession(ctx context.Context, conn ClientConn, sessionName, prompt, sourceName, branchName string) {
	if b.recorder == nil {
		return
	}
	now := time.Now()
	rec := &domain.SessionRecord{
		SessionName:  sessionName,
		ConnectionID: conn.ID(),
		Prompt:       prompt,
		SourceName:   sourceName,
		BranchName:   branchName,
		State:        domain.StateActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := b.recorder.RecordSession(ctx, rec); err != nil {
		b.logger.Warn("Failed to record session history", "error", err, "session", sessionName)
	}
}

func (b *Bridge) recordSessionState(sessionName, state string) {
	if b.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.recorder.UpdateSessionState(ctx, sessionName, state); err != nil {
		b.logger.Warn("Failed to record session state", "error", err, "session", sessionName, "state", state)
	}
}

func (b *Bridge) recordStatus(sessionName string, summary Summary) {
	if b.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec := &domain.StatusRecord{
		SessionName: sessionName,
		ActivityID:  summary.ActivityID,
		Status:      string(summary.Status),
		Details:     summary.Details,
		CreateTime:  summary.CreateTime,
		RecordedAt:  time.Now(),
	}
	if err := b.recorder.RecordStatus(ctx, rec); err != nil {
		b.logger.Warn("Failed to record status history", "error", err, "session", sessionName)
	}
}
