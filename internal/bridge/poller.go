package bridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/peropkp00-ai/IA-EVOLUTIVA/internal/domain"
)

// pollState is the poller's explicit state. statePolling is the only state
// from which further iterations run; every other value is final and mapped
// to its exit effects in finish.
type pollState int

const (
	statePolling pollState = iota
	stateTerminatedSuccess
	stateTerminatedFailure
	stateTimedOut
	stateAbandoned
)

func (s pollState) String() string {
	switch s {
	case statePolling:
		return "POLLING"
	case stateTerminatedSuccess:
		return "TERMINATED_SUCCESS"
	case stateTerminatedFailure:
		return "TERMINATED_FAILURE"
	case stateTimedOut:
		return "TIMED_OUT"
	case stateAbandoned:
		return "ABANDONED"
	}
	return "UNKNOWN"
}

// poller pulls activity pages for one session and pushes summaries to the
// owning connection until a terminal activity, the retry budget, or loss of
// the session/connection stops it. Its state is touched by its own
// goroutine only.
type poller struct {
	bridge      *Bridge
	conn        ClientConn
	sessionName string
	interval    time.Duration
	maxEmpty    int
	logger      *slog.Logger

	processed  map[string]struct{}
	emptyPolls int
}

func newPoller(b *Bridge, conn ClientConn, sessionName string) *poller {
	return &poller{
		bridge:      b,
		conn:        conn,
		sessionName: sessionName,
		interval:    b.cfg.PollInterval,
		maxEmpty:    b.cfg.MaxPollEmpty,
		logger:      b.logger.With("session", sessionName),
		processed:   make(map[string]struct{}),
	}
}

// Run drives the poll loop until a final state is reached. The sleep between
// iterations is the only suspension point besides the pull itself, and the
// connection context cancels it.
func (p *poller) Run(ctx context.Context) {
	p.logger.Info("Starting to poll session")

	for {
		state := p.step(ctx)
		if state != statePolling {
			p.finish(state)
			return
		}

		select {
		case <-ctx.Done():
			p.finish(stateAbandoned)
			return
		case <-time.After(p.interval):
		}
	}
}

// step runs one iteration and returns the next state. All exit conditions
// are evaluated here, at one point per iteration: stale wakeups after a
// disconnect or external deregistration resolve to stateAbandoned before
// anything is pushed.
func (p *poller) step(ctx context.Context) pollState {
	if ctx.Err() != nil || !p.conn.Open() || !p.bridge.registry.Contains(p.sessionName) {
		return stateAbandoned
	}
	if p.emptyPolls >= p.maxEmpty {
		return stateTimedOut
	}

	activities, err := p.bridge.client.ListActivities(ctx, p.sessionName)
	if err != nil {
		// Transient poll failures are absorbed: log, count as an empty
		// iteration, never surface to the client.
		p.logger.Error("Error polling session", "error", err)
		p.emptyPolls++
		return statePolling
	}

	sawNew := false
	for _, activity := range activities {
		if _, ok := p.processed[activity.ID]; ok {
			continue
		}
		sawNew = true
		p.processed[activity.ID] = struct{}{}

		summary := Summarize(activity)
		p.logger.Info("Pushing status update to client", "activity_id", activity.ID, "status", summary.Status)
		if err := p.conn.Send(statusUpdateMessage{Type: msgTypeStatusUpdate, Summary: summary}); err != nil {
			p.logger.Debug("Failed to push status update", "error", err, "activity_id", activity.ID)
		}
		p.bridge.recordStatus(p.sessionName, summary)

		// Terminal status takes priority over the rest of the page and
		// over the retry counter.
		switch summary.Status {
		case StatusSessionCompleted:
			return stateTerminatedSuccess
		case StatusSessionFailed:
			return stateTerminatedFailure
		}
	}

	if sawNew {
		p.emptyPolls = 0
	} else {
		p.emptyPolls++
	}
	return statePolling
}

// finish applies the exit effects for a final state.
func (p *poller) finish(state pollState) {
	switch state {
	case stateTerminatedSuccess, stateTerminatedFailure:
		p.logger.Info("Terminal state reached. Stopping poller.", "state", state.String())
		p.bridge.registry.Remove(p.sessionName)
		recorded := domain.StateCompleted
		if state == stateTerminatedFailure {
			recorded = domain.StateFailed
		}
		p.bridge.recordSessionState(p.sessionName, recorded)
		p.conn.Close("session ended")

	case stateTimedOut:
		p.logger.Warn("Polling timed out.")
		if p.bridge.registry.Remove(p.sessionName) {
			p.bridge.sendError(p.conn, "polling timed out", nil)
			p.bridge.recordSessionState(p.sessionName, domain.StateTimedOut)
			p.conn.Close("polling timed out")
		}

	case stateAbandoned:
		// Deregistered by cascade cleanup or the transport closed: exit
		// with no client-visible action. Remove is idempotent.
		p.logger.Info("Polling stopped because session is no longer served")
		if p.bridge.registry.Remove(p.sessionName) {
			p.bridge.recordSessionState(p.sessionName, domain.StateAbandoned)
		}
	}
}
