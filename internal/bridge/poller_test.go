package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peropkp00-ai/IA-EVOLUTIVA/internal/config"
	"github.com/peropkp00-ai/IA-EVOLUTIVA/internal/jules"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:         "7700",
		APIKey:       "test-key",
		SourceName:   "sources/default-repo",
		BranchName:   "main",
		PollInterval: time.Millisecond,
		MaxPollEmpty: 3,
		PollPageSize: 50,
	}
}

func newTestBridge(client *fakeJulesClient, cfg *config.Config) *Bridge {
	return New(client, NewRegistry(), nil, cfg, nil)
}

func progressActivity(id, title string) jules.Activity {
	return jules.Activity{
		ID:              id,
		CreateTime:      "2025-01-01T00:00:00Z",
		Originator:      "agent",
		ProgressUpdated: &jules.ProgressUpdated{Title: title},
	}
}

func TestPollerDeduplicatesActivities(t *testing.T) {
	page := []jules.Activity{progressActivity("a1", "working")}
	client := &fakeJulesClient{pages: [][]jules.Activity{page, page}}

	b := newTestBridge(client, testConfig())
	conn := newFakeConn("conn-1")
	b.registry.Register("sessions/abc", conn)

	p := newPoller(b, conn, "sessions/abc")
	p.Run(context.Background())

	updates := conn.statusUpdates()
	if len(updates) != 1 {
		t.Fatalf("expected exactly 1 status update for a1, got %d", len(updates))
	}
	if updates[0].ActivityID != "a1" || updates[0].Status != StatusProgressUpdated {
		t.Errorf("unexpected update: %+v", updates[0])
	}

	// The repeat page counted as empty, so the loop ran to the timeout.
	if errs := conn.errorMessages(); len(errs) != 1 {
		t.Fatalf("expected exactly one timeout error, got %d", len(errs))
	}
	if b.registry.Contains("sessions/abc") {
		t.Error("session should be deregistered after timeout")
	}
	if conn.Open() {
		t.Error("connection should be closed after timeout")
	}
}

func TestPollerTerminalStatusStopsLoop(t *testing.T) {
	completed := jules.Activity{
		ID:               "a2",
		CreateTime:       "2025-01-01T00:01:00Z",
		Originator:       "agent",
		SessionCompleted: &jules.SessionCompleted{},
		Artifacts: []jules.Artifact{
			{PullRequest: &jules.PullRequest{URL: "https://github.com/o/r/pull/1", Title: "add a file"}},
		},
	}
	// The trailing activity must never be pushed: terminal status takes
	// priority over the rest of the page.
	trailing := progressActivity("a3", "late")
	client := &fakeJulesClient{pages: [][]jules.Activity{{completed, trailing}}}

	b := newTestBridge(client, testConfig())
	conn := newFakeConn("conn-1")
	b.registry.Register("sessions/abc", conn)

	newPoller(b, conn, "sessions/abc").Run(context.Background())

	updates := conn.statusUpdates()
	if len(updates) != 1 {
		t.Fatalf("expected 1 status update, got %d", len(updates))
	}
	upd := updates[0]
	if upd.Status != StatusSessionCompleted {
		t.Errorf("expected SESSION_COMPLETED, got %s", upd.Status)
	}
	if len(upd.Outputs) != 1 || upd.Outputs[0].Type != OutputPullRequest {
		t.Errorf("expected one pullRequest output, got %+v", upd.Outputs)
	}
	if len(conn.errorMessages()) != 0 {
		t.Errorf("no error should be pushed on terminal status")
	}
	if b.registry.Contains("sessions/abc") {
		t.Error("session should be deregistered immediately after terminal status")
	}
	if conn.Open() {
		t.Error("connection should be closed after terminal status")
	}
}

func TestPollerTimeoutPushesExactlyOneError(t *testing.T) {
	client := &fakeJulesClient{} // every poll is empty
	cfg := testConfig()
	cfg.MaxPollEmpty = 2

	b := newTestBridge(client, cfg)
	conn := newFakeConn("conn-1")
	b.registry.Register("sessions/abc", conn)

	newPoller(b, conn, "sessions/abc").Run(context.Background())

	if errs := conn.errorMessages(); len(errs) != 1 {
		t.Fatalf("expected exactly one timeout error, got %d", len(errs))
	}
	if len(conn.statusUpdates()) != 0 {
		t.Error("no status updates expected")
	}
	if b.registry.Contains("sessions/abc") {
		t.Error("session should be deregistered after timeout")
	}

	_, list, _ := client.calls()
	if list != cfg.MaxPollEmpty {
		t.Errorf("expected %d polls before timeout, got %d", cfg.MaxPollEmpty, list)
	}
}

func TestPollerAbsorbsPollErrors(t *testing.T) {
	client := &fakeJulesClient{listErr: errors.New("upstream unavailable")}
	cfg := testConfig()
	cfg.MaxPollEmpty = 2

	b := newTestBridge(client, cfg)
	conn := newFakeConn("conn-1")
	b.registry.Register("sessions/abc", conn)

	newPoller(b, conn, "sessions/abc").Run(context.Background())

	// Poll failures count as empty iterations, so the loop ends in the
	// normal timeout path with a single error reply.
	if errs := conn.errorMessages(); len(errs) != 1 {
		t.Fatalf("expected exactly one timeout error, got %d", len(errs))
	}
}

func TestPollerExitsSilentlyWhenDeregistered(t *testing.T) {
	client := &fakeJulesClient{pages: [][]jules.Activity{{progressActivity("a1", "working")}}}

	b := newTestBridge(client, testConfig())
	conn := newFakeConn("conn-1")
	// Session never registered: cascade cleanup already removed it.

	newPoller(b, conn, "sessions/abc").Run(context.Background())

	if msgs := conn.messages(); len(msgs) != 0 {
		t.Errorf("expected no pushes after deregistration, got %v", msgs)
	}
	if !conn.Open() {
		t.Error("abandoned exit must not close the connection")
	}
}

func TestPollerExitsSilentlyWhenConnectionClosed(t *testing.T) {
	client := &fakeJulesClient{pages: [][]jules.Activity{{progressActivity("a1", "working")}}}

	b := newTestBridge(client, testConfig())
	conn := newFakeConn("conn-1")
	b.registry.Register("sessions/abc", conn)
	conn.Close("client went away")

	newPoller(b, conn, "sessions/abc").Run(context.Background())

	if msgs := conn.messages(); len(msgs) != 0 {
		t.Errorf("expected no pushes on closed connection, got %v", msgs)
	}
	if b.registry.Contains("sessions/abc") {
		t.Error("poller should remove its own registry entry on abandon")
	}
}

func TestPollerStopsOnContextCancelMidSleep(t *testing.T) {
	client := &fakeJulesClient{}
	cfg := testConfig()
	cfg.PollInterval = time.Hour // park the poller in its sleep
	cfg.MaxPollEmpty = 100

	b := newTestBridge(client, cfg)
	conn := newFakeConn("conn-1")
	b.registry.Register("sessions/abc", conn)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newPoller(b, conn, "sessions/abc").Run(ctx)
		close(done)
	}()

	// Give the poller time to reach the sleep, then cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after context cancellation")
	}

	if errs := conn.errorMessages(); len(errs) != 0 {
		t.Errorf("cancellation must be silent, got errors: %v", errs)
	}
	if b.registry.Contains("sessions/abc") {
		t.Error("session should be removed after cancellation")
	}
}
