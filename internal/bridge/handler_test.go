package bridge

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/peropkp00-ai/IA-EVOLUTIVA/internal/jules"
)

func TestWebSocketStartFlow(t *testing.T) {
	client := &fakeJulesClient{
		session: &jules.Session{Name: "sessions/abc", Raw: json.RawMessage(`{"name":"sessions/abc"}`)},
		pages:   [][]jules.Activity{{progressActivity("a1", "working")}},
	}
	cfg := testConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.MaxPollEmpty = 500

	b := newTestBridge(client, cfg)
	srv := httptest.NewServer(NewWebSocketHandler(b, "", true))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close(websocket.StatusNormalClosure, "test done") //nolint:errcheck

	if err := ws.Write(ctx, websocket.MessageText, []byte(`{"type":"start","prompt":"add a file"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	// First reply: session_created referencing the new session.
	var created struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Session struct {
			Name string `json:"name"`
		} `json:"session"`
	}
	readJSON(ctx, t, ws, &created)
	if created.Type != msgTypeSessionCreated {
		t.Fatalf("expected session_created, got %q", created.Type)
	}
	if created.Session.Name != "sessions/abc" {
		t.Errorf("expected session object for sessions/abc, got %q", created.Session.Name)
	}

	// Then the poller pushes the first activity summary.
	var update struct {
		Type       string `json:"type"`
		ActivityID string `json:"activityId"`
		Status     string `json:"status"`
	}
	readJSON(ctx, t, ws, &update)
	if update.Type != msgTypeStatusUpdate || update.ActivityID != "a1" {
		t.Fatalf("expected status_update for a1, got %+v", update)
	}
	if update.Status != string(StatusProgressUpdated) {
		t.Errorf("expected PROGRESS_UPDATED, got %q", update.Status)
	}

	if !b.registry.Contains("sessions/abc") {
		t.Error("session should be registered while polling")
	}

	// Disconnect: cascade cleanup must deregister the session, and the
	// parked poller notices within one interval.
	if err := ws.Close(websocket.StatusNormalClosure, "client done"); err != nil {
		t.Fatalf("close: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for b.registry.Contains("sessions/abc") {
		if time.Now().After(deadline) {
			t.Fatal("session still registered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketMalformedMessageKeepsConnection(t *testing.T) {
	b := newTestBridge(&fakeJulesClient{}, testConfig())
	srv := httptest.NewServer(NewWebSocketHandler(b, "", true))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close(websocket.StatusNormalClosure, "test done") //nolint:errcheck

	if err := ws.Write(ctx, websocket.MessageText, []byte("{broken")); err != nil {
		t.Fatalf("write: %v", err)
	}

	var reply struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	readJSON(ctx, t, ws, &reply)
	if reply.Type != msgTypeError {
		t.Fatalf("expected error reply, got %q", reply.Type)
	}

	// The connection survives: a valid command still gets routed.
	if err := ws.Write(ctx, websocket.MessageText, []byte(`{"type":"sendMessage","sessionName":"sessions/x","prompt":"p"}`)); err != nil {
		t.Fatalf("write after error: %v", err)
	}
	readJSON(ctx, t, ws, &reply)
	if reply.Type != msgTypeError || !strings.Contains(reply.Message, "sessions/x") {
		t.Fatalf("expected session-not-active error, got %+v", reply)
	}
}

func readJSON(ctx context.Context, t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	_, data, err := ws.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
}
