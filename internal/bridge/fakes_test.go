package bridge

import (
	"context"
	"sync"

	"github.com/peropkp00-ai/IA-EVOLUTIVA/internal/jules"
)

// fakeConn records everything the bridge pushes. Safe for concurrent use so
// poller goroutines can write while the test inspects.
type fakeConn struct {
	mu     sync.Mutex
	id     string
	closed bool
	reason string
	sent   []any

	managed []string
	seen    map[string]struct{}
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, seen: make(map[string]struct{})}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.reason = reason
}

func (c *fakeConn) Manage(sessionName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[sessionName]; ok {
		return
	}
	c.seen[sessionName] = struct{}{}
	c.managed = append(c.managed, sessionName)
}

func (c *fakeConn) Managed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.managed))
	copy(out, c.managed)
	return out
}

func (c *fakeConn) messages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeConn) statusUpdates() []statusUpdateMessage {
	var out []statusUpdateMessage
	for _, m := range c.messages() {
		if upd, ok := m.(statusUpdateMessage); ok {
			out = append(out, upd)
		}
	}
	return out
}

func (c *fakeConn) errorMessages() []errorMessage {
	var out []errorMessage
	for _, m := range c.messages() {
		if e, ok := m.(errorMessage); ok {
			out = append(out, e)
		}
	}
	return out
}

// fakeJulesClient serves scripted responses. ListActivities walks pages in
// order and keeps returning the last one.
type fakeJulesClient struct {
	mu sync.Mutex

	session   *jules.Session
	createErr error

	pages   [][]jules.Activity
	listErr error

	sendErr error

	createCalls int
	listCalls   int
	sendCalls   int
}

func (f *fakeJulesClient) CreateSession(_ context.Context, _, _, _ string) (*jules.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.session, nil
}

func (f *fakeJulesClient) ListActivities(_ context.Context, _ string) ([]jules.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	if len(f.pages) > 1 {
		f.pages = f.pages[1:]
	}
	return page, nil
}

func (f *fakeJulesClient) SendMessage(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	return f.sendErr
}

func (f *fakeJulesClient) calls() (create, list, send int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.listCalls, f.sendCalls
}
