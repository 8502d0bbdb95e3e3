package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestBackoffDelay(t *testing.T) {
	base := 500 * time.Millisecond
	max := 12 * time.Second

	// Delays are non-decreasing and capped at max for attempts 0..8 and beyond.
	prev := time.Duration(0)
	for attempt := 0; attempt <= 12; attempt++ {
		d := backoffDelay(attempt, base, max)
		if d < prev {
			t.Errorf("attempt %d: delay %v decreased from %v", attempt, d, prev)
		}
		if d > max {
			t.Errorf("attempt %d: delay %v exceeds max %v", attempt, d, max)
		}
		prev = d
	}

	if d := backoffDelay(0, base, max); d != 500*time.Millisecond {
		t.Errorf("attempt 0: expected 500ms, got %v", d)
	}
	if d := backoffDelay(1, base, max); d != time.Second {
		t.Errorf("attempt 1: expected 1s, got %v", d)
	}
	if d := backoffDelay(4, base, max); d != 8*time.Second {
		t.Errorf("attempt 4: expected 8s, got %v", d)
	}
	if d := backoffDelay(5, base, max); d != max {
		t.Errorf("attempt 5: expected cap %v, got %v", max, d)
	}
	if d := backoffDelay(100, base, max); d != max {
		t.Errorf("attempt 100: expected cap %v, got %v", max, d)
	}
}

// detectorStub is a minimal WebSocket endpoint that records connections and
// lets the test push payloads or kill the active connection.
type detectorStub struct {
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	accepted int
}

func (d *detectorStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.accepted++
	d.mu.Unlock()

	// Hold the connection open; the test drives it.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (d *detectorStub) send(t *testing.T, payload string) {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		t.Fatal("no active connection to send on")
	}
	conn := d.conns[len(d.conns)-1]
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("stub write failed: %v", err)
	}
}

func (d *detectorStub) dropActive() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) > 0 {
		_ = d.conns[len(d.conns)-1].Close()
	}
}

func (d *detectorStub) connections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accepted
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestClient_DeliversFramesInOrder(t *testing.T) {
	stub := &detectorStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	var mu sync.Mutex
	var got []string
	c := New(Config{
		URL:       wsURL(srv),
		BaseDelay: 10 * time.Millisecond,
		OnFrame: func(raw []byte) {
			mu.Lock()
			got = append(got, string(raw))
			mu.Unlock()
		},
	})
	c.Open()
	defer c.Close()

	waitFor(t, "connection", func() bool { return c.State().Connected })

	stub.send(t, `{"seq":1}`)
	stub.send(t, `{"seq":2}`)
	stub.send(t, `{"seq":3}`)

	waitFor(t, "3 frames", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	for i, want := range []string{`{"seq":1}`, `{"seq":2}`, `{"seq":3}`} {
		if got[i] != want {
			t.Errorf("frame %d = %q, want %q", i, got[i], want)
		}
	}
}

func TestClient_ReconnectsAfterUnexpectedClose(t *testing.T) {
	stub := &detectorStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	c := New(Config{URL: wsURL(srv), BaseDelay: 10 * time.Millisecond})
	c.Open()
	defer c.Close()

	waitFor(t, "first connection", func() bool { return c.State().Connected })

	stub.dropActive()

	waitFor(t, "reconnect", func() bool { return stub.connections() >= 2 && c.State().Connected })

	if st := c.State(); st.Attempt != 0 {
		t.Errorf("attempt should reset to 0 after successful reopen, got %d", st.Attempt)
	}
}

func TestClient_AttemptGrowsWhileDown(t *testing.T) {
	stub := &detectorStub{}
	srv := httptest.NewServer(stub)
	url := wsURL(srv)
	srv.Close() // nothing is listening

	c := New(Config{URL: url, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
	c.Open()
	defer c.Close()

	waitFor(t, "several failed attempts", func() bool { return c.State().Attempt >= 3 })

	if c.State().Connected {
		t.Error("client should not report connected while dials fail")
	}
}

func TestClient_CloseDisablesReconnect(t *testing.T) {
	stub := &detectorStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	c := New(Config{URL: wsURL(srv), BaseDelay: time.Millisecond})
	c.Open()
	waitFor(t, "connection", func() bool { return c.State().Connected })

	c.Close()

	if c.State().Connected {
		t.Error("expected disconnected state after Close")
	}

	before := stub.connections()
	time.Sleep(50 * time.Millisecond)
	if after := stub.connections(); after != before {
		t.Errorf("reconnect after Close: connections went %d -> %d", before, after)
	}
}

func TestClient_CloseCancelsPendingRetry(t *testing.T) {
	stub := &detectorStub{}
	srv := httptest.NewServer(stub)
	url := wsURL(srv)
	srv.Close()

	c := New(Config{URL: url, BaseDelay: 20 * time.Millisecond})
	c.Open()

	waitFor(t, "a failed attempt", func() bool { return c.State().Attempt >= 1 })
	c.Close()

	attempt := c.State().Attempt
	time.Sleep(100 * time.Millisecond)
	if got := c.State().Attempt; got != attempt {
		t.Errorf("retry fired after Close: attempt went %d -> %d", attempt, got)
	}
}

func TestClient_StateCallback(t *testing.T) {
	stub := &detectorStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	var mu sync.Mutex
	var states []State
	c := New(Config{
		URL:       wsURL(srv),
		BaseDelay: 10 * time.Millisecond,
		OnState: func(st State) {
			mu.Lock()
			states = append(states, st)
			mu.Unlock()
		},
	})
	c.Open()

	waitFor(t, "connected callback", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 1 && states[0].Connected
	})

	c.Close()

	waitFor(t, "disconnected callback", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return !states[len(states)-1].Connected
	})
}
