package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/securechat-client/internal/stream"
)

type fakeConn struct {
	mu       sync.Mutex
	username string
	h        stream.Handlers
	closed   bool
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeStream struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (f *fakeStream) open(username string, h stream.Handlers) stream.CloseFunc {
	conn := &fakeConn{username: username, h: h}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	return func() {
		conn.mu.Lock()
		conn.closed = true
		conn.mu.Unlock()
	}
}

func (f *fakeStream) conn(t *testing.T, i int) *fakeConn {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) <= i {
		t.Fatalf("expected at least %d connections, have %d", i+1, len(f.conns))
	}
	return f.conns[i]
}

type fakeSender struct {
	mu      sync.Mutex
	sends   []string
	sendErr error
	// onSend runs while the request is in flight, before the result comes
	// back.
	onSend func()
	beats  int
}

func (f *fakeSender) Send(_ context.Context, username, text string) error {
	f.mu.Lock()
	hook := f.onSend
	err := f.sendErr
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.sends = append(f.sends, username+"|"+text)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) Heartbeat(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beats++
	return nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sends))
	copy(out, f.sends)
	return out
}

func newTestSession(opts Options) (*Session, *fakeStream, *fakeSender) {
	streams := &fakeStream{}
	sender := &fakeSender{}
	logger := zerolog.Nop()
	return NewSession(streams.open, sender, &logger, opts), streams, sender
}

func TestActivateStateMachine(t *testing.T) {
	s, streams, _ := newTestSession(Options{})

	if s.Status() != StatusIdle {
		t.Fatalf("fresh session should be idle, got %q", s.Status())
	}

	s.Activate("bob")
	if s.Status() != StatusConnecting {
		t.Fatalf("after activate status = %q, want connecting", s.Status())
	}

	conn := streams.conn(t, 0)
	if conn.username != "bob" {
		t.Fatalf("stream opened for %q, want bob", conn.username)
	}

	conn.h.OnOpen()
	if s.Status() != StatusOpen {
		t.Fatalf("after open signal status = %q, want open", s.Status())
	}

	conn.h.OnError("hiccup")
	if s.Status() != StatusConnecting {
		t.Fatalf("transport error must roll back to connecting, got %q", s.Status())
	}
	if s.LastError() != "hiccup" {
		t.Fatalf("last error = %q, want hiccup", s.LastError())
	}
}

func TestErrorDetailDefaults(t *testing.T) {
	s, streams, _ := newTestSession(Options{})
	s.Activate("bob")
	streams.conn(t, 0).h.OnError("")
	if s.LastError() != "stream disconnected" {
		t.Fatalf("empty detail should default, got %q", s.LastError())
	}
}

func TestReconnectClearsError(t *testing.T) {
	s, streams, _ := newTestSession(Options{})
	s.Activate("bob")
	conn := streams.conn(t, 0)

	conn.h.OnError("hiccup")
	conn.h.OnOpen()
	if s.Status() != StatusOpen || s.LastError() != "" {
		t.Fatalf("successful reconnect should clear the error, got status=%q err=%q", s.Status(), s.LastError())
	}
}

func TestMessageIngestionAndDedup(t *testing.T) {
	s, streams, _ := newTestSession(Options{})
	s.Activate("alice")
	conn := streams.conn(t, 0)

	payload := []byte(`{"id":7,"user":"bob","text":"hey","timestamp":"2025-03-14T09:00:00Z"}`)
	conn.h.OnMessage(payload)
	conn.h.OnMessage(payload)

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("redelivery must be idempotent; window has %d messages", len(msgs))
	}
	if msgs[0].ID != "7" || msgs[0].Author != "bob" {
		t.Fatalf("unexpected message: %+v", msgs[0])
	}
}

func TestMineResolvedAgainstActiveUser(t *testing.T) {
	s, streams, _ := newTestSession(Options{})
	s.Activate("Alice")
	conn := streams.conn(t, 0)

	conn.h.OnMessage([]byte(`{"user":"ALICE","text":"hello"}`))

	msgs := s.Messages()
	if len(msgs) != 1 || !msgs[0].Mine {
		t.Fatalf("ALICE should be recognized as mine for user Alice: %+v", msgs)
	}
}

func TestSystemMessageExcludedFromPresence(t *testing.T) {
	s, streams, _ := newTestSession(Options{})
	s.Activate("alice")
	conn := streams.conn(t, 0)

	conn.h.OnMessage([]byte(`{"user":"sys","text":"welcome","type":"system"}`))

	if got := len(s.Messages()); got != 1 {
		t.Fatalf("window length = %d, want 1", got)
	}
	if entries := s.Presence(); len(entries) != 0 {
		t.Fatalf("system message must not appear in presence: %+v", entries)
	}
}

func TestWindowBoundThroughSession(t *testing.T) {
	s, streams, _ := newTestSession(Options{WindowSize: 2})
	s.Activate("alice")
	conn := streams.conn(t, 0)

	conn.h.OnMessage([]byte(`{"id":"a","user":"u","text":"A"}`))
	conn.h.OnMessage([]byte(`{"id":"b","user":"u","text":"B"}`))
	conn.h.OnMessage([]byte(`{"id":"c","user":"u","text":"C"}`))

	msgs := s.Messages()
	if len(msgs) != 2 || msgs[0].ID != "b" || msgs[1].ID != "c" {
		t.Fatalf("expected window [b c], got %+v", msgs)
	}
}

func TestUndecodablePayloadIsAbsorbed(t *testing.T) {
	s, streams, _ := newTestSession(Options{})
	s.Activate("alice")
	conn := streams.conn(t, 0)
	conn.h.OnOpen()

	conn.h.OnMessage([]byte(`[1,2,3]`))

	if got := len(s.Messages()); got != 0 {
		t.Fatalf("undecodable payload must not enter the window, got %d messages", got)
	}
	if s.LastError() == "" {
		t.Fatal("undecodable payload should surface as last error")
	}
	if s.Status() != StatusOpen {
		t.Fatalf("a bad payload is not a transport failure; status = %q", s.Status())
	}
}

func TestSendRequiresActiveUser(t *testing.T) {
	s, _, sender := newTestSession(Options{})

	err := s.Send(context.Background(), "hello")
	if !errors.Is(err, ErrNoActiveUser) {
		t.Fatalf("expected ErrNoActiveUser, got %v", err)
	}
	if len(sender.sent()) != 0 {
		t.Fatal("precondition failure must never reach the network")
	}
}

func TestSendEmptyAfterTrimIsNoop(t *testing.T) {
	s, _, sender := newTestSession(Options{})
	s.Activate("alice")

	if err := s.Send(context.Background(), "   \t  "); err != nil {
		t.Fatalf("empty send should no-op, got %v", err)
	}
	if len(sender.sent()) != 0 {
		t.Fatal("no request should be issued for empty text")
	}
	if s.LastError() != "" || len(s.Messages()) != 0 {
		t.Fatal("empty send must not change state")
	}
}

func TestSendTrimsAndDoesNotAppendLocally(t *testing.T) {
	s, _, sender := newTestSession(Options{})
	s.Activate("alice")

	if err := s.Send(context.Background(), "  hi there  "); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	got := sender.sent()
	if len(got) != 1 || got[0] != "alice|hi there" {
		t.Fatalf("unexpected send calls: %v", got)
	}
	if len(s.Messages()) != 0 {
		t.Fatal("send must not optimistically append; the echo comes via the stream")
	}
}

func TestSendFailureSurfacesDetail(t *testing.T) {
	s, _, sender := newTestSession(Options{})
	s.Activate("alice")
	sender.sendErr = errors.New("text too long")

	err := s.Send(context.Background(), "hello")
	if err == nil || err.Error() != "text too long" {
		t.Fatalf("send error should propagate to the caller, got %v", err)
	}
	if s.LastError() != "text too long" {
		t.Fatalf("send error should also land in last error, got %q", s.LastError())
	}
	if len(s.Messages()) != 0 {
		t.Fatal("a failed send must not corrupt the window")
	}
}

func TestSendFailureAfterUserSwitchIsDropped(t *testing.T) {
	s, _, sender := newTestSession(Options{})
	s.Activate("alice")
	sender.sendErr = errors.New("text too long")
	sender.onSend = func() { s.Activate("bob") }

	err := s.Send(context.Background(), "hello")
	if err == nil || err.Error() != "text too long" {
		t.Fatalf("the caller still gets the failure, got %v", err)
	}
	if s.LastError() != "" {
		t.Fatalf("a stale send failure must not leak into the new user's state, got %q", s.LastError())
	}
	if s.Username() != "bob" {
		t.Fatalf("active user = %q, want bob", s.Username())
	}
}

func TestClearError(t *testing.T) {
	s, streams, _ := newTestSession(Options{})
	s.Activate("bob")
	streams.conn(t, 0).h.OnError("hiccup")

	s.ClearError()
	if s.LastError() != "" {
		t.Fatalf("clear error left %q behind", s.LastError())
	}
	if s.Status() != StatusConnecting {
		t.Fatalf("clear error must not touch status, got %q", s.Status())
	}
}

func TestStaleConnectionCallbacksAreDropped(t *testing.T) {
	s, streams, _ := newTestSession(Options{})
	s.Activate("bob")
	s.Activate("carol")

	bob := streams.conn(t, 0)
	carol := streams.conn(t, 1)

	if !bob.isClosed() {
		t.Fatal("switching users must close the previous connection first")
	}
	if carol.isClosed() {
		t.Fatal("the live connection should stay open")
	}

	// Late callbacks from bob's superseded connection.
	bob.h.OnOpen()
	bob.h.OnMessage([]byte(`{"user":"bob","text":"ghost"}`))
	bob.h.OnError("ghost error")

	if s.Status() != StatusConnecting {
		t.Fatalf("stale open must not change status, got %q", s.Status())
	}
	if len(s.Messages()) != 0 {
		t.Fatalf("stale messages must be dropped, window: %+v", s.Messages())
	}
	if s.LastError() != "" {
		t.Fatalf("stale errors must be dropped, got %q", s.LastError())
	}

	carol.h.OnOpen()
	carol.h.OnMessage([]byte(`{"user":"dave","text":"real"}`))
	if s.Status() != StatusOpen || len(s.Messages()) != 1 {
		t.Fatal("the live connection's callbacks must still apply")
	}
}

func TestDeactivateResetsEverything(t *testing.T) {
	s, streams, _ := newTestSession(Options{})
	s.Activate("bob")
	conn := streams.conn(t, 0)
	conn.h.OnOpen()
	conn.h.OnMessage([]byte(`{"user":"bob","text":"hello"}`))
	conn.h.OnError("hiccup")

	s.Activate("")

	if !conn.isClosed() {
		t.Fatal("deactivation must release the connection")
	}
	if s.Status() != StatusIdle || len(s.Messages()) != 0 || s.LastError() != "" {
		t.Fatalf("deactivated session not reset: status=%q window=%d err=%q",
			s.Status(), len(s.Messages()), s.LastError())
	}
}

func TestReactivateResetsWindow(t *testing.T) {
	s, streams, _ := newTestSession(Options{})
	s.Activate("bob")
	streams.conn(t, 0).h.OnMessage([]byte(`{"id":"x","user":"bob","text":"old"}`))

	s.Activate("bob")
	if len(s.Messages()) != 0 {
		t.Fatal("re-activation must clear the window")
	}
	// The server may replay the same event on the new stream.
	streams.conn(t, 1).h.OnMessage([]byte(`{"id":"x","user":"bob","text":"old"}`))
	if len(s.Messages()) != 1 {
		t.Fatal("replayed history must land in the fresh window")
	}
}

func TestOnChangeFires(t *testing.T) {
	var mu sync.Mutex
	changes := 0
	streams := &fakeStream{}
	sender := &fakeSender{}
	logger := zerolog.Nop()
	s := NewSession(streams.open, sender, &logger, Options{
		OnChange: func() {
			mu.Lock()
			changes++
			mu.Unlock()
		},
	})

	s.Activate("bob")
	streams.conn(t, 0).h.OnOpen()
	streams.conn(t, 0).h.OnMessage([]byte(`{"user":"bob","text":"hi"}`))

	mu.Lock()
	got := changes
	mu.Unlock()
	if got < 3 {
		t.Fatalf("expected change notifications for activate, open and message; got %d", got)
	}
}

func TestHeartbeatWhileActive(t *testing.T) {
	s, _, sender := newTestSession(Options{HeartbeatInterval: 10 * time.Millisecond})
	s.Activate("bob")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sender.mu.Lock()
		beats := sender.beats
		sender.mu.Unlock()
		if beats >= 2 {
			s.Close()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected presence heartbeats while the session is active")
}
