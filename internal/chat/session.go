package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/securechat-client/internal/stream"
)

// Status describes the session's connection state machine.
type Status string

const (
	// StatusIdle means no username is active and no connection is held.
	StatusIdle Status = "idle"
	// StatusConnecting covers both the initial dial and transparent
	// reconnects after a transport hiccup.
	StatusConnecting Status = "connecting"
	// StatusOpen means the stream is live.
	StatusOpen Status = "open"
	// StatusError is reserved for failures no reconnect can fix; the
	// stream's own errors only ever roll the session back to connecting.
	StatusError Status = "error"
)

// Opener establishes one server-push connection scoped to a username and
// returns its teardown function. Implementations must deliver callbacks
// serially.
type Opener func(username string, h stream.Handlers) stream.CloseFunc

// Sender issues outbound requests on behalf of the session.
type Sender interface {
	Send(ctx context.Context, username, text string) error
	Heartbeat(ctx context.Context, userID, displayName string) error
}

// Options tunes a Session. Zero values fall back to defaults; a zero
// HeartbeatInterval disables the presence heartbeat.
type Options struct {
	WindowSize        int
	HeartbeatInterval time.Duration
	// Clock supplies receipt timestamps; defaults to time.Now.
	Clock func() time.Time
	// OnChange, when set, is invoked after every observable state change.
	// It runs outside the session lock and may be called from the stream
	// goroutine or from the caller of Send/Activate; read state back
	// through the snapshot accessors.
	OnChange func()
}

// Session owns one user's realtime chat state: the bounded message window,
// the connection status, the last error, and the single live stream
// connection. All stream callbacks and user-initiated operations serialize
// on an internal mutex; stale callbacks from a superseded connection are
// dropped by generation check.
type Session struct {
	opener Opener
	sender Sender
	log    *zerolog.Logger

	heartbeat time.Duration
	clock     func() time.Time
	onChange  func()
	userID    string

	mu          sync.Mutex
	username    string
	status      Status
	window      *Window
	lastErr     string
	gen         uint64
	closeStream stream.CloseFunc
}

// NewSession builds an idle session. Call Activate to bring it online.
func NewSession(opener Opener, sender Sender, logger *zerolog.Logger, opts Options) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Session{
		opener:    opener,
		sender:    sender,
		log:       logger,
		heartbeat: opts.HeartbeatInterval,
		clock:     clock,
		onChange:  opts.OnChange,
		userID:    uuid.NewString(),
		status:    StatusIdle,
		window:    NewWindow(opts.WindowSize),
	}
}

// Activate switches the session to the given username: the previous
// connection is torn down first, the window is cleared, and a fresh stream
// is opened. An empty username resets the session to idle. At most one
// connection is live at any time; callbacks from superseded connections
// never touch the new state.
func (s *Session) Activate(username string) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	closePrev := s.closeStream
	s.closeStream = nil
	s.window.Reset()
	s.lastErr = ""
	s.username = username
	if username == "" {
		s.status = StatusIdle
	} else {
		s.status = StatusConnecting
	}
	s.mu.Unlock()

	// Close the old connection before opening a new one so two streams
	// never overlap for the same session.
	if closePrev != nil {
		closePrev()
	}
	s.notify()

	if username == "" {
		return
	}

	closeFn := s.opener(username, stream.Handlers{
		OnOpen:    func() { s.handleOpen(gen) },
		OnMessage: func(data []byte) { s.handleMessage(gen, data) },
		OnError:   func(detail string) { s.handleError(gen, detail) },
	})

	s.mu.Lock()
	if s.gen != gen {
		// Superseded while dialing; drop the fresh connection instead.
		s.mu.Unlock()
		closeFn()
		return
	}
	s.closeStream = closeFn
	s.mu.Unlock()

	if s.heartbeat > 0 {
		go s.heartbeatLoop(gen, username)
	}
}

// Close tears the session down and returns it to idle.
func (s *Session) Close() {
	s.Activate("")
}

// Send trims and submits text on behalf of the active user. Empty text is
// silently ignored. The sent message is not appended locally; it is
// expected to round-trip through the stream, where dedup absorbs any echo.
// Failures land in LastError and are also returned to the caller.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	username := s.username
	gen := s.gen
	s.mu.Unlock()

	if username == "" {
		return ErrNoActiveUser
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if err := s.sender.Send(ctx, username, text); err != nil {
		s.mu.Lock()
		if s.gen != gen {
			// The session moved on to another user while the request was in
			// flight; the failure is still the caller's, not the new state's.
			s.mu.Unlock()
			return err
		}
		s.lastErr = err.Error()
		s.mu.Unlock()
		s.notify()
		return err
	}
	return nil
}

// ClearError discards the last error without touching anything else.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()
}

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastError returns the most recent error message, or "" if none.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Username returns the active username, or "" when idle.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Messages returns a copy of the current message window.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Messages()
}

// Presence derives the active-user list from the current window.
func (s *Session) Presence() []PresenceEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DerivePresence(s.window.Messages())
}

func (s *Session) handleOpen(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.status = StatusOpen
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()
}

func (s *Session) handleMessage(gen uint64, data []byte) {
	payload, err := decodePayload(data)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	if err != nil {
		// Valid JSON of the wrong shape; surface it like any other
		// per-event problem and keep the stream alive.
		s.log.Warn().Err(err).Msg("undecodable message payload")
		s.lastErr = "invalid message payload"
		s.mu.Unlock()
		s.notify()
		return
	}
	changed := s.window.Append(Normalize(payload, s.username, s.clock()))
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Session) handleError(gen uint64, detail string) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	if detail == "" {
		detail = defaultStreamError
	}
	s.lastErr = detail
	// The transport keeps retrying on its own, so a stream error is
	// presented as "still trying", never as a terminal failure.
	s.status = StatusConnecting
	s.mu.Unlock()
	s.notify()
}

// heartbeatLoop fires fire-and-forget presence beats while its generation
// is still the live one. Failures are logged and swallowed.
func (s *Session) heartbeatLoop(gen uint64, username string) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		live := s.gen == gen
		s.mu.Unlock()
		if !live {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.sender.Heartbeat(ctx, s.userID, username); err != nil {
			s.log.Debug().Err(err).Msg("presence heartbeat failed")
		}
		cancel()
	}
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
