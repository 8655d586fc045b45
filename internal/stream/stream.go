package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handlers receive connection notifications. All callbacks for one
// connection are invoked from a single goroutine, never concurrently.
// Any handler may be nil.
type Handlers struct {
	// OnOpen fires each time the stream (re)connects successfully.
	OnOpen func()
	// OnMessage delivers the raw JSON payload of one chat event.
	OnMessage func(data []byte)
	// OnError surfaces a transport or payload problem. The stream keeps
	// retrying on its own; this is informational.
	OnError func(detail string)
}

// CloseFunc tears a connection down. Idempotent; after it returns no
// further callbacks are delivered for that connection.
type CloseFunc func()

const (
	defaultRetry = 3 * time.Second
	maxRetry     = 30 * time.Second
)

// Client opens server-push event streams against the chat backend.
type Client struct {
	base  string
	httpc *http.Client
	retry time.Duration
	log   *zerolog.Logger
}

// NewClient builds a stream client for the given API base URL.
// retry is the initial reconnect delay; the server's retry hint overrides
// it per connection. Zero means the default of three seconds.
func NewClient(base string, retry time.Duration, logger *zerolog.Logger) *Client {
	if retry <= 0 {
		retry = defaultRetry
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		// No overall timeout: the stream is long-lived by design.
		httpc: &http.Client{},
		retry: retry,
		log:   logger,
	}
}

// Open establishes a stream scoped to username and starts delivering
// events to h. It returns immediately; the connection runs, reconnecting
// on transport failures, until the returned CloseFunc is called. If the
// stream URL cannot even be constructed the failure is surfaced once via
// OnError and a no-op CloseFunc is returned.
func (c *Client) Open(username string, h Handlers) CloseFunc {
	target, err := c.streamURL(username)
	if err != nil {
		c.log.Error().Err(err).Msg("unable to create stream")
		if h.OnError != nil {
			h.OnError(fmt.Sprintf("unable to create stream: %v", err))
		}
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once

	conn := &connection{
		client: c,
		url:    target,
		h:      h,
		ctx:    ctx,
	}
	go conn.run()

	return func() { once.Do(cancel) }
}

func (c *Client) streamURL(username string) (string, error) {
	u, err := url.Parse(c.base + "/stream")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("u", username)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// connection is the state of one long-lived stream: its reader goroutine
// owns lastEventID and the retry delay, so no locking is needed.
type connection struct {
	client      *Client
	url         string
	h           Handlers
	ctx         context.Context
	lastEventID string
}

func (cn *connection) run() {
	delay := cn.client.retry
	for {
		hint := cn.attempt()
		if cn.ctx.Err() != nil {
			return
		}
		if hint > 0 {
			delay = hint
		}
		if delay > maxRetry {
			delay = maxRetry
		}
		select {
		case <-cn.ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// attempt dials the stream once and reads it until it breaks. It returns
// the server's retry hint, if any was seen.
func (cn *connection) attempt() time.Duration {
	req, err := http.NewRequestWithContext(cn.ctx, http.MethodGet, cn.url, nil)
	if err != nil {
		cn.fail(fmt.Sprintf("stream request: %v", err))
		return 0
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if cn.lastEventID != "" {
		req.Header.Set("Last-Event-ID", cn.lastEventID)
	}

	resp, err := cn.client.httpc.Do(req)
	if err != nil {
		cn.fail(fmt.Sprintf("stream connection issue: %v", err))
		return 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		cn.fail(fmt.Sprintf("stream rejected (%d)", resp.StatusCode))
		return 0
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		cn.fail(fmt.Sprintf("unexpected stream content type %q", ct))
		return 0
	}

	cn.client.log.Debug().Str("url", cn.url).Msg("stream connected")
	cn.deliver(cn.h.OnOpen)

	sc := newScanner(resp.Body)
	for {
		f, err := sc.next()
		if err != nil {
			if cn.ctx.Err() == nil {
				cn.fail("stream disconnected")
			}
			return sc.retry
		}
		if f.id != "" {
			cn.lastEventID = f.id
		}
		switch f.name {
		case "", "message":
			if !json.Valid(f.data) {
				cn.fail("invalid message payload")
				continue
			}
			data := f.data
			cn.deliver(func() {
				if cn.h.OnMessage != nil {
					cn.h.OnMessage(data)
				}
			})
		default:
			// Named events belong to other collaborator streams.
			cn.client.log.Debug().Str("event", f.name).Msg("ignoring unknown stream event")
		}
	}
}

func (cn *connection) fail(detail string) {
	cn.client.log.Warn().Str("detail", detail).Msg("stream error")
	cn.deliver(func() {
		if cn.h.OnError != nil {
			cn.h.OnError(detail)
		}
	})
}

// deliver invokes a callback unless the connection has been closed.
func (cn *connection) deliver(fn func()) {
	if fn == nil || cn.ctx.Err() != nil {
		return
	}
	fn()
}
