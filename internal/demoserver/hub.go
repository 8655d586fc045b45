package demoserver

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/vovakirdan/securechat-client/internal/proto"
)

// historySize bounds the replay buffer handed to new subscribers.
const historySize = 32

// hub fans chat payloads out to every connected stream and keeps a short
// history so fresh connections see recent context, like the real backend.
type hub struct {
	mu      sync.Mutex
	subs    map[chan string]struct{}
	history []string
	nextID  int64
}

func newHub() *hub {
	return &hub{subs: make(map[chan string]struct{})}
}

// subscribe registers a new stream and returns its channel plus a replay
// of the recent history.
func (h *hub) subscribe() (chan string, []string) {
	ch := make(chan string, 16)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[ch] = struct{}{}
	replay := make([]string, len(h.history))
	copy(replay, h.history)
	return ch, replay
}

func (h *hub) unsubscribe(ch chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, ch)
}

// broadcast assigns an id, records the payload in history, and delivers it
// to every subscriber. Slow consumers are skipped rather than blocking the
// sender.
func (h *hub) broadcast(user, text, kind string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	payload := proto.MessagePayload{
		ID:        proto.FlexID(strconv.FormatInt(h.nextID, 10)),
		User:      user,
		Text:      text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Type:      kind,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	data := string(raw)

	h.history = append(h.history, data)
	if len(h.history) > historySize {
		h.history = h.history[len(h.history)-historySize:]
	}

	for ch := range h.subs {
		select {
		case ch <- data:
		default:
			// Drop if slow consumer.
		}
	}
	return data
}
