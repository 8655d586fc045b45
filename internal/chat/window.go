package chat

// DefaultWindowSize bounds the message window when no size is configured.
const DefaultWindowSize = 200

// Window is the bounded, ordered set of most recent messages for one
// session. Appends deduplicate by message id against the current contents;
// once the bound is exceeded the oldest entries are evicted first. Ids of
// evicted messages become appendable again, matching dedup-against-the-
// visible-window semantics.
//
// Window is not safe for concurrent use; the Session serializes access.
type Window struct {
	limit int
	seen  map[string]struct{}
	msgs  []Message
}

// NewWindow builds an empty window bounded at limit messages.
func NewWindow(limit int) *Window {
	if limit <= 0 {
		limit = DefaultWindowSize
	}
	return &Window{
		limit: limit,
		seen:  make(map[string]struct{}),
	}
}

// Append inserts msg at the end unless its id is already present.
// Reports whether the window changed.
func (w *Window) Append(msg Message) bool {
	if _, dup := w.seen[msg.ID]; dup {
		return false
	}
	w.seen[msg.ID] = struct{}{}
	w.msgs = append(w.msgs, msg)
	for len(w.msgs) > w.limit {
		delete(w.seen, w.msgs[0].ID)
		n := copy(w.msgs, w.msgs[1:])
		w.msgs = w.msgs[:n]
	}
	return true
}

// Messages returns a copy of the window contents in insertion order.
func (w *Window) Messages() []Message {
	out := make([]Message, len(w.msgs))
	copy(out, w.msgs)
	return out
}

// Len returns the number of retained messages.
func (w *Window) Len() int {
	return len(w.msgs)
}

// Reset drops all messages and forgets every seen id.
func (w *Window) Reset() {
	w.msgs = nil
	w.seen = make(map[string]struct{})
}
