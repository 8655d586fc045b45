package chat

// PresenceEntry describes one user inferred active from recent authorship.
type PresenceEntry struct {
	Name     string
	LastSeen string
}

// DerivePresence recomputes the active-user list from the window contents.
// System messages are skipped. A repeat author keeps the position of their
// first appearance while LastSeen advances to their latest message; since
// the window is arrival-ordered, the last occurrence wins.
func DerivePresence(msgs []Message) []PresenceEntry {
	index := make(map[string]int, len(msgs))
	entries := make([]PresenceEntry, 0, len(msgs))
	for _, m := range msgs {
		if m.Kind == KindSystem {
			continue
		}
		if i, ok := index[m.Author]; ok {
			entries[i].LastSeen = m.OccurredAt
			continue
		}
		index[m.Author] = len(entries)
		entries = append(entries, PresenceEntry{Name: m.Author, LastSeen: m.OccurredAt})
	}
	return entries
}
