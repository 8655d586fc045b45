package chat

import (
	"fmt"
	"unicode/utf8"
)

// Kind classifies a message for rendering and presence purposes.
type Kind string

const (
	// KindNormal is a regular user-authored chat message.
	KindNormal Kind = "msg"
	// KindSystem is a server-generated notice; excluded from presence.
	KindSystem Kind = "system"
)

// SystemAuthor is attributed when a payload carries no author at all.
const SystemAuthor = "system"

// Message is the canonical unit of chat history. Built once on receipt,
// immutable afterwards. OccurredAt keeps the timestamp exactly as the
// server sent it (clock skew is tolerated, not corrected).
type Message struct {
	ID         string
	Author     string
	Content    string
	OccurredAt string
	Mine       bool
	Kind       Kind
}

// SyntheticID derives a deterministic identity for payloads the server did
// not key, so redelivery of the same event stays idempotent.
func SyntheticID(occurredAt, author, content string) string {
	return fmt.Sprintf("%s-%s-%d", occurredAt, author, utf8.RuneCountInString(content))
}
