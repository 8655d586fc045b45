package chat

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/vovakirdan/securechat-client/internal/proto"
)

// Normalize maps one raw stream payload onto the canonical message model.
// It never fails: every field has a defined fallback, so a malformed
// payload degrades into a displayable message instead of being dropped.
// receivedAt stands in for the timestamp when the server omitted one.
func Normalize(payload proto.MessagePayload, currentUser string, receivedAt time.Time) Message {
	author := strings.TrimSpace(firstNonEmpty(payload.User, payload.Author))
	if author == "" {
		author = SystemAuthor
	}

	content := firstNonEmpty(payload.Text, payload.Content)

	occurredAt := firstNonEmpty(payload.Timestamp, payload.CreatedAt)
	if occurredAt == "" {
		occurredAt = receivedAt.UTC().Format(time.RFC3339)
	}

	kind := KindNormal
	if payload.Type == proto.TypeSystem {
		kind = KindSystem
	}

	var mine bool
	if payload.Mine != nil {
		mine = *payload.Mine
	} else {
		mine = EqualNames(author, currentUser)
	}

	id := string(payload.ID)
	if id == "" {
		id = SyntheticID(occurredAt, author, content)
	}

	return Message{
		ID:         id,
		Author:     author,
		Content:    content,
		OccurredAt: occurredAt,
		Mine:       mine,
		Kind:       kind,
	}
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// EqualNames reports whether two display names refer to the same user,
// ignoring case and diacritics ("Alice", "alice" and "Alicé" all match).
func EqualNames(a, b string) bool {
	return strings.EqualFold(foldName(a), foldName(b))
}

func foldName(name string) string {
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		return name
	}
	return folded
}

// decodePayload parses the raw JSON handed up by the stream layer.
func decodePayload(data []byte) (proto.MessagePayload, error) {
	var p proto.MessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return proto.MessagePayload{}, err
	}
	return p, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
