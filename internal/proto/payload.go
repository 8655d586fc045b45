package proto

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Event names used on the chat stream. The chat feed itself rides on the
// default SSE event; collaborator features (announcements, tasks, files)
// run named events on their own stream connections.
const (
	EventMessage = "message"

	TypeSystem = "system"
)

// FlexID accepts a JSON string or number. The backend historically emitted
// numeric database ids while newer payloads carry opaque strings.
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = FlexID(n.String())
	return nil
}

// MarshalJSON implements json.Marshaler. Numeric-looking ids round-trip as
// numbers so the stub server speaks the same dialect as the real backend.
func (f FlexID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(f), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(f) {
		return []byte(f), nil
	}
	return json.Marshal(string(f))
}

// MessagePayload is the loosely typed body of one inbound chat event.
// The backend has two generations of field names; both spellings are
// accepted, and every field may be absent.
type MessagePayload struct {
	User      string `json:"user,omitempty"`
	Author    string `json:"author,omitempty"`
	Text      string `json:"text,omitempty"`
	Content   string `json:"content,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	ID        FlexID `json:"id,omitempty"`
	Type      string `json:"type,omitempty"`
	Mine      *bool  `json:"mine,omitempty"`
}
