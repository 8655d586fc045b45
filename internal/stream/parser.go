package stream

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// frame is one decoded text/event-stream event.
type frame struct {
	name string
	id   string
	data []byte
}

// scanner decodes text/event-stream frames incrementally from a live
// connection. It tracks the last event id and the server's retry hint
// across frames, per the SSE processing model.
type scanner struct {
	r      *bufio.Reader
	lastID string
	retry  time.Duration
}

func newScanner(r io.Reader) *scanner {
	return &scanner{r: bufio.NewReader(r)}
}

// next blocks until a dispatchable event arrives or the stream ends.
// Comment lines and frames with an empty data buffer are consumed without
// being dispatched.
func (s *scanner) next() (frame, error) {
	var (
		name string
		data []byte
		have bool
	)
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			return frame{}, err
		}
		// Exactly one terminator: LF or CRLF. A trailing CR inside the
		// content itself must survive.
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			// Blank line dispatches the accumulated event.
			if !have {
				name = ""
				continue
			}
			f := frame{name: name, id: s.lastID, data: data}
			return f, nil
		}
		if strings.HasPrefix(line, ":") {
			// Keep-alive comment.
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			name = value
		case "data":
			if have {
				data = append(data, '\n')
			}
			data = append(data, value...)
			have = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				s.lastID = value
			}
		case "retry":
			if ms, err := strconv.ParseInt(value, 10, 64); err == nil && ms >= 0 {
				s.retry = time.Duration(ms) * time.Millisecond
			}
		}
		// Unknown fields are ignored.
	}
}

func splitField(line string) (field, value string) {
	field, value, ok := strings.Cut(line, ":")
	if !ok {
		return line, ""
	}
	value = strings.TrimPrefix(value, " ")
	return field, value
}
