package sse

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// Event is one dispatched server-sent event.
type Event struct {
	ID    string
	Event string
	Data  string
	Retry string
}

// Reader decodes a text/event-stream body.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps r. Lines up to 1 MiB are accepted.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Reader{scanner: scanner}
}

// Next returns the next event. It returns io.EOF when the stream ends.
// Comment lines and events without fields are skipped.
func (r *Reader) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		touched bool
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if touched {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			ev.ID = value
		case "event":
			ev.Event = value
		case "data":
			data = append(data, value)
		case "retry":
			ev.Retry = value
		default:
			continue
		}
		touched = true
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	if touched {
		ev.Data = strings.Join(data, "\n")
		return ev, nil
	}
	return Event{}, io.EOF
}

// Consume reads events until the stream ends, ctx is canceled, or fn
// returns an error. A clean end of stream returns nil.
func Consume(ctx context.Context, body io.Reader, fn func(Event) error) error {
	reader := NewReader(body)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
