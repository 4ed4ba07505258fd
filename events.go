package httpkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Event is a single server-sent event.
type Event struct {
	// Event is the event type (optional). Maps to the "event:" field.
	Event string
	// Data is the event payload. If it's a struct/map, it will be JSON-encoded.
	Data any
	// ID is the event ID (optional). Maps to the "id:" field.
	ID string
}

// Events is a response body that renders each event received from the
// channel in text/event-stream format. The stream ends when the channel is
// closed. Closing the stream does not stop the sender; see SSE. Events
// cannot be decoded from a request.
type Events <-chan Event

// IntoStream yields one chunk per event.
func (e Events) IntoStream() Stream {
	return newStream(func() ([]byte, error) {
		event, ok := <-e
		if !ok {
			return nil, io.EOF
		}
		var buf bytes.Buffer
		writeEvent(&buf, event)
		return buf.Bytes(), nil
	}, nil)
}

// SSE sets the event-stream headers on resp and returns the events as the
// response body.
//
// The producer must stop sending once the handler's ctx is done. A boxed
// handler's ctx is cancelled when the response body is closed, which the
// backends do when the client goes away.
func SSE(resp *ResponseBuilder, events <-chan Event) Responder {
	return resp.
		ContentType("text/event-stream").
		SetHeader("Cache-Control", "no-cache").
		Body(Events(events))
}

func writeEvent(w io.Writer, event Event) {
	if event.ID != "" {
		writeEventField(w, "id", event.ID)
	}
	if event.Event != "" {
		writeEventField(w, "event", event.Event)
	}

	switch v := event.Data.(type) {
	case string:
		writeEventField(w, "data", v)
	case []byte:
		writeEventField(w, "data", string(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			writeEventField(w, "data", err.Error())
		} else {
			writeEventField(w, "data", string(data))
		}
	}

	//nolint:errcheck // in-memory buffer
	fmt.Fprint(w, "\n")
}

// writeEventField writes one field line per line of value, so multi-line
// payloads stay within a single event.
func writeEventField(w io.Writer, name, value string) {
	for line := range strings.SplitSeq(value, "\n") {
		//nolint:errcheck // in-memory buffer
		fmt.Fprintf(w, "%s: %s\n", name, line)
	}
}
