package runtime

import (
	"encoding/json"
	"fmt"
)

// Stream event types. One JSON event per line.
const (
	EventChunk    = "chunk"
	EventError    = "error"
	EventComplete = "complete"
)

// Event is one line of an invocation stream.
type Event struct {
	Type  string `json:"type"`
	Data  string `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// decodeEvent maps one stream line to an event. Decoding is a closed sum,
// tried in order: the tagged union, the legacy response/data objects, and
// finally raw text. A present but unrecognized type tag is an error rather
// than silently dropped data.
func decodeEvent(line []byte) (Event, error) {
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		return Event{Type: EventChunk, Data: string(line)}, nil
	}

	if rawType, ok := obj["type"]; ok {
		typ, ok := rawType.(string)
		if !ok {
			return Event{}, fmt.Errorf("stream event type must be a string, got %v", rawType)
		}
		switch typ {
		case EventChunk:
			return Event{Type: EventChunk, Data: eventString(obj["data"])}, nil
		case EventError:
			msg := eventString(obj["error"])
			if msg == "" {
				msg = "Unknown error"
			}
			return Event{Type: EventError, Error: msg}, nil
		case EventComplete:
			return Event{Type: EventComplete}, nil
		default:
			return Event{}, fmt.Errorf("unknown stream event type %q", typ)
		}
	}

	// Legacy single-object responses from older runtimes.
	if v, ok := obj["response"]; ok {
		return Event{Type: EventChunk, Data: eventString(v)}, nil
	}
	if v, ok := obj["data"]; ok {
		return Event{Type: EventChunk, Data: eventString(v)}, nil
	}

	return Event{Type: EventChunk, Data: string(line)}, nil
}

func eventString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
