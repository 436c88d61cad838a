package foundry

import (
	"encoding/json"
	"fmt"
)

const (
	eventTypeOutputTextDelta = "response.output_text.delta"
	eventTypeError           = "error"
	eventTypeResponseFailed  = "response.failed"
)

// StreamEvent is one decoded event of a streamed response. It is a closed set:
// OutputTextDelta, StreamFailure or OtherEvent.
type StreamEvent interface {
	streamEvent()
}

// OutputTextDelta carries the next fragment of the answer text.
type OutputTextDelta struct {
	Text string
}

// StreamFailure is an error the service reported about a response, either
// inside the stream or as the status of a completed call.
type StreamFailure struct {
	Code    string
	Message string
}

func (f StreamFailure) Error() string {
	return fmt.Sprintf("service reported error %q: %s", f.Code, f.Message)
}

// OtherEvent is any event the bridge does not act on (created, in_progress,
// content_part.added, output_text.done, completed, ...).
type OtherEvent struct {
	Type string
}

func (OutputTextDelta) streamEvent() {}
func (StreamFailure) streamEvent()   {}
func (OtherEvent) streamEvent()      {}

// DecodeStreamEvent maps a raw server-sent event onto the closed StreamEvent set.
// Payloads that cannot be decoded for a known type degrade to OtherEvent
// rather than failing the stream.
func DecodeStreamEvent(eventType string, raw []byte) StreamEvent {
	switch eventType {
	case eventTypeOutputTextDelta:
		var ev struct {
			Delta string `json:"delta"`
		}
		if err := json.Unmarshal(raw, &ev); err != nil {
			return OtherEvent{Type: eventType}
		}
		return OutputTextDelta{Text: ev.Delta}
	case eventTypeError:
		var ev struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &ev); err != nil {
			return StreamFailure{Message: "malformed error event"}
		}
		return StreamFailure{Code: ev.Code, Message: ev.Message}
	case eventTypeResponseFailed:
		var ev struct {
			Response struct {
				Error *struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			} `json:"response"`
		}
		if err := json.Unmarshal(raw, &ev); err != nil || ev.Response.Error == nil {
			return StreamFailure{Message: "response failed"}
		}
		return StreamFailure{Code: ev.Response.Error.Code, Message: ev.Response.Error.Message}
	default:
		return OtherEvent{Type: eventType}
	}
}
