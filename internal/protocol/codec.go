package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/veilchat/relay/internal/core"
)

var (
	ErrBadFrame     = errors.New("frame is not a valid event envelope")
	ErrUnknownEvent = errors.New("unknown event")
	ErrMissingField = errors.New("missing required field")
)

// Envelope is the wire frame {event, data}. Data stays raw until the event
// name tells us which payload to expect.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodeEnvelope validates one inbound text frame. The event name must be in
// the known client set; the payload is left undecoded.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: event", ErrMissingField)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%w: data", ErrMissingField)
	}
	if !IsClientEvent(env.Event) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return &env, nil
}

// Encode wraps data into an outbound envelope frame.
func Encode(event string, data any) (core.Frame, error) {
	b, err := json.Marshal(Envelope{Event: event, Data: mustRaw(data)})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return core.Frame(b), nil
}

func mustRaw(data any) json.RawMessage {
	if data == nil {
		return json.RawMessage(`{}`)
	}
	if raw, ok := data.(json.RawMessage); ok {
		return raw
	}
	b, err := json.Marshal(data)
	if err != nil {
		// Payloads are our own structs; a marshal failure is a programming
		// error, not a runtime condition.
		panic(err)
	}
	return b
}
