// internal/channel/message.go
package channel

import (
	"encoding/json"
	"fmt"
)

// Message is one inbound frame, already decoded from JSON.
type Message struct {
	// Data is the decoded value: map[string]interface{}, []interface{},
	// string, float64, bool or nil.
	Data interface{}

	raw json.RawMessage
}

// DecodeMessage parses a JSON text frame.
func DecodeMessage(frame []byte) (Message, error) {
	var v interface{}
	if err := json.Unmarshal(frame, &v); err != nil {
		return Message{}, &DecodeError{Frame: frame, Err: err}
	}
	return Message{Data: v, raw: append(json.RawMessage(nil), frame...)}, nil
}

// Raw returns the frame as received.
func (m Message) Raw() json.RawMessage {
	return m.raw
}

// Decode unmarshals the frame into v.
func (m Message) Decode(v interface{}) error {
	return json.Unmarshal(m.raw, v)
}

// Field returns a top-level field when the frame is a JSON object.
func (m Message) Field(key string) (interface{}, bool) {
	obj, ok := m.Data.(map[string]interface{})
	if !ok {
		return nil, false
	}
	v, ok := obj[key]
	return v, ok
}

// Kind returns the string "type" field, falling back to "action". Empty if neither is set.
func (m Message) Kind() string {
	for _, key := range []string{"type", "action"} {
		if v, ok := m.Field(key); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// DecodeError reports an inbound frame that was not valid JSON.
type DecodeError struct {
	Frame []byte
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("channel: malformed frame (%d bytes): %v", len(e.Frame), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DialError reports a failure to establish the transport.
type DialError struct {
	Endpoint string
	Err      error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("channel: dial %s: %v", e.Endpoint, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}
