package corobus

import "fmt"

// Message is the opaque payload carried by the bus. A single Message value is
// shared by pointer between the sender and every handler it reaches; the bus
// never inspects or copies the payload. Handlers must treat the payload as
// read-only — any mutable state belongs in the handler's own closure
// environment, not in the message.
type Message struct {
	payload any
}

// NewMessage wraps a payload for delivery. The payload may be any value,
// including nil for signal-style messages that carry no data.
func NewMessage(payload any) *Message {
	return &Message{payload: payload}
}

// EmptyMessage returns a message with no payload. Useful for commands whose
// delivery alone is the signal.
func EmptyMessage() *Message {
	return &Message{}
}

// Payload returns the wrapped value without type checking.
func (m *Message) Payload() any {
	if m == nil {
		return nil
	}
	return m.payload
}

// PayloadAs performs a checked downcast of the message payload. The second
// return value reports whether the payload is a T.
func PayloadAs[T any](m *Message) (T, bool) {
	var zero T
	if m == nil {
		return zero, false
	}
	v, ok := m.payload.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// MustPayload downcasts the payload to T and panics on mismatch. A mismatch
// is fatal to the handler coroutine that performs it: the runner aborts that
// coroutine, records the failure, and keeps draining the stack.
func MustPayload[T any](m *Message) T {
	v, ok := PayloadAs[T](m)
	if !ok {
		panic(fmt.Sprintf("corobus: message payload is %T, not %T", m.Payload(), v))
	}
	return v
}

// String renders the message for diagnostic dumps.
func (m *Message) String() string {
	if m == nil || m.payload == nil {
		return "message(<empty>)"
	}
	return fmt.Sprintf("message(%T)", m.payload)
}
