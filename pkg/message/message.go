// Package message defines the transport-neutral message model exchanged
// between protocol endpoints, the dispatcher, and running scenarios.
package message

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction indicates whether a message entered or left the simulator.
type Direction string

// Message directions.
const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// Well-known header names. Transports populate these when translating a
// protocol request into a Message so that resolution and correlation can
// stay transport-agnostic.
const (
	// HeaderPath carries the request path of the originating transport
	// (URL path for HTTP, topic for MQTT).
	HeaderPath = "X-Stub-Path"

	// HeaderMethod carries the transport operation (HTTP method, etc.).
	HeaderMethod = "X-Stub-Method"

	// HeaderScenario names the target scenario explicitly; the header
	// resolver consults it before any content-based strategy.
	HeaderScenario = "X-Stub-Scenario"

	// HeaderReplyTo names the destination a reply should be produced to,
	// for transports that support addressable replies.
	HeaderReplyTo = "X-Stub-Reply-To"
)

// Message is one payload exchanged through a scenario endpoint.
//
// The transport id (ID) identifies the message at the transport level and
// drives idempotent attachment to an execution's audit trail: attaching
// the same id twice to the same execution yields the original record.
// Payload and direction are fixed at construction; headers may be added
// afterwards.
type Message struct {
	// ID is the transport-level message id. Generated when the transport
	// does not supply one.
	ID string `json:"id"`

	// Direction is INBOUND or OUTBOUND relative to the simulator.
	Direction Direction `json:"direction"`

	// Payload is the raw message body.
	Payload string `json:"payload"`

	// Headers is the transport header bag.
	Headers map[string]string `json:"headers,omitempty"`

	// CreatedAt is when the message entered the engine.
	CreatedAt time.Time `json:"createdAt"`

	// fault carries the script error when this message is a failure
	// sentinel rather than a business reply. Never persisted.
	fault error
}

// NewInbound creates an inbound message with a generated transport id.
func NewInbound(payload string) *Message {
	return newMessage(DirectionInbound, payload)
}

// NewOutbound creates an outbound message with a generated transport id.
func NewOutbound(payload string) *Message {
	return newMessage(DirectionOutbound, payload)
}

func newMessage(dir Direction, payload string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Direction: dir,
		Payload:   payload,
		Headers:   make(map[string]string),
		CreatedAt: time.Now(),
	}
}

// NewFault creates the failure-sentinel message used to deliver a script
// failure to a waiting caller through the reply future. The cause is kept
// in memory only.
func NewFault(cause error) *Message {
	m := newMessage(DirectionOutbound, "")
	if cause != nil {
		m.Payload = cause.Error()
	}
	m.fault = cause
	if m.fault == nil {
		m.fault = fmt.Errorf("scenario failed")
	}
	return m
}

// IsFault reports whether this message is a failure sentinel.
func (m *Message) IsFault() bool {
	return m.fault != nil
}

// FaultCause returns the error carried by a failure sentinel, or nil for
// a normal message.
func (m *Message) FaultCause() error {
	return m.fault
}

// Header returns the named header value, or "" if unset.
func (m *Message) Header(name string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[name]
}

// SetHeader sets a header value and returns the message for chaining.
func (m *Message) SetHeader(name, value string) *Message {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[name] = value
	return m
}

// WithID overrides the generated transport id and returns the message for
// chaining. Used by transports that carry their own message ids.
func (m *Message) WithID(id string) *Message {
	if id != "" {
		m.ID = id
	}
	return m
}

// Clone returns a deep copy of the message (headers included). The fault
// marker is preserved.
func (m *Message) Clone() *Message {
	c := *m
	c.Headers = make(map[string]string, len(m.Headers))
	for k, v := range m.Headers {
		c.Headers[k] = v
	}
	return &c
}
