package endpoint

import (
	"context"
	"time"

	"github.com/getstubd/stubd/pkg/message"
)

// MessageObserver is notified of every message crossing a transport
// endpoint. Observation happens at explicit wrap points rather than by
// proxying, so the call sites stay visible in the code.
type MessageObserver interface {
	OnInbound(m *message.Message)
	OnOutbound(m *message.Message)
}

// ObserverFuncs adapts two functions to MessageObserver. Nil funcs are
// skipped.
type ObserverFuncs struct {
	Inbound  func(m *message.Message)
	Outbound func(m *message.Message)
}

// OnInbound implements MessageObserver.
func (o ObserverFuncs) OnInbound(m *message.Message) {
	if o.Inbound != nil {
		o.Inbound(m)
	}
}

// OnOutbound implements MessageObserver.
func (o ObserverFuncs) OnOutbound(m *message.Message) {
	if o.Outbound != nil {
		o.Outbound(m)
	}
}

// ObservedConsumer decorates a Consumer, notifying the observer of every
// genuinely received message (idle cycles pass through unobserved).
type ObservedConsumer struct {
	inner    Consumer
	observer MessageObserver
}

// ObserveConsumer wraps c with the observer.
func ObserveConsumer(c Consumer, obs MessageObserver) *ObservedConsumer {
	return &ObservedConsumer{inner: c, observer: obs}
}

// Receive implements Consumer.
func (c *ObservedConsumer) Receive(ctx context.Context, timeout time.Duration) (*message.Message, error) {
	m, err := c.inner.Receive(ctx, timeout)
	if err == nil && m != nil {
		c.observer.OnInbound(m)
	}
	return m, err
}

// ObservedProducer decorates a Producer, notifying the observer of every
// successfully sent message.
type ObservedProducer struct {
	inner    Producer
	observer MessageObserver
}

// ObserveProducer wraps p with the observer.
func ObserveProducer(p Producer, obs MessageObserver) *ObservedProducer {
	return &ObservedProducer{inner: p, observer: obs}
}

// Send implements Producer.
func (p *ObservedProducer) Send(ctx context.Context, m *message.Message) error {
	err := p.inner.Send(ctx, m)
	if err == nil {
		p.observer.OnOutbound(m)
	}
	return err
}
