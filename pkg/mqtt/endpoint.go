// Package mqtt provides an MQTT transport endpoint so the simulator can
// stand in for message-driven (JMS-style) backends: inbound messages are
// consumed from a subscribed topic and replies are published back.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/getstubd/stubd/pkg/endpoint"
	"github.com/getstubd/stubd/pkg/logging"
	"github.com/getstubd/stubd/pkg/message"
)

// Defaults for the MQTT endpoint.
const (
	DefaultConnectTimeout = 10 * time.Second
	defaultInboxCapacity  = 64
	disconnectQuiesceMs   = 250
)

// Config describes the MQTT endpoint connection.
type Config struct {
	// BrokerURL is the broker address, e.g. "tcp://localhost:1883".
	BrokerURL string `json:"brokerUrl" yaml:"brokerUrl"`

	// ClientID identifies this simulator instance on the broker.
	ClientID string `json:"clientId" yaml:"clientId"`

	// Topic is the inbound subscription.
	Topic string `json:"topic" yaml:"topic"`

	// ReplyTopic receives replies. A message's reply-to header takes
	// precedence when set.
	ReplyTopic string `json:"replyTopic,omitempty" yaml:"replyTopic,omitempty"`

	// QoS is the MQTT quality of service for both directions (0-2).
	QoS byte `json:"qos,omitempty" yaml:"qos,omitempty"`

	// Username and Password are optional broker credentials.
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

// Endpoint is an MQTT-backed transport endpoint. Subscribed messages are
// buffered into an inbox consumed by Receive; Send publishes to the reply
// topic. It satisfies endpoint.Endpoint and is normally driven by an
// endpoint.Poller.
type Endpoint struct {
	cfg    Config
	client pahomqtt.Client
	inbox  chan *message.Message
	log    *slog.Logger
}

var _ endpoint.Endpoint = (*Endpoint)(nil)

// Connect dials the broker and subscribes the inbound topic.
func Connect(cfg Config, log *slog.Logger) (*Endpoint, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("mqtt endpoint requires a broker URL")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("mqtt endpoint requires an inbound topic")
	}
	if log == nil {
		log = logging.Nop()
	}

	e := &Endpoint{
		cfg:   cfg,
		inbox: make(chan *message.Message, defaultInboxCapacity),
		log:   log.With("endpoint", "mqtt", "topic", cfg.Topic),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(DefaultConnectTimeout).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(c pahomqtt.Client) {
			// Resubscribe after every (re)connect so a broker restart
			// cannot silently drop the inbound flow.
			if token := c.Subscribe(cfg.Topic, cfg.QoS, e.onMessage); token.Wait() && token.Error() != nil {
				e.log.Error("failed to subscribe inbound topic", "error", token.Error())
			}
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	e.client = pahomqtt.NewClient(opts)
	if token := e.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.BrokerURL, token.Error())
	}

	e.log.Info("mqtt endpoint connected", "broker", cfg.BrokerURL)
	return e, nil
}

// Name implements endpoint.Endpoint.
func (e *Endpoint) Name() string {
	return fmt.Sprintf("mqtt:%s", e.cfg.Topic)
}

func (e *Endpoint) onMessage(_ pahomqtt.Client, raw pahomqtt.Message) {
	m := message.NewInbound(string(raw.Payload())).
		WithID(fmt.Sprintf("mqtt-%d", raw.MessageID()))
	m.SetHeader(message.HeaderPath, raw.Topic())
	if e.cfg.ReplyTopic != "" {
		m.SetHeader(message.HeaderReplyTo, e.cfg.ReplyTopic)
	}

	select {
	case e.inbox <- m:
	default:
		e.log.Warn("inbox full, dropping inbound mqtt message", "messageId", m.ID)
	}
}

// Receive implements endpoint.Consumer.
func (e *Endpoint) Receive(ctx context.Context, timeout time.Duration) (*message.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m := <-e.inbox:
		return m, nil
	case <-timer.C:
		return nil, endpoint.ErrReceiveTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send implements endpoint.Producer. The reply is published to the
// message's reply-to header when set, otherwise to the configured reply
// topic.
func (e *Endpoint) Send(_ context.Context, m *message.Message) error {
	topic := m.Header(message.HeaderReplyTo)
	if topic == "" {
		topic = e.cfg.ReplyTopic
	}
	if topic == "" {
		return fmt.Errorf("no reply topic for message %s", m.ID)
	}
	token := e.client.Publish(topic, e.cfg.QoS, false, []byte(m.Payload))
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish reply to %s: %w", topic, token.Error())
	}
	return nil
}

// Close unsubscribes and disconnects from the broker.
func (e *Endpoint) Close() {
	if token := e.client.Unsubscribe(e.cfg.Topic); token.Wait() && token.Error() != nil {
		e.log.Warn("failed to unsubscribe", "error", token.Error())
	}
	e.client.Disconnect(disconnectQuiesceMs)
	e.log.Info("mqtt endpoint disconnected")
}
