// Package mqtt publishes the room state to an MQTT broker.
//
// Every state change is published as a retained message so that late
// subscribers see the current state immediately.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Payload represents the MQTT message payload structure.
type Payload struct {
	State StatePayload `json:"state"`
}

// StatePayload contains the announced state.
type StatePayload struct {
	Open       bool   `json:"open"`
	Timestamp  string `json:"timestamp"`
	Prediction string `json:"prediction,omitempty"`
}

// FormatPayload creates the JSON payload for a state change. The timestamp
// keeps the zone offset of at.
func FormatPayload(open bool, prediction string, at time.Time) ([]byte, error) {
	payload := Payload{
		State: StatePayload{
			Open:       open,
			Timestamp:  at.Format(time.RFC3339),
			Prediction: prediction,
		},
	}
	return json.Marshal(payload)
}

// publisher is the part of paho.Client the Publisher needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Publisher announces state changes on a single topic.
type Publisher struct {
	client  publisher
	topic   string
	timeout time.Duration
	now     func() time.Time
	loc     *time.Location
	closeFn func()
}

// NewPublisher creates a publisher connected to the given broker. The client
// ID gets a random suffix so several instances can share a broker.
// Timestamps are published in loc.
func NewPublisher(broker, topic, clientID string, loc *time.Location) (*Publisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("%s-%s", clientID, uuid.NewString()[:8])).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	p := newPublisher(client, topic)
	p.closeFn = func() { client.Disconnect(1000) }
	if loc != nil {
		p.loc = loc
	}
	return p, nil
}

func newPublisher(client publisher, topic string) *Publisher {
	return &Publisher{
		client:  client,
		topic:   topic,
		timeout: 5 * time.Second,
		now:     time.Now,
		loc:     time.UTC,
	}
}

// Announce publishes the new state, QoS 1 and retained.
func (p *Publisher) Announce(ctx context.Context, open bool, prediction string) error {
	payload, err := FormatPayload(open, prediction, p.now().In(p.loc))
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	token := p.client.Publish(p.topic, 1, true, payload)
	select {
	case <-token.Done():
	case <-time.After(p.timeout):
		return fmt.Errorf("publish timeout")
	case <-ctx.Done():
		return fmt.Errorf("publish cancelled: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	if p.closeFn != nil {
		p.closeFn()
	}
	return nil
}
