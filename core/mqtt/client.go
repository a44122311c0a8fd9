package mqtt

import "errors"

// ErrNotConnected is returned when publishing without an open broker session.
var ErrNotConnected = errors.New("mqtt client not connected")

// Handler receives the topic and raw payload of an inbound message.
type Handler func(topic string, payload []byte)

// Client is the transport-agnostic surface the fleet needs from a broker.
type Client interface {
	// Publish sends payload on topic. Retained messages are kept by the
	// broker and delivered to late subscribers.
	Publish(topic string, retained bool, payload []byte) error

	// Subscribe registers h for topic. Subscriptions survive reconnects.
	Subscribe(topic string, h Handler) error

	// Disconnect closes the session.
	Disconnect()
}
