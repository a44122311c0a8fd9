package mqtt

import (
	"fmt"
	"strings"
	"sync"

	coremqtt "github.com/kilianp07/lampfleet/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// Message is a payload recorded by MockClient.
type Message struct {
	Topic    string
	Retained bool
	Payload  []byte
}

// MockClient is an in-memory broker used in tests and when MQTT is disabled.
type MockClient struct {
	FailTopics map[string]bool

	mu        sync.Mutex
	published []Message
	handlers  map[string]coremqtt.Handler
}

// NewMockClient creates a new MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		FailTopics: make(map[string]bool),
		handlers:   make(map[string]coremqtt.Handler),
	}
}

// Publish records the message or returns an error if configured to fail.
func (m *MockClient) Publish(topic string, retained bool, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTopics[topic] {
		return fmt.Errorf("publish failed")
	}
	m.published = append(m.published, Message{Topic: topic, Retained: retained, Payload: append([]byte(nil), payload...)})
	return nil
}

// Subscribe stores the handler for Deliver.
func (m *MockClient) Subscribe(topic string, h coremqtt.Handler) error {
	m.mu.Lock()
	m.handlers[topic] = h
	m.mu.Unlock()
	return nil
}

// Disconnect is a no-op.
func (m *MockClient) Disconnect() {}

// Deliver simulates an inbound message on topic.
func (m *MockClient) Deliver(topic string, payload []byte) bool {
	m.mu.Lock()
	h, ok := m.handlers[topic]
	m.mu.Unlock()
	if ok {
		h(topic, payload)
	}
	return ok
}

// Published returns the recorded messages whose topic has the given suffix.
func (m *MockClient) Published(suffix string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.published {
		if strings.HasSuffix(msg.Topic, suffix) {
			out = append(out, msg)
		}
	}
	return out
}
