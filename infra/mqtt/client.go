package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremqtt "github.com/kilianp07/lampfleet/core/mqtt"
	"github.com/kilianp07/lampfleet/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	TopicPrefix string          `json:"topic_prefix"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	AuthMethod  string          `json:"auth_method"`
	QoS         map[string]byte `json:"qos"`
	LWTTopic    string          `json:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload"`
	LWTQoS      byte            `json:"lwt_qos"`
	LWTRetain   bool            `json:"lwt_retain"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// Prefix returns the topic prefix, defaulting to "lampfleet".
func (c Config) Prefix() string {
	if c.TopicPrefix == "" {
		return "lampfleet"
	}
	return c.TopicPrefix
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient implements core/mqtt.Client using Eclipse Paho.
type PahoClient struct {
	cli        pahoClient
	qos        map[string]byte
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration

	mu   sync.Mutex
	subs map[string]coremqtt.Handler
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker. Subscriptions registered later
// are restored on every reconnect.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	logger := logger.New("mqtt_client")
	pc := &PahoClient{
		logger:     logger,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		subs:       make(map[string]coremqtt.Handler),
	}
	if pc.maxRetries <= 0 {
		pc.maxRetries = 3
	}
	if pc.backoff <= 0 {
		pc.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		logger.Infof("MQTT connected")
		pc.mu.Lock()
		defer pc.mu.Unlock()
		for topic, h := range pc.subs {
			if token := c.Subscribe(topic, pc.qosFor("command"), wrap(h)); token.Wait() && token.Error() != nil {
				logger.Errorf("resubscribe %s: %v", topic, token.Error())
			}
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config. An empty client
// id gets a random suffix so several instances can share a broker.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "lampfleet-" + uuid.NewString()[:8]
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(clientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

func wrap(h coremqtt.Handler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		h(msg.Topic(), msg.Payload())
	}
}

// Publish sends payload with exponential backoff between attempts.
func (p *PahoClient) Publish(topic string, retained bool, payload []byte) error {
	if p.cli == nil || !p.cli.IsConnected() {
		return coremqtt.ErrNotConnected
	}
	qos := p.qosFor("snapshot")
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	return publishErr
}

// Subscribe registers h and subscribes immediately.
func (p *PahoClient) Subscribe(topic string, h coremqtt.Handler) error {
	p.mu.Lock()
	p.subs[topic] = h
	p.mu.Unlock()
	token := p.cli.Subscribe(topic, p.qosFor("command"), wrap(h))
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
