package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremqtt "github.com/kilianp07/agvfleet/core/mqtt"
	"github.com/kilianp07/agvfleet/core/snapshot"
	"github.com/kilianp07/agvfleet/infra/logger"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	// TopicPrefix roots every topic, "fleet" by default.
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

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "fleet"
	}
	if c.ClientID == "" {
		c.ClientID = "agvfleet"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	if strings.ContainsAny(c.TopicPrefix, "+#") {
		return fmt.Errorf("mqtt topic_prefix must not contain wildcards")
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient implements Client using Eclipse Paho.
type PahoClient struct {
	cli    pahoClient
	prefix string
	qos    map[string]byte

	mu         sync.Mutex
	handlers   *coremqtt.Handlers
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker. Inbound topics are subscribed
// on every (re)connection once Subscribe has been called.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		prefix:     cfg.TopicPrefix,
		qos:        cfg.QoS,
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		pc.subscribeAll(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	pc.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
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
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

// Topic layout, relative to the prefix.
func (p *PahoClient) commandTopic(robotID string) string {
	return fmt.Sprintf("%s/robot/%s/command", p.prefix, robotID)
}
func (p *PahoClient) stateTopic() string     { return p.prefix + "/robot/+/state" }
func (p *PahoClient) lifecycleTopic() string { return p.prefix + "/robot/+/lifecycle" }
func (p *PahoClient) tasksTopic() string     { return p.prefix + "/tasks" }

// robotFromTopic extracts the robot id of <prefix>/robot/<id>/<kind>.
func robotFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[len(parts)-2]
}

// Subscribe registers the handlers and subscribes the inbound topics.
func (p *PahoClient) Subscribe(h coremqtt.Handlers) error {
	p.mu.Lock()
	p.handlers = &h
	p.mu.Unlock()
	if p.cli.IsConnected() {
		return p.subscribeAll(p.cli)
	}
	return nil
}

func (p *PahoClient) subscribeAll(c interface {
	Subscribe(string, byte, paho.MessageHandler) paho.Token
}) error {
	p.mu.Lock()
	h := p.handlers
	p.mu.Unlock()
	if h == nil {
		return nil
	}
	subs := []struct {
		topic, kind string
		handler     paho.MessageHandler
	}{
		{p.stateTopic(), "state", p.onState},
		{p.lifecycleTopic(), "lifecycle", p.onLifecycle},
		{p.tasksTopic(), "tasks", p.onTasks},
	}
	for _, s := range subs {
		if token := c.Subscribe(s.topic, p.qosFor(s.kind), s.handler); token.Wait() && token.Error() != nil {
			p.logger.Errorf("subscribe %s: %v", s.topic, token.Error())
			return token.Error()
		}
	}
	return nil
}

func (p *PahoClient) current() coremqtt.Handlers {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handlers == nil {
		return coremqtt.Handlers{}
	}
	return *p.handlers
}

func (p *PahoClient) onState(_ paho.Client, msg paho.Message) {
	h := p.current()
	if h.OnState == nil {
		return
	}
	var rec snapshot.RobotRecord
	if err := json.Unmarshal(msg.Payload(), &rec); err != nil {
		p.logger.Errorf("failed to decode robot state: %v", err)
		return
	}
	if rec.ID == "" {
		rec.ID = robotFromTopic(msg.Topic())
	}
	h.OnState(rec)
}

func (p *PahoClient) onLifecycle(_ paho.Client, msg paho.Message) {
	h := p.current()
	if h.OnLifecycle == nil {
		return
	}
	var ev coremqtt.Lifecycle
	if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
		p.logger.Errorf("failed to decode lifecycle event: %v", err)
		return
	}
	if ev.RobotID == "" {
		ev.RobotID = robotFromTopic(msg.Topic())
	}
	switch ev.Event {
	case coremqtt.StepStarted, coremqtt.TaskCompleted:
		h.OnLifecycle(ev)
	default:
		p.logger.Warnf("unknown lifecycle event %q from %s", ev.Event, ev.RobotID)
	}
}

func (p *PahoClient) onTasks(_ paho.Client, msg paho.Message) {
	h := p.current()
	if h.OnTasks == nil {
		return
	}
	var recs []snapshot.TaskRecord
	if err := json.Unmarshal(msg.Payload(), &recs); err != nil {
		p.logger.Errorf("failed to decode tasks: %v", err)
		return
	}
	h.OnTasks(recs)
}

// SendCommand publishes a move command, retrying with exponential backoff.
func (p *PahoClient) SendCommand(cmd coremqtt.Command) (string, error) {
	if cmd.CommandID == "" {
		cmd.CommandID = uuid.NewString()
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now()
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}
	topic := p.commandTopic(cmd.RobotID)
	qos := p.qosFor("command")
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Debugf("sent command %s to %s", cmd.CommandID, topic)
			break
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	if publishErr != nil {
		return "", publishErr
	}
	return cmd.CommandID, nil
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
