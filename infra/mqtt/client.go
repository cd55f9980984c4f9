package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremon "github.com/kilianp07/smartcharge/core/monitoring"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/infra/logger"
)

var (
	// ErrAckTimeout is returned when no acknowledgment is received before the timeout.
	ErrAckTimeout = errors.New("timeout waiting for ack")
	// ErrStatusUnavailable is returned when no fresh status was received for a consumer.
	ErrStatusUnavailable = errors.New("no device status received")
)

// DefaultTopicPrefix is used when Config.TopicPrefix is empty.
const DefaultTopicPrefix = "smartcharge"

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string          `json:"broker"`
	ClientID   string          `json:"client_id"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	UseTLS     bool            `json:"use_tls"`
	ClientCert string          `json:"client_cert"`
	ClientKey  string          `json:"client_key"`
	CABundle   string          `json:"ca_bundle"`
	AuthMethod string          `json:"auth_method"`
	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	MaxRetries int             `json:"max_retries"`
	BackoffMS  int             `json:"backoff_ms"`
	// TopicPrefix roots the per consumer command, status and ack topics.
	TopicPrefix string `json:"topic_prefix"`
	// AckTimeoutMS makes commands wait for an ack. Zero disables waiting.
	AckTimeoutMS int `json:"ack_timeout_ms"`
	// StatusTTLSeconds is the age after which a cached status is ignored.
	StatusTTLSeconds int         `json:"status_ttl_seconds"`
	TLSConfig        *tls.Config `json:"-"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = DefaultTopicPrefix
	}
	if c.ClientID == "" {
		c.ClientID = "smartcharge-" + uuid.NewString()[:8]
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
	if c.StatusTTLSeconds <= 0 {
		c.StatusTTLSeconds = 120
	}
}

func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
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

type cachedStatus struct {
	status model.DeviceStatus
	at     time.Time
}

// PahoClient drives consumers whose devices listen on MQTT. It publishes
// start and stop commands and caches the statuses devices report.
type PahoClient struct {
	cli    pahoClient
	prefix string
	qos    map[string]byte

	mu         sync.Mutex
	ackChans   map[string]chan struct{}
	statuses   map[string]cachedStatus
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
	ackTimeout time.Duration
	statusTTL  time.Duration
	now        func() time.Time
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker and subscribes to the status and ack topics.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	logger := logger.New("mqtt_client")
	pc := &PahoClient{
		prefix:     strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:        cfg.QoS,
		ackChans:   make(map[string]chan struct{}),
		statuses:   make(map[string]cachedStatus),
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		ackTimeout: time.Duration(cfg.AckTimeoutMS) * time.Millisecond,
		statusTTL:  time.Duration(cfg.StatusTTLSeconds) * time.Second,
		now:        time.Now,
	}

	opts.OnConnect = func(c paho.Client) {
		logger.Infof("MQTT connected")
		if token := c.Subscribe(pc.prefix+"/+/status", pc.qosFor("status"), pc.onStatus); token.Wait() && token.Error() != nil {
			logger.Errorf("subscribe error: %v", token.Error())
		}
		if token := c.Subscribe(pc.prefix+"/+/ack", pc.qosFor("ack"), pc.onAck); token.Wait() && token.Error() != nil {
			logger.Errorf("subscribe error: %v", token.Error())
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

// consumerFromTopic extracts the consumer of <prefix>/<consumer>/<kind>.
func (p *PahoClient) consumerFromTopic(topic string) string {
	rest := strings.TrimPrefix(topic, p.prefix+"/")
	i := strings.LastIndex(rest, "/")
	if i <= 0 {
		return ""
	}
	return rest[:i]
}

func (p *PahoClient) onStatus(_ paho.Client, msg paho.Message) {
	name := p.consumerFromTopic(msg.Topic())
	if name == "" {
		p.logger.Warnf("status on unexpected topic %s", msg.Topic())
		return
	}
	st := parseStatusPayload(msg.Payload())
	p.mu.Lock()
	p.statuses[name] = cachedStatus{status: st, at: p.now()}
	p.mu.Unlock()
	p.logger.Debugf("status %s for %s", st, name)
}

// parseStatusPayload accepts {"status":"charging"} or a bare status word.
func parseStatusPayload(b []byte) model.DeviceStatus {
	var m struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(b, &m); err == nil && m.Status != "" {
		return model.ParseDeviceStatus(strings.ToLower(m.Status))
	}
	return model.ParseDeviceStatus(strings.ToLower(strings.Trim(strings.TrimSpace(string(b)), `"`)))
}

func (p *PahoClient) onAck(_ paho.Client, msg paho.Message) {
	var m struct {
		CommandID string `json:"command_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	p.mu.Lock()
	ch, ok := p.ackChans[m.CommandID]
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
		p.logger.Debugf("received ack %s", m.CommandID)
	}
	p.mu.Unlock()
}

// Status returns the last status reported for consumer.
func (p *PahoClient) Status(_ context.Context, consumer string) (model.DeviceStatus, error) {
	p.mu.Lock()
	cs, ok := p.statuses[consumer]
	p.mu.Unlock()
	if !ok || p.now().Sub(cs.at) > p.statusTTL {
		return model.StatusOther, fmt.Errorf("%w: %s", ErrStatusUnavailable, consumer)
	}
	return cs.status, nil
}

func (p *PahoClient) Start(ctx context.Context, consumer string) error {
	return p.command(ctx, consumer, "start")
}

func (p *PahoClient) Stop(ctx context.Context, consumer string) error {
	return p.command(ctx, consumer, "stop")
}

func (p *PahoClient) command(ctx context.Context, consumer, command string) error {
	cmdID, err := p.SendCommand(ctx, consumer, command)
	if err != nil {
		return err
	}
	if p.ackTimeout <= 0 {
		p.forget(cmdID)
		return nil
	}
	_, err = p.WaitForAck(cmdID, p.ackTimeout)
	return err
}

func (p *PahoClient) forget(cmdID string) {
	p.mu.Lock()
	delete(p.ackChans, cmdID)
	p.mu.Unlock()
}

// SendCommand publishes the command to the consumer's command topic and
// returns the command identifier used for acknowledgment tracking.
func (p *PahoClient) SendCommand(ctx context.Context, consumer, command string) (string, error) {
	cmdID := uuid.NewString()
	msg := struct {
		CommandID string `json:"command_id"`
		Consumer  string `json:"consumer"`
		Command   string `json:"command"`
		Timestamp int64  `json:"timestamp"`
	}{
		CommandID: cmdID,
		Consumer:  consumer,
		Command:   command,
		Timestamp: p.now().UnixMilli(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	// Register before publishing so a fast ack is not lost.
	p.mu.Lock()
	p.ackChans[cmdID] = make(chan struct{}, 1)
	p.mu.Unlock()

	topic := fmt.Sprintf("%s/%s/command", p.prefix, consumer)
	qos := p.qosFor("command")
	attempt := 0
	publish := func() error {
		attempt++
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			p.logger.Errorf("publish attempt %d failed: %v", attempt, err)
			return err
		}
		return nil
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.backoff
	eb.RandomizationFactor = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.maxRetries)), ctx)
	if err := backoff.Retry(publish, policy); err != nil {
		p.forget(cmdID)
		coremon.CaptureException(err, map[string]string{"consumer": consumer, "command": command, "module": "mqtt"})
		return "", err
	}
	p.logger.Infof("sent %s %s to %s", command, cmdID, topic)
	return cmdID, nil
}

// WaitForAck blocks until an ACK for the given command ID is received or timeout.
func (p *PahoClient) WaitForAck(commandID string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	ch := p.ackChans[commandID]
	p.mu.Unlock()
	if ch == nil {
		return false, fmt.Errorf("unknown command")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	defer p.forget(commandID)
	select {
	case <-ch:
		return true, nil
	case <-timer.C:
		return false, fmt.Errorf("%w: %s", ErrAckTimeout, commandID)
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
