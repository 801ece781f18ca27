package statesync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/session"
)

// MQTT defaults.
const (
	DefaultTopicPrefix    = "posture"
	DefaultConnectTimeout = 5 * time.Second
	DefaultPublishTimeout = 2 * time.Second
)

// MQTTOptions configures DialMQTT.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// LifecycleEvent is the payload published on start and stop.
type LifecycleEvent struct {
	Event string    `json:"event"`
	Time  time.Time `json:"time"`
}

// MQTTPublisher mirrors updates and lifecycle events onto an MQTT broker:
// <prefix>/update, <prefix>/start and <prefix>/stop.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	published map[string]uint64
	errors    uint64
}

// NewMQTTPublisher wraps a connected paho client.
func NewMQTTPublisher(client mqtt.Client, prefix string) *MQTTPublisher {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &MQTTPublisher{
		client:    client,
		prefix:    prefix,
		qos:       1,
		logger:    log.Component("mqtt"),
		now:       time.Now,
		published: make(map[string]uint64),
	}
}

// DialMQTT connects to the broker with auto-reconnect enabled.
func DialMQTT(ctx context.Context, opts MQTTOptions) (*MQTTPublisher, error) {
	logger := log.Component("mqtt")

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		co.SetPassword(opts.Password)
	}
	co.SetAutoReconnect(true)
	co.SetCleanSession(true)
	co.SetMaxReconnectInterval(30 * time.Second)
	co.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connected", "broker", opts.Broker, "client_id", opts.ClientID)
	}
	co.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", opts.Broker, "error", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", opts.Broker, err)
	}
	timeout := DefaultConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, fmt.Errorf("mqtt connect %s: %w", opts.Broker, context.DeadlineExceeded)
		}
	}

	client := mqtt.NewClient(co)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect %s: timeout", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", opts.Broker, err)
	}

	p := NewMQTTPublisher(client, opts.TopicPrefix)
	p.logger = logger
	return p, nil
}

// Topic returns the full topic for a suffix.
func (p *MQTTPublisher) Topic(suffix string) string {
	return p.prefix + "/" + suffix
}

// Push publishes the update as JSON on <prefix>/update.
func (p *MQTTPublisher) Push(ctx context.Context, u session.Update) error {
	return p.publish("update", u)
}

// NotifyStart publishes a start event.
func (p *MQTTPublisher) NotifyStart(ctx context.Context) error {
	return p.publish("start", LifecycleEvent{Event: "start", Time: p.now().UTC()})
}

// NotifyStop publishes a stop event.
func (p *MQTTPublisher) NotifyStop(ctx context.Context) error {
	return p.publish("stop", LifecycleEvent{Event: "stop", Time: p.now().UTC()})
}

// Health reports whether the broker connection is up.
func (p *MQTTPublisher) Health(ctx context.Context) error {
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	return nil
}

// Published returns how many messages went out on topic.
func (p *MQTTPublisher) Published(topic string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published[topic]
}

// Errors returns how many publishes failed.
func (p *MQTTPublisher) Errors() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errors
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

func (p *MQTTPublisher) publish(suffix string, v any) error {
	if !p.client.IsConnectionOpen() {
		p.countError()
		return &SyncError{Op: suffix, Err: ErrNotConnected}
	}

	payload, err := json.Marshal(v)
	if err != nil {
		p.countError()
		return &SyncError{Op: suffix, Err: err}
	}

	topic := p.Topic(suffix)
	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(DefaultPublishTimeout) {
		p.countError()
		return &SyncError{Op: suffix, Err: fmt.Errorf("publish %s: timeout", topic)}
	}
	if err := token.Error(); err != nil {
		p.countError()
		return &SyncError{Op: suffix, Err: fmt.Errorf("publish %s: %w", topic, err)}
	}

	p.mu.Lock()
	p.published[topic]++
	p.mu.Unlock()

	p.logger.Debug("mqtt published", "topic", topic, "size", len(payload))
	return nil
}

func (p *MQTTPublisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

var (
	_ Notifier      = (*MQTTPublisher)(nil)
	_ HealthChecker = (*MQTTPublisher)(nil)
)
