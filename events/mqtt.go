package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mohamedthameursassi/saferoute/metrics"
)

var ErrNotConnected = errors.New("MQTT client not connected")

type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Retain   bool
	Timeout  time.Duration
}

// mqttClient is the part of mqtt.Client the publisher uses.
type mqttClient interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes route events to {topic}/{mode}.
type MQTTPublisher struct {
	client  mqttClient
	topic   string
	qos     byte
	retain  bool
	timeout time.Duration
}

func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "saferoute"
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("[events] MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connecting to MQTT broker %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", cfg.Broker, err)
	}
	log.Printf("[events] MQTT connected to %s", cfg.Broker)

	return newMQTTPublisher(client, cfg), nil
}

func newMQTTPublisher(client mqttClient, cfg MQTTConfig) *MQTTPublisher {
	topic := cfg.Topic
	if topic == "" {
		topic = "saferoute/routes"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &MQTTPublisher{
		client:  client,
		topic:   topic,
		qos:     cfg.QoS,
		retain:  cfg.Retain,
		timeout: timeout,
	}
}

func (p *MQTTPublisher) Publish(ctx context.Context, ev RouteEvent) error {
	if p.client == nil || !p.client.IsConnected() {
		metrics.IncPublishError("mqtt")
		return ErrNotConnected
	}
	payload, err := ev.payload()
	if err != nil {
		return fmt.Errorf("marshaling route event: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", p.topic, ev.Mode)
	token := p.client.Publish(topic, p.qos, p.retain, payload)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		metrics.IncPublishError("mqtt")
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		metrics.IncPublishError("mqtt")
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	if p.client != nil {
		p.client.Disconnect(250)
	}
	return nil
}
