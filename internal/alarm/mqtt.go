package alarm

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Timeout  time.Duration
}

// MQTTPublisher publishes over a paho client.
type MQTTPublisher struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	logger  *zap.Logger
}

var _ Publisher = (*MQTTPublisher)(nil)

// DialMQTT connects to the broker. The broker marks the relay offline
// through the last will if the connection drops.
func DialMQTT(cfg MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout).
		SetWill(AvailabilityTopic(cfg.Topic), Offline, cfg.QoS, true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("mqtt connected", zap.String("broker", cfg.Broker))
		})

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt: connect to %s: timed out", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}

	return &MQTTPublisher{client: client, qos: cfg.QoS, timeout: cfg.Timeout, logger: logger}, nil
}

// Publish sends payload and waits for the broker's acknowledgement at the
// configured QoS.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tok := p.client.Publish(topic, p.qos, retained, payload)
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return fmt.Errorf("mqtt: publish %s: %w", topic, ctx.Err())
	}
}

// Close disconnects, allowing in-flight messages a short grace period.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
