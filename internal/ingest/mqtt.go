package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/solatis/datex/internal/core/config"
)

// mqttQoS is at-least-once: the broker redelivers until Ack.
const mqttQoS = 1

// MQTTSource subscribes to a topic filter with automatic acks disabled, so
// messages are acknowledged only on Commit.
type MQTTSource struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

// NewMQTTSource creates a persistent-session client for cfg.Brokers[0].
func NewMQTTSource(cfg config.IngestConfig, logger *slog.Logger) (*MQTTSource, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no mqtt broker configured")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("mqtt client id cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("topic", cfg.Topic)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Brokers[0]).
		SetClientID(cfg.ClientID).
		SetCleanSession(false).
		SetAutoAckDisabled(true).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		})

	return &MQTTSource{client: mqtt.NewClient(opts), topic: cfg.Topic, logger: logger}, nil
}

// Run connects, subscribes and forwards messages until ctx ends.
func (s *MQTTSource) Run(ctx context.Context, out chan<- Delivery) error {
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	if token := s.client.Subscribe(s.topic, mqttQoS, s.handler(ctx, out)); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %q: %w", s.topic, token.Error())
	}
	s.logger.Info("mqtt subscriber started")

	<-ctx.Done()
	return ctx.Err()
}

// handler forwards a message, blocking the client's router while the
// pipeline is full.
func (s *MQTTSource) handler(ctx context.Context, out chan<- Delivery) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case out <- Delivery{Payload: msg.Payload(), token: msg}:
		case <-ctx.Done():
		}
	}
}

// Commit acknowledges ds to the broker.
func (s *MQTTSource) Commit(_ context.Context, ds []Delivery) error {
	for _, d := range ds {
		msg, ok := d.token.(mqtt.Message)
		if !ok {
			return fmt.Errorf("delivery was not produced by the mqtt source")
		}
		msg.Ack()
	}
	return nil
}

// Close unsubscribes and disconnects, waiting up to 250ms for in-flight work.
func (s *MQTTSource) Close() error {
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.topic).WaitTimeout(time.Second)
		s.client.Disconnect(250)
	}
	return nil
}
