package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const defaultPublishTimeout = 5 * time.Second

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

// MQTTPublisher sends events to an MQTT broker at QoS 1. Topics are
// "<prefix>/<event type>".
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			log.WithField("broker", cfg.Broker).Info("Connected to MQTT broker")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}
	return newMQTTPublisher(client, cfg.TopicPrefix), nil
}

func newMQTTPublisher(client mqtt.Client, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: strings.TrimSuffix(prefix, "/")}
}

// Topic returns the topic an event of type t is published on.
func (p *MQTTPublisher) Topic(t Type) string {
	return p.prefix + "/" + string(t)
}

// Publish sends the event and waits for the broker acknowledgement, bounded
// by the context deadline or five seconds.
func (p *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := event.Payload()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	timeout := defaultPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	token := p.client.Publish(p.Topic(event.Type), 1, false, payload)
	if !token.WaitTimeout(timeout) {
		return errors.New("mqtt publish timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight messages 250ms.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
