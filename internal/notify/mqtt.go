package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

type MQTTConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	ConnectTimeout time.Duration
}

// MQTTPublisher publishes events as JSON to <prefix>/vehicles/<vehicle>/records/<type>.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
}

// NewMQTTClient builds a paho client with reconnect enabled.
func NewMQTTClient(cfg MQTTConfig) mqtt.Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetMaxReconnectInterval(time.Minute)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.WithField("broker", cfg.Broker).Info("MQTT client connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	})

	return mqtt.NewClient(opts)
}

// ConnectMQTT connects a publisher to the configured broker.
func ConnectMQTT(cfg MQTTConfig) (*MQTTPublisher, error) {
	client := NewMQTTClient(cfg)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out after %s", cfg.Broker, cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return NewMQTTPublisher(client, cfg.TopicPrefix, cfg.QoS), nil
}

func NewMQTTPublisher(client mqtt.Client, prefix string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		qos:    qos,
	}
}

// Topic returns the topic an event is published on.
func (p *MQTTPublisher) Topic(event Event) string {
	return fmt.Sprintf("%s/vehicles/%s/records/%s", p.prefix, event.VehicleID, event.Type)
}

// Publish sends the event and waits for the broker ack or ctx cancellation.
func (p *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	token := p.client.Publish(p.Topic(event), p.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects, allowing in-flight publishes 250ms to drain.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
