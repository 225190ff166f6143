// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package events

import (
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/tomtom215/pinboard/internal/config"
	"github.com/tomtom215/pinboard/internal/logging"
	"github.com/tomtom215/pinboard/internal/metrics"
)

const publishTimeout = 5 * time.Second

// mqttPublisher is the part of mqtt.Client the forwarder uses.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTForwarder republishes pin changes to an MQTT broker as retained
// messages on <prefix>/devices/<device_id>/pins/<pin_id>.
type MQTTForwarder struct {
	client mqttPublisher
	conn   mqtt.Client
	prefix string
	qos    byte
}

// NewMQTTForwarder connects to the broker in cfg.
func NewMQTTForwarder(cfg config.MQTTConfig) (*MQTTForwarder, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(fmt.Sprintf("%s-%s", cfg.ClientID, uuid.NewString()[:8]))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logging.Warn().Err(err).Str("broker", cfg.BrokerURL).Msg("MQTT connection lost")
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logging.Info().Str("broker", cfg.BrokerURL).Msg("MQTT connected")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.BrokerURL, err)
	}

	f := newMQTTForwarder(client, cfg.TopicPrefix, byte(cfg.QoS))
	f.conn = client
	return f, nil
}

func newMQTTForwarder(client mqttPublisher, prefix string, qos byte) *MQTTForwarder {
	return &MQTTForwarder{
		client: client,
		prefix: strings.Trim(prefix, "/"),
		qos:    qos,
	}
}

// Topic returns the MQTT topic for a pin.
func (f *MQTTForwarder) Topic(deviceID, pinID string) string {
	t := "devices/" + deviceID + "/pins/" + pinID
	if f.prefix == "" {
		return t
	}
	return f.prefix + "/" + t
}

// Forward publishes the pin in ev and waits for the broker to accept it.
func (f *MQTTForwarder) Forward(ev PinChanged) error {
	payload, err := encode(ev.Pin)
	if err != nil {
		return err
	}

	token := f.client.Publish(f.Topic(ev.DeviceID, ev.Pin.ID), f.qos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		metrics.MQTTForwarded.WithLabelValues("timeout").Inc()
		return fmt.Errorf("mqtt publish: timed out")
	}
	if err := token.Error(); err != nil {
		metrics.MQTTForwarded.WithLabelValues("error").Inc()
		return fmt.Errorf("mqtt publish: %w", err)
	}
	metrics.MQTTForwarded.WithLabelValues("success").Inc()
	return nil
}

// Close disconnects from the broker.
func (f *MQTTForwarder) Close() {
	if f.conn != nil {
		f.conn.Disconnect(250)
	}
}
