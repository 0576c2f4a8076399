// Package mqtt wraps the paho client for the controller's telemetry
// and control topics.
package mqtt

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config holds the configuration for the MQTT client.
type Config struct {
	BrokerURL     string
	ClientID      string
	Username      string
	Password      string
	QoS           byte
	AutoReconnect bool
	MaxRetries    int
	RetryInterval time.Duration
}

// Client is a connected MQTT session.
type Client struct {
	c   mqtt.Client
	qos byte
}

// Connect dials the broker, retrying up to MaxRetries times.
func Connect(config Config) (*Client, error) {
	opts := mqtt.NewClientOptions().AddBroker(config.BrokerURL)
	opts.SetClientID(config.ClientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}
	opts.SetAutoReconnect(config.AutoReconnect)

	if config.RetryInterval <= 0 {
		config.RetryInterval = 2 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}

	var lastErr error
	for retries := 0; retries < config.MaxRetries; retries++ {
		c := mqtt.NewClient(opts)
		token := c.Connect()
		if token.WaitTimeout(config.RetryInterval) && token.Error() == nil {
			log.Println("Connected to MQTT broker:", config.BrokerURL)
			return &Client{c: c, qos: config.QoS}, nil
		}
		lastErr = token.Error()
		log.Printf("Failed to connect to MQTT broker (attempt %d/%d): %v. Retrying in %s...",
			retries+1, config.MaxRetries, lastErr, config.RetryInterval)
		time.Sleep(config.RetryInterval)
	}
	return nil, fmt.Errorf("mqtt: connect to %s after %d retries: %w", config.BrokerURL, config.MaxRetries, lastErr)
}

// Publish sends a payload to a topic without blocking the caller.
func (c *Client) Publish(topic string, payload []byte) {
	if c == nil || !c.c.IsConnected() {
		log.Println("MQTT client not connected. Cannot publish:", topic)
		return
	}
	token := c.c.Publish(topic, c.qos, false, payload)
	go func() { // Non-blocking wait for publish to complete
		if token.Wait() && token.Error() != nil {
			log.Printf("Error publishing to topic %s: %v", topic, token.Error())
		}
	}()
}

// Subscribe registers a handler for a control topic.
func (c *Client) Subscribe(topic string, handler func(payload []byte)) error {
	if c == nil {
		return fmt.Errorf("mqtt: not connected")
	}
	token := c.c.Subscribe(topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", topic, token.Error())
	}
	log.Println("Subscribed to topic:", topic)
	return nil
}

// Close disconnects the client.
func (c *Client) Close() {
	if c != nil && c.c.IsConnected() {
		log.Println("Disconnecting from MQTT broker.")
		c.c.Disconnect(250) // Wait up to 250 milliseconds for inflight messages to be delivered
	}
}
