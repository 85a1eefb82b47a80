package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Capstone-E1/climasense/internal/models"
	"github.com/Capstone-E1/climasense/internal/services"
)

// Client wraps the MQTT client with sensor feed and anomaly publishing
type Client struct {
	client       mqtt.Client
	config       *Config
	parser       *services.SensorParser
	dataHandler  func(*models.SensorReading)
	errorHandler func(error)
	isConnected  atomic.Bool
}

// Config holds MQTT connection configuration
type Config struct {
	BrokerURL       string
	ClientID        string
	Username        string
	Password        string
	KeepAlive       time.Duration
	PingTimeout     time.Duration
	ConnectRetry    bool
	TopicSensorData string
	TopicAnomalies  string
}

// DefaultConfig returns default MQTT configuration
func DefaultConfig() *Config {
	return &Config{
		BrokerURL:       "tcp://localhost:1883",
		ClientID:        "climasense_monitor",
		KeepAlive:       30 * time.Second,
		PingTimeout:     10 * time.Second,
		ConnectRetry:    true,
		TopicSensorData: "climasense/sensors/data",
		TopicAnomalies:  "climasense/anomalies",
	}
}

// NewClient creates a new MQTT client for the sensor feed
func NewClient(config *Config) *Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.BrokerURL)
	opts.SetClientID(config.ClientID)
	opts.SetKeepAlive(config.KeepAlive)
	opts.SetPingTimeout(config.PingTimeout)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(config.ConnectRetry)

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	client := &Client{
		config: config,
		parser: services.NewSensorParser(),
	}

	// Set connection handlers
	opts.SetDefaultPublishHandler(client.defaultMessageHandler)
	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)

	client.client = mqtt.NewClient(opts)

	return client
}

// Connect establishes connection to MQTT broker
func (c *Client) Connect() error {
	log.Println("Connecting to MQTT broker...")

	token := c.client.Connect()
	if c.config.ConnectRetry {
		// with retry enabled the token only completes once connected
		if !token.WaitTimeout(c.config.PingTimeout) {
			log.Printf("⚠️  MQTT broker %s not reachable yet, retrying in background", c.config.BrokerURL)
			return nil
		}
	} else {
		token.Wait()
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Println("Successfully connected to MQTT broker")
	c.isConnected.Store(true)
	return nil
}

// Disconnect closes the MQTT connection
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	if c.isConnected.Swap(false) {
		log.Println("Disconnected from MQTT broker")
	}
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	return c.isConnected.Load() && c.client.IsConnected()
}

// SensorTopics returns the topics the monitor listens on: the shared feed
// and the per-device form climasense/sensors/<device>/data.
func (c *Client) SensorTopics() map[string]byte {
	topics := map[string]byte{c.config.TopicSensorData: 1}

	if prefix, ok := strings.CutSuffix(c.config.TopicSensorData, "/data"); ok {
		topics[prefix+"/+/data"] = 1 // + is wildcard for device ID
	}
	return topics
}

// SubscribeToSensorData subscribes to sensor data topics
func (c *Client) SubscribeToSensorData() error {
	for topic, qos := range c.SensorTopics() {
		if token := c.client.Subscribe(topic, qos, c.sensorDataHandler); token.Wait() && token.Error() != nil {
			return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
		}
		log.Printf("Subscribed to topic: %s", topic)
	}

	return nil
}

// SetDataHandler sets the callback function for processed sensor data
func (c *Client) SetDataHandler(handler func(*models.SensorReading)) {
	c.dataHandler = handler
}

// SetErrorHandler sets the callback function for errors
func (c *Client) SetErrorHandler(handler func(error)) {
	c.errorHandler = handler
}

// sensorDataHandler processes incoming sensor data messages
func (c *Client) sensorDataHandler(client mqtt.Client, msg mqtt.Message) {
	c.HandlePayload(msg.Topic(), msg.Payload())
}

// HandlePayload parses a sensor message and hands it to the data handler
func (c *Client) HandlePayload(topic string, payload []byte) {
	deviceID := services.DeviceFromTopic(topic, "default")

	reading, err := c.parser.ParsePayload(payload, deviceID)
	if err != nil {
		log.Printf("Failed to parse sensor data on %s: %v", topic, err)
		if c.errorHandler != nil {
			c.errorHandler(fmt.Errorf("sensor data parsing failed: %w", err))
		}
		return
	}

	log.Printf("Parsed sensor reading: %s", c.parser.FormatSensorReading(reading))

	if c.dataHandler != nil {
		c.dataHandler(reading)
	}
}

// defaultMessageHandler handles messages on unsubscribed topics
func (c *Client) defaultMessageHandler(client mqtt.Client, msg mqtt.Message) {
	log.Printf("Received message on unhandled topic %s: %s", msg.Topic(), string(msg.Payload()))
}

// onConnect callback when connection is established
func (c *Client) onConnect(client mqtt.Client) {
	log.Println("MQTT client connected")
	c.isConnected.Store(true)

	// clean sessions lose subscriptions across reconnects
	go func() {
		if err := c.SubscribeToSensorData(); err != nil {
			log.Printf("❌ Failed to resubscribe: %v", err)
		}
	}()
}

// onConnectionLost callback when connection is lost
func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection lost: %v", err)
	c.isConnected.Store(false)

	if c.errorHandler != nil {
		c.errorHandler(fmt.Errorf("MQTT connection lost: %w", err))
	}
}

// PublishAnomaly publishes an anomaly event for downstream consumers
func (c *Client) PublishAnomaly(event models.AnomalyEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal anomaly event: %w", err)
	}

	topic := c.config.TopicAnomalies
	if event.DeviceID != "" {
		topic = topic + "/" + event.DeviceID
	}

	if token := c.client.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish anomaly: %w", token.Error())
	}

	log.Printf("Published anomaly to %s (mse=%.4f)", topic, event.MSE)
	return nil
}
