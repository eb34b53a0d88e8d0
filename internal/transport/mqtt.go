package transport

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-tracker/internal/movement"
)

const (
	movementQos  = 1
	heartbeatQos = 0
)

// MqttConfig configures the broker connection and topic layout.
type MqttConfig struct {
	BrokerURL      string        // tcp://host:1883
	ClientName     string        // topic segment, e.g. "tracker-01"
	ConnectTimeout time.Duration // broker connect deadline
	PublishTimeout time.Duration // per-publish ack deadline
}

// MqttPublisher publishes commands to vision/<client>/movement and
// heartbeats to vision/<client>/heartbeat.
type MqttPublisher struct {
	client         mqtt.Client
	movementTopic  string
	heartbeatTopic string
	publishTimeout time.Duration
	logger         *logrus.Entry
}

type heartbeatPayload struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// NewMqttPublisher connects to the broker. Returns an error when the
// broker cannot be reached within the connect timeout.
func NewMqttPublisher(cfg MqttConfig, logger *logrus.Entry) (*MqttPublisher, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(fmt.Sprintf("face-tracker-%s", cfg.ClientName)).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.WithError(err).Warn("mqtt connection lost")
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("mqtt connected")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %q timed out", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("could not connect to mqtt broker %q: %w", cfg.BrokerURL, err)
	}

	return &MqttPublisher{
		client:         client,
		movementTopic:  fmt.Sprintf("vision/%s/movement", cfg.ClientName),
		heartbeatTopic: fmt.Sprintf("vision/%s/heartbeat", cfg.ClientName),
		publishTimeout: cfg.PublishTimeout,
		logger:         logger,
	}, nil
}

// PublishMovement sends the command as JSON with qos 1.
func (p *MqttPublisher) PublishMovement(cmd movement.Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("could not marshal movement command: %w", err)
	}
	return p.publish(p.movementTopic, movementQos, payload)
}

// PublishHeartbeat sends a liveness marker with qos 0.
func (p *MqttPublisher) PublishHeartbeat(now time.Time) error {
	payload, err := json.Marshal(heartbeatPayload{
		Status:    "alive",
		Timestamp: now.Unix(),
	})
	if err != nil {
		return fmt.Errorf("could not marshal heartbeat: %w", err)
	}
	return p.publish(p.heartbeatTopic, heartbeatQos, payload)
}

func (p *MqttPublisher) publish(topic string, qos byte, payload []byte) error {
	token := p.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(p.publishTimeout) {
		return fmt.Errorf("publish to %q timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %q failed: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MqttPublisher) Close() error {
	p.client.Disconnect(250) // ms grace for in-flight messages
	return nil
}
