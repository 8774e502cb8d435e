// Package power publishes the printer power side-channel over MQTT.
package power

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orrn/todoprint/internal/config"
)

// Controller is what the delivery gateway needs from the power side-channel.
// Publish failures are reported as false, never as errors: printing proceeds
// without power sequencing when the broker is unreachable.
type Controller interface {
	SendBeforePrint() bool
	SendAfterTimeout() bool
	Connected() bool
}

type MQTTController struct {
	cfg       config.PowerConfig
	client    mqtt.Client
	connected atomic.Bool
	log       zerolog.Logger
}

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// NewMQTT connects to the broker in the background; the controller is
// usable immediately and degrades to no-ops until the connection is up.
func NewMQTT(cfg config.PowerConfig, log zerolog.Logger) (*MQTTController, error) {
	c := &MQTTController{
		cfg: cfg,
		log: log.With().Str("component", "power").Logger(),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)).
		SetClientID("todoprint-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.connected.Store(true)
		c.log.Info().Str("broker", cfg.Broker).Msg("connected to mqtt broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.connected.Store(false)
		c.log.Warn().Err(err).Msg("mqtt connection lost")
	})

	c.client = mqtt.NewClient(opts)

	token := c.client.Connect()
	if token.WaitTimeout(connectTimeout) && token.Error() != nil {
		// Connect retries keep running in the background.
		c.log.Warn().Err(token.Error()).Msg("initial mqtt connect failed")
	}

	return c, nil
}

func (c *MQTTController) Connected() bool {
	return c.connected.Load()
}

func (c *MQTTController) SendBeforePrint() bool {
	return c.publish(c.cfg.TopicBeforePrint, c.cfg.PayloadBeforePrint, "before_print")
}

func (c *MQTTController) SendAfterTimeout() bool {
	return c.publish(c.cfg.TopicAfterTimeout, c.cfg.PayloadAfterTimeout, "after_timeout")
}

func (c *MQTTController) publish(topic, payload, signal string) bool {
	if !c.Connected() {
		c.log.Warn().Str("signal", signal).Msg("mqtt not connected, skipping power signal")
		return false
	}

	// Payloads that parse as JSON are re-serialized compact; anything else
	// goes out verbatim.
	var parsed json.RawMessage
	if err := json.Unmarshal([]byte(payload), &parsed); err == nil {
		if compact, err := json.Marshal(parsed); err == nil {
			payload = string(compact)
		}
	}

	token := c.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		c.log.Error().Str("topic", topic).Str("signal", signal).Msg("mqtt publish timed out")
		return false
	}
	if err := token.Error(); err != nil {
		c.log.Error().Err(err).Str("topic", topic).Str("signal", signal).Msg("mqtt publish failed")
		return false
	}

	c.log.Info().Str("topic", topic).Str("signal", signal).Msg("sent power signal")
	return true
}

// Cleanup disconnects from the broker, waiting briefly for in-flight work.
func (c *MQTTController) Cleanup() {
	if c.client != nil {
		c.client.Disconnect(250)
		c.connected.Store(false)
	}
}
