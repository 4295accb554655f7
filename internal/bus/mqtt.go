package bus

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/config"
)

// MessageHandler receives one decoded wire message. Handlers run on the
// transport's callback path and must return quickly.
type MessageHandler func(topic string, payload []byte)

// Client wraps the MQTT connection. Reconnection is delegated to paho's
// auto-reconnect; the Connected flag tracks broker liveness for the rest
// of the system.
type Client struct {
	mqtt      mqtt.Client
	logger    *slog.Logger
	connected atomic.Bool
}

func NewClient(cfg config.MQTTConfig, logger *slog.Logger) (*Client, error) {
	c := &Client{logger: logger}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.connected.Store(true)
		logger.Info("connected to mqtt broker", slog.String("broker", cfg.BrokerURL))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.connected.Store(false)
		logger.Warn("mqtt connection lost", slog.String("error", err.Error()))
	})
	c.mqtt = mqtt.NewClient(opts)
	token := c.mqtt.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return c, nil
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) Close() {
	c.mqtt.Disconnect(250)
	c.connected.Store(false)
}

// Subscribe registers a handler for a topic pattern. Handler panics are
// contained so a bad message cannot tear down the receive loop.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	token := c.mqtt.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		defer func() {
			if rec := recover(); rec != nil {
				c.logger.Error("message handler panic",
					slog.String("topic", msg.Topic()), slog.Any("panic", rec))
			}
		}()
		handler(msg.Topic(), msg.Payload())
	})
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (c *Client) Publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := c.mqtt.Publish(topic, 0, false, data)
	token.Wait()
	return token.Error()
}
