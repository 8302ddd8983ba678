package broker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"nexus-radio/pkg/logger"
)

const (
	defaultConnectTimeout = 5 * time.Second
	publishTimeout        = 5 * time.Second
	disconnectQuiesce     = 250

	qosAtLeastOnce = 1
)

var ErrNotConfigured = errors.New("broker host is not configured")

type Config struct {
	Host           string
	Port           int
	StateTopic     string
	CommandTopic   string
	ClientID       string
	UserName       string
	Password       string
	ConnectTimeout time.Duration
}

type Client struct {
	cfg               *Config
	log               *logger.Zerolog
	client            mqtt.Client
	mu                sync.RWMutex
	connectHandler    ConnectHandler
	disconnectHandler DisconnectHandler
}

func NewBrokerClient(cfg *Config, log *logger.Zerolog) (*Client, error) {
	if cfg.Host == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Port == 0 {
		cfg.Port = 1883
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}

	c := &Client{
		cfg: cfg,
		log: log,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.UserName).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = mqtt.NewClient(opts)

	return c, nil
}

// Start connects to the broker. When the broker is not reachable yet the
// client keeps retrying in the background.
func (c *Client) Start() error {
	token := c.client.Connect()
	if token.WaitTimeout(c.cfg.ConnectTimeout) {
		if err := token.Error(); err != nil {
			return err
		}
		return nil
	}

	c.log.Warn().Msgf("broker %s:%d is not reachable yet, retrying in background", c.cfg.Host, c.cfg.Port)
	return nil
}

func (c *Client) SetConnectHandler(h ConnectHandler) {
	c.mu.Lock()
	c.connectHandler = h
	c.mu.Unlock()
}

func (c *Client) SetDisconnectHandler(h DisconnectHandler) {
	c.mu.Lock()
	c.disconnectHandler = h
	c.mu.Unlock()
}

// PublishState publishes a retained message so that late subscribers get the
// current state immediately.
func (c *Client) PublishState(data []byte) {
	if c.cfg.StateTopic == "" {
		return
	}

	token := c.client.Publish(c.cfg.StateTopic, qosAtLeastOnce, true, data)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			c.log.Warn().Msgf("publish to %s timed out", c.cfg.StateTopic)
			return
		}
		if err := token.Error(); err != nil {
			c.log.Error().Msgf("failed to publish state: %v", err)
		}
	}()
}

func (c *Client) Subscribe(topic string, handler MessageHandler) {
	token := c.client.Subscribe(topic, qosAtLeastOnce, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Error().Msgf("failed to subscribe %s: %v", topic, err)
			return
		}
		c.log.Debug().Msgf("subscribed to %s", topic)
	}()
}

func (c *Client) Close() {
	if c == nil || c.client == nil {
		return
	}
	c.client.Disconnect(disconnectQuiesce)
}

func (c *Client) onConnect(_ mqtt.Client) {
	c.mu.RLock()
	h := c.connectHandler
	c.mu.RUnlock()

	if h != nil {
		h()
	}
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.mu.RLock()
	h := c.disconnectHandler
	c.mu.RUnlock()

	if h != nil {
		h(err)
	}
}
