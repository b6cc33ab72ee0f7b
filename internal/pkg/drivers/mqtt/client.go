package mqtt

import (
	"context"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
)

var (
	ErrConnectFailed  = errors.New("mqtt: connection failed")
	ErrNotConnected   = errors.New("mqtt: not connected")
	ErrPublishTimeout = errors.New("mqtt: publish timed out")
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"
)

// Config of the broker connection
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	Prefix         string
	QoS            byte
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// Client is the live Publisher, a paho connection with automatic reconnect
type Client struct {
	client paho.Client
	cfg    Config
}

func (cfg Config) stateTopic() string {
	if cfg.Prefix == "" {
		return "bridge/state"
	}
	return cfg.Prefix + "/bridge/state"
}

func (cfg Config) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetWill(cfg.stateTopic(), payloadOffline, 1, true)

	opts.SetOnConnectHandler(func(c paho.Client) {
		logging.Logger(nil).Infof("[MQTT] connected to %s", cfg.Broker)
		c.Publish(cfg.stateTopic(), 1, true, payloadOnline)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logging.Logger(nil).WithError(err).Warnf("[MQTT] lost connection to %s", cfg.Broker)
	})

	return opts
}

// Connect dials the broker and waits up to the connect timeout for the
// session
func Connect(cfg Config) (*Client, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}

	c := &Client{
		client: paho.NewClient(cfg.clientOptions()),
		cfg:    cfg,
	}

	token := c.client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, errors.Wrapf(ErrConnectFailed, "timeout after %v", cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(ErrConnectFailed, "%s: %v", cfg.Broker, err)
	}

	return c, nil
}

// Publish sends payload to topic, giving up at the publish timeout or when
// ctx is done
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, c.cfg.QoS, false, payload)

	timer := time.NewTimer(c.cfg.PublishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return errors.Wrapf(token.Error(), "publishing to %s", topic)
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.Wrapf(ErrPublishTimeout, "after %v", c.cfg.PublishTimeout)
	}
}

// Close announces the bridge offline and disconnects
func (c *Client) Close() {
	if c.client.IsConnectionOpen() {
		c.client.Publish(c.cfg.stateTopic(), 1, true, payloadOffline).WaitTimeout(time.Second)
	}
	c.client.Disconnect(250)
}
