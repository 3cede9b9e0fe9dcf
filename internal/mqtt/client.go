// Package mqtt publishes rendered console lines to an MQTT broker.
package mqtt

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kstaniek/go-can-dump/internal/logging"
)

// Client is the broker connection used by Sink.
type Client interface {
	Publish(topic string, payload []byte) error
	Close()
}

const (
	defaultConnectTimeout = 10 * time.Second
	publishTimeout        = 5 * time.Second
	disconnectQuiesceMs   = 250
)

// PahoClient wraps a paho client with auto-reconnect. Publishes use QoS 0
// and are never retained.
type PahoClient struct {
	c paho.Client
}

// Connect dials broker (tcp://[user[:pass]@]host:port) and waits up to
// connectTimeout for the first session. Later drops reconnect in the
// background.
func Connect(broker, clientID string, connectTimeout time.Duration) (*PahoClient, error) {
	u, err := url.Parse(broker)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("mqtt broker %q: invalid url", broker)
	}
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	opts := paho.NewClientOptions()
	user := u.User
	u.User = nil
	opts.AddBroker(u.String())
	if user != nil {
		opts.SetUsername(user.Username())
		if pw, ok := user.Password(); ok {
			opts.SetPassword(pw)
		}
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetOrderMatters(true)
	opts.SetCleanSession(true)
	opts.SetOnConnectHandler(func(paho.Client) {
		logging.L().Info("mqtt_connected", "broker", u.Host, "client_id", clientID)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logging.L().Warn("mqtt_connection_lost", "broker", u.Host, "error", err)
	})

	c := paho.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		c.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect %s: timeout after %s", u.Host, connectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", u.Host, err)
	}
	return &PahoClient{c: c}, nil
}

var errPublishTimeout = errors.New("publish timeout")

func (p *PahoClient) Publish(topic string, payload []byte) error {
	tok := p.c.Publish(topic, 0, false, payload)
	if !tok.WaitTimeout(publishTimeout) {
		return errPublishTimeout
	}
	return tok.Error()
}

func (p *PahoClient) Close() { p.c.Disconnect(disconnectQuiesceMs) }
