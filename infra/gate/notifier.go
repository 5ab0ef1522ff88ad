// Package gate publishes parking lifecycle events over MQTT for gate
// hardware and signage integrations. The engine itself never talks to
// the network; the notifier consumes the event bus at the edge.
package gate

import (
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/parkade/parkade/core/logger"
	"github.com/parkade/parkade/internal/eventbus"
)

// Config defines the MQTT connection for the notifier.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
}

// SetDefaults fills in the topic prefix and client id.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "parking"
	}
	if c.ClientID == "" {
		c.ClientID = "parkade-gate"
	}
}

// Notifier relays bus events to MQTT topics:
//
//	<prefix>/entry        ticket issued
//	<prefix>/exit         receipt issued
//	<prefix>/fine         fine issued
//	<prefix>/reservation  reservation lifecycle change
type Notifier struct {
	cli    paho.Client
	prefix string
	qos    byte
	log    logger.Logger
}

// New connects to the broker.
func New(cfg Config, log logger.Logger) (*Notifier, error) {
	cfg.SetDefaults()
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(paho.Client) { log.Infof("gate notifier connected to %s", cfg.Broker) }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorf("gate notifier connection lost: %v", err) }

	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("gate notifier connect: %w", token.Error())
	}
	return &Notifier{cli: cli, prefix: cfg.TopicPrefix, qos: cfg.QoS, log: log}, nil
}

// Consume relays events from the subscription channel until it closes.
// Run it in its own goroutine.
func (n *Notifier) Consume(events <-chan eventbus.Event) {
	for ev := range events {
		switch e := ev.(type) {
		case eventbus.VehicleAdmitted:
			n.publish("entry", e)
		case eventbus.VehicleReleased:
			n.publish("exit", e)
		case eventbus.FineIssued:
			n.publish("fine", e)
		case eventbus.ReservationChanged:
			n.publish("reservation", e)
		}
	}
}

// Close disconnects from the broker.
func (n *Notifier) Close() {
	n.cli.Disconnect(250)
}

func (n *Notifier) publish(topic string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		n.log.Errorf("gate notifier marshal: %v", err)
		return
	}
	t := n.prefix + "/" + topic
	if token := n.cli.Publish(t, n.qos, false, b); token.Wait() && token.Error() != nil {
		n.log.Errorf("gate notifier publish %s: %v", t, token.Error())
	}
}
