package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/katiamach/live-weather-tracker/internal/logger"
)

const publishTimeout = 5 * time.Second

// MQTTPublisher publishes weather events to an MQTT broker.
type MQTTPublisher struct {
	client      mqtt.Client
	topicPrefix string

	pending sync.WaitGroup
}

// NewMQTTPublisher creates publisher for the broker, e.g. "tcp://localhost:1883".
// Connect must be called before events are delivered.
func NewMQTTPublisher(broker, clientID, topicPrefix string) *MQTTPublisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.WithFields(logger.Fields{"broker": broker}).Info("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.WithFields(logger.Fields{"broker": broker}).Warn(fmt.Sprintf("mqtt connection lost: %v", err))
	})

	return &MQTTPublisher{
		client:      mqtt.NewClient(opts),
		topicPrefix: topicPrefix,
	}
}

// Connect waits for the first connection to the broker.
// When ctx ends first, the client keeps retrying in the background until Disconnect.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for !token.WaitTimeout(poll) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	return nil
}

// Topic returns topic the event is published to.
func (p *MQTTPublisher) Topic(event string) string {
	if p.topicPrefix == "" {
		return event
	}

	return p.topicPrefix + "/" + event
}

// Broadcast publishes event data. Events are dropped while disconnected.
func (p *MQTTPublisher) Broadcast(event string, data interface{}) {
	if !p.client.IsConnected() {
		logger.Debug(fmt.Sprintf("mqtt not connected, %s event dropped", event))
		return
	}

	payload, err := json.Marshal(data)
	if err != nil {
		logger.Error(fmt.Errorf("failed to marshal %s event: %w", event, err))
		return
	}

	token := p.client.Publish(p.Topic(event), 0, false, payload)

	// don't hold up the caller waiting for the broker
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()

		if !token.WaitTimeout(publishTimeout) {
			logger.Warn(errors.New("mqtt publish timeout for " + event))
			return
		}
		if err := token.Error(); err != nil {
			logger.Error(fmt.Errorf("mqtt publish %s: %w", event, err))
		}
	}()
}

// Disconnect waits for pending publishes, each bounded by publish timeout, and closes broker connection.
func (p *MQTTPublisher) Disconnect() {
	p.pending.Wait()
	p.client.Disconnect(250)
	logger.Info("mqtt publisher disconnected")
}
