package main

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	brokerConnectTimeout    = 10 * time.Second
	brokerPublishTimeout    = 5 * time.Second
	brokerDisconnectQuiesce = 1000 // milliseconds
	publishQueueSize        = 256
)

// publisher emits events after store mutations. Delivery is at-most-once:
// publish never blocks the caller and never reports failure back to it.
type publisher interface {
	publish(e event)
	close()
}

// nopPublisher stands in when no broker connection is available.
type nopPublisher struct{}

func (nopPublisher) publish(event) {}
func (nopPublisher) close()        {}

// brokerPublisher hands events to a background dispatcher over a bounded
// queue. The dispatcher serializes each event to JSON and publishes it to
// the configured topic; every failure is logged and swallowed.
type brokerPublisher struct {
	client pahomqtt.Client
	topic  string
	qos    byte
	logger *zap.Logger
	queue  chan event
	done   chan struct{}
}

func newBrokerPublisher(cfg config, logger *zap.Logger) (*brokerPublisher, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.broker.host, cfg.broker.port))
	opts.SetClientID(cfg.broker.clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(brokerConnectTimeout)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(brokerConnectTimeout) {
		return nil, fmt.Errorf("broker connect: timeout after %v", brokerConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("broker connect: %w", err)
	}

	p := &brokerPublisher{
		client: client,
		topic:  cfg.broker.topic,
		qos:    byte(cfg.broker.qos),
		logger: logger,
		queue:  make(chan event, publishQueueSize),
		done:   make(chan struct{}),
	}
	go p.dispatch()
	return p, nil
}

func (p *brokerPublisher) publish(e event) {
	select {
	case p.queue <- e:
	default:
		p.logger.Warn("event queue full, dropping event",
			zap.String("event_kind", string(e.Kind)),
			zap.Int("todo_id", e.Todo.ID),
		)
	}
}

func (p *brokerPublisher) dispatch() {
	for e := range p.queue {
		p.send(e)
	}
	close(p.done)
}

func (p *brokerPublisher) send(e event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.logger.Error("failed to marshal event", zap.Error(err))
		return
	}
	token := p.client.Publish(p.topic, p.qos, false, payload)
	if !token.WaitTimeout(brokerPublishTimeout) {
		p.logger.Warn("event publish timed out",
			zap.String("topic", p.topic),
			zap.String("event_id", e.ID),
		)
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Warn("event publish failed",
			zap.String("topic", p.topic),
			zap.String("event_id", e.ID),
			zap.Error(err),
		)
		return
	}
	p.logger.Debug("event published",
		zap.String("topic", p.topic),
		zap.String("event_kind", string(e.Kind)),
		zap.Int("todo_id", e.Todo.ID),
	)
}

// close drains queued events with a deadline, then disconnects.
func (p *brokerPublisher) close() {
	close(p.queue)
	select {
	case <-p.done:
	case <-time.After(brokerPublishTimeout):
		p.logger.Warn("timed out draining event queue")
	}
	p.client.Disconnect(brokerDisconnectQuiesce)
}

func newEvent(kind eventKind, t todo, actor string) event {
	return event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Todo:      t,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}
}
