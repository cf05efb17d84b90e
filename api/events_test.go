package main

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeToken struct {
	err error
}

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Error() error                   { return t.err }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeBrokerClient implements pahomqtt.Client, recording published payloads.
type fakeBrokerClient struct {
	mu         sync.Mutex
	published  [][]byte
	publishErr error
}

func (c *fakeBrokerClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

func (c *fakeBrokerClient) payload(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published[i]
}

func (c *fakeBrokerClient) IsConnected() bool      { return true }
func (c *fakeBrokerClient) IsConnectionOpen() bool { return true }
func (c *fakeBrokerClient) Connect() pahomqtt.Token {
	return fakeToken{}
}
func (c *fakeBrokerClient) Disconnect(quiesce uint) {}
func (c *fakeBrokerClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, payload.([]byte))
	return fakeToken{err: c.publishErr}
}
func (c *fakeBrokerClient) Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	return fakeToken{}
}
func (c *fakeBrokerClient) SubscribeMultiple(filters map[string]byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	return fakeToken{}
}
func (c *fakeBrokerClient) Unsubscribe(topics ...string) pahomqtt.Token {
	return fakeToken{}
}
func (c *fakeBrokerClient) AddRoute(topic string, callback pahomqtt.MessageHandler) {}
func (c *fakeBrokerClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

func newTestBrokerPublisher(client pahomqtt.Client, logger *zap.Logger) *brokerPublisher {
	p := &brokerPublisher{
		client: client,
		topic:  "todos",
		qos:    0,
		logger: logger,
		queue:  make(chan event, publishQueueSize),
		done:   make(chan struct{}),
	}
	go p.dispatch()
	return p
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestBrokerPublisherDeliversEvent(t *testing.T) {
	client := &fakeBrokerClient{}
	p := newTestBrokerPublisher(client, zap.NewNop())
	defer p.close()

	td := todo{ID: 7, Title: "Buy milk", Completed: false}
	p.publish(newEvent(eventCreated, td, "admin"))

	waitFor(t, func() bool { return client.count() == 1 })

	var payload struct {
		EventID   string `json:"event_id"`
		EventKind string `json:"event_kind"`
		Todo      todo   `json:"todo"`
		Actor     string `json:"actor"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(client.payload(0), &payload))
	assert.NotEmpty(t, payload.EventID)
	assert.Equal(t, "created", payload.EventKind)
	assert.Equal(t, 7, payload.Todo.ID)
	assert.Equal(t, "Buy milk", payload.Todo.Title)
	assert.Equal(t, "admin", payload.Actor)
	assert.NotEmpty(t, payload.Timestamp)
}

func TestBrokerPublisherSwallowsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	client := &fakeBrokerClient{publishErr: assert.AnError}
	p := newTestBrokerPublisher(client, zap.New(core))
	defer p.close()

	p.publish(newEvent(eventDeleted, todo{ID: 1}, "admin"))
	waitFor(t, func() bool { return logs.FilterMessage("event publish failed").Len() == 1 })

	// The dispatcher must survive failures and keep draining the queue.
	p.publish(newEvent(eventCreated, todo{ID: 2}, "admin"))
	waitFor(t, func() bool { return client.count() == 2 })
}

func TestBrokerPublisherNeverBlocks(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	// No dispatcher goroutine and a single-slot queue: the second publish
	// finds the queue full and must drop instead of blocking.
	p := &brokerPublisher{
		client: &fakeBrokerClient{},
		topic:  "todos",
		logger: zap.New(core),
		queue:  make(chan event, 1),
		done:   make(chan struct{}),
	}

	p.publish(newEvent(eventCreated, todo{ID: 1}, "admin"))
	p.publish(newEvent(eventCreated, todo{ID: 2}, "admin"))

	assert.Equal(t, 1, logs.FilterMessage("event queue full, dropping event").Len())
}

func TestBrokerPublisherCloseDrainsQueue(t *testing.T) {
	client := &fakeBrokerClient{}
	p := newTestBrokerPublisher(client, zap.NewNop())

	for i := 1; i <= 3; i++ {
		p.publish(newEvent(eventUpdated, todo{ID: i}, "user"))
	}
	p.close()

	assert.Equal(t, 3, client.count())
}
