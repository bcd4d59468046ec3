// Package emitter delivers scored throws to the scoring ledger over
// MQTT.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LucasStrand/no-bulls-hit/session"
)

// MQTT publishes session.Throw events as JSON to a fixed topic. It
// implements session.Sink.
type MQTT struct {
	client mqtt.Client
	topic  string
	qos    byte

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// Options configure the emitter.
type Options struct {
	Broker   string // host:port
	ClientID string
	Topic    string
	QoS      byte
}

// New creates an emitter. Connect must be called before publishing.
func New(opts Options) *MQTT {
	e := &MQTT{topic: opts.Topic, qos: opts.QoS}

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(fmt.Sprintf("tcp://%s", opts.Broker))
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectRetry(true)
	clientOpts.SetConnectRetryInterval(2 * time.Second)
	clientOpts.SetMaxReconnectInterval(30 * time.Second)

	clientOpts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		slog.Info("mqtt connection established", "broker", opts.Broker, "client_id", opts.ClientID)
	}
	clientOpts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", opts.Broker)
	}

	e.client = mqtt.NewClient(clientOpts)
	return e
}

// Connect establishes the broker connection, waiting no longer than
// the context allows.
func (e *MQTT) Connect(ctx context.Context) error {
	token := e.client.Connect()

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}
	return token.Error()
}

// PublishThrow implements session.Sink. A slow or disconnected broker
// never blocks the processing pass beyond the context deadline;
// failures are counted and logged, not propagated as fatal.
func (e *MQTT) PublishThrow(ctx context.Context, t session.Throw) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding throw: %v", err)
	}

	token := e.client.Publish(e.topic, e.qos, false, payload)

	deadline := time.Until(timeoutFrom(ctx))
	if !token.WaitTimeout(deadline) {
		e.countError()
		return fmt.Errorf("publish to %s timed out", e.topic)
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish to %s: %v", e.topic, err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()
	return nil
}

// Connected reports the current broker connection state.
func (e *MQTT) Connected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

// Stats returns cumulative publish and error counts.
func (e *MQTT) Stats() (published, errors uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.published, e.errors
}

// Close disconnects from the broker.
func (e *MQTT) Close() {
	e.client.Disconnect(250)
}

func (e *MQTT) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

func timeoutFrom(ctx context.Context) time.Time {
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	return time.Now().Add(2 * time.Second)
}
