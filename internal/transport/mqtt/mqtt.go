// Package mqtt carries commands and telemetry over an MQTT broker.
//
// Topics hang off a prefix: <prefix>/control (commands in), <prefix>/data and
// <prefix>/status (telemetry out), and <prefix>/presence, where the host
// publishes retained "online" or "offline" to attach or detach.
//
// Host presence survives a broker reconnect: if the host was online when the
// connection dropped, Connected is reported again once the subscriptions are
// back.
package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/transport"
)

const (
	// inboxSize bounds queued commands. Connection events are never dropped.
	inboxSize      = 64
	disconnectWait = 250 // ms
	publishTimeout = 2 * time.Second
)

// Config selects the broker and topics.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

// Transport is the MQTT adapter.
type Transport struct {
	cfg       Config
	log       *logrus.Entry
	newClient func(*paho.ClientOptions) paho.Client

	mu     sync.Mutex
	client paho.Client
	inbox  *queue

	// Guarded by mu. hostOnline is the last presence seen, attached is what
	// was last reported.
	hostOnline bool
	attached   bool
}

// New returns an MQTT transport. An empty client id gets a random one.
func New(cfg Config, logger *logrus.Logger) *Transport {
	if cfg.ClientID == "" {
		cfg.ClientID = "vitals-node-" + uuid.NewString()[:8]
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	return &Transport{
		cfg:       cfg,
		log:       logger.WithField("transport", "mqtt"),
		newClient: paho.NewClient,
		inbox:     newQueue(inboxSize),
	}
}

func (t *Transport) Name() string { return "mqtt" }

// Topic returns the full topic for a suffix such as "control".
func (t *Transport) Topic(suffix string) string {
	return t.cfg.TopicPrefix + "/" + suffix
}

// Run connects, subscribes and forwards events until ctx is done.
func (t *Transport) Run(ctx context.Context, events chan<- transport.Event) error {
	opts := paho.NewClientOptions().
		AddBroker(t.cfg.Broker).
		SetClientID(t.cfg.ClientID).
		SetAutoReconnect(true).
		SetWill(t.Topic("node"), "offline", 1, true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			t.log.Warnf("connection lost: %v", err)
			t.setAttached(false)
		}).
		SetOnConnectHandler(func(c paho.Client) {
			// Subscriptions are dropped on reconnect with a clean session.
			go t.subscribe(c)
		})

	client := t.newClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt: connect to %s: %w", t.cfg.Broker, token.Error())
	}
	t.log.Infof("connected to MQTT broker at %s as %s", t.cfg.Broker, t.cfg.ClientID)

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()

	client.Publish(t.Topic("node"), 1, true, "online")

	for {
		select {
		case <-t.inbox.wake:
			for ev, ok := t.inbox.pop(); ok; ev, ok = t.inbox.pop() {
				if !transport.Emit(ctx, events, ev) {
					break
				}
			}
		case <-ctx.Done():
			client.Publish(t.Topic("node"), 1, true, "offline").WaitTimeout(publishTimeout)
			client.Disconnect(disconnectWait)
			t.mu.Lock()
			t.client = nil
			t.mu.Unlock()
			t.log.Info("MQTT transport stopped")
			return nil
		}
	}
}

func (t *Transport) subscribe(c paho.Client) {
	filters := map[string]byte{t.Topic("control"): 1, t.Topic("presence"): 1}
	token := c.SubscribeMultiple(filters, t.handle)
	token.Wait()
	if token.Error() != nil {
		t.log.Errorf("subscribe: %v", token.Error())
		return
	}
	t.log.Infof("subscribed to %s and %s", t.Topic("control"), t.Topic("presence"))

	t.mu.Lock()
	online := t.hostOnline
	t.mu.Unlock()
	if online {
		t.setAttached(true)
	}
}

// handle runs on the paho goroutine and must not block.
func (t *Transport) handle(_ paho.Client, msg paho.Message) {
	payload := append([]byte(nil), msg.Payload()...)
	switch msg.Topic() {
	case t.Topic("control"):
		t.enqueue(transport.Event{Kind: transport.Command, Data: payload})
	case t.Topic("presence"):
		switch strings.TrimSpace(string(payload)) {
		case "online":
			t.setPresence(true)
		case "offline":
			t.setPresence(false)
		default:
			t.log.Debugf("ignoring presence %q", payload)
		}
	}
}

func (t *Transport) enqueue(ev transport.Event) {
	if !t.inbox.push(ev) {
		t.log.Warnf("inbox full, dropping %s event", ev.Kind)
	}
}

func (t *Transport) setPresence(online bool) {
	t.mu.Lock()
	t.hostOnline = online
	t.mu.Unlock()
	t.setAttached(online)
}

// setAttached reports a change of session state. Repeats are swallowed, so a
// retained "online" redelivered after a reconnect is not a second Connected.
func (t *Transport) setAttached(attached bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.attached == attached {
		return
	}
	t.attached = attached
	kind := transport.Disconnected
	if attached {
		kind = transport.Connected
	}
	t.inbox.push(transport.Event{Kind: kind})
}

// queue is an ordered event inbox that never blocks the paho goroutines.
// Commands beyond limit are refused; connection events always go in.
type queue struct {
	mu       sync.Mutex
	events   []transport.Event
	commands int
	limit    int
	wake     chan struct{}
}

func newQueue(limit int) *queue {
	return &queue{limit: limit, wake: make(chan struct{}, 1)}
}

func (q *queue) push(ev transport.Event) bool {
	q.mu.Lock()
	if ev.Kind == transport.Command {
		if q.commands >= q.limit {
			q.mu.Unlock()
			return false
		}
		q.commands++
	}
	q.events = append(q.events, ev)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *queue) pop() (transport.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return transport.Event{}, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	if ev.Kind == transport.Command {
		q.commands--
	}
	return ev, true
}

// Send publishes frame on <prefix>/<channel>.
func (t *Transport) Send(ch telemetry.Channel, frame []byte) error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil || !client.IsConnectionOpen() {
		return transport.ErrNotConnected
	}

	token := client.Publish(t.Topic(string(ch)), 0, false, frame)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: publish on %s timed out", t.Topic(string(ch)))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish on %s: %w", t.Topic(string(ch)), err)
	}
	return nil
}
