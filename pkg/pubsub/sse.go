package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/umsu/umsugraph/pkg/logging"
)

// ErrClosed is returned once the publisher has shut down.
var ErrClosed = errors.New("publisher is closed")

// subscriberBuffer bounds how far a slow client may fall behind before events are dropped.
const subscriberBuffer = 64

// TopicConfig configures buffering behavior for a topic
type TopicConfig struct {
	BufferSize int  // Number of events kept for late subscribers (0 = none)
	ReplayAll  bool // Replay every kept event instead of only the latest
}

// SSEPublisher implements Publisher for Server-Sent Events clients.
type SSEPublisher struct {
	mu     sync.RWMutex
	topics map[string]*topic
	closed bool
}

type topic struct {
	config  TopicConfig
	version int
	buffer  []Event
	subs    map[*sseSubscription]struct{}
}

// NewSSEPublisher creates a new SSE-based publisher
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{topics: make(map[string]*topic)}
}

// topicLocked returns the named topic, creating it on first use. p.mu must be held.
func (p *SSEPublisher) topicLocked(name string) *topic {
	t, ok := p.topics[name]
	if !ok {
		t = &topic{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets buffering configuration for a topic
func (p *SSEPublisher) ConfigureTopic(name string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topicLocked(name).config = config
}

// Subscribe registers a subscriber and replays buffered events according to the topic config.
func (p *SSEPublisher) Subscribe(ctx context.Context, name string) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	sub := &sseSubscription{
		topic:     name,
		events:    make(chan Event, subscriberBuffer),
		publisher: p,
	}
	t := p.topicLocked(name)
	t.subs[sub] = struct{}{}

	replay := t.buffer
	if !t.config.ReplayAll && len(replay) > 0 {
		replay = replay[len(replay)-1:]
	}
	// Queue under the lock so a concurrent Publish cannot overtake the replay
	for _, event := range replay {
		select {
		case sub.events <- event:
		default:
			logging.Warn("could not replay event", "topic", name, "version", event.Version)
		}
	}
	p.mu.Unlock()

	if len(replay) > 0 {
		logging.Debug("replayed events to new subscriber", "topic", name, "count", len(replay))
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish sends an event to all subscribers of a topic without blocking on slow clients.
func (p *SSEPublisher) Publish(name string, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshaling event data")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	t := p.topicLocked(name)
	t.version++
	event := Event{
		Topic:   name,
		Type:    eventType,
		Data:    payload,
		Version: t.version,
	}

	if t.config.BufferSize > 0 {
		t.buffer = append(t.buffer, event)
		if len(t.buffer) > t.config.BufferSize {
			t.buffer = t.buffer[len(t.buffer)-t.config.BufferSize:]
		}
	}

	for sub := range t.subs {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscriber channel full, dropping event", "topic", name, "version", event.Version)
		}
	}
	return nil
}

// Latest returns the most recent buffered event of a topic.
func (p *SSEPublisher) Latest(name string) (Event, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	t, ok := p.topics[name]
	if !ok || len(t.buffer) == 0 {
		return Event{}, false
	}
	return t.buffer[len(t.buffer)-1], true
}

// Subscribers reports how many clients are subscribed to a topic.
func (p *SSEPublisher) Subscribers(name string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if t, ok := p.topics[name]; ok {
		return len(t.subs)
	}
	return 0
}

// Close shuts down the publisher and ends every subscription's event stream.
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, t := range p.topics {
		for sub := range t.subs {
			close(sub.events)
		}
		t.subs = make(map[*sseSubscription]struct{})
	}
	return nil
}

func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.topics[sub.topic]; ok {
		delete(t.subs, sub)
	}
}

type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher
	closed    bool
	mu        sync.Mutex
}

func (s *sseSubscription) Topic() string {
	return s.topic
}

func (s *sseSubscription) Events() <-chan Event {
	return s.events
}

func (s *sseSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.publisher.unsubscribe(s)
	return nil
}

// WriteSSE writes an event in SSE framing: "data: {json}\n\n".
func WriteSSE(w io.Writer, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshaling event")
	}

	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
