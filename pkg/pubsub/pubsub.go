// Package pubsub fans merge progress out to browser clients over Server-Sent Events.
package pubsub

import (
	"context"
	"encoding/json"
)

// TopicGraphStatus carries GraphStatus events for every merge run.
const TopicGraphStatus = "graph_status"

// Merge run states, used as event types on TopicGraphStatus.
const (
	StateLoading = "loading"
	StateMerging = "merging"
	StateReady   = "ready"
	StateFailed  = "failed"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic, e.g. "graph_status"
	Type    string          `json:"type"`    // Event type, e.g. "loading" or "ready"
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Per-topic sequence number
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	Topic() string
	Events() <-chan Event
	Close() error
}

// Publisher manages subscriptions and event publishing.
// Cancelling the context given to Subscribe closes the subscription.
type Publisher interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Publish(topic string, eventType string, data any) error
	Close() error
}

// GraphStatus describes the progress or result of a merge run.
type GraphStatus struct {
	State      string `json:"state"`
	Reason     string `json:"reason,omitempty"` // What triggered the run
	Message    string `json:"message"`
	Datasets   int    `json:"datasets"`
	Nodes      int    `json:"nodes"`
	Links      int    `json:"links"`
	Components int    `json:"components"`
	Warnings   int    `json:"warnings"`
}
