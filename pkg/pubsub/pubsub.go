// Package pubsub streams reactor build progress to subscribers.
package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the reactor runner
const (
	TopicReactorStatus = "reactor_status"
	TopicReactorGraph  = "reactor_graph"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // e.g. "reactor_status", "reactor_graph"
	Type    string          `json:"type"`    // e.g. "discovering", "building", "sorted"
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic.
	// Context cancellation closes the subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// ReactorStatus is the progress of a reactor run
type ReactorStatus struct {
	State   string `json:"state"`   // discovering, building, sorting, ready, error
	Message string `json:"message"` // Human-readable status message
	Reason  string `json:"reason"`  // what triggered the run
	Step    int    `json:"step"`    // Current step number (1-based)
	Total   int    `json:"total"`   // Total number of steps
}

// ReactorGraphData summarizes the last sorted reactor
type ReactorGraphData struct {
	ProjectsCount int      `json:"projects_count"`
	EdgesCount    int      `json:"edges_count"`
	DroppedCount  int      `json:"dropped_count"`
	Problems      int      `json:"problems"`
	BuildOrder    []string `json:"build_order"`
	Complete      bool     `json:"complete"` // false when the reactor failed to build or sort
}
