package domain

import (
	"context"
)

// EventBus carries the check pipeline's events between the API, the
// worker pool, and any external consumers. Every operation is scoped to
// an org; subscribing under GlobalOrgID receives every org's events on
// the topic.
type EventBus interface {
	// Publish sends a message on an org-scoped topic.
	Publish(ctx context.Context, orgID string, topic string, payload []byte) error

	// Subscribe registers a fan-out handler: every subscriber of the
	// topic sees every message.
	Subscribe(ctx context.Context, orgID string, topic string, handler MessageHandler) (Subscription, error)

	// QueueSubscribe registers a handler as a member of a named group.
	// Each message is delivered to exactly one member of each group, so
	// a pool of workers shares the topic without double-processing.
	QueueSubscribe(ctx context.Context, orgID string, topic string, group string, handler MessageHandler) (Subscription, error)

	// Ping reports whether the bus can currently deliver.
	Ping(ctx context.Context) error

	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the wire envelope every bus payload travels in.
type Message struct {
	ID        string            `json:"id"`
	OrgID     string            `json:"orgId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Check pipeline topics. On NATS these become harrier.<org>.<topic>
// subjects; the channel bus keys on the same org/topic pair.
const (
	TopicCheckRequested = "check.requested"
	TopicCheckCompleted = "check.completed"
	TopicAlertRaised    = "alert.raised"
)
