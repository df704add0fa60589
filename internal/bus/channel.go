// Package bus carries the check pipeline's events. The channel bus is
// the Community tier, in-process only; the NATS bus is the Pro tier.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harrierhq/harrier/internal/domain"
)

// ChannelBus delivers messages over Go channels within one process.
// Broadcast subscribers each receive every message; queue-group members
// share their topic, one delivery per message per group. Subscribing
// under domain.GlobalOrgID receives every org's messages on the topic.
type ChannelBus struct {
	mu         sync.Mutex
	bufferSize int
	topics     map[string]*topicSubscribers
	closed     bool
}

// topicSubscribers tracks one org/topic pair: its broadcast listeners
// plus its queue groups.
type topicSubscribers struct {
	broadcast []*channelSubscription
	groups    map[string]*subscriberGroup
}

// subscriberGroup rotates deliveries across its members.
type subscriberGroup struct {
	members []*channelSubscription
	next    int
}

type channelSubscription struct {
	id      string
	key     string
	group   string
	topic   string
	handler domain.MessageHandler
	msgCh   chan *domain.Message
	ctx     context.Context
	cancel  context.CancelFunc
	bus     *ChannelBus
}

// NewChannelBus creates a channel-backed bus. bufferSize caps how many
// undelivered messages each subscriber may queue.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		bufferSize: bufferSize,
		topics:     make(map[string]*topicSubscribers),
	}
}

// Publish sends a message on an org-scoped topic. Delivery is
// non-blocking: a subscriber whose buffer is full misses the message,
// and a full queue group falls forward to its next free member.
func (b *ChannelBus) Publish(ctx context.Context, orgID string, topic string, payload []byte) error {
	if orgID == "" {
		return fmt.Errorf("orgID is required")
	}

	msg := &domain.Message{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("bus is closed")
	}

	b.deliver(b.topics[b.makeKey(orgID, topic)], msg)
	if orgID != domain.GlobalOrgID {
		b.deliver(b.topics[b.makeKey(domain.GlobalOrgID, topic)], msg)
	}
	return nil
}

// deliver fans the message out to a topic's subscribers. Caller holds
// b.mu, which also guards the group rotation counters.
func (b *ChannelBus) deliver(subs *topicSubscribers, msg *domain.Message) {
	if subs == nil {
		return
	}

	for _, sub := range subs.broadcast {
		select {
		case sub.msgCh <- msg:
		default:
		}
	}

	for _, group := range subs.groups {
		group.deliver(msg)
	}
}

// deliver hands the message to one member, starting at the rotation
// point and falling forward past members with full buffers.
func (g *subscriberGroup) deliver(msg *domain.Message) {
	n := len(g.members)
	for attempt := 0; attempt < n; attempt++ {
		member := g.members[(g.next+attempt)%n]
		select {
		case member.msgCh <- msg:
			g.next = (g.next + attempt + 1) % n
			return
		default:
		}
	}
}

// Subscribe registers a fan-out handler for a topic.
func (b *ChannelBus) Subscribe(ctx context.Context, orgID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	return b.addSubscriber(ctx, orgID, topic, "", handler)
}

// QueueSubscribe registers a handler as a member of the named group.
func (b *ChannelBus) QueueSubscribe(ctx context.Context, orgID string, topic string, group string, handler domain.MessageHandler) (domain.Subscription, error) {
	if group == "" {
		return nil, fmt.Errorf("queue group name is required")
	}
	return b.addSubscriber(ctx, orgID, topic, group, handler)
}

func (b *ChannelBus) addSubscriber(ctx context.Context, orgID, topic, group string, handler domain.MessageHandler) (domain.Subscription, error) {
	if orgID == "" {
		return nil, fmt.Errorf("orgID is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &channelSubscription{
		id:      uuid.New().String(),
		key:     b.makeKey(orgID, topic),
		group:   group,
		topic:   topic,
		handler: handler,
		msgCh:   make(chan *domain.Message, b.bufferSize),
		ctx:     subCtx,
		cancel:  cancel,
		bus:     b,
	}

	subs, ok := b.topics[sub.key]
	if !ok {
		subs = &topicSubscribers{groups: make(map[string]*subscriberGroup)}
		b.topics[sub.key] = subs
	}
	if group == "" {
		subs.broadcast = append(subs.broadcast, sub)
	} else {
		g, ok := subs.groups[group]
		if !ok {
			g = &subscriberGroup{}
			subs.groups[group] = g
		}
		g.members = append(g.members, sub)
	}

	go sub.run()
	return sub, nil
}

// remove detaches a subscription from the registry so later publishes
// stop considering it.
func (b *ChannelBus) remove(sub *channelSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[sub.key]
	if !ok {
		return
	}

	if sub.group == "" {
		subs.broadcast = withoutSubscription(subs.broadcast, sub.id)
	} else if g, ok := subs.groups[sub.group]; ok {
		g.members = withoutSubscription(g.members, sub.id)
		if len(g.members) == 0 {
			delete(subs.groups, sub.group)
		} else {
			g.next %= len(g.members)
		}
	}

	if len(subs.broadcast) == 0 && len(subs.groups) == 0 {
		delete(b.topics, sub.key)
	}
}

func withoutSubscription(subs []*channelSubscription, id string) []*channelSubscription {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

// Ping checks bus health.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	return nil
}

// Close stops every subscription and rejects further publishes.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.topics {
		for _, sub := range subs.broadcast {
			sub.cancel()
		}
		for _, g := range subs.groups {
			for _, sub := range g.members {
				sub.cancel()
			}
		}
	}
	b.topics = make(map[string]*topicSubscribers)
	return nil
}

func (b *ChannelBus) makeKey(orgID, topic string) string {
	return orgID + ":" + topic
}

func (s *channelSubscription) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.msgCh:
			if msg != nil {
				_ = s.handler(s.ctx, msg)
			}
		}
	}
}

// Unsubscribe stops receiving messages and frees the registry slot.
func (s *channelSubscription) Unsubscribe() error {
	s.cancel()
	s.bus.remove(s)
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSubscription) Topic() string {
	return s.topic
}
