package corobus

import (
	"fmt"
	"sort"
	"strings"
)

// MessageBus is the subscription registry: endpoints for point-to-point Send
// and subscriptions for Publish fan-out. The two tables are independent; a
// topic may carry both an endpoint and any number of subscriptions.
//
// The registry is owned by a TaskRunner and mutated only between coroutine
// resumptions, never concurrently with one. Handlers reach it exclusively by
// yielding commands.
type MessageBus struct {
	endpoints     map[string]Subscription
	subscriptions map[SubscriptionKey]Subscription

	// order preserves subscription insertion order so Matching is
	// deterministic for a fixed registry state. Replacing a subscription
	// keeps its original position.
	order []SubscriptionKey

	match            MatchFunc
	priorityOrdering bool
}

// NewMessageBus creates an empty registry with substring matching and
// priority ordering enabled.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		endpoints:        make(map[string]Subscription),
		subscriptions:    make(map[SubscriptionKey]Subscription),
		match:            MatchSubstring,
		priorityOrdering: true,
	}
}

// SetMatcher replaces the pattern matcher used by Matching.
func (b *MessageBus) SetMatcher(match MatchFunc) {
	if match != nil {
		b.match = match
	}
}

// SetPriorityOrdering toggles priority-descending delivery order. When
// disabled, Matching returns pure subscription order.
func (b *MessageBus) SetPriorityOrdering(enabled bool) {
	b.priorityOrdering = enabled
}

// Register installs sub as the endpoint for its topic. An existing endpoint
// for the topic is replaced; in-flight tasks created from the old endpoint
// already own their coroutine and are unaffected.
func (b *MessageBus) Register(sub Subscription) {
	b.endpoints[sub.Topic] = sub
}

// Deregister removes the endpoint for topic. No-op when absent.
func (b *MessageBus) Deregister(topic string) {
	delete(b.endpoints, topic)
}

// Subscribe adds sub to the fan-out set. A subscription with the same
// (topic, handler id) key is replaced, the newer actor factory superseding,
// without changing the subscription's delivery position.
func (b *MessageBus) Subscribe(sub Subscription) {
	key := sub.Key()
	if _, exists := b.subscriptions[key]; !exists {
		b.order = append(b.order, key)
	}
	b.subscriptions[key] = sub
}

// RemoveSubscription deletes the fan-out subscription identified by
// (topic, handlerID). No-op when absent.
func (b *MessageBus) RemoveSubscription(topic, handlerID string) {
	key := SubscriptionKey{Topic: topic, HandlerID: handlerID}
	if _, exists := b.subscriptions[key]; !exists {
		return
	}
	delete(b.subscriptions, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Endpoint returns the endpoint registered for topic.
func (b *MessageBus) Endpoint(topic string) (Subscription, bool) {
	sub, ok := b.endpoints[topic]
	return sub, ok
}

// HasEndpoint reports whether an endpoint is registered for topic.
func (b *MessageBus) HasEndpoint(topic string) bool {
	_, ok := b.endpoints[topic]
	return ok
}

// HasSubscription reports whether the fan-out set contains the
// (topic, handlerID) key.
func (b *MessageBus) HasSubscription(topic, handlerID string) bool {
	_, ok := b.subscriptions[SubscriptionKey{Topic: topic, HandlerID: handlerID}]
	return ok
}

// EndpointCount returns the number of registered endpoints.
func (b *MessageBus) EndpointCount() int {
	return len(b.endpoints)
}

// SubscriptionCount returns the size of the fan-out set.
func (b *MessageBus) SubscriptionCount() int {
	return len(b.subscriptions)
}

// Matching returns every subscription whose topic the pattern selects, in
// delivery order: priority descending (when enabled), ties and the disabled
// case in subscription order. The result is a snapshot; mutating the registry
// afterwards does not affect it.
func (b *MessageBus) Matching(pattern string) []Subscription {
	var matched []Subscription
	for _, key := range b.order {
		sub, ok := b.subscriptions[key]
		if !ok {
			continue
		}
		if b.match(pattern, sub.Topic) {
			matched = append(matched, sub)
		}
	}
	if b.priorityOrdering {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Priority > matched[j].Priority
		})
	}
	return matched
}

// String renders the registry contents for diagnostic dumps. Endpoints are
// listed sorted by topic, subscriptions in subscription order (priority is
// not applied).
func (b *MessageBus) String() string {
	var sb strings.Builder
	sb.WriteString("registry{endpoints=[")
	topics := make([]string, 0, len(b.endpoints))
	for topic := range b.endpoints {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for i, topic := range topics {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(topic)
	}
	sb.WriteString("], subscriptions=[")
	first := true
	for _, key := range b.order {
		if _, ok := b.subscriptions[key]; !ok {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "%s", key)
	}
	sb.WriteString("]}")
	return sb.String()
}
