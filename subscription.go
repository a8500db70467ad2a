package corobus

import (
	"fmt"

	"github.com/google/uuid"
)

// SubscriptionKey is the identity of a subscription. Two subscriptions are
// the same subscription iff their keys are equal; priority and actor factory
// do not participate in identity.
type SubscriptionKey struct {
	Topic     string
	HandlerID string
}

func (k SubscriptionKey) String() string {
	return fmt.Sprintf("%s/%s", k.Topic, k.HandlerID)
}

// Subscription binds a handler factory to a topic. The same value is used for
// endpoint registration (point-to-point Send) and fan-out subscription
// (Publish); the registry keeps the two roles in independent tables.
type Subscription struct {
	// Topic is the endpoint key and the string patterns are matched against.
	Topic string

	// HandlerID distinguishes handlers within a topic. Generated when empty.
	HandlerID string

	// Priority orders fan-out delivery: higher priorities are delivered
	// first, ties broken by subscription order.
	Priority uint8

	// Actor produces a fresh coroutine instance per delivery.
	Actor ActorFn
}

// NewSubscription builds a subscription. An empty handlerID is replaced with
// a generated uuid so the subscription is still uniquely addressable.
func NewSubscription(topic, handlerID string, priority uint8, actor ActorFn) Subscription {
	if handlerID == "" {
		handlerID = uuid.New().String()
	}
	return Subscription{
		Topic:     topic,
		HandlerID: handlerID,
		Priority:  priority,
		Actor:     actor,
	}
}

// Key returns the (topic, handler id) identity of the subscription.
func (s Subscription) Key() SubscriptionKey {
	return SubscriptionKey{Topic: s.Topic, HandlerID: s.HandlerID}
}

// Validate reports whether the subscription can be stored.
func (s Subscription) Validate() error {
	if s.Topic == "" {
		return ErrTopicEmpty
	}
	if s.Actor == nil {
		return ErrActorFnNil
	}
	return nil
}

func (s Subscription) String() string {
	return fmt.Sprintf("subscription(topic=%s, handler=%s, priority=%d)", s.Topic, s.HandlerID, s.Priority)
}
