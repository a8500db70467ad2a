package corobus

import "fmt"

// Command is the only channel by which a running handler affects the bus.
// Handlers yield commands; the task runner interprets one command per
// resumption. The variant set is closed.
type Command interface {
	fmt.Stringer
	isCommand()
}

// SendCommand requests point-to-point delivery to the endpoint registered at
// Topic. If no endpoint exists the command is silently dropped.
type SendCommand struct {
	Topic string
	Msg   *Message
}

// PublishCommand requests fan-out delivery to every subscription whose topic
// matches Pattern. Zero matches is a valid, silently completing fan-out.
type PublishCommand struct {
	Pattern string
	Msg     *Message
}

// RegisterCommand installs Subscription as the endpoint for its topic,
// replacing any previous endpoint.
type RegisterCommand struct {
	Subscription Subscription
}

// DeregisterCommand removes the endpoint for Topic, if any.
type DeregisterCommand struct {
	Topic string
}

// SubscribeCommand adds Subscription to the fan-out set, replacing any
// subscription with the same (topic, handler id) key.
type SubscribeCommand struct {
	Subscription Subscription
}

// UnsubscribeCommand removes the fan-out subscription identified by Key,
// if any.
type UnsubscribeCommand struct {
	Key SubscriptionKey
}

func (SendCommand) isCommand()        {}
func (PublishCommand) isCommand()     {}
func (RegisterCommand) isCommand()    {}
func (DeregisterCommand) isCommand()  {}
func (SubscribeCommand) isCommand()   {}
func (UnsubscribeCommand) isCommand() {}

func (c SendCommand) String() string {
	return fmt.Sprintf("send(topic=%s, %s)", c.Topic, c.Msg)
}

func (c PublishCommand) String() string {
	return fmt.Sprintf("publish(pattern=%s, %s)", c.Pattern, c.Msg)
}

func (c RegisterCommand) String() string {
	return fmt.Sprintf("register(%s)", c.Subscription)
}

func (c DeregisterCommand) String() string {
	return fmt.Sprintf("deregister(topic=%s)", c.Topic)
}

func (c SubscribeCommand) String() string {
	return fmt.Sprintf("subscribe(%s)", c.Subscription)
}

func (c UnsubscribeCommand) String() string {
	return fmt.Sprintf("unsubscribe(%s)", c.Key)
}

// Send builds a point-to-point delivery command.
func Send(topic string, msg *Message) Command {
	return SendCommand{Topic: topic, Msg: msg}
}

// Publish builds a fan-out delivery command.
func Publish(pattern string, msg *Message) Command {
	return PublishCommand{Pattern: pattern, Msg: msg}
}

// Register builds an endpoint registration command.
func Register(sub Subscription) Command {
	return RegisterCommand{Subscription: sub}
}

// Deregister builds an endpoint removal command.
func Deregister(topic string) Command {
	return DeregisterCommand{Topic: topic}
}

// Subscribe builds a fan-out subscription command.
func Subscribe(sub Subscription) Command {
	return SubscribeCommand{Subscription: sub}
}

// Unsubscribe builds a fan-out subscription removal command.
func Unsubscribe(topic, handlerID string) Command {
	return UnsubscribeCommand{Key: SubscriptionKey{Topic: topic, HandlerID: handlerID}}
}
