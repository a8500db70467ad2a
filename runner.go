package corobus

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// TaskRunner drives handler coroutines to completion. It owns the task stack
// and the subscription registry; handlers affect either only by yielding
// commands, which the runner interprets one per resumption.
//
// Scheduling is single-threaded, cooperative and depth-first: a Send pushes
// the callee's task above the sender, so the callee's whole subtree drains
// before the sender resumes. The runner is not re-entrant; Run must not be
// invoked while already running.
type TaskRunner struct {
	bus    *MessageBus
	stack  []Task
	config *RunnerConfig
	logger *slog.Logger

	running         bool
	stats           runnerStats
	matcherOverride MatchFunc

	observers     map[string]*observerRegistration
	observerMutex sync.RWMutex
}

// Option configures a TaskRunner during construction.
type Option func(*TaskRunner) error

// WithConfig supplies a runner configuration. The configuration is validated
// by NewTaskRunner.
func WithConfig(cfg *RunnerConfig) Option {
	return func(r *TaskRunner) error {
		if cfg == nil {
			return nil
		}
		r.config = cfg
		return nil
	}
}

// WithLogger supplies the structured logger used for command and task
// traces.
func WithLogger(logger *slog.Logger) Option {
	return func(r *TaskRunner) error {
		if logger != nil {
			r.logger = logger
		}
		return nil
	}
}

// WithMatcher overrides the pattern matcher, superseding the configured
// match mode.
func WithMatcher(match MatchFunc) Option {
	return func(r *TaskRunner) error {
		r.matcherOverride = match
		return nil
	}
}

// NewTaskRunner creates a runner with an empty stack and an empty registry.
func NewTaskRunner(opts ...Option) (*TaskRunner, error) {
	r := &TaskRunner{
		bus:       NewMessageBus(),
		config:    DefaultRunnerConfig(),
		logger:    slog.Default(),
		observers: make(map[string]*observerRegistration),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if err := r.config.Validate(); err != nil {
		return nil, err
	}
	if r.matcherOverride != nil {
		r.bus.SetMatcher(r.matcherOverride)
	} else {
		match, err := matcherForMode(r.config.MatchMode)
		if err != nil {
			return nil, err
		}
		r.bus.SetMatcher(match)
	}
	r.bus.SetPriorityOrdering(r.config.PriorityOrdering)
	return r, nil
}

// Registry exposes the subscription registry for embedder setup and for
// test/diagnostic queries. Handlers must never touch it directly.
func (r *TaskRunner) Registry() *MessageBus {
	return r.bus
}

// Config returns the active runner configuration.
func (r *TaskRunner) Config() *RunnerConfig {
	return r.config
}

// Push places a task on top of the stack.
func (r *TaskRunner) Push(task Task) {
	r.stack = append(r.stack, task)
	r.stats.TasksPushed++
	r.logger.Debug("task pushed", "task", task.String(), "depth", len(r.stack))
	r.emitEvent(EventTypeTaskPushed, map[string]any{"task": task.String(), "depth": len(r.stack)})
}

// Pop removes and returns the top task, if any.
func (r *TaskRunner) Pop() (Task, bool) {
	if len(r.stack) == 0 {
		return nil, false
	}
	top := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	return top, true
}

// Len returns the current stack depth.
func (r *TaskRunner) Len() int {
	return len(r.stack)
}

// Send pushes the initial point-to-point task for topic. Like the yielded
// command, a Send to a topic without an endpoint is silently dropped.
func (r *TaskRunner) Send(topic string, msg *Message) {
	sub, ok := r.bus.Endpoint(topic)
	if !ok {
		r.dropSend(topic, msg)
		return
	}
	r.Push(NewSendTask(topic, sub.Actor(), msg))
	r.stats.MessagesSent++
}

// Publish pushes the initial fan-out task for pattern.
func (r *TaskRunner) Publish(pattern string, msg *Message) {
	r.Push(NewPublishTask(pattern, msg))
}

// Step advances the scheduler by one unit of work: one coroutine resumption,
// one fan-out cursor advance, or one completed-task pop. It reports false
// once the stack is empty. The only errors are scheduler-level ones (stack
// depth guard); handler failures are contained, counted and logged, never
// returned.
func (r *TaskRunner) Step() (bool, error) {
	if len(r.stack) == 0 {
		return false, nil
	}
	r.stats.Steps++

	switch top := r.stack[len(r.stack)-1].(type) {
	case *SendTask:
		cmd, live, err := top.Resume()
		if err != nil {
			r.stats.HandlerFailures++
			r.logger.Error("handler aborted", "task", top.String(), "error", err)
			r.emitEvent(EventTypeHandlerFailed, map[string]any{"task": top.String(), "error": err.Error()})
			r.popCompleted()
			return true, nil
		}
		if !live {
			r.popCompleted()
			return true, nil
		}
		r.logger.Debug("command yielded", "task", top.String(), "command", cmd.String())
		if err := r.apply(cmd); err != nil {
			return true, err
		}
	case *PublishTask:
		next, ok := top.NextTask(r.bus)
		if !ok {
			r.popCompleted()
			return true, nil
		}
		if err := r.checkDepth(); err != nil {
			return true, err
		}
		r.Push(next)
		r.stats.MessagesDelivered++
	}
	return true, nil
}

// Run calls Step until the stack is empty. Returns ErrRunnerBusy when called
// re-entrantly, or the scheduler error that interrupted the run.
func (r *TaskRunner) Run() error {
	if r.running {
		return ErrRunnerBusy
	}
	r.running = true
	defer func() { r.running = false }()

	r.emitEvent(EventTypeRunStarted, map[string]any{"depth": len(r.stack)})
	for {
		more, err := r.Step()
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	r.emitEvent(EventTypeRunFinished, map[string]any{"steps": r.stats.Steps})
	return nil
}

// Reset abandons all pending tasks, releasing any suspended coroutines. The
// registry is left untouched.
func (r *TaskRunner) Reset() {
	for i := len(r.stack) - 1; i >= 0; i-- {
		if st, ok := r.stack[i].(*SendTask); ok {
			st.Close()
		}
	}
	r.stack = r.stack[:0]
}

// apply interprets one yielded command. Registry mutations take effect
// immediately and are visible to every subsequent dispatch; coroutines
// already instantiated keep the factories they were built from.
func (r *TaskRunner) apply(cmd Command) error {
	r.stats.CommandsInterpreted++

	switch c := cmd.(type) {
	case SendCommand:
		sub, ok := r.bus.Endpoint(c.Topic)
		if !ok {
			r.dropSend(c.Topic, c.Msg)
			return nil
		}
		if err := r.checkDepth(); err != nil {
			return err
		}
		r.Push(NewSendTask(c.Topic, sub.Actor(), c.Msg))
		r.stats.MessagesSent++
		r.emitEvent(EventTypeMessageSent, map[string]any{"topic": c.Topic})

	case PublishCommand:
		if err := r.checkDepth(); err != nil {
			return err
		}
		r.Push(NewPublishTask(c.Pattern, c.Msg))

	case RegisterCommand:
		if err := c.Subscription.Validate(); err != nil {
			r.logger.Error("register rejected", "subscription", c.Subscription.String(), "error", err)
			return nil
		}
		r.bus.Register(c.Subscription)
		r.logger.Debug("endpoint registered", "topic", c.Subscription.Topic)
		r.emitEvent(EventTypeEndpointRegistered, map[string]any{"topic": c.Subscription.Topic})

	case DeregisterCommand:
		r.bus.Deregister(c.Topic)
		r.logger.Debug("endpoint deregistered", "topic", c.Topic)
		r.emitEvent(EventTypeEndpointDeregistered, map[string]any{"topic": c.Topic})

	case SubscribeCommand:
		if err := c.Subscription.Validate(); err != nil {
			r.logger.Error("subscribe rejected", "subscription", c.Subscription.String(), "error", err)
			return nil
		}
		r.bus.Subscribe(c.Subscription)
		r.logger.Debug("subscription created", "key", c.Subscription.Key().String())
		r.emitEvent(EventTypeSubscriptionCreated, map[string]any{"topic": c.Subscription.Topic, "handlerId": c.Subscription.HandlerID})

	case UnsubscribeCommand:
		r.bus.RemoveSubscription(c.Key.Topic, c.Key.HandlerID)
		r.logger.Debug("subscription removed", "key", c.Key.String())
		r.emitEvent(EventTypeSubscriptionRemoved, map[string]any{"topic": c.Key.Topic, "handlerId": c.Key.HandlerID})
	}
	return nil
}

func (r *TaskRunner) popCompleted() {
	top, _ := r.Pop()
	r.stats.TasksCompleted++
	r.logger.Debug("task completed", "task", top.String(), "depth", len(r.stack))
	r.emitEvent(EventTypeTaskCompleted, map[string]any{"task": top.String(), "depth": len(r.stack)})
}

func (r *TaskRunner) dropSend(topic string, msg *Message) {
	r.stats.MessagesDropped++
	r.logger.Debug("send dropped, no endpoint", "topic", topic, "message", msg.String())
	r.emitEvent(EventTypeMessageDropped, map[string]any{"topic": topic})
}

func (r *TaskRunner) checkDepth() error {
	if r.config.MaxStackDepth > 0 && len(r.stack) >= r.config.MaxStackDepth {
		return fmt.Errorf("%w: depth %d", ErrStackDepthLimit, len(r.stack))
	}
	return nil
}

// DumpState renders the task stack (top first) and the registry contents.
// Intended for golden tests and debugging; the exact format is not part of
// the API contract.
func (r *TaskRunner) DumpState() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "runner{stack depth=%d}\n", len(r.stack))
	for i := len(r.stack) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "  [%d] %s\n", i, r.stack[i].String())
	}
	sb.WriteString(r.bus.String())
	return sb.String()
}
