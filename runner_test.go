package corobus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tracer records Enter/Exit markers emitted by instrumented handlers so tests
// can assert delivery order.
type tracer struct {
	events []string
}

func (tr *tracer) enter(id string) { tr.events = append(tr.events, "Enter "+id) }
func (tr *tracer) exit(id string)  { tr.events = append(tr.events, "Exit "+id) }

// tracedEndpoint registers an endpoint whose handler emits Enter/Exit around
// the given yields.
func tracedEndpoint(r *TaskRunner, topic, id string, tr *tracer, commands ...func(msg *Message) Command) {
	r.Registry().Register(NewSubscription(topic, id, 0, Actor(func(msg *Message, yield func(Command) bool) {
		tr.enter(id)
		for _, build := range commands {
			if !yield(build(msg)) {
				return
			}
		}
		tr.exit(id)
	})))
}

func sendTo(topic string) func(msg *Message) Command {
	return func(msg *Message) Command {
		return Send(topic, msg)
	}
}

// assertBalanced verifies the Enter/Exit trace forms a balanced parenthesis
// language over handler ids.
func assertBalanced(t *testing.T, events []string) {
	t.Helper()
	var open []string
	for _, ev := range events {
		var kind, id string
		_, err := fmt.Sscanf(ev, "%s %s", &kind, &id)
		require.NoError(t, err)
		switch kind {
		case "Enter":
			open = append(open, id)
		case "Exit":
			require.NotEmpty(t, open, "Exit %s with no open handler", id)
			require.Equal(t, open[len(open)-1], id, "interleaved exit for %s", id)
			open = open[:len(open)-1]
		}
	}
	assert.Empty(t, open, "unmatched Enter markers remain")
}

func TestRunnerStartsEmpty(t *testing.T) {
	runner, err := NewTaskRunner()
	require.NoError(t, err)

	assert.Equal(t, 0, runner.Len())
	assert.Equal(t, 0, runner.Registry().EndpointCount())
	assert.Equal(t, 0, runner.Registry().SubscriptionCount())

	more, err := runner.Step()
	require.NoError(t, err)
	assert.False(t, more, "step on an empty stack is a no-op")
}

func TestEndpointDeliveryAndDeregistration(t *testing.T) {
	runner, err := NewTaskRunner()
	require.NoError(t, err)

	counter := 0
	runner.Registry().Register(NewSubscription("endpoint_topic", "h1", 0, ActorOf(func(*Message) {
		counter++
	})))

	runner.Send("endpoint_topic", EmptyMessage())
	require.NoError(t, runner.Run())
	assert.Equal(t, 1, counter)

	runner.Registry().Deregister("endpoint_topic")
	runner.Send("endpoint_topic", EmptyMessage())
	require.NoError(t, runner.Run())
	assert.Equal(t, 1, counter, "send after deregistration must be silently dropped")
	assert.Equal(t, uint64(1), runner.Stats().MessagesDropped)
}

func TestSendToUnknownEndpointIsSilent(t *testing.T) {
	runner, err := NewTaskRunner()
	require.NoError(t, err)

	runner.Send("nope", EmptyMessage())
	require.NoError(t, runner.Run())

	assert.Equal(t, 0, runner.Len())
	assert.Equal(t, uint64(1), runner.Stats().MessagesDropped)
	assert.Equal(t, uint64(0), runner.Stats().MessagesSent)
}

func TestStaticChainDepthFirst(t *testing.T) {
	runner, err := NewTaskRunner()
	require.NoError(t, err)

	tr := &tracer{}
	tracedEndpoint(runner, "topic_a", "A", tr, sendTo("topic_b"))
	tracedEndpoint(runner, "topic_b", "B", tr, sendTo("topic_c"))
	tracedEndpoint(runner, "topic_c", "C", tr)

	runner.Send("topic_a", EmptyMessage())
	require.NoError(t, runner.Run())

	assert.Equal(t, []string{
		"Enter A", "Enter B", "Enter C",
		"Exit C", "Exit B", "Exit A",
	}, tr.events)
	assertBalanced(t, tr.events)
}

func TestSendTreeDepthFirst(t *testing.T) {
	runner, err := NewTaskRunner()
	require.NoError(t, err)

	tr := &tracer{}
	tracedEndpoint(runner, "topic_a", "A", tr, sendTo("topic_b"), sendTo("topic_c"))
	tracedEndpoint(runner, "topic_b", "B", tr, sendTo("topic_d"), sendTo("topic_e"))
	tracedEndpoint(runner, "topic_c", "C", tr)
	tracedEndpoint(runner, "topic_d", "D", tr)
	tracedEndpoint(runner, "topic_e", "E", tr)

	runner.Send("topic_a", EmptyMessage())
	require.NoError(t, runner.Run())

	assert.Equal(t, []string{
		"Enter A",
		"Enter B", "Enter D", "Exit D", "Enter E", "Exit E", "Exit B",
		"Enter C", "Exit C",
		"Exit A",
	}, tr.events)
	assertBalanced(t, tr.events)
}

func TestDynamicRegistrationInsideHandler(t *testing.T) {
	runner, err := NewTaskRunner()
	require.NoError(t, err)

	var observed []string
	printSub := NewSubscription("print_topic", "printer", 0, ActorOf(func(msg *Message) {
		text, ok := PayloadAs[string](msg)
		if ok {
			observed = append(observed, text)
		}
	}))

	runner.Registry().Register(NewSubscription("start_topic", "starter", 0,
		Actor(func(msg *Message, yield func(Command) bool) {
			if text, _ := PayloadAs[string](msg); text != "start" {
				return
			}
			if !yield(Register(printSub)) {
				return
			}
			yield(Send("print_topic", NewMessage("hello world")))
		})))

	runner.Send("start_topic", NewMessage("start"))
	require.NoError(t, runner.Run())

	assert.Equal(t, []string{"hello world"}, observed)
}

func TestSharedMessageObservedByWholeChain(t *testing.T) {
	runner, err := NewTaskRunner()
	require.NoError(t, err)

	type payload struct{ value string }
	shared := NewMessage(&payload{value: "shared"})

	var seen []*payload
	runner.Registry().Register(NewSubscription("first", "h1", 0,
		Actor(func(msg *Message, yield func(Command) bool) {
			seen = append(seen, MustPayload[*payload](msg))
			yield(Send("second", msg))
		})))
	runner.Registry().Register(NewSubscription("second", "h2", 0, ActorOf(func(msg *Message) {
		seen = append(seen, MustPayload[*payload](msg))
	})))

	runner.Send("first", shared)
	require.NoError(t, runner.Run())

	require.Len(t, seen, 2)
	assert.Same(t, seen[0], seen[1], "both handlers must observe the same underlying value")
}

func TestRunIsNotReentrant(t *testing.T) {
	runner, err := NewTaskRunner()
	require.NoError(t, err)

	var nested error
	runner.Registry().Register(NewSubscription("topic", "h1", 0, ActorOf(func(*Message) {
		nested = runner.Run()
	})))

	runner.Send("topic", EmptyMessage())
	require.NoError(t, runner.Run())
	assert.ErrorIs(t, nested, ErrRunnerBusy)
}

func TestStackDepthGuard(t *testing.T) {
	cfg := DefaultRunnerConfig()
	cfg.MaxStackDepth = 4
	runner, err := NewTaskRunner(WithConfig(cfg))
	require.NoError(t, err)

	// Endpoint that sends to itself forever.
	runner.Registry().Register(NewSubscription("loop", "h1", 0,
		Actor(func(msg *Message, yield func(Command) bool) {
			yield(Send("loop", msg))
		})))

	runner.Send("loop", EmptyMessage())
	err = runner.Run()
	assert.ErrorIs(t, err, ErrStackDepthLimit)

	runner.Reset()
	assert.Equal(t, 0, runner.Len())
}

func TestHandlerPanicAbortsOnlyThatCoroutine(t *testing.T) {
	runner, err := NewTaskRunner()
	require.NoError(t, err)

	c2 := 0
	runner.Registry().Subscribe(NewSubscription("fanout", "bad", 0, ActorOf(func(msg *Message) {
		// Downcast to a type the payload is not; fatal to this handler only.
		_ = MustPayload[int](msg)
	})))
	runner.Registry().Subscribe(NewSubscription("fanout", "good", 0, ActorOf(func(*Message) {
		c2++
	})))

	runner.Publish("fanout", NewMessage("not an int"))
	require.NoError(t, runner.Run())

	assert.Equal(t, 1, c2, "sibling subscriber must still run")
	assert.Equal(t, uint64(1), runner.Stats().HandlerFailures)
	assert.Equal(t, 0, runner.Len())
}

func TestStepStateMachine(t *testing.T) {
	runner, err := NewTaskRunner()
	require.NoError(t, err)

	entered := false
	runner.Registry().Register(NewSubscription("a", "h1", 0,
		Actor(func(msg *Message, yield func(Command) bool) {
			entered = true
			yield(Send("missing", msg))
		})))

	runner.Send("a", EmptyMessage())
	require.Equal(t, 1, runner.Len())

	// Step 1: resume A, interpret its Send; the target is missing, so the
	// command is dropped and the SendTask stays in place.
	more, err := runner.Step()
	require.NoError(t, err)
	assert.True(t, more)
	assert.True(t, entered)
	assert.Equal(t, 1, runner.Len())

	// Step 2: resume A again; it completes and is popped.
	more, err = runner.Step()
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, 0, runner.Len())

	// Step 3: empty stack.
	more, err = runner.Step()
	require.NoError(t, err)
	assert.False(t, more)
}

func TestDumpStateListsTasksAndRegistry(t *testing.T) {
	runner, err := NewTaskRunner()
	require.NoError(t, err)

	runner.Registry().Register(NewSubscription("alpha", "h1", 0, ActorOf(func(*Message) {})))
	runner.Registry().Subscribe(NewSubscription("beta", "h2", 0, ActorOf(func(*Message) {})))
	runner.Publish("beta", EmptyMessage())

	dump := runner.DumpState()
	assert.Contains(t, dump, "publishTask(pattern=beta")
	assert.Contains(t, dump, "alpha")
	assert.Contains(t, dump, "beta/h2")
}

func TestRunDrainsToEmptyStack(t *testing.T) {
	runner, err := NewTaskRunner()
	require.NoError(t, err)

	tr := &tracer{}
	tracedEndpoint(runner, "topic_a", "A", tr, sendTo("topic_b"))
	tracedEndpoint(runner, "topic_b", "B", tr)
	for i := 0; i < 3; i++ {
		runner.Send("topic_a", EmptyMessage())
	}

	require.NoError(t, runner.Run())
	assert.Equal(t, 0, runner.Len(), "terminated run leaves no orphan tasks")
	assertBalanced(t, tr.events)

	stats := runner.Stats()
	assert.Equal(t, stats.TasksPushed, stats.TasksCompleted)
}
