package corobus

import "iter"

// Coroutine is one suspendable handler instance. Each call to Resume advances
// the handler to its next yield point. The message reference passed in is the
// same shared value on every resume of a given instance.
//
// Resume returns the yielded command and true while the handler is live, or a
// nil command and false once the handler has completed. Resuming a completed
// coroutine returns (nil, false) again.
type Coroutine interface {
	Resume(msg *Message) (Command, bool)
}

// ActorFn is a handler factory. Every invocation must produce a fresh
// coroutine instance; instances are single-use and are never restarted.
type ActorFn func() Coroutine

// HandlerBody is the generator-style authoring surface for handlers. The body
// receives the shared message and a yield function; each yield(cmd) suspends
// the handler until the bus has fully processed the command and everything it
// spawned. The body returning ends the coroutine.
//
// yield reports false if the coroutine was abandoned by the runner, in which
// case the body should return promptly.
type HandlerBody func(msg *Message, yield func(Command) bool)

// Actor adapts a generator-style body into an ActorFn. The body does not run
// until the first Resume, which also binds the message reference.
func Actor(body HandlerBody) ActorFn {
	return func() Coroutine {
		return &generatorCoroutine{body: body}
	}
}

// ActorOf builds an ActorFn for a handler that consumes its message without
// yielding any commands. Covers the common leaf-handler case.
func ActorOf(fn func(msg *Message)) ActorFn {
	return Actor(func(msg *Message, _ func(Command) bool) {
		fn(msg)
	})
}

// generatorCoroutine drives a HandlerBody through iter.Pull, giving the body
// true suspend/resume semantics without an extra OS thread. The pull pair is
// created lazily so the body observes the message of its first resume.
type generatorCoroutine struct {
	body HandlerBody
	next func() (Command, bool)
	stop func()
	done bool
}

func (g *generatorCoroutine) Resume(msg *Message) (Command, bool) {
	if g.done {
		return nil, false
	}
	if g.next == nil {
		seq := iter.Seq[Command](func(yield func(Command) bool) {
			g.body(msg, yield)
		})
		g.next, g.stop = iter.Pull(seq)
	}
	cmd, ok := g.next()
	if !ok {
		g.done = true
	}
	return cmd, ok
}

// Stop abandons the coroutine, releasing the suspended body. Idempotent.
func (g *generatorCoroutine) Stop() {
	if g.done {
		return
	}
	g.done = true
	if g.stop != nil {
		g.stop()
	}
}

// stoppable is implemented by coroutines that hold resources across suspend
// points and want to be released when their task is abandoned.
type stoppable interface {
	Stop()
}
