// Package corobus provides a single-threaded, coroutine-driven message bus
// for actor-style runtimes. Handlers are suspendable routines: on each
// resumption a handler consumes its message and may yield a command back to
// the bus (send, publish, register, deregister, subscribe, unsubscribe). The
// task runner interprets yielded commands by scheduling further work on an
// explicit LIFO task stack, which gives deterministic, depth-first causal
// ordering between a sender and its recipients: a callee's whole handler
// subtree completes before the caller resumes.
//
// A minimal embedding:
//
//	runner, _ := corobus.NewTaskRunner()
//	runner.Registry().Register(corobus.NewSubscription("greeter", "h1", 0,
//		corobus.ActorOf(func(msg *corobus.Message) {
//			name, _ := corobus.PayloadAs[string](msg)
//			fmt.Println("hello,", name)
//		})))
//	runner.Send("greeter", corobus.NewMessage("world"))
//	_ = runner.Run()
//
// Handlers that talk back to the bus yield commands:
//
//	corobus.Actor(func(msg *corobus.Message, yield func(corobus.Command) bool) {
//		yield(corobus.Send("audit", msg))
//		yield(corobus.Publish("order.", msg))
//	})
//
// Each yield suspends the handler until the command and everything it
// spawned has been fully processed.
//
// The bus has no wire protocol and no I/O of its own; delivery is
// single-process, best-effort, and unserialized. Sends to topics without an
// endpoint are silently dropped, fan-outs with zero matching subscribers
// silently complete, and colliding registrations replace (last writer wins).
package corobus
