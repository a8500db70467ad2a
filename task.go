package corobus

import "fmt"

// Task is one unit of scheduler work on the runner's stack: either a running
// handler coroutine (SendTask) or a fan-out cursor (PublishTask).
type Task interface {
	fmt.Stringer
	isTask()
}

// SendTask owns one running coroutine instance together with the shared
// message it is resumed with. The origin string records the topic or pattern
// the task was created for and exists only for diagnostics.
type SendTask struct {
	origin string
	coro   Coroutine
	msg    *Message
}

// NewSendTask builds a task around an already-instantiated coroutine.
func NewSendTask(origin string, coro Coroutine, msg *Message) *SendTask {
	return &SendTask{origin: origin, coro: coro, msg: msg}
}

func (*SendTask) isTask() {}

// Origin returns the topic or pattern the task was created for.
func (t *SendTask) Origin() string {
	return t.origin
}

// Resume advances the coroutine by one yield. live reports whether the
// coroutine is still on the stack after this resume. A panic escaping the
// handler — a failed payload downcast, typically — is contained here and
// returned as an error wrapping ErrHandlerPanic; the coroutine counts as
// completed and must be popped.
func (t *SendTask) Resume() (cmd Command, live bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			cmd = nil
			live = false
			err = fmt.Errorf("%w: topic %q: %v", ErrHandlerPanic, t.origin, r)
		}
	}()
	if t.coro == nil {
		return nil, false, ErrNilCoroutine
	}
	cmd, live = t.coro.Resume(t.msg)
	return cmd, live, nil
}

// Close releases the coroutine if it holds a suspended body. Called when the
// task is abandoned before completion.
func (t *SendTask) Close() {
	if s, ok := t.coro.(stoppable); ok {
		s.Stop()
	}
}

func (t *SendTask) String() string {
	return fmt.Sprintf("sendTask(origin=%s, %s)", t.origin, t.msg)
}

// PublishTask is the fan-out cursor for one Publish. It does not run handlers
// itself; each step it synthesises the SendTask for the next matching
// subscription, which the runner pushes above it. The cursor therefore only
// advances once the previous subscriber's whole subtree has drained.
type PublishTask struct {
	pattern string
	msg     *Message
	idx     int
}

// NewPublishTask builds a fan-out cursor positioned before the first match.
func NewPublishTask(pattern string, msg *Message) *PublishTask {
	return &PublishTask{pattern: pattern, msg: msg}
}

func (*PublishTask) isTask() {}

// Pattern returns the publish pattern the cursor iterates for.
func (t *PublishTask) Pattern() string {
	return t.pattern
}

// Index returns how many matching subscribers have been dispatched so far.
func (t *PublishTask) Index() int {
	return t.idx
}

// NextTask instantiates the SendTask for the idx-th matching subscription and
// advances the cursor. ok is false once the cursor has exhausted the matches.
// The registry is consulted anew on every call, so registrations and removals
// performed by earlier subscribers are visible to the remainder of the
// fan-out.
func (t *PublishTask) NextTask(bus *MessageBus) (*SendTask, bool) {
	matched := bus.Matching(t.pattern)
	if t.idx >= len(matched) {
		return nil, false
	}
	sub := matched[t.idx]
	t.idx++
	return NewSendTask(sub.Topic, sub.Actor(), t.msg), true
}

func (t *PublishTask) String() string {
	return fmt.Sprintf("publishTask(pattern=%s, idx=%d, %s)", t.pattern, t.idx, t.msg)
}
