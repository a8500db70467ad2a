package corobus

import "errors"

var (
	// Runner state errors
	ErrRunnerBusy      = errors.New("task runner is already running")
	ErrStackDepthLimit = errors.New("task stack depth limit exceeded")
	ErrHandlerPanic    = errors.New("handler coroutine panicked")
	ErrNilCoroutine    = errors.New("actor factory returned a nil coroutine")

	// Subscription errors
	ErrActorFnNil = errors.New("subscription actor factory cannot be nil")
	ErrTopicEmpty = errors.New("topic cannot be empty")

	// Configuration errors
	ErrInvalidMatchMode     = errors.New("invalid match mode")
	ErrInvalidStackDepth    = errors.New("max stack depth cannot be negative")
	ErrUnsupportedConfigExt = errors.New("unsupported config file extension")
)
