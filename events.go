package corobus

// Event type constants for runner events.
// Following CloudEvents specification reverse domain notation.
const (
	// Message events
	EventTypeMessageSent    = "com.gocodealone.corobus.message.sent"
	EventTypeMessageDropped = "com.gocodealone.corobus.message.dropped"

	// Task events
	EventTypeTaskPushed    = "com.gocodealone.corobus.task.pushed"
	EventTypeTaskCompleted = "com.gocodealone.corobus.task.completed"

	// Registry events
	EventTypeEndpointRegistered   = "com.gocodealone.corobus.endpoint.registered"
	EventTypeEndpointDeregistered = "com.gocodealone.corobus.endpoint.deregistered"
	EventTypeSubscriptionCreated  = "com.gocodealone.corobus.subscription.created"
	EventTypeSubscriptionRemoved  = "com.gocodealone.corobus.subscription.removed"

	// Handler events
	EventTypeHandlerFailed = "com.gocodealone.corobus.handler.failed"

	// Runner lifecycle events
	EventTypeRunStarted  = "com.gocodealone.corobus.run.started"
	EventTypeRunFinished = "com.gocodealone.corobus.run.finished"
)

// eventSource is the CloudEvents source attribute for all runner events.
const eventSource = "corobus"
