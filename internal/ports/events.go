package ports

import "context"

const (
	// EventRunStarted is emitted once a run has been configured.
	EventRunStarted = "run.started"
	// EventRunCompleted is emitted after every process has been visited.
	EventRunCompleted = "run.completed"
	// EventProcessStarted is emitted before the first step of a process.
	EventProcessStarted = "process.started"
	// EventProcessCompleted is emitted after the last evaluated step of a process.
	EventProcessCompleted = "process.completed"
	// EventProcessFailed is emitted when a process cannot be loaded or set up.
	EventProcessFailed = "process.failed"
	// EventStepStarted is emitted before a step's screens are acquired.
	EventStepStarted = "step.started"
	// EventStepCompleted is emitted once a step's row has been written.
	EventStepCompleted = "step.completed"
	// EventStepSkipped is emitted when a step produced no row.
	EventStepSkipped = "step.skipped"
	// EventRecoveryStarted is emitted when recovery is entered for a step.
	EventRecoveryStarted = "recovery.started"
	// EventRecoveryAttempt is emitted after each recovery attempt.
	EventRecoveryAttempt = "recovery.attempt"
	// EventRecoveryFinished is emitted when recovery reaches a terminal state.
	EventRecoveryFinished = "recovery.finished"
	// EventScreenEvaluated is emitted for each screen-pair evaluation.
	EventScreenEvaluated = "screen.evaluated"
)

// DomainEvent represents a significant occurrence within the domain or
// application layer. Events carry structured payloads that downstream
// subscribers can use for logging or progress display.
type DomainEvent interface {
	EventType() string
	Payload() interface{}
}

// EventPublisher distributes events to interested subscribers. Dispatch is
// synchronous: Publish blocks until all handlers run. Implementations must be
// thread-safe.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
}

// EventHandler processes an event of a specific type. Failures should be
// returned so publishers can log diagnostics and continue delivering to
// remaining subscribers.
type EventHandler func(context.Context, DomainEvent) error

// Subscription represents a registered handler. Callers must invoke
// Unsubscribe to stop receiving events.
type Subscription interface {
	Unsubscribe()
}
