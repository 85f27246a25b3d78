package bus

import "time"

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// EventBus is an in-process pub/sub bus used to push simulation results to
// whoever owns rendering or relaying.
//
// Delivery is synchronous in the publisher goroutine and follows
// subscription order. Handler errors are joined and returned from Publish;
// they never stop delivery to the remaining handlers. All methods are safe
// for concurrent use.
type EventBus interface {
	// Publish delivers the event to every active subscriber of event.Type()
	// and to wildcard subscribers.
	Publish(event Event) error
	// PublishAsync publishes in a separate goroutine. The returned channel
	// receives the joined error (or nil) and is then closed.
	PublishAsync(event Event) <-chan error
	// Subscribe registers a handler for eventType, or for all types when
	// eventType is Wildcard.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels sub. A nil sub is ignored.
	Unsubscribe(sub Subscription) error

	// AddObserver registers an observer notified after each delivery.
	AddObserver(obs EventBusObserver)
	// RemoveObserver unregisters obs.
	RemoveObserver(obs EventBusObserver)
	// GetMetrics returns a snapshot of the delivery counters.
	GetMetrics() EventBusMetrics
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
	Metadata() map[string]any
}

type (
	// EventHandler is invoked per delivered event.
	EventHandler func(event Event) error
)

// Subscription is a registered handler.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// EventBusObserver is notified about deliveries. Observers should return
// quickly.
type EventBusObserver interface {
	OnDelivered(eventType string, handlers int, err error, duration time.Duration)
}

// EventBusMetrics holds delivery counters.
type EventBusMetrics struct {
	Published         uint64 `json:"published"`
	DeliveredHandlers uint64 `json:"delivered_handlers"`
	Errors            uint64 `json:"errors"`
	SubscribersActive uint64 `json:"subscribers_active"`
}
