package interfaces

// Subscription is a live push-channel topic. The stream ends when the
// subscription is torn down; Unsubscribe is idempotent and cancels any
// pending reconnect so no further sockets are opened for this topic.
type Subscription[T any] struct {
	Stream      chan T
	Unsubscribe func()
	Topic       string
}
