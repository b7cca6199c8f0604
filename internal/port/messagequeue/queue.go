// Package messagequeue defines the port interface for durable event fan-out.
package messagequeue

import "context"

// Handler processes one message. Returning an error causes redelivery.
type Handler func(subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to recorded
// event notifications.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject and
	// returns a stop function.
	Subscribe(ctx context.Context, subject string, handler Handler) (func(), error)

	// Close shuts down the connection.
	Close() error
}
