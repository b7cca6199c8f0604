// Package broadcast defines the port interface for live client notification.
package broadcast

import "context"

// Broadcaster pushes typed events to all connected clients. Delivery is
// best-effort; implementations must not block the caller on slow clients.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
