package http

import "github.com/reverbhq/reverb/internal/service"

// maxBodyBytes limits JSON request bodies. Event payloads carry prompts and
// responses, so the limit is generous.
const maxBodyBytes = 4 << 20

// Handlers bundles the services exposed over the REST API.
type Handlers struct {
	Events *service.EventService
	Replay *service.ReplayService
}

// NewHandlers creates the handler set for route mounting.
func NewHandlers(events *service.EventService, replay *service.ReplayService) *Handlers {
	return &Handlers{Events: events, Replay: replay}
}
