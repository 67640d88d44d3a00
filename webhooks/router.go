package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

const (
	SurfaceCRM     = "crm"
	SurfaceGateway = "gateway"
)

type Handler interface {
	Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

// Router dispatches a delivery to the handler for its surface.
type Router struct {
	handlers map[string]Handler
}

func NewRouter(service *core.Service, logger core.Logger) *Router {
	return &Router{
		handlers: map[string]Handler{
			SurfaceCRM:     NewCRMHandler(service, logger),
			SurfaceGateway: NewGatewayHandler(service, logger),
		},
	}
}

// Register adds or replaces the handler for a surface.
func (r *Router) Register(surface string, handler Handler) {
	if r == nil || handler == nil {
		return
	}
	surface = strings.ToLower(strings.TrimSpace(surface))
	if surface == "" {
		return
	}
	if r.handlers == nil {
		r.handlers = map[string]Handler{}
	}
	r.handlers[surface] = handler
}

func (r *Router) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if r == nil || len(r.handlers) == 0 {
		return core.InboundResult{}, fmt.Errorf("webhooks: router has no handlers")
	}
	surface := strings.ToLower(strings.TrimSpace(req.Surface))
	handler, ok := r.handlers[surface]
	if !ok {
		return core.InboundResult{
			Accepted:   false,
			StatusCode: http.StatusNotFound,
			Metadata:   map[string]any{"surface": surface},
		}, fmt.Errorf("webhooks: no handler for surface %q", surface)
	}
	return handler.Handle(ctx, req)
}

var (
	_ Handler = (*CRMHandler)(nil)
	_ Handler = (*GatewayHandler)(nil)
)
