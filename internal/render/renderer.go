// Package render turns a RenderRequest into response bytes. The external process
// renderer produces images; the delegated renderer returns the series as JSON for
// the client to draw.
package render

import (
	"context"

	"github.com/kjstillabower/weather-viz-service/internal/models"
)

// Result is a complete rendered payload. Body is never partial.
type Result struct {
	ContentType string
	Body        []byte
}

// Renderer produces a Result for a request. Implementations must be safe for concurrent use.
type Renderer interface {
	Render(ctx context.Context, req models.RenderRequest) (Result, error)
}

const (
	rendererExternal  = "external"
	rendererDelegated = "delegated"
)
