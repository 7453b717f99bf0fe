package entity

import "time"

// ViewportID uniquely identifies a viewport.
type ViewportID string

// RendererHandle is the opaque binding returned by the rendering
// engine when a viewport is bound. Zero means "not bound".
type RendererHandle uint64

// ViewportKind selects the renderer pipeline a viewport binds to.
type ViewportKind string

const (
	KindStack  ViewportKind = "stack"
	KindVolume ViewportKind = "volume"
)

// SurfaceRef references the display region a viewport draws into.
// The coordination layer never interprets it beyond its extent.
type SurfaceRef struct {
	ID     string
	Width  float64
	Height float64
}

// HasExtent reports whether the surface has a measurable area.
// The renderer cannot bind to a zero-area surface.
func (s SurfaceRef) HasExtent() bool {
	return s.Width > 0 && s.Height > 0
}

// Viewport represents one bound display region showing a single image
// stream. At most one viewport is active at a time.
type Viewport struct {
	ID        ViewportID
	Binding   RendererHandle
	Surface   SurfaceRef
	Kind      ViewportKind
	Active    bool
	CreatedAt time.Time
}
