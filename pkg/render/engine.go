// Package render defines the narrow contract the coordination layer
// consumes from the external rendering engine: bind/unbind display
// surfaces, read and write camera and display properties, trigger
// renders, and subscribe to change notifications. Pixel decode and GPU
// drawing live entirely behind this contract.
package render

import (
	"context"
	"errors"

	"github.com/vistagrid/vistagrid/internal/domain/entity"
)

// ErrUnknownViewport is returned when an operation references a
// viewport the engine has no binding for.
var ErrUnknownViewport = errors.New("render: unknown viewport")

// ErrUnknownHandle is returned when a handle does not resolve to a
// live binding.
var ErrUnknownHandle = errors.New("render: unknown handle")

// EventKind discriminates change notifications emitted by the engine.
type EventKind int

const (
	// EventCameraModified fires after a camera write takes effect.
	EventCameraModified EventKind = iota
	// EventVOIModified fires after a window/level write takes effect.
	EventVOIModified
)

// Event is a change notification for one viewport.
type Event struct {
	Viewport   entity.ViewportID
	Kind       EventKind
	Camera     entity.Camera
	Properties entity.DisplayProperties
}

// Listener receives change notifications.
type Listener func(Event)

// Subscription is an explicit handle to an attached listener. Cancel
// releases it deterministically; cancelling twice is a no-op.
type Subscription struct {
	cancel func()
}

// NewSubscription wraps a release function into a handle.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Cancel detaches the listener.
func (s *Subscription) Cancel() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
}

// Options carries renderer-specific binding options.
type Options struct {
	Background     [3]float64
	SuppressEvents bool
}

// Engine is the rendering collaborator contract.
type Engine interface {
	// Bind attaches a display surface and returns an opaque handle.
	// The surface must have a measurable extent.
	Bind(ctx context.Context, id entity.ViewportID, surface entity.SurfaceRef, kind entity.ViewportKind, opts Options) (entity.RendererHandle, error)
	// Unbind releases the viewport's binding and its listeners.
	Unbind(ctx context.Context, id entity.ViewportID) error
	// Handle resolves a viewport ID to its live handle.
	Handle(id entity.ViewportID) (entity.RendererHandle, bool)

	Camera(h entity.RendererHandle) (entity.Camera, error)
	SetCamera(h entity.RendererHandle, cam entity.Camera) error
	Properties(h entity.RendererHandle) (entity.DisplayProperties, error)
	SetProperties(h entity.RendererHandle, props entity.DisplayProperties) error

	// Render draws one viewport.
	Render(h entity.RendererHandle) error
	// RenderAll draws every bound viewport.
	RenderAll() error

	// Subscribe attaches a change listener for one viewport and kind.
	Subscribe(id entity.ViewportID, kind EventKind, fn Listener) (*Subscription, error)
}

// CacheReclaimer is optionally implemented by engines that can purge
// internal caches on request. Cleanup asserts for it best-effort.
type CacheReclaimer interface {
	PurgeCaches() int
}
