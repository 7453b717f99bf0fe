// Package registry owns the authoritative mapping from viewport ID to
// renderer binding and activation state. It is a leaf component: the
// layout controller, sync engine, and cleanup manager all resolve
// viewports through it.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vistagrid/vistagrid/internal/domain/entity"
	"github.com/vistagrid/vistagrid/internal/logging"
	"github.com/vistagrid/vistagrid/pkg/render"
)

// ErrDuplicateViewport reports a create for an ID that already exists.
// Create recovers from it internally by returning the existing entry;
// it is exported for callers that need to distinguish the case.
var ErrDuplicateViewport = errors.New("registry: duplicate viewport id")

// fallbackExtent is applied to zero-area surfaces before binding. The
// renderer cannot bind a surface with no measurable extent.
const fallbackExtent = 512.0

// Registry tracks live viewports in insertion order. Exactly one
// viewport is active whenever the registry is non-empty.
type Registry struct {
	mu        sync.Mutex
	engine    render.Engine
	order     []entity.ViewportID
	viewports map[entity.ViewportID]*entity.Viewport
	activeID  entity.ViewportID
	logger    zerolog.Logger
}

// New creates an empty registry bound to the given render engine.
func New(ctx context.Context, engine render.Engine) *Registry {
	return &Registry{
		engine:    engine,
		viewports: make(map[entity.ViewportID]*entity.Viewport),
		logger:    logging.FromContext(ctx).With().Str("component", "viewport-registry").Logger(),
	}
}

// Create binds a new viewport. Creating an ID that already exists is
// idempotent: the existing viewport is returned so re-entrant callers
// tolerate double creation.
func (r *Registry) Create(ctx context.Context, id entity.ViewportID, surface entity.SurfaceRef, kind entity.ViewportKind, opts render.Options) (*entity.Viewport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.viewports[id]; ok {
		r.logger.Debug().Str("viewport_id", string(id)).Msg("create called for existing viewport, returning it")
		return existing, nil
	}

	if !surface.HasExtent() {
		r.logger.Warn().
			Str("viewport_id", string(id)).
			Float64("width", surface.Width).
			Float64("height", surface.Height).
			Msg("surface has zero extent, applying minimum-size fallback")
		surface.Width = fallbackExtent
		surface.Height = fallbackExtent
	}

	handle, err := r.engine.Bind(ctx, id, surface, kind, opts)
	if err != nil {
		return nil, err
	}

	vp := &entity.Viewport{
		ID:        id,
		Binding:   handle,
		Surface:   surface,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	r.viewports[id] = vp
	r.order = append(r.order, id)

	// Keep the single-active invariant for a non-empty registry.
	if r.activeID == "" {
		vp.Active = true
		r.activeID = id
	}

	r.logger.Debug().Str("viewport_id", string(id)).Uint64("handle", uint64(handle)).Msg("viewport created")
	return vp, nil
}

// Remove unbinds and deletes the viewport. If the removed viewport was
// active, the first remaining viewport in registry order is promoted.
// Returns false for an unknown ID. An unbind failure is reported but
// never leaks a registry entry: the viewport is gone either way.
func (r *Registry) Remove(ctx context.Context, id entity.ViewportID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	vp, ok := r.viewports[id]
	if !ok {
		return false, nil
	}

	var unbindErr error
	if err := r.engine.Unbind(ctx, id); err != nil {
		r.logger.Warn().Err(err).Str("viewport_id", string(id)).Msg("renderer unbind failed during removal")
		unbindErr = fmt.Errorf("unbind %s: %w", id, err)
	}

	delete(r.viewports, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if vp.Active {
		r.activeID = ""
		if len(r.order) > 0 {
			next := r.order[0]
			r.viewports[next].Active = true
			r.activeID = next
			r.logger.Debug().Str("viewport_id", string(next)).Msg("promoted viewport to active")
		}
	}

	r.logger.Debug().Str("viewport_id", string(id)).Msg("viewport removed")
	return true, unbindErr
}

// SetActive activates the viewport and deactivates every other one.
// Returns false for an unknown ID.
func (r *Registry) SetActive(id entity.ViewportID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	vp, ok := r.viewports[id]
	if !ok {
		r.logger.Debug().Str("viewport_id", string(id)).Msg("setActive ignored for unknown viewport")
		return false
	}

	for _, other := range r.viewports {
		other.Active = false
	}
	vp.Active = true
	r.activeID = id
	return true
}

// Get returns a copy of the viewport, if present.
func (r *Registry) Get(id entity.ViewportID) (entity.Viewport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vp, ok := r.viewports[id]
	if !ok {
		return entity.Viewport{}, false
	}
	return *vp, true
}

// Has reports whether the viewport exists.
func (r *Registry) Has(id entity.ViewportID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.viewports[id]
	return ok
}

// AllIDs returns the viewport IDs in insertion order.
func (r *Registry) AllIDs() []entity.ViewportID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.ViewportID(nil), r.order...)
}

// Count returns the number of registered viewports.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.viewports)
}

// ActiveID returns the active viewport's ID, or "" when empty.
func (r *Registry) ActiveID() entity.ViewportID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID
}

// RenderAll renders every registered viewport. Renderer errors are
// logged and swallowed: one failed viewport must not block the others.
func (r *Registry) RenderAll(ctx context.Context) {
	r.mu.Lock()
	handles := make(map[entity.ViewportID]entity.RendererHandle, len(r.order))
	ids := append([]entity.ViewportID(nil), r.order...)
	for _, id := range ids {
		handles[id] = r.viewports[id].Binding
	}
	r.mu.Unlock()

	log := logging.FromContext(ctx)
	for _, id := range ids {
		if err := r.engine.Render(handles[id]); err != nil {
			log.Warn().Err(err).Str("viewport_id", string(id)).Msg("render failed, continuing with remaining viewports")
		}
	}
}
