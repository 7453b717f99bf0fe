// Package syncengine groups viewports into named sync groups and
// propagates camera and window/level changes from a source viewport to
// every other member.
package syncengine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vistagrid/vistagrid/internal/domain/entity"
	"github.com/vistagrid/vistagrid/internal/logging"
	"github.com/vistagrid/vistagrid/internal/registry"
	"github.com/vistagrid/vistagrid/pkg/render"
)

var (
	// ErrDuplicateGroup reports creation of a group ID that exists.
	ErrDuplicateGroup = errors.New("syncengine: sync group already exists")
	// ErrUnknownGroup reports an operation on a missing group.
	ErrUnknownGroup = errors.New("syncengine: unknown sync group")
	// ErrUnknownViewport reports a member that is not in the registry.
	ErrUnknownViewport = errors.New("syncengine: unknown viewport")
	// ErrAlreadyMember reports adding a viewport twice to one group.
	ErrAlreadyMember = errors.New("syncengine: viewport already in group")
	// ErrNoValidTypes reports a group created without any known type.
	ErrNoValidTypes = errors.New("syncengine: no valid sync types")
)

// Payload carries the changed attribute for one propagation pass. The
// field matching the sync type must be set; the rest are ignored.
type Payload struct {
	Camera         *entity.Camera
	VOI            *entity.VOIRange
	Rotation       *float64
	FlipHorizontal *bool
	FlipVertical   *bool
}

// Engine owns the sync group map and the propagation algorithm.
type Engine struct {
	mu       sync.Mutex
	reg      *registry.Registry
	renderer render.Engine
	groups   map[string]*entity.SyncGroup
	order    []string
	// subs holds the listener handles attached for each group member,
	// released deterministically on removal.
	subs map[string]map[entity.ViewportID][]*render.Subscription

	// propagating is the reentrancy guard: a propagation pass caused
	// by applying a patch to a member must not start a second pass.
	// Nested attempts are dropped, never queued.
	propagating atomic.Bool

	logger zerolog.Logger
}

// New creates an engine over the given registry and renderer.
func New(ctx context.Context, reg *registry.Registry, renderer render.Engine) *Engine {
	return &Engine{
		reg:      reg,
		renderer: renderer,
		groups:   make(map[string]*entity.SyncGroup),
		subs:     make(map[string]map[entity.ViewportID][]*render.Subscription),
		logger:   logging.FromContext(ctx).With().Str("component", "sync-engine").Logger(),
	}
}

// CreateSyncGroup registers a new group. Unknown sync types are
// discarded with a warning; at least one valid type is required.
func (e *Engine) CreateSyncGroup(ctx context.Context, id string, types []entity.SyncType) (*entity.SyncGroup, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.groups[id]; ok {
		return nil, ErrDuplicateGroup
	}

	var valid []entity.SyncType
	for _, t := range types {
		if !t.Valid() {
			e.logger.Warn().Str("group_id", id).Str("sync_type", string(t)).Msg("discarding unknown sync type")
			continue
		}
		valid = append(valid, t)
	}
	if len(valid) == 0 {
		return nil, ErrNoValidTypes
	}

	g := entity.NewSyncGroup(id, valid)
	e.groups[id] = g
	e.order = append(e.order, id)
	e.subs[id] = make(map[entity.ViewportID][]*render.Subscription)

	logging.FromContext(ctx).Info().Str("group_id", id).Interface("types", g.TypeList()).Msg("sync group created")
	clone := g.Clone()
	return &clone, nil
}

// AddViewport subscribes a registry viewport into the group's
// propagation channel.
func (e *Engine) AddViewport(ctx context.Context, groupID string, id entity.ViewportID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.groups[groupID]
	if !ok {
		return ErrUnknownGroup
	}
	if !e.reg.Has(id) {
		return ErrUnknownViewport
	}
	if g.HasMember(id) {
		return ErrAlreadyMember
	}

	g.AddMember(id)
	e.attachLocked(ctx, g, id)
	logging.FromContext(ctx).Debug().Str("group_id", groupID).Str("viewport_id", string(id)).Msg("viewport added to sync group")
	return nil
}

// RemoveViewport detaches a member and releases its listeners.
func (e *Engine) RemoveViewport(ctx context.Context, groupID string, id entity.ViewportID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.groups[groupID]
	if !ok {
		return ErrUnknownGroup
	}
	if !g.RemoveMember(id) {
		return ErrUnknownViewport
	}
	e.detachLocked(groupID, id)
	logging.FromContext(ctx).Debug().Str("group_id", groupID).Str("viewport_id", string(id)).Msg("viewport removed from sync group")
	return nil
}

// RemoveGroup deletes a group and releases every member listener.
func (e *Engine) RemoveGroup(ctx context.Context, groupID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.groups[groupID]
	if !ok {
		return ErrUnknownGroup
	}
	for _, m := range append([]entity.ViewportID(nil), g.Members...) {
		e.detachLocked(groupID, m)
	}
	e.deleteGroupLocked(groupID)
	logging.FromContext(ctx).Info().Str("group_id", groupID).Msg("sync group removed")
	return nil
}

// EnableGroup re-activates propagation for the group.
func (e *Engine) EnableGroup(groupID string) bool {
	return e.setActive(groupID, true)
}

// DisableGroup pauses propagation without dropping membership.
func (e *Engine) DisableGroup(groupID string) bool {
	return e.setActive(groupID, false)
}

func (e *Engine) setActive(groupID string, active bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.groups[groupID]
	if !ok {
		return false
	}
	g.Active = active
	return true
}

// AddSyncTypes extends the group's type set and re-attaches all member
// listeners to reflect it.
func (e *Engine) AddSyncTypes(ctx context.Context, groupID string, types []entity.SyncType) error {
	return e.mutateTypes(ctx, groupID, types, true)
}

// RemoveSyncTypes shrinks the group's type set and re-attaches all
// member listeners to reflect it.
func (e *Engine) RemoveSyncTypes(ctx context.Context, groupID string, types []entity.SyncType) error {
	return e.mutateTypes(ctx, groupID, types, false)
}

func (e *Engine) mutateTypes(ctx context.Context, groupID string, types []entity.SyncType, add bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.groups[groupID]
	if !ok {
		return ErrUnknownGroup
	}
	for _, t := range types {
		if !t.Valid() {
			e.logger.Warn().Str("group_id", groupID).Str("sync_type", string(t)).Msg("ignoring unknown sync type")
			continue
		}
		if add {
			g.Types[t] = true
		} else {
			delete(g.Types, t)
		}
	}

	for _, m := range g.Members {
		e.detachLocked(groupID, m)
		e.attachLocked(ctx, g, m)
	}
	return nil
}

// Groups returns a snapshot of every group in creation order.
func (e *Engine) Groups() []entity.SyncGroup {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]entity.SyncGroup, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.groups[id].Clone())
	}
	return out
}

// Group returns a snapshot of one group.
func (e *Engine) Group(groupID string) (entity.SyncGroup, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.groups[groupID]
	if !ok {
		return entity.SyncGroup{}, false
	}
	return g.Clone(), true
}

// SubscriptionCount reports the number of live listener handles.
func (e *Engine) SubscriptionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, byMember := range e.subs {
		for _, list := range byMember {
			n += len(list)
		}
	}
	return n
}

// attachLocked subscribes change listeners for one member according to
// the group's enabled types. Caller holds e.mu.
func (e *Engine) attachLocked(ctx context.Context, g *entity.SyncGroup, id entity.ViewportID) {
	groupID := g.ID

	wantCamera := false
	for t := range g.Types {
		if t.CameraScoped() {
			wantCamera = true
			break
		}
	}

	if wantCamera {
		sub, err := e.renderer.Subscribe(id, render.EventCameraModified, func(ev render.Event) {
			e.onCameraModified(ctx, groupID, ev)
		})
		if err != nil {
			e.logger.Warn().Err(err).Str("group_id", groupID).Str("viewport_id", string(id)).Msg("camera subscription failed")
		} else {
			e.subs[groupID][id] = append(e.subs[groupID][id], sub)
		}
	}
	if g.HasType(entity.SyncWindowLevel) {
		sub, err := e.renderer.Subscribe(id, render.EventVOIModified, func(ev render.Event) {
			e.onVOIModified(ctx, ev)
		})
		if err != nil {
			e.logger.Warn().Err(err).Str("group_id", groupID).Str("viewport_id", string(id)).Msg("voi subscription failed")
		} else {
			e.subs[groupID][id] = append(e.subs[groupID][id], sub)
		}
	}
}

// detachLocked cancels every listener handle held for the member.
// Caller holds e.mu. Returns the number of handles released.
func (e *Engine) detachLocked(groupID string, id entity.ViewportID) int {
	byMember, ok := e.subs[groupID]
	if !ok {
		return 0
	}
	list := byMember[id]
	for _, sub := range list {
		sub.Cancel()
	}
	delete(byMember, id)
	return len(list)
}

func (e *Engine) deleteGroupLocked(groupID string) {
	delete(e.groups, groupID)
	delete(e.subs, groupID)
	for i, id := range e.order {
		if id == groupID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// onCameraModified translates a camera change notification into one
// propagation pass per type enabled in the originating group.
func (e *Engine) onCameraModified(ctx context.Context, groupID string, ev render.Event) {
	e.mu.Lock()
	g, ok := e.groups[groupID]
	if !ok || !g.Active {
		e.mu.Unlock()
		return
	}
	types := g.TypeList()
	e.mu.Unlock()

	rotation := ev.Properties.Rotation
	flipH := ev.Properties.FlipHorizontal
	flipV := ev.Properties.FlipVertical
	payload := Payload{
		Camera:         &ev.Camera,
		Rotation:       &rotation,
		FlipHorizontal: &flipH,
		FlipVertical:   &flipV,
	}

	// Full-camera sync subsumes the partial camera types.
	for _, t := range types {
		if t == entity.SyncCamera {
			e.Synchronize(ctx, ev.Viewport, entity.SyncCamera, payload)
			return
		}
	}
	for _, t := range types {
		if t.CameraScoped() {
			e.Synchronize(ctx, ev.Viewport, t, payload)
		}
	}
}

func (e *Engine) onVOIModified(ctx context.Context, ev render.Event) {
	if ev.Properties.VOI == nil {
		return
	}
	voi := *ev.Properties.VOI
	e.Synchronize(ctx, ev.Viewport, entity.SyncWindowLevel, Payload{VOI: &voi})
}
