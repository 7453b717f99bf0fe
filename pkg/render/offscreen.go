package render

import (
	"context"
	"sync"

	"github.com/vistagrid/vistagrid/internal/domain/entity"
)

type offscreenViewport struct {
	id        entity.ViewportID
	handle    entity.RendererHandle
	surface   entity.SurfaceRef
	kind      entity.ViewportKind
	opts      Options
	camera    entity.Camera
	props     entity.DisplayProperties
	renders   int
	listeners map[int]offscreenListener
}

type offscreenListener struct {
	kind EventKind
	fn   Listener
}

// Offscreen is an in-memory Engine used by tests and the demo CLI. It
// models the parts of a real renderer the coordination layer interacts
// with: opaque handles, camera and VOI state, synchronous change
// notifications, and injectable per-viewport failures.
type Offscreen struct {
	mu         sync.Mutex
	nextHandle entity.RendererHandle
	nextSub    int
	byID       map[entity.ViewportID]*offscreenViewport
	byHandle   map[entity.RendererHandle]*offscreenViewport
	bindErr    map[entity.ViewportID]error
	unbindErr  map[entity.ViewportID]error
	renderErr  map[entity.ViewportID]error
	cameraErr  map[entity.ViewportID]error
	purges     int
}

var _ Engine = (*Offscreen)(nil)
var _ CacheReclaimer = (*Offscreen)(nil)

// NewOffscreen creates an empty offscreen engine.
func NewOffscreen() *Offscreen {
	return &Offscreen{
		byID:      make(map[entity.ViewportID]*offscreenViewport),
		byHandle:  make(map[entity.RendererHandle]*offscreenViewport),
		bindErr:   make(map[entity.ViewportID]error),
		unbindErr: make(map[entity.ViewportID]error),
		renderErr: make(map[entity.ViewportID]error),
		cameraErr: make(map[entity.ViewportID]error),
	}
}

// FailBind makes the next Bind calls for id return err (nil clears).
func (o *Offscreen) FailBind(id entity.ViewportID, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setOrClear(o.bindErr, id, err)
}

// FailUnbind makes Unbind calls for id return err (nil clears). A
// failed unbind keeps the binding alive.
func (o *Offscreen) FailUnbind(id entity.ViewportID, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setOrClear(o.unbindErr, id, err)
}

// FailRender makes Render calls for id return err (nil clears).
func (o *Offscreen) FailRender(id entity.ViewportID, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setOrClear(o.renderErr, id, err)
}

// FailCamera makes camera reads and writes for id return err.
func (o *Offscreen) FailCamera(id entity.ViewportID, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setOrClear(o.cameraErr, id, err)
}

func (o *Offscreen) setOrClear(m map[entity.ViewportID]error, id entity.ViewportID, err error) {
	if err == nil {
		delete(m, id)
		return
	}
	m[id] = err
}

// Bind implements Engine.
func (o *Offscreen) Bind(_ context.Context, id entity.ViewportID, surface entity.SurfaceRef, kind entity.ViewportKind, opts Options) (entity.RendererHandle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.bindErr[id]; err != nil {
		return 0, err
	}
	if vp, ok := o.byID[id]; ok {
		return vp.handle, nil
	}

	o.nextHandle++
	vp := &offscreenViewport{
		id:      id,
		handle:  o.nextHandle,
		surface: surface,
		kind:    kind,
		opts:    opts,
		camera: entity.Camera{
			ViewUp:        entity.Vec3{0, 1, 0},
			ParallelScale: 1,
			Zoom:          1,
		},
		listeners: make(map[int]offscreenListener),
	}
	o.byID[id] = vp
	o.byHandle[vp.handle] = vp
	return vp.handle, nil
}

// Unbind implements Engine.
func (o *Offscreen) Unbind(_ context.Context, id entity.ViewportID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	vp, ok := o.byID[id]
	if !ok {
		return ErrUnknownViewport
	}
	if err := o.unbindErr[id]; err != nil {
		return err
	}
	delete(o.byID, id)
	delete(o.byHandle, vp.handle)
	return nil
}

// Handle implements Engine.
func (o *Offscreen) Handle(id entity.ViewportID) (entity.RendererHandle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	vp, ok := o.byID[id]
	if !ok {
		return 0, false
	}
	return vp.handle, true
}

// Camera implements Engine.
func (o *Offscreen) Camera(h entity.RendererHandle) (entity.Camera, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	vp, ok := o.byHandle[h]
	if !ok {
		return entity.Camera{}, ErrUnknownHandle
	}
	if err := o.cameraErr[vp.id]; err != nil {
		return entity.Camera{}, err
	}
	return vp.camera, nil
}

// SetCamera implements Engine. Listeners fire synchronously after the
// write, outside the engine lock.
func (o *Offscreen) SetCamera(h entity.RendererHandle, cam entity.Camera) error {
	o.mu.Lock()
	vp, ok := o.byHandle[h]
	if !ok {
		o.mu.Unlock()
		return ErrUnknownHandle
	}
	if err := o.cameraErr[vp.id]; err != nil {
		o.mu.Unlock()
		return err
	}
	vp.camera = cam
	ev := Event{Viewport: vp.id, Kind: EventCameraModified, Camera: vp.camera, Properties: vp.props.Clone()}
	suppress := vp.opts.SuppressEvents
	fns := vp.listenersFor(EventCameraModified)
	o.mu.Unlock()

	if !suppress {
		for _, fn := range fns {
			fn(ev)
		}
	}
	return nil
}

// Properties implements Engine.
func (o *Offscreen) Properties(h entity.RendererHandle) (entity.DisplayProperties, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	vp, ok := o.byHandle[h]
	if !ok {
		return entity.DisplayProperties{}, ErrUnknownHandle
	}
	return vp.props.Clone(), nil
}

// SetProperties implements Engine. A VOI change fires EventVOIModified.
func (o *Offscreen) SetProperties(h entity.RendererHandle, props entity.DisplayProperties) error {
	o.mu.Lock()
	vp, ok := o.byHandle[h]
	if !ok {
		o.mu.Unlock()
		return ErrUnknownHandle
	}
	voiChanged := voiDiffers(vp.props.VOI, props.VOI)
	vp.props = props.Clone()
	ev := Event{Viewport: vp.id, Kind: EventVOIModified, Camera: vp.camera, Properties: vp.props.Clone()}
	suppress := vp.opts.SuppressEvents
	var fns []Listener
	if voiChanged {
		fns = vp.listenersFor(EventVOIModified)
	}
	o.mu.Unlock()

	if !suppress {
		for _, fn := range fns {
			fn(ev)
		}
	}
	return nil
}

func voiDiffers(a, b *entity.VOIRange) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil || b == nil:
		return true
	default:
		return *a != *b
	}
}

// Render implements Engine.
func (o *Offscreen) Render(h entity.RendererHandle) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	vp, ok := o.byHandle[h]
	if !ok {
		return ErrUnknownHandle
	}
	if err := o.renderErr[vp.id]; err != nil {
		return err
	}
	vp.renders++
	return nil
}

// RenderAll implements Engine. The first per-viewport failure is
// returned after all viewports have been attempted.
func (o *Offscreen) RenderAll() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var first error
	for _, vp := range o.byID {
		if err := o.renderErr[vp.id]; err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		vp.renders++
	}
	return first
}

// Subscribe implements Engine.
func (o *Offscreen) Subscribe(id entity.ViewportID, kind EventKind, fn Listener) (*Subscription, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	vp, ok := o.byID[id]
	if !ok {
		return nil, ErrUnknownViewport
	}
	o.nextSub++
	token := o.nextSub
	vp.listeners[token] = offscreenListener{kind: kind, fn: fn}
	return NewSubscription(func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if cur, still := o.byID[id]; still && cur == vp {
			delete(vp.listeners, token)
		}
	}), nil
}

// PurgeCaches implements CacheReclaimer.
func (o *Offscreen) PurgeCaches() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.purges++
	return len(o.byID)
}

func (vp *offscreenViewport) listenersFor(kind EventKind) []Listener {
	var fns []Listener
	for _, l := range vp.listeners {
		if l.kind == kind {
			fns = append(fns, l.fn)
		}
	}
	return fns
}

// RenderCount reports how many renders a viewport received.
func (o *Offscreen) RenderCount(id entity.ViewportID) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if vp, ok := o.byID[id]; ok {
		return vp.renders
	}
	return 0
}

// ListenerCount reports how many listeners a viewport carries.
func (o *Offscreen) ListenerCount(id entity.ViewportID) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if vp, ok := o.byID[id]; ok {
		return len(vp.listeners)
	}
	return 0
}

// PurgeCount reports how many cache purges were requested.
func (o *Offscreen) PurgeCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.purges
}
