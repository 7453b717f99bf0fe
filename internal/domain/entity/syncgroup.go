package entity

// SyncType identifies a viewport attribute whose changes propagate
// between sync group members.
type SyncType string

const (
	SyncPan         SyncType = "pan"
	SyncZoom        SyncType = "zoom"
	SyncWindowLevel SyncType = "windowLevel"
	SyncRotation    SyncType = "rotation"
	SyncFlip        SyncType = "flip"
	// SyncCamera propagates the full camera object rather than a
	// partial patch.
	SyncCamera SyncType = "camera"
)

// Valid reports whether t is a known sync type.
func (t SyncType) Valid() bool {
	switch t {
	case SyncPan, SyncZoom, SyncWindowLevel, SyncRotation, SyncFlip, SyncCamera:
		return true
	}
	return false
}

// CameraScoped reports whether the type rides on camera change
// notifications (as opposed to window/level ones).
func (t SyncType) CameraScoped() bool {
	return t != SyncWindowLevel
}

// SyncGroup is a named set of viewports whose selected attribute
// changes propagate to one another. Member order is insertion order.
type SyncGroup struct {
	ID      string
	Members []ViewportID
	Active  bool
	Types   map[SyncType]bool
}

// NewSyncGroup creates an active group with the given types. Invalid
// types are ignored by the caller before construction.
func NewSyncGroup(id string, types []SyncType) *SyncGroup {
	g := &SyncGroup{
		ID:     id,
		Active: true,
		Types:  make(map[SyncType]bool, len(types)),
	}
	for _, t := range types {
		g.Types[t] = true
	}
	return g
}

// HasType reports whether the group propagates the given type.
func (g *SyncGroup) HasType(t SyncType) bool {
	return g.Types[t]
}

// HasMember reports whether the viewport belongs to the group.
func (g *SyncGroup) HasMember(id ViewportID) bool {
	for _, m := range g.Members {
		if m == id {
			return true
		}
	}
	return false
}

// AddMember appends the viewport, returning false if already present.
func (g *SyncGroup) AddMember(id ViewportID) bool {
	if g.HasMember(id) {
		return false
	}
	g.Members = append(g.Members, id)
	return true
}

// RemoveMember deletes the viewport, returning false if absent.
func (g *SyncGroup) RemoveMember(id ViewportID) bool {
	for i, m := range g.Members {
		if m == id {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			return true
		}
	}
	return false
}

// TypeList returns the enabled types in a stable order.
func (g *SyncGroup) TypeList() []SyncType {
	ordered := []SyncType{SyncPan, SyncZoom, SyncWindowLevel, SyncRotation, SyncFlip, SyncCamera}
	var out []SyncType
	for _, t := range ordered {
		if g.Types[t] {
			out = append(out, t)
		}
	}
	return out
}

// Clone returns a deep copy of the group.
func (g *SyncGroup) Clone() SyncGroup {
	out := SyncGroup{
		ID:      g.ID,
		Members: append([]ViewportID(nil), g.Members...),
		Active:  g.Active,
		Types:   make(map[SyncType]bool, len(g.Types)),
	}
	for t, on := range g.Types {
		out.Types[t] = on
	}
	return out
}
