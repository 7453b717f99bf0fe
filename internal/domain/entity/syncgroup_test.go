package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncType_Valid(t *testing.T) {
	for _, valid := range []SyncType{SyncPan, SyncZoom, SyncWindowLevel, SyncRotation, SyncFlip, SyncCamera} {
		assert.True(t, valid.Valid(), string(valid))
	}
	assert.False(t, SyncType("teleport").Valid())
	assert.False(t, SyncType("").Valid())
}

func TestSyncType_CameraScoped(t *testing.T) {
	assert.True(t, SyncPan.CameraScoped())
	assert.True(t, SyncCamera.CameraScoped())
	assert.False(t, SyncWindowLevel.CameraScoped())
}

func TestSyncGroup_Membership(t *testing.T) {
	g := NewSyncGroup("g1", []SyncType{SyncPan, SyncZoom})

	assert.True(t, g.Active)
	assert.True(t, g.AddMember("viewport-0"))
	assert.True(t, g.AddMember("viewport-1"))
	assert.False(t, g.AddMember("viewport-0"), "double add must be rejected")
	assert.True(t, g.HasMember("viewport-1"))

	assert.True(t, g.RemoveMember("viewport-0"))
	assert.False(t, g.RemoveMember("viewport-0"))
	assert.Equal(t, []ViewportID{"viewport-1"}, g.Members)
}

func TestSyncGroup_TypeList(t *testing.T) {
	g := NewSyncGroup("g1", []SyncType{SyncCamera, SyncPan, SyncWindowLevel})

	// Stable canonical order regardless of construction order.
	assert.Equal(t, []SyncType{SyncPan, SyncWindowLevel, SyncCamera}, g.TypeList())
}

func TestSyncGroup_Clone(t *testing.T) {
	g := NewSyncGroup("g1", []SyncType{SyncPan})
	g.AddMember("viewport-0")

	c := g.Clone()
	c.Members[0] = "viewport-9"
	c.Types[SyncZoom] = true

	assert.Equal(t, ViewportID("viewport-0"), g.Members[0])
	assert.False(t, g.HasType(SyncZoom))
}

func TestLayoutConfig_Validate(t *testing.T) {
	assert.NoError(t, LayoutConfig{Name: "2x2", Rows: 2, Cols: 2}.Validate())
	assert.ErrorIs(t, LayoutConfig{Name: "bad", Rows: 0, Cols: 2}.Validate(), ErrInvalidLayout)
	assert.ErrorIs(t, LayoutConfig{Name: "bad", Rows: 2, Cols: -1}.Validate(), ErrInvalidLayout)
}

func TestDefaultLayouts(t *testing.T) {
	layouts := DefaultLayouts()

	names := make(map[string]bool, len(layouts))
	for _, l := range layouts {
		assert.NoError(t, l.Validate())
		assert.Equal(t, l.Rows*l.Cols, l.ViewportCount())
		names[l.Name] = true
	}
	assert.True(t, names[DefaultLayoutName])
}
