package entity

import "math"

// Vec3 is a three-component vector in renderer world space.
type Vec3 [3]float64

// Camera is the renderer's view-transform state for one viewport.
// It is treated as an opaque value by everything except the renderer
// itself: the coordination layer only copies it, whole or field-wise.
type Camera struct {
	Position      Vec3
	FocalPoint    Vec3
	ViewUp        Vec3
	ParallelScale float64
	Zoom          float64
}

// PatchPan copies the translational fields from src onto c.
func (c *Camera) PatchPan(src Camera) {
	c.Position = src.Position
	c.FocalPoint = src.FocalPoint
}

// PatchZoom copies the scale fields from src onto c.
func (c *Camera) PatchZoom(src Camera) {
	c.ParallelScale = src.ParallelScale
	c.Zoom = src.Zoom
}

// ApproxEqual reports whether two cameras match within tolerance.
func (c Camera) ApproxEqual(other Camera, epsilon float64) bool {
	for i := range 3 {
		if math.Abs(c.Position[i]-other.Position[i]) > epsilon {
			return false
		}
		if math.Abs(c.FocalPoint[i]-other.FocalPoint[i]) > epsilon {
			return false
		}
		if math.Abs(c.ViewUp[i]-other.ViewUp[i]) > epsilon {
			return false
		}
	}
	return math.Abs(c.ParallelScale-other.ParallelScale) <= epsilon &&
		math.Abs(c.Zoom-other.Zoom) <= epsilon
}

// VOIRange is the window/level intensity mapping applied for display.
type VOIRange struct {
	Lower float64
	Upper float64
}

// DisplayProperties holds the non-camera visual state of a viewport.
type DisplayProperties struct {
	VOI            *VOIRange
	Rotation       float64
	FlipHorizontal bool
	FlipVertical   bool
	Invert         bool
	// CurrentImage identifies the image displayed when the
	// properties were read, if the renderer exposes one.
	CurrentImage string
}

// Clone returns a deep copy of the properties.
func (p DisplayProperties) Clone() DisplayProperties {
	out := p
	if p.VOI != nil {
		voi := *p.VOI
		out.VOI = &voi
	}
	return out
}
