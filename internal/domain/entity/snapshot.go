package entity

import (
	"encoding/json"
	"time"
)

// ViewportStateSnapshot captures one viewport's restorable state
// immediately before a layout transition. Ephemeral: it lives only for
// the duration of a single transition.
type ViewportStateSnapshot struct {
	Index      int
	ViewportID ViewportID
	Active     bool
	Camera     *Camera
	Properties *DisplayProperties
	ImageID    string
}

// AnnotationSnapshot captures one annotation held across a layout
// transition, together with the viewport it was authored on.
type AnnotationSnapshot struct {
	AnnotationID     string
	ToolName         string
	Payload          json.RawMessage
	SourceViewportID ViewportID
}

// AnnotationBatch is the full annotation capture of one transition.
type AnnotationBatch struct {
	Items      []AnnotationSnapshot
	CapturedAt time.Time
}

// Empty reports whether the batch holds no annotations.
func (b *AnnotationBatch) Empty() bool {
	return b == nil || len(b.Items) == 0
}
