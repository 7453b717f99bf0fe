package entity

import (
	"errors"
	"fmt"
)

// ErrInvalidLayout is returned for layout configs with non-positive dimensions.
var ErrInvalidLayout = errors.New("layout rows and cols must be positive")

// DefaultLayoutName is the fallback layout applied when a requested
// layout name is unknown, and the minimal layout after a full cleanup.
const DefaultLayoutName = "1x1"

// LayoutConfig is a declarative rows-by-cols viewport arrangement,
// keyed by name. Immutable once registered.
type LayoutConfig struct {
	Name string
	Rows int
	Cols int
}

// Validate checks the layout dimensions.
func (l LayoutConfig) Validate() error {
	if l.Rows <= 0 || l.Cols <= 0 {
		return fmt.Errorf("layout %q: %w", l.Name, ErrInvalidLayout)
	}
	return nil
}

// ViewportCount returns the number of viewports the layout produces.
func (l LayoutConfig) ViewportCount() int {
	return l.Rows * l.Cols
}

// DefaultLayouts returns the built-in layout set seeded at construction.
// These may not be removed.
func DefaultLayouts() []LayoutConfig {
	return []LayoutConfig{
		{Name: "1x1", Rows: 1, Cols: 1},
		{Name: "2x2", Rows: 2, Cols: 2},
		{Name: "1x3", Rows: 1, Cols: 3},
		{Name: "3x1", Rows: 3, Cols: 1},
		{Name: "2x3", Rows: 2, Cols: 3},
		{Name: "3x2", Rows: 3, Cols: 2},
	}
}
