// Package virtuallist implements windowed rendering for large lists of
// uniformly sized items. Only the rows intersecting the viewport (plus an
// overscan margin) are materialized, while the reported content height
// always covers the full collection so scrollbars stay proportional.
package virtuallist

import (
	"errors"
	"fmt"
)

// Default tuning values. Both are plain UI constants and can be overridden
// through Config.
const (
	DefaultOverscan  = 5
	DefaultThreshold = 50
)

// ErrInvalidConfig is returned when a Config cannot produce a usable list.
var ErrInvalidConfig = errors.New("invalid virtual list config")

// Item is anything the list can render. ItemID must be stable across
// render passes so rows keep their identity when the collection changes.
type Item interface {
	ItemID() string
}

// Config holds the render settings for a single list instance.
type Config struct {
	// ItemHeight is the height of every item, in rows.
	ItemHeight int

	// ContainerHeight is the height of the visible viewport, in rows.
	ContainerHeight int

	// Overscan is the number of extra items materialized on each side of
	// the visible window.
	Overscan int

	// Threshold is the item count above which the list switches from
	// direct to windowed rendering.
	Threshold int
}

// DefaultConfig returns a Config with the default overscan and threshold
// for the given item and container heights.
func DefaultConfig(itemHeight, containerHeight int) Config {
	return Config{
		ItemHeight:      itemHeight,
		ContainerHeight: containerHeight,
		Overscan:        DefaultOverscan,
		Threshold:       DefaultThreshold,
	}
}

// Validate reports whether the config is usable.
func (c Config) Validate() error {
	switch {
	case c.ItemHeight <= 0:
		return fmt.Errorf("%w: item height must be positive, got %d", ErrInvalidConfig, c.ItemHeight)
	case c.ContainerHeight <= 0:
		return fmt.Errorf("%w: container height must be positive, got %d", ErrInvalidConfig, c.ContainerHeight)
	case c.Overscan < 0:
		return fmt.Errorf("%w: overscan must not be negative, got %d", ErrInvalidConfig, c.Overscan)
	case c.Threshold < 0:
		return fmt.Errorf("%w: threshold must not be negative, got %d", ErrInvalidConfig, c.Threshold)
	}
	return nil
}
