// Package domain contains the protocol-independent OGC value types.
package domain

import (
	"fmt"
	"strconv"
)

// Rectangle is a geographic bounding box in degrees (WGS84 order:
// west, south, east, north).
type Rectangle struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// NewRectangle parses the four corner strings as found in capabilities
// documents. Returns an error if any value is not a number.
func NewRectangle(west, south, east, north string) (Rectangle, error) {
	var r Rectangle
	var err error
	if r.West, err = strconv.ParseFloat(west, 64); err != nil {
		return r, fmt.Errorf("west bound %q: %w", west, err)
	}
	if r.South, err = strconv.ParseFloat(south, 64); err != nil {
		return r, fmt.Errorf("south bound %q: %w", south, err)
	}
	if r.East, err = strconv.ParseFloat(east, 64); err != nil {
		return r, fmt.Errorf("east bound %q: %w", east, err)
	}
	if r.North, err = strconv.ParseFloat(north, 64); err != nil {
		return r, fmt.Errorf("north bound %q: %w", north, err)
	}
	return r, nil
}

// IsZero reports whether the rectangle is the zero value.
func (r Rectangle) IsZero() bool {
	return r == Rectangle{}
}

// Union returns the smallest rectangle covering both r and other.
func (r Rectangle) Union(other Rectangle) Rectangle {
	if r.IsZero() {
		return other
	}
	if other.IsZero() {
		return r
	}
	out := r
	if other.West < out.West {
		out.West = other.West
	}
	if other.South < out.South {
		out.South = other.South
	}
	if other.East > out.East {
		out.East = other.East
	}
	if other.North > out.North {
		out.North = other.North
	}
	return out
}

// UnionAll unions all rectangles in rs, skipping zero values.
// Returns the zero rectangle if rs is empty or all-zero.
func UnionAll(rs []Rectangle) Rectangle {
	var out Rectangle
	for _, r := range rs {
		out = out.Union(r)
	}
	return out
}
