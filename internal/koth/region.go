package koth

import (
	"fmt"
	"strconv"
	"strings"

	"kothmode/internal/protocol"
)

// RegionShape selects the payload fields of a Region.
type RegionShape int

const (
	ShapeRect RegionShape = iota
	ShapeCircle
)

// Region is a fixed map area. Bounds are set at construction and never
// mutated. Rect uses Left/Top/Right/Bottom; Circle uses X/Z/Radius.
type Region struct {
	Shape RegionShape

	Left, Top, Right, Bottom float64

	X, Z, Radius float64
}

// ContainsPoint reports whether (x,z) lies in the region. Bounds are
// inclusive: a point on a rect edge or at exactly Radius distance is inside.
func (r Region) ContainsPoint(x, z float64) bool {
	switch r.Shape {
	case ShapeRect:
		return x >= r.Left && x <= r.Right && z >= r.Top && z <= r.Bottom
	case ShapeCircle:
		dx, dz := x-r.X, z-r.Z
		return dx*dx+dz*dz <= r.Radius*r.Radius
	}
	return false
}

// ContainsFootprint reports whether the full axis-aligned footprint centered
// at (x,z) lies in the region. For circles this checks the four footprint
// corners, which under-approximates true containment for large footprints;
// that matches how build placement has always been judged.
func (r Region) ContainsFootprint(x, z, sizeX, sizeZ float64) bool {
	hx, hz := sizeX/2, sizeZ/2
	switch r.Shape {
	case ShapeRect:
		return x-hx >= r.Left && x+hx <= r.Right && z-hz >= r.Top && z+hz <= r.Bottom
	case ShapeCircle:
		return r.ContainsPoint(x-hx, z-hz) &&
			r.ContainsPoint(x+hx, z-hz) &&
			r.ContainsPoint(x-hx, z+hz) &&
			r.ContainsPoint(x+hx, z+hz)
	}
	return false
}

// WireArea converts the region to its observer wire form.
func (r Region) WireArea() *protocol.Area {
	switch r.Shape {
	case ShapeCircle:
		return &protocol.Area{Shape: "circle", X: r.X, Z: r.Z, Radius: r.Radius}
	default:
		return &protocol.Area{Shape: "rect", Left: r.Left, Top: r.Top, Right: r.Right, Bottom: r.Bottom}
	}
}

// Region descriptors use a 0..200 coordinate space scaled against the map
// dimensions, same convention as start boxes.
const descScale = 200

// DefaultHill is the fallback hill when the descriptor is malformed: a
// centered rectangle covering the middle quarter of the map.
func DefaultHill(mapX, mapZ float64) Region {
	return Region{
		Shape:  ShapeRect,
		Left:   75 * mapX / descScale,
		Top:    75 * mapZ / descScale,
		Right:  125 * mapX / descScale,
		Bottom: 125 * mapZ / descScale,
	}
}

// ParseRegion parses "rect L T R B" or "circle X Z R" with each number in
// [0,200], scaling into map coordinates. Callers recover from an error by
// logging a warning and using DefaultHill.
func ParseRegion(desc string, mapX, mapZ float64) (Region, error) {
	fields := strings.Fields(strings.TrimSpace(desc))
	if len(fields) == 0 {
		return Region{}, fmt.Errorf("empty region descriptor")
	}

	nums := make([]float64, 0, 4)
	for _, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Region{}, fmt.Errorf("region %q: bad number %q", desc, f)
		}
		if v < 0 || v > descScale {
			return Region{}, fmt.Errorf("region %q: %v out of [0,%d]", desc, v, descScale)
		}
		nums = append(nums, v)
	}

	switch strings.ToLower(fields[0]) {
	case "rect":
		if len(nums) != 4 {
			return Region{}, fmt.Errorf("region %q: rect needs 4 numbers", desc)
		}
		r := Region{
			Shape:  ShapeRect,
			Left:   nums[0] * mapX / descScale,
			Top:    nums[1] * mapZ / descScale,
			Right:  nums[2] * mapX / descScale,
			Bottom: nums[3] * mapZ / descScale,
		}
		if r.Left > r.Right || r.Top > r.Bottom {
			return Region{}, fmt.Errorf("region %q: inverted bounds", desc)
		}
		return r, nil
	case "circle":
		if len(nums) != 3 {
			return Region{}, fmt.Errorf("region %q: circle needs 3 numbers", desc)
		}
		return Region{
			Shape:  ShapeCircle,
			X:      nums[0] * mapX / descScale,
			Z:      nums[1] * mapZ / descScale,
			Radius: nums[2] * mapX / descScale,
		}, nil
	default:
		return Region{}, fmt.Errorf("region %q: unknown shape %q", desc, fields[0])
	}
}
