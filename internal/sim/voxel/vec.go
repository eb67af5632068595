package voxel

import (
	"fmt"
	"sort"
)

type Vec3i struct {
	X int
	Y int
	Z int
}

func V(x, y, z int) Vec3i { return Vec3i{X: x, Y: y, Z: z} }

func FromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

func (v Vec3i) String() string { return fmt.Sprintf("%d,%d,%d", v.X, v.Y, v.Z) }

// Neighbors6 returns the face-adjacent positions in a fixed order.
func (v Vec3i) Neighbors6() [6]Vec3i {
	return [6]Vec3i{
		{X: v.X + 1, Y: v.Y, Z: v.Z},
		{X: v.X - 1, Y: v.Y, Z: v.Z},
		{X: v.X, Y: v.Y + 1, Z: v.Z},
		{X: v.X, Y: v.Y - 1, Z: v.Z},
		{X: v.X, Y: v.Y, Z: v.Z + 1},
		{X: v.X, Y: v.Y, Z: v.Z - 1},
	}
}

func Manhattan(a, b Vec3i) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y) + abs(a.Z-b.Z)
}

// Chebyshev is the largest per-axis distance; range checks use it so that a
// range of r covers a (2r+1)^3 cube.
func Chebyshev(a, b Vec3i) int {
	d := abs(a.X - b.X)
	if dy := abs(a.Y - b.Y); dy > d {
		d = dy
	}
	if dz := abs(a.Z - b.Z); dz > d {
		d = dz
	}
	return d
}

func Less(a, b Vec3i) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

func SortPositions(ps []Vec3i) {
	sort.Slice(ps, func(i, j int) bool { return Less(ps[i], ps[j]) })
}

// SortedKeys returns the keys of a position-keyed map in (x,y,z) order.
func SortedKeys[T any](m map[Vec3i]T) []Vec3i {
	if len(m) == 0 {
		return nil
	}
	out := make([]Vec3i, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	SortPositions(out)
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
