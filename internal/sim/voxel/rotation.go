package voxel

// NormalizeRotation converts a rotation value into a stable quarter-turn count
// in [0,3].
//
// It accepts either quarter-turns (0..3) or degrees (multiples of 90).
func NormalizeRotation(r int) int {
	if r%90 == 0 && (r > 3 || r < -3) {
		r = r / 90
	}
	r %= 4
	if r < 0 {
		r += 4
	}
	return r
}

// RotateXZ rotates an (x,z) offset around the Y axis by rot quarter turns.
// rot must be normalized.
func RotateXZ(x, z, rot int) (rx, rz int) {
	switch rot & 3 {
	case 0:
		return x, z
	case 1:
		return z, -x
	case 2:
		return -x, -z
	default: // 3
		return -z, x
	}
}

func RotateOffset(off Vec3i, rot int) Vec3i {
	rx, rz := RotateXZ(off.X, off.Z, rot)
	return Vec3i{X: rx, Y: off.Y, Z: rz}
}

// Facing is the horizontal (or vertical) direction a directional block faces.
type Facing uint8

const (
	FacingNone Facing = iota
	North             // -Z
	East              // +X
	South             // +Z
	West              // -X
	Up
	Down
)

var facingNames = [...]string{"", "north", "east", "south", "west", "up", "down"}

func (f Facing) String() string {
	if int(f) < len(facingNames) {
		return facingNames[f]
	}
	return "?"
}

func ParseFacing(s string) (Facing, bool) {
	for i, n := range facingNames {
		if n == s {
			return Facing(i), true
		}
	}
	return FacingNone, false
}

func (f Facing) xz() (int, int, bool) {
	switch f {
	case North:
		return 0, -1, true
	case East:
		return 1, 0, true
	case South:
		return 0, 1, true
	case West:
		return -1, 0, true
	}
	return 0, 0, false
}

func facingFromXZ(x, z int) Facing {
	switch {
	case x == 0 && z == -1:
		return North
	case x == 1 && z == 0:
		return East
	case x == 0 && z == 1:
		return South
	case x == -1 && z == 0:
		return West
	}
	return FacingNone
}

// Rotate turns a horizontal facing by rot quarter turns using the same
// transform as RotateOffset. Vertical and unset facings are unchanged.
func (f Facing) Rotate(rot int) Facing {
	x, z, ok := f.xz()
	if !ok {
		return f
	}
	rx, rz := RotateXZ(x, z, NormalizeRotation(rot))
	return facingFromXZ(rx, rz)
}
