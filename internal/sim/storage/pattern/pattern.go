// Package pattern validates multiblock structures against declarative 3-D
// templates in any of the four horizontal orientations.
package pattern

import (
	"fmt"

	"hivenet.ai/internal/sim/voxel"
)

// NoRotation is returned by ValidateAnyRotation when no orientation matches.
const NoRotation = -1

type BlockReader interface {
	BlockAt(p voxel.Vec3i) voxel.Block
}

type Element struct {
	Offset voxel.Vec3i
	Pred   Predicate
}

// Pattern is an ordered list of offset/predicate pairs relative to the
// controller block at the origin. The origin itself is never matched.
type Pattern struct {
	ID       string
	Size     voxel.Vec3i
	Elements []Element
}

func New(id string, size voxel.Vec3i, elems []Element) (*Pattern, error) {
	seen := make(map[voxel.Vec3i]struct{}, len(elems))
	for _, e := range elems {
		if e.Offset == (voxel.Vec3i{}) {
			return nil, fmt.Errorf("pattern %s: origin is implicit and cannot carry a predicate", id)
		}
		if e.Pred == nil {
			return nil, fmt.Errorf("pattern %s: nil predicate at %v", id, e.Offset)
		}
		if _, dup := seen[e.Offset]; dup {
			return nil, fmt.Errorf("pattern %s: duplicate offset %v", id, e.Offset)
		}
		seen[e.Offset] = struct{}{}
	}
	return &Pattern{ID: id, Size: size, Elements: elems}, nil
}

// Validate reports whether every element, rotated by rot, matches the world.
func (p *Pattern) Validate(w BlockReader, origin voxel.Vec3i, rot int) bool {
	if p == nil || w == nil {
		return false
	}
	rot = voxel.NormalizeRotation(rot)
	for _, e := range p.Elements {
		at := origin.Add(voxel.RotateOffset(e.Offset, rot))
		if !e.Pred.Matches(w.BlockAt(at), rot) {
			return false
		}
	}
	return true
}

// ValidateAnyRotation tries rotations 0..3 in order and returns the first that
// fully matches, or NoRotation.
func (p *Pattern) ValidateAnyRotation(w BlockReader, origin voxel.Vec3i) int {
	for rot := 0; rot < 4; rot++ {
		if p.Validate(w, origin, rot) {
			return rot
		}
	}
	return NoRotation
}

// IsPartOf reports whether candidate is the origin or one of the structure's
// rotated element positions.
func (p *Pattern) IsPartOf(origin, candidate voxel.Vec3i, rot int) bool {
	if p == nil {
		return false
	}
	if candidate == origin {
		return true
	}
	rot = voxel.NormalizeRotation(rot)
	rel := candidate.Sub(origin)
	for _, e := range p.Elements {
		if voxel.RotateOffset(e.Offset, rot) == rel {
			return true
		}
	}
	return false
}

// Positions lists the absolute positions of every non-origin element.
func (p *Pattern) Positions(origin voxel.Vec3i, rot int) []voxel.Vec3i {
	if p == nil {
		return nil
	}
	rot = voxel.NormalizeRotation(rot)
	out := make([]voxel.Vec3i, 0, len(p.Elements))
	for _, e := range p.Elements {
		out = append(out, origin.Add(voxel.RotateOffset(e.Offset, rot)))
	}
	return out
}

// FromLayers builds a pattern from horizontal slices: layers[y][z][x]. The
// origin rune marks the controller; spaces are ignored; every other rune must
// have an entry in key.
func FromLayers(id string, layers [][]string, key map[rune]Predicate, origin rune) (*Pattern, error) {
	var (
		originPos voxel.Vec3i
		found     bool
		size      voxel.Vec3i
	)
	type cell struct {
		pos voxel.Vec3i
		r   rune
	}
	var cells []cell
	size.Y = len(layers)
	for y, layer := range layers {
		if len(layer) > size.Z {
			size.Z = len(layer)
		}
		for z, row := range layer {
			x := 0
			for _, r := range row {
				if x+1 > size.X {
					size.X = x + 1
				}
				pos := voxel.Vec3i{X: x, Y: y, Z: z}
				x++
				switch {
				case r == ' ':
					continue
				case r == origin:
					if found {
						return nil, fmt.Errorf("pattern %s: more than one origin", id)
					}
					originPos, found = pos, true
				default:
					cells = append(cells, cell{pos: pos, r: r})
				}
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("pattern %s: missing origin %q", id, origin)
	}
	elems := make([]Element, 0, len(cells))
	for _, c := range cells {
		pred, ok := key[c.r]
		if !ok {
			return nil, fmt.Errorf("pattern %s: no predicate for %q", id, c.r)
		}
		elems = append(elems, Element{Offset: c.pos.Sub(originPos), Pred: pred})
	}
	return New(id, size, elems)
}
