package pattern

import (
	"sort"
	"strings"

	"hivenet.ai/internal/sim/voxel"
)

// Predicate decides whether the block found at a rotated offset satisfies an
// element of the pattern. rot is the normalized rotation under test so that
// directional predicates can rotate their expected facing with the offset.
type Predicate interface {
	Matches(b voxel.Block, rot int) bool
	String() string
}

type exact struct{ id string }

// Exact matches a single block id regardless of facing.
func Exact(id string) Predicate { return exact{id: id} }

func (p exact) Matches(b voxel.Block, _ int) bool { return b.ID == p.id }
func (p exact) String() string                    { return p.id }

type directional struct {
	id     string
	facing voxel.Facing
}

// Directional matches a block id whose facing equals want after rotation.
func Directional(id string, want voxel.Facing) Predicate {
	return directional{id: id, facing: want}
}

func (p directional) Matches(b voxel.Block, rot int) bool {
	return b.ID == p.id && b.Facing == p.facing.Rotate(rot)
}

func (p directional) String() string { return p.id + "[facing=" + p.facing.String() + "]" }

type anyOf struct{ ids map[string]struct{} }

func AnyOf(ids ...string) Predicate {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return anyOf{ids: m}
}

func (p anyOf) Matches(b voxel.Block, _ int) bool {
	_, ok := p.ids[b.ID]
	return ok
}

func (p anyOf) String() string {
	ids := make([]string, 0, len(p.ids))
	for id := range p.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return "any(" + strings.Join(ids, "|") + ")"
}

type airOrReplaceable struct{ replaceable func(id string) bool }

// AirOrReplaceable matches air, or any block the callback reports as
// replaceable (grass, snow layers). A nil callback only accepts air.
func AirOrReplaceable(replaceable func(id string) bool) Predicate {
	return airOrReplaceable{replaceable: replaceable}
}

func (p airOrReplaceable) Matches(b voxel.Block, _ int) bool {
	if b.IsAir() {
		return true
	}
	return p.replaceable != nil && p.replaceable(b.ID)
}

func (p airOrReplaceable) String() string { return "air" }
