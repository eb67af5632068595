package catalogs

import (
	"fmt"

	"hivenet.ai/internal/sim/storage/pattern"
	"hivenet.ai/internal/sim/voxel"
)

// Pattern compiles a pattern definition into a matcher. Air elements accept
// any block marked replaceable in blocks.json.
func (c *Catalogs) Pattern(id string) (*pattern.Pattern, error) {
	def, ok := c.Patterns.ByID[id]
	if !ok {
		return nil, fmt.Errorf("unknown pattern: %s", id)
	}
	elems := make([]pattern.Element, 0, len(def.Elements))
	for i, e := range def.Elements {
		pred, err := c.predicate(e)
		if err != nil {
			return nil, fmt.Errorf("pattern %s element %d: %w", id, i, err)
		}
		elems = append(elems, pattern.Element{Offset: voxel.FromArray(e.Pos), Pred: pred})
	}
	return pattern.New(def.ID, voxel.FromArray(def.Size), elems)
}

func (c *Catalogs) predicate(e PatternElementDef) (pattern.Predicate, error) {
	set := 0
	if e.Block != "" {
		set++
	}
	if len(e.AnyOf) > 0 {
		set++
	}
	if e.Air {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of block, any_of, air must be set")
	}
	switch {
	case e.Air:
		return pattern.AirOrReplaceable(c.IsReplaceable), nil
	case len(e.AnyOf) > 0:
		for _, id := range e.AnyOf {
			if _, ok := c.Blocks.Defs[id]; !ok {
				return nil, fmt.Errorf("unknown block %s", id)
			}
		}
		return pattern.AnyOf(e.AnyOf...), nil
	}
	if _, ok := c.Blocks.Defs[e.Block]; !ok {
		return nil, fmt.Errorf("unknown block %s", e.Block)
	}
	if e.Facing == "" {
		return pattern.Exact(e.Block), nil
	}
	f, ok := voxel.ParseFacing(e.Facing)
	if !ok {
		return nil, fmt.Errorf("bad facing %q", e.Facing)
	}
	return pattern.Directional(e.Block, f), nil
}
