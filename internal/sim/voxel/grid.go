package voxel

const Air = "AIR"

type Block struct {
	ID     string
	Facing Facing
	// Formed marks a block that belongs to a formed multiblock structure.
	Formed bool
}

func (b Block) IsAir() bool { return b.ID == "" || b.ID == Air }

// Grid is a sparse in-memory block store with per-position inventories.
// Like the rest of the sim it is accessed from a single goroutine.
type Grid struct {
	blocks      map[Vec3i]Block
	inventories map[Vec3i]*Inventory
	loaded      func(Vec3i) bool
}

func NewGrid() *Grid {
	return &Grid{
		blocks:      map[Vec3i]Block{},
		inventories: map[Vec3i]*Inventory{},
	}
}

// SetLoadedFunc installs a predicate for which positions are currently loaded.
// A nil predicate means everything is loaded.
func (g *Grid) SetLoadedFunc(f func(Vec3i) bool) { g.loaded = f }

func (g *Grid) Loaded(p Vec3i) bool {
	if g.loaded == nil {
		return true
	}
	return g.loaded(p)
}

func (g *Grid) BlockAt(p Vec3i) Block {
	if b, ok := g.blocks[p]; ok {
		return b
	}
	return Block{ID: Air}
}

// SetBlock replaces the block at p. Any inventory at p is dropped.
func (g *Grid) SetBlock(p Vec3i, b Block) {
	delete(g.inventories, p)
	if b.IsAir() {
		delete(g.blocks, p)
		return
	}
	g.blocks[p] = b
}

func (g *Grid) RemoveBlock(p Vec3i) Block {
	old := g.BlockAt(p)
	g.SetBlock(p, Block{ID: Air})
	return old
}

// PlaceContainer sets a block with an attached inventory of the given size.
func (g *Grid) PlaceContainer(p Vec3i, id string, slots int) *Inventory {
	g.SetBlock(p, Block{ID: id})
	inv := NewInventory(slots)
	g.inventories[p] = inv
	return inv
}

// Inventory returns the inventory at p, or nil when p holds no container.
func (g *Grid) Inventory(p Vec3i) *Inventory {
	return g.inventories[p]
}

func (g *Grid) SetFormed(p Vec3i, formed bool) {
	b, ok := g.blocks[p]
	if !ok {
		return
	}
	b.Formed = formed
	g.blocks[p] = b
}

func (g *Grid) Blocks() map[Vec3i]Block { return g.blocks }
