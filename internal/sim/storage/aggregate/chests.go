package aggregate

import (
	"hivenet.ai/internal/sim/storage/ownership"
	"hivenet.ai/internal/sim/voxel"
)

// Containers is the world view needed to read and mutate chest inventories.
type Containers interface {
	Inventory(p voxel.Vec3i) *voxel.Inventory
	Loaded(p voxel.Vec3i) bool
}

// ChestManager is the per-node chest registry. Controllers and relays each
// compose one; registrations go through the shared ownership registry so a
// chest belongs to at most one node.
type ChestManager struct {
	owner voxel.Vec3i
	rng   int
	reg   *ownership.Registry
	world Containers
	// accept filters container positions that may be registered as chests
	// (peripheral devices are containers too, but not storage).
	accept func(voxel.Vec3i) bool

	order []voxel.Vec3i
	index map[voxel.Vec3i]struct{}
}

func NewChestManager(owner voxel.Vec3i, rng int, reg *ownership.Registry, world Containers) *ChestManager {
	return &ChestManager{
		owner: owner,
		rng:   rng,
		reg:   reg,
		world: world,
		index: map[voxel.Vec3i]struct{}{},
	}
}

func (m *ChestManager) SetAcceptFunc(f func(voxel.Vec3i) bool) { m.accept = f }

func (m *ChestManager) Owner() voxel.Vec3i { return m.owner }

func (m *ChestManager) Range() int { return m.rng }

// Valid reports whether p is a loaded container within range of the owner.
func (m *ChestManager) Valid(p voxel.Vec3i) bool {
	if p == m.owner || voxel.Chebyshev(p, m.owner) > m.rng {
		return false
	}
	if !m.world.Loaded(p) || m.world.Inventory(p) == nil {
		return false
	}
	return m.accept == nil || m.accept(p)
}

// Toggle deregisters p if it is already registered. Otherwise, when p is a
// valid unowned container, it registers p and every face-connected valid
// container reachable from it within range. It returns whether p ended up
// registered and how many positions changed.
func (m *ChestManager) Toggle(p voxel.Vec3i) (registered bool, changed int) {
	if m.Has(p) {
		m.Remove(p)
		return false, 1
	}
	if !m.claimable(p) {
		return false, 0
	}

	visited := map[voxel.Vec3i]struct{}{p: {}}
	queue := []voxel.Vec3i{p}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if !m.Has(cur) {
			if !m.claimable(cur) || !m.Add(cur) {
				continue
			}
			changed++
		}
		for _, n := range cur.Neighbors6() {
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}
			if m.Valid(n) {
				queue = append(queue, n)
			}
		}
	}
	return m.Has(p), changed
}

func (m *ChestManager) claimable(p voxel.Vec3i) bool {
	if !m.Valid(p) {
		return false
	}
	if owner, ok := m.reg.OwnerOf(p); ok && owner != m.owner {
		return false
	}
	return true
}

// Add registers a single position without flood fill.
func (m *ChestManager) Add(p voxel.Vec3i) bool {
	if m.Has(p) {
		return true
	}
	if !m.reg.Register(p, m.owner, ownership.RoleChest) {
		return false
	}
	m.index[p] = struct{}{}
	m.order = append(m.order, p)
	return true
}

func (m *ChestManager) Remove(p voxel.Vec3i) bool {
	if !m.Has(p) {
		return false
	}
	delete(m.index, p)
	for i, q := range m.order {
		if q == p {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if owner, ok := m.reg.OwnerOf(p); ok && owner == m.owner {
		m.reg.Unregister(p)
	}
	return true
}

func (m *ChestManager) Has(p voxel.Vec3i) bool {
	_, ok := m.index[p]
	return ok
}

// Chests returns registered positions in registration order.
func (m *ChestManager) Chests() []voxel.Vec3i {
	out := make([]voxel.Vec3i, len(m.order))
	copy(out, m.order)
	return out
}

func (m *ChestManager) Len() int { return len(m.order) }

// Clear drops every registration held by this manager.
func (m *ChestManager) Clear() {
	for _, p := range m.order {
		if owner, ok := m.reg.OwnerOf(p); ok && owner == m.owner {
			m.reg.Unregister(p)
		}
	}
	m.order = nil
	m.index = map[voxel.Vec3i]struct{}{}
}

// Forget is Remove under the ChestSet contract.
func (m *ChestManager) Forget(p voxel.Vec3i) { m.Remove(p) }
