// Package ownership tracks which network node owns each registered world
// position. A position has at most one owner; the first registration wins.
package ownership

import "hivenet.ai/internal/sim/voxel"

type Role uint8

const (
	RoleChest Role = iota + 1
	RoleTerminal
	RoleInterface
)

func (r Role) String() string {
	switch r {
	case RoleChest:
		return "chest"
	case RoleTerminal:
		return "terminal"
	case RoleInterface:
		return "interface"
	}
	return "unknown"
}

type Entry struct {
	Owner voxel.Vec3i
	Role  Role
}

type Registry struct {
	entries map[voxel.Vec3i]Entry
	byOwner map[voxel.Vec3i]map[voxel.Vec3i]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		entries: map[voxel.Vec3i]Entry{},
		byOwner: map[voxel.Vec3i]map[voxel.Vec3i]struct{}{},
	}
}

// Register claims pos for owner. It fails when a different owner already holds
// pos; re-registering by the same owner updates the role.
func (r *Registry) Register(pos, owner voxel.Vec3i, role Role) bool {
	if cur, ok := r.entries[pos]; ok && cur.Owner != owner {
		return false
	}
	r.entries[pos] = Entry{Owner: owner, Role: role}
	set := r.byOwner[owner]
	if set == nil {
		set = map[voxel.Vec3i]struct{}{}
		r.byOwner[owner] = set
	}
	set[pos] = struct{}{}
	return true
}

func (r *Registry) Unregister(pos voxel.Vec3i) bool {
	cur, ok := r.entries[pos]
	if !ok {
		return false
	}
	delete(r.entries, pos)
	if set := r.byOwner[cur.Owner]; set != nil {
		delete(set, pos)
		if len(set) == 0 {
			delete(r.byOwner, cur.Owner)
		}
	}
	return true
}

// UnregisterAllByOwner drops every entry held by owner and returns the
// released positions in sorted order.
func (r *Registry) UnregisterAllByOwner(owner voxel.Vec3i) []voxel.Vec3i {
	set := r.byOwner[owner]
	if len(set) == 0 {
		return nil
	}
	out := voxel.SortedKeys(set)
	for _, p := range out {
		delete(r.entries, p)
	}
	delete(r.byOwner, owner)
	return out
}

func (r *Registry) OwnerOf(pos voxel.Vec3i) (voxel.Vec3i, bool) {
	e, ok := r.entries[pos]
	return e.Owner, ok
}

func (r *Registry) RoleOf(pos voxel.Vec3i) (Role, bool) {
	e, ok := r.entries[pos]
	return e.Role, ok
}

func (r *Registry) Lookup(pos voxel.Vec3i) (Entry, bool) {
	e, ok := r.entries[pos]
	return e, ok
}

func (r *Registry) AllOwnedBy(owner voxel.Vec3i) []voxel.Vec3i {
	return voxel.SortedKeys(r.byOwner[owner])
}

func (r *Registry) AllOfRole(role Role) []voxel.Vec3i {
	var out []voxel.Vec3i
	for p, e := range r.entries {
		if e.Role == role {
			out = append(out, p)
		}
	}
	voxel.SortPositions(out)
	return out
}

func (r *Registry) Len() int { return len(r.entries) }
