package ownership

import (
	"testing"

	"hivenet.ai/internal/sim/voxel"
)

func TestRegisterFirstWriterWins(t *testing.T) {
	r := NewRegistry()
	a, b := voxel.V(0, 0, 0), voxel.V(10, 0, 0)
	chest := voxel.V(1, 0, 0)

	if !r.Register(chest, a, RoleChest) {
		t.Fatalf("first registration should succeed")
	}
	if r.Register(chest, b, RoleChest) {
		t.Fatalf("registration by a different owner must fail")
	}
	if owner, _ := r.OwnerOf(chest); owner != a {
		t.Fatalf("OwnerOf=%v want %v", owner, a)
	}
	if !r.Register(chest, a, RoleInterface) {
		t.Fatalf("same owner re-registration should succeed")
	}
	if role, _ := r.RoleOf(chest); role != RoleInterface {
		t.Fatalf("RoleOf=%s want interface", role)
	}
}

func TestUnregisterAllByOwnerCascades(t *testing.T) {
	r := NewRegistry()
	a, b := voxel.V(0, 0, 0), voxel.V(10, 0, 0)
	r.Register(voxel.V(2, 0, 0), a, RoleChest)
	r.Register(voxel.V(1, 0, 0), a, RoleChest)
	r.Register(voxel.V(3, 0, 0), a, RoleTerminal)
	r.Register(voxel.V(11, 0, 0), b, RoleChest)

	got := r.UnregisterAllByOwner(a)
	if len(got) != 3 || got[0] != voxel.V(1, 0, 0) {
		t.Fatalf("UnregisterAllByOwner=%v", got)
	}
	if len(r.AllOwnedBy(a)) != 0 {
		t.Fatalf("owner a still has entries")
	}
	if r.Len() != 1 {
		t.Fatalf("Len=%d want 1", r.Len())
	}
	if !r.Register(voxel.V(1, 0, 0), b, RoleChest) {
		t.Fatalf("released position should be claimable")
	}
}

func TestAllOfRole(t *testing.T) {
	r := NewRegistry()
	owner := voxel.V(0, 0, 0)
	r.Register(voxel.V(5, 0, 0), owner, RoleChest)
	r.Register(voxel.V(4, 0, 0), owner, RoleChest)
	r.Register(voxel.V(6, 0, 0), owner, RoleInterface)

	chests := r.AllOfRole(RoleChest)
	if len(chests) != 2 || chests[0] != voxel.V(4, 0, 0) {
		t.Fatalf("AllOfRole(chest)=%v", chests)
	}
	if !r.Unregister(voxel.V(4, 0, 0)) || r.Unregister(voxel.V(4, 0, 0)) {
		t.Fatalf("Unregister should succeed exactly once")
	}
}
