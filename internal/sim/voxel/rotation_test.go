package voxel

import "testing"

func TestNormalizeRotation_AcceptsDegreesAndQuarterTurns(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{in: 0, want: 0},
		{in: 1, want: 1},
		{in: 3, want: 3},
		{in: 4, want: 0},
		{in: -1, want: 3},
		{in: 90, want: 1},
		{in: 180, want: 2},
		{in: 270, want: 3},
		{in: 360, want: 0},
		{in: -90, want: 3},
	}
	for _, c := range cases {
		if got := NormalizeRotation(c.in); got != c.want {
			t.Fatalf("NormalizeRotation(%d)=%d want %d", c.in, got, c.want)
		}
	}
}

func TestFacingRotateMatchesOffsetRotation(t *testing.T) {
	for _, f := range []Facing{North, East, South, West} {
		x, z, _ := f.xz()
		for rot := 0; rot < 4; rot++ {
			off := RotateOffset(Vec3i{X: x, Z: z}, rot)
			if got, want := f.Rotate(rot), facingFromXZ(off.X, off.Z); got != want {
				t.Fatalf("%s.Rotate(%d)=%s want %s", f, rot, got, want)
			}
		}
		if f.Rotate(0) != f {
			t.Fatalf("%s.Rotate(0) should be identity", f)
		}
	}
	if Up.Rotate(1) != Up {
		t.Fatalf("vertical facings must not rotate")
	}
}

func TestInventoryInsertTopsOffBeforeEmptySlots(t *testing.T) {
	inv := NewInventory(3)
	inv.Slots[1] = Stack("COAL", 60)
	left := inv.Insert(Stack("COAL", 10), 64)
	if !left.Empty() {
		t.Fatalf("leftover=%+v", left)
	}
	if inv.Slots[1].Count != 64 || inv.Slots[0].Count != 6 {
		t.Fatalf("slots=%+v", inv.Slots)
	}
	if got := inv.Take(Template{Item: "COAL"}, 100); got != 70 {
		t.Fatalf("Take=%d want 70", got)
	}
	if inv.Count(Template{Item: "COAL"}) != 0 {
		t.Fatalf("inventory should be empty: %+v", inv.Slots)
	}
}
