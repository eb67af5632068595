package worldtest

import (
	"path/filepath"
	"testing"

	"hivenet.ai/internal/persistence/snapshot"
	world "hivenet.ai/internal/sim/world"
)

func TestSnapshotExportImport_RoundTripDigest(t *testing.T) {
	cfg := FastConfig("test")
	h := NewHarness(t, cfg)
	stock(h, 100)
	publishImport(h, 64)
	h.StepFor(300)

	snapTick := h.W.CurrentTick() - 1
	d1 := h.W.StateDigest(snapTick)
	snap := h.W.ExportSnapshot(snapTick)

	path := filepath.Join(t.TempDir(), "snap.zst")
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	read, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	w2, err := world.New(cfg, h.Cats, world.Options{})
	if err != nil {
		t.Fatalf("world2: %v", err)
	}
	if err := w2.ImportSnapshot(read); err != nil {
		t.Fatalf("import: %v", err)
	}
	if got, want := w2.CurrentTick(), snapTick+1; got != want {
		t.Fatalf("tick after import: got %d want %d", got, want)
	}
	if d2 := w2.StateDigest(snapTick); d1 != d2 {
		t.Fatalf("digest mismatch after import: %s vs %s", d1, d2)
	}
	if err := w2.ImportSnapshot(read); err == nil {
		t.Fatalf("second import into populated world should fail")
	}
}

func TestSnapshotMidDeliveryResumes(t *testing.T) {
	cfg := FastConfig("test")
	h := NewHarness(t, cfg)
	stock(h, 100)
	publishImport(h, 64)

	// Carriers have not reached the chest yet, so nothing is in flight.
	snap := h.W.ExportSnapshot(h.W.CurrentTick() - 1)
	if s := snapshot.Summarize(snap); s.Formed != 1 || s.Requests != 1 || s.Containers != 2 {
		t.Fatalf("summary=%+v", s)
	}

	h2 := NewHarness(t, cfg)
	if err := h2.W.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	h2.StepFor(300)
	if got := h2.Count(ifaceAt, "COAL"); got != 64 {
		t.Fatalf("interface=%d want 64 after restore", got)
	}
	if got := h2.Count(chestAt, "COAL"); got != 36 {
		t.Fatalf("chest=%d want 36 after restore", got)
	}
}

func TestImportRejectsOtherWorld(t *testing.T) {
	h := NewHarness(t, FastConfig("a"))
	h.BuildController(origin)
	snap := h.W.ExportSnapshot(h.W.CurrentTick() - 1)

	w2, err := world.New(FastConfig("b"), h.Cats, world.Options{})
	if err != nil {
		t.Fatalf("world2: %v", err)
	}
	if err := w2.ImportSnapshot(snap); err == nil {
		t.Fatalf("import of another world's snapshot should fail")
	}
}
