package snapshot

import (
	"path/filepath"
	"strings"
	"testing"

	"hivenet.ai/internal/sim/storage/network"
	"hivenet.ai/internal/sim/voxel"
)

func sample() SnapshotV1 {
	return SnapshotV1{
		Header:             Header{Version: Version, WorldID: "w1", Tick: 600},
		TickRate:           5,
		SnapshotEveryTicks: 300,
		Blocks: []BlockV1{
			{Pos: [3]int{0, 64, 0}, ID: "HIVE_CONTROLLER"},
			{Pos: [3]int{4, 64, 0}, ID: "CHEST", Slots: []SlotV1{{Item: "COAL", Count: 10}, {}}},
			{Pos: [3]int{0, 65, 0}, ID: "HIVE_CASING", Facing: "north"},
		},
		Actors: []ActorV1{{ID: "alice", Pos: [3]int{0, 64, 2}}},
		Network: network.HubState{
			Controllers: []network.ControllerState{
				{Pos: voxel.V(0, 64, 0), Formed: true, Chests: []voxel.Vec3i{voxel.V(4, 64, 0)}},
				{Pos: voxel.V(30, 64, 0)},
			},
			Relays: []network.RelayState{{Pos: voxel.V(8, 64, 0)}},
		},
	}
}

func TestWriteReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "600.snap.zst")
	in := sample()
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h != in.Header {
		t.Fatalf("header=%+v want %+v", h, in.Header)
	}

	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Header != in.Header || out.TickRate != 5 || out.SnapshotEveryTicks != 300 {
		t.Fatalf("read=%+v", out.Header)
	}
	if len(out.Blocks) != 3 || out.Blocks[1].Slots[0].Count != 10 || out.Blocks[2].Facing != "north" {
		t.Fatalf("blocks=%+v", out.Blocks)
	}
	if out.Blocks[0].Slots != nil {
		t.Fatalf("non-container gained slots: %+v", out.Blocks[0])
	}
	if got := out.Network.Controllers[0].Chests; len(got) != 1 || got[0] != voxel.V(4, 64, 0) {
		t.Fatalf("chests=%v", got)
	}
}

func TestReadSnapshotRejectsOtherVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap.zst")
	snap := sample()
	snap.Header.Version = Version + 1
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := ReadSnapshot(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported snapshot version") {
		t.Fatalf("err=%v", err)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample())
	want := Summary{Header: sample().Header, Blocks: 3, Containers: 1, Actors: 1, Controllers: 2, Formed: 1, Relays: 1}
	if s != want {
		t.Fatalf("summary=%+v want %+v", s, want)
	}
}
