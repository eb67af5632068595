package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"hivenet.ai/internal/persistence/snapshot"
	"hivenet.ai/internal/sim/catalogs"
	"hivenet.ai/internal/sim/storage/network"
	"hivenet.ai/internal/sim/storage/requests"
	"hivenet.ai/internal/sim/tuning"
	"hivenet.ai/internal/sim/voxel"
	"hivenet.ai/internal/sim/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqEvent}

	_ = s.WriteEvent(world.EventEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropEventTotal != 1 || st.DropSnapshotTotal != 1 {
		t.Fatalf("drops event=%d snapshot=%d want 1/1", st.DropEventTotal, st.DropSnapshotTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_EventsAndSnapshotsPersist(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	events := []world.EventEntry{
		{Tick: 5, WorldID: "w", Kind: "formed", Node: [3]int{0, 64, 0}},
		{Tick: 9, WorldID: "w", Kind: "task_completed", Node: [3]int{0, 64, 0}, TaskID: 3},
		{Tick: 9, WorldID: "w", Kind: "request_completed", Node: [3]int{0, 64, 0}, RequestID: "r1", Item: "COAL", Count: 64},
	}
	for _, e := range events {
		if err := idx.WriteEvent(e); err != nil {
			t.Fatalf("WriteEvent: %v", err)
		}
	}

	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, WorldID: "w", Tick: 100},
		Blocks: []snapshot.BlockV1{{Pos: [3]int{4, 64, 0}, ID: "CHEST", Slots: make([]snapshot.SlotV1, 27)}},
		Network: network.HubState{Controllers: []network.ControllerState{{
			Pos:    voxel.V(0, 64, 0),
			Formed: true,
			Requests: requests.State{Requests: []requests.Request{
				{ID: "r2", Type: requests.Import, Template: voxel.Template{Item: "IRON_INGOT"}, Count: 5, Status: requests.Blocked, Reason: requests.ReasonItemsUnavailable},
			}},
		}}},
	}
	idx.RecordSnapshot("/data/snapshots/100.snap.zst", snap)

	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if err := idx.UpsertCatalogs("../../../configs", cats, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err = OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	got, err := idx.Events(ctx, EventFilter{})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(got) != 3 || got[2].RequestID != "r1" || got[2].Count != 64 {
		t.Fatalf("events=%+v", got)
	}
	got, err = idx.Events(ctx, EventFilter{Kind: "task_completed"})
	if err != nil || len(got) != 1 || got[0].TaskID != 3 {
		t.Fatalf("filtered events=%+v err=%v", got, err)
	}

	snaps, err := idx.Snapshots(ctx, 0)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Tick != 100 || snaps[0].Formed != 1 || snaps[0].Requests != 1 {
		t.Fatalf("snapshots=%+v", snaps)
	}
	if n, err := idx.CountRequests(ctx, 100, "BLOCKED"); err != nil || n != 1 {
		t.Fatalf("blocked requests=%d err=%v want 1", n, err)
	}

	var names int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&names); err != nil || names != 4 {
		t.Fatalf("catalog rows=%d err=%v want 4", names, err)
	}
}
