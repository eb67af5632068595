package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"hivenet.ai/internal/persistence/snapshot"
	"hivenet.ai/internal/protocol"
	"hivenet.ai/internal/sim/catalogs"
	"hivenet.ai/internal/sim/tuning"
	"hivenet.ai/internal/sim/world"
)

func TestVerifySnapshotRoundTrip(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	w, err := world.New(world.ConfigFromTuning("w", tuning.Defaults()), cats, world.Options{})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	_, res := w.StepOnce([]protocol.CommandMsg{
		{Op: protocol.OpSetBlock, Pos: [3]int{4, 64, 0}, Block: "CHEST"},
		{Op: protocol.OpPutItems, Pos: [3]int{4, 64, 0}, Item: "COAL", Count: 12},
		{Op: protocol.OpSetBlock, Pos: [3]int{0, 64, 0}, Block: "HIVE_RELAY"},
		{Op: protocol.OpMoveActor, Actor: "alice", Pos: [3]int{0, 64, 2}},
	})
	for i, r := range res {
		if !r.OK {
			t.Fatalf("cmd %d: %s %s", i, r.Code, r.Message)
		}
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "snapshots", "0.snap.zst")
	if err := snapshot.WriteSnapshot(path, w.ExportSnapshot(0)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := latestSnapshot(dir); got != path {
		t.Fatalf("latest=%s want %s", got, path)
	}

	before, after, err := verifySnapshot(path, cats)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if before != after {
		t.Fatalf("before=%+v after=%+v", before, after)
	}
	if before.Containers != 1 || before.Relays != 1 || before.Actors != 1 {
		t.Fatalf("summary=%+v", before)
	}
}

func TestSnapshotFilesSorted(t *testing.T) {
	dir := t.TempDir()
	snaps := filepath.Join(dir, "snapshots")
	if err := os.MkdirAll(snaps, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, n := range []string{"600.snap.zst", "30.snap.zst", "bad.snap.zst", "3000.snap.zst"} {
		if err := os.WriteFile(filepath.Join(snaps, n), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files := snapshotFiles(dir)
	if len(files) != 3 || files[0].tick != 30 || files[2].tick != 3000 {
		t.Fatalf("files=%+v", files)
	}
}

func TestAdminRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/v1/snapshot" || r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = rw.Write([]byte(`{"ok":true,"tick":9}` + "\n"))
	}))
	defer srv.Close()

	body, code, err := adminRequest(srv.Client(), http.MethodPost, srv.URL+"/", "snapshot")
	if err != nil || code != 200 || body != `{"ok":true,"tick":9}` {
		t.Fatalf("body=%q code=%d err=%v", body, code, err)
	}
	if _, code, _ := adminRequest(srv.Client(), http.MethodGet, srv.URL, "snapshot"); code != http.StatusNotFound {
		t.Fatalf("code=%d want 404", code)
	}
}
