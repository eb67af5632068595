package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"hivenet.ai/internal/persistence/snapshot"
)

func TestLatestSnapshotPicksHighestTick(t *testing.T) {
	dir := t.TempDir()
	snaps := filepath.Join(dir, "snapshots")
	if err := os.MkdirAll(snaps, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"90.snap.zst", "1200.snap.zst", "300.snap.zst", "notes.txt", "x.snap.zst"} {
		if err := os.WriteFile(filepath.Join(snaps, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := latestSnapshot(dir), filepath.Join(snaps, "1200.snap.zst"); got != want {
		t.Fatalf("latest=%s want %s", got, want)
	}
	if got := latestSnapshot(t.TempDir()); got != "" {
		t.Fatalf("latest in empty dir=%q", got)
	}
}

func TestInspectPrintsSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "42.snap.zst")
	snap := snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: snapshot.Version, WorldID: "w", Tick: 42},
		TickRate: 5,
		Blocks: []snapshot.BlockV1{
			{Pos: [3]int{0, 64, 0}, ID: "CHEST", Slots: []snapshot.SlotV1{{Item: "COAL", Count: 3}}},
			{Pos: [3]int{1, 64, 0}, ID: "HIVE_CASING"},
		},
	}
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"inspect", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var got snapshot.Summary
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if got.Header.Tick != 42 || got.Blocks != 2 || got.Containers != 1 {
		t.Fatalf("summary=%+v", got)
	}
}

func TestLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:5000":     true,
		"10.0.0.2:5000":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", addr, got, want)
		}
	}
}
