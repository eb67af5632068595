package log

import (
	"path/filepath"
	"testing"
	"time"

	"hivenet.ai/internal/sim/world"
)

func TestEventLoggerRotatesAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLogger(dir)
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		if err := l.WriteEvent(world.EventEntry{Tick: uint64(i), WorldID: "w", Kind: "formed", Node: [3]int{i, 64, 0}}); err != nil {
			t.Fatalf("WriteEvent: %v", err)
		}
	}
	clock = clock.Add(2 * time.Minute)
	if err := l.WriteEvent(world.EventEntry{Tick: 3, WorldID: "w", Kind: "unformed"}); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "events", "*.jsonl.zst"))
	if len(files) != 2 {
		t.Fatalf("files=%v want 2", files)
	}

	// Writing after Close reopens the current hour and appends a new frame.
	if err := l.WriteEvent(world.EventEntry{Tick: 4, WorldID: "w", Kind: "destroyed", Count: 7}); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadEvents(dir)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("events=%d want 5", len(got))
	}
	for i, e := range got {
		if e.Tick != uint64(i) {
			t.Fatalf("event %d tick=%d", i, e.Tick)
		}
	}
	if got[1].Node != [3]int{1, 64, 0} || got[4].Kind != "destroyed" || got[4].Count != 7 {
		t.Fatalf("decoded=%+v", got)
	}
}

func TestReadEventsEmptyDir(t *testing.T) {
	got, err := ReadEvents(t.TempDir())
	if err != nil || len(got) != 0 {
		t.Fatalf("got=%v err=%v", got, err)
	}
}
