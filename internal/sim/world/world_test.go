package world

import (
	"context"
	"errors"
	"testing"
	"time"

	"hivenet.ai/internal/persistence/snapshot"
	"hivenet.ai/internal/protocol"
	"hivenet.ai/internal/sim/catalogs"
	"hivenet.ai/internal/sim/tuning"
)

func newTestWorld(t *testing.T, opts Options) *World {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	tu := tuning.Defaults()
	tu.TickRateHz = 200
	w, err := New(ConfigFromTuning("test", tu), cats, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func startWorld(t *testing.T, w *World) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() {
		w.Stop()
		stop()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("Run did not return")
		}
	}
}

func TestSubmitAppliesAtTickBoundary(t *testing.T) {
	w := newTestWorld(t, Options{})
	defer startWorld(t, w)()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := w.Submit(ctx, protocol.CommandMsg{ReqID: "r1", Op: protocol.OpMoveActor, Actor: "alice", Pos: [3]int{1, 2, 3}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.OK || res.ReqID != "r1" || res.Type != protocol.TypeCommandResult {
		t.Fatalf("result=%+v", res)
	}

	res, err = w.Submit(ctx, protocol.CommandMsg{Op: protocol.OpLeave, Actor: "bob"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.OK || res.Code != protocol.ErrNotFound {
		t.Fatalf("leave unknown actor result=%+v", res)
	}
}

func TestRequestSnapshot(t *testing.T) {
	sink := make(chan snapshot.SnapshotV1, 1)
	w := newTestWorld(t, Options{SnapshotSink: sink})
	defer startWorld(t, w)()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tick, err := w.RequestSnapshot(ctx)
	if err != nil {
		t.Fatalf("RequestSnapshot: %v", err)
	}
	select {
	case snap := <-sink:
		if snap.Header.Tick != tick || snap.Header.WorldID != "test" {
			t.Fatalf("header=%+v want tick %d", snap.Header, tick)
		}
	default:
		t.Fatalf("no snapshot in sink")
	}
}

func TestRequestSnapshotWithoutSink(t *testing.T) {
	w := newTestWorld(t, Options{})
	defer startWorld(t, w)()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := w.RequestSnapshot(ctx); !errors.Is(err, ErrNoSnapshotSink) {
		t.Fatalf("err=%v want %v", err, ErrNoSnapshotSink)
	}
}

func TestPeriodicSnapshotAndViews(t *testing.T) {
	sink := make(chan snapshot.SnapshotV1, 4)
	views := 0
	w := newTestWorld(t, Options{
		SnapshotSink: sink,
		Views:        func(uint64, []protocol.NetworkViewMsg) { views++ },
	})
	w.cfg.SnapshotEveryTicks = 5
	w.cfg.ViewEveryTicks = 2

	for i := 0; i < 11; i++ {
		w.StepOnce(nil)
	}
	// Ticks 5 and 10 snapshot; tick 0 never does.
	if len(sink) != 2 {
		t.Fatalf("snapshots=%d want 2", len(sink))
	}
	// Ticks 0,2,4,6,8,10.
	if views != 6 {
		t.Fatalf("views=%d want 6", views)
	}
	if m := w.Metrics(); m.Tick != 11 {
		t.Fatalf("metrics tick=%d want 11", m.Tick)
	}
}

type failingLogger struct{ n int }

func (f *failingLogger) WriteEvent(EventEntry) error {
	f.n++
	return errors.New("disk full")
}

func TestEventLoggerErrorsDoNotStopTheTick(t *testing.T) {
	l := &failingLogger{}
	w := newTestWorld(t, Options{Events: []EventLogger{l}})
	_, res := w.StepOnce([]protocol.CommandMsg{{Op: protocol.OpSetBlock, Pos: [3]int{0, 64, 0}, Block: "HIVE_RELAY"}, {Op: protocol.OpRemoveBlock, Pos: [3]int{0, 64, 0}}})
	if !res[0].OK || !res[1].OK {
		t.Fatalf("results=%+v", res)
	}
	// Removing the relay emits one destroyed event.
	if l.n != 1 {
		t.Fatalf("logger calls=%d want 1", l.n)
	}
	if w.CurrentTick() != 1 {
		t.Fatalf("tick=%d want 1", w.CurrentTick())
	}
}
