package delivery

import (
	"testing"

	"hivenet.ai/internal/sim/voxel"
)

type fakeSpawner struct {
	fail      bool
	spawned   []Task
	discarded []uint64
}

func (f *fakeSpawner) Spawn(t Task, _, _ voxel.Vec3i, _, _ float64) bool {
	if f.fail {
		return false
	}
	f.spawned = append(f.spawned, t)
	return true
}

func (f *fakeSpawner) Discard(id uint64) { f.discarded = append(f.discarded, id) }

type fakeListener struct {
	completed []uint64
	failed    []uint64
	splits    [][2]Task
}

func (l *fakeListener) OnTaskCompleted(id uint64) { l.completed = append(l.completed, id) }
func (l *fakeListener) OnTaskFailed(id uint64)    { l.failed = append(l.failed, id) }
func (l *fakeListener) OnTaskSplit(orig, rem Task) {
	l.splits = append(l.splits, [2]Task{orig, rem})
}

type openGate bool

func (g openGate) Open() bool { return bool(g) }

func newTestScheduler(gate Gate) (*Scheduler, *fakeSpawner, *fakeListener) {
	sp := &fakeSpawner{}
	l := &fakeListener{}
	s := NewScheduler(Config{Capacity: 64, MaxActive: 2, DispatchEveryTicks: 1, CompletedHistory: 8}, sp, gate)
	s.SetListener(l)
	return s, sp, l
}

func task(count, priority int) Task {
	return Task{Template: voxel.Template{Item: "COAL"}, Count: count, Priority: priority, Type: Extract}
}

func TestDispatchRespectsCapAndPriority(t *testing.T) {
	s, sp, _ := newTestScheduler(openGate(true))
	low := s.Enqueue(task(1, 5))
	high := s.Enqueue(task(1, 0))
	mid := s.Enqueue(task(1, 1))

	s.Dispatch(1)
	if s.ActiveLen() != 2 || s.QueueLen() != 1 {
		t.Fatalf("active=%d queued=%d want 2/1", s.ActiveLen(), s.QueueLen())
	}
	if sp.spawned[0].ID != high || sp.spawned[1].ID != mid {
		t.Fatalf("spawn order=%v want high,mid", sp.spawned)
	}
	if q := s.Queued(); q[0].ID != low {
		t.Fatalf("queued=%v want low", q)
	}
}

func TestDispatchSplitsOversizedTasks(t *testing.T) {
	s, sp, l := newTestScheduler(openGate(true))
	id := s.Enqueue(task(150, 0))

	s.Dispatch(1)
	if len(sp.spawned) != 2 || sp.spawned[0].Count != 64 || sp.spawned[1].Count != 64 {
		t.Fatalf("spawned=%v want two full loads", sp.spawned)
	}
	if sp.spawned[0].ID != id {
		t.Fatalf("first piece should keep the original id")
	}
	q := s.Queued()
	if len(q) != 1 || q[0].Count != 22 {
		t.Fatalf("queued=%v want remainder 22", q)
	}
	if len(l.splits) != 2 || l.splits[0][0].Count != 64 || l.splits[0][1].Count != 86 {
		t.Fatalf("splits=%v", l.splits)
	}
}

func TestChildWaitsForParentCompletion(t *testing.T) {
	s, sp, l := newTestScheduler(openGate(true))
	parent := s.Enqueue(task(1, 0))
	child := task(1, 0)
	child.ParentID = parent
	childID := s.Enqueue(child)

	s.Dispatch(1)
	if s.ActiveLen() != 1 {
		t.Fatalf("child dispatched before parent completed")
	}
	s.MarkCompleted(parent)
	s.Dispatch(2)
	if len(l.completed) != 1 || l.completed[0] != parent {
		t.Fatalf("completed=%v", l.completed)
	}
	if !s.Completed(parent) {
		t.Fatalf("parent missing from completed set")
	}
	if len(sp.spawned) != 2 || sp.spawned[1].ID != childID {
		t.Fatalf("spawned=%v want child second", sp.spawned)
	}
}

func TestSpawnFailureFailsTaskImmediately(t *testing.T) {
	s, sp, l := newTestScheduler(openGate(true))
	sp.fail = true
	id := s.Enqueue(task(1, 0))
	s.Dispatch(1)
	if len(l.failed) != 1 || l.failed[0] != id {
		t.Fatalf("failed=%v want [%d]", l.failed, id)
	}
	if s.ActiveLen() != 0 || s.QueueLen() != 0 {
		t.Fatalf("failed task should leave the scheduler")
	}
}

func TestMarkFailedIsReapedOnNextDispatch(t *testing.T) {
	s, _, l := newTestScheduler(openGate(true))
	id := s.Enqueue(task(1, 0))
	s.Dispatch(1)
	if !s.MarkFailed(id) {
		t.Fatalf("MarkFailed on flying task returned false")
	}
	if len(l.failed) != 0 {
		t.Fatalf("failure reported before reaping")
	}
	s.Dispatch(2)
	if len(l.failed) != 1 || s.ActiveLen() != 0 {
		t.Fatalf("failed=%v active=%d", l.failed, s.ActiveLen())
	}
	if s.Completed(id) {
		t.Fatalf("failed task recorded as completed")
	}
}

func TestClosedGateHoldsQueue(t *testing.T) {
	r := NewReservoir(10, 1)
	s, sp, _ := newTestScheduler(r)
	s.Enqueue(task(1, 0))
	s.Dispatch(1)
	if len(sp.spawned) != 0 {
		t.Fatalf("dispatched with empty reservoir")
	}
	r.Add(1)
	s.Dispatch(2)
	if len(sp.spawned) != 0 {
		t.Fatalf("gate opened before the fuel interval")
	}
	r.ConsumeInterval(10)
	s.Dispatch(11)
	if len(sp.spawned) != 1 {
		t.Fatalf("spawned=%d want 1 after fuel interval", len(sp.spawned))
	}
	r.ConsumeInterval(20)
	if r.Open() || r.Fuel() != 0 {
		t.Fatalf("reservoir open=%v fuel=%d want closed/0", r.Open(), r.Fuel())
	}
}

func TestTeardownClearsEverything(t *testing.T) {
	s, sp, _ := newTestScheduler(openGate(true))
	for i := 0; i < 5; i++ {
		s.Enqueue(task(1, 0))
	}
	s.Dispatch(1)
	flying := s.Teardown()
	if len(flying) != 2 || len(sp.discarded) != 2 {
		t.Fatalf("flying=%d discarded=%d want 2/2", len(flying), len(sp.discarded))
	}
	if s.ActiveLen() != 0 || s.QueueLen() != 0 {
		t.Fatalf("active=%d queued=%d want 0/0", s.ActiveLen(), s.QueueLen())
	}
}

func TestCancelQueuedAndActive(t *testing.T) {
	s, sp, _ := newTestScheduler(openGate(true))
	a := s.Enqueue(task(1, 0))
	s.Dispatch(1)
	b := s.Enqueue(task(1, 0))

	if got, ok := s.Cancel(b); !ok || got.Status != Queued {
		t.Fatalf("Cancel queued=%v,%v", got, ok)
	}
	if got, ok := s.Cancel(a); !ok || got.Status != Flying {
		t.Fatalf("Cancel active=%v,%v", got, ok)
	}
	if len(sp.discarded) != 1 || sp.discarded[0] != a {
		t.Fatalf("discarded=%v", sp.discarded)
	}
	if _, ok := s.Cancel(a); ok {
		t.Fatalf("double cancel succeeded")
	}
}

func TestExportRequeuesActive(t *testing.T) {
	s, _, _ := newTestScheduler(openGate(true))
	first := s.Enqueue(task(1, 0))
	s.Enqueue(task(1, 0))
	s.Enqueue(task(1, 0))
	s.Dispatch(1)
	s.MarkCompleted(first)
	s.Dispatch(2)

	st := s.Export()
	if len(st.Tasks) != 2 {
		t.Fatalf("exported %d tasks want 2", len(st.Tasks))
	}
	for _, tk := range st.Tasks {
		if tk.Status != Queued {
			t.Fatalf("exported status=%v want QUEUED", tk.Status)
		}
	}

	restored, _, _ := newTestScheduler(openGate(true))
	restored.Import(st, nil)
	if restored.QueueLen() != 2 || restored.ActiveLen() != 0 {
		t.Fatalf("restored queued=%d active=%d", restored.QueueLen(), restored.ActiveLen())
	}
	if !restored.Completed(first) {
		t.Fatalf("completed history lost")
	}
	if id := restored.Enqueue(task(1, 0)); id <= st.Tasks[1].ID {
		t.Fatalf("id %d reused after import", id)
	}
}

func TestCompletedHistoryIsBounded(t *testing.T) {
	r := newIDRing(2)
	r.Add(1)
	r.Add(2)
	r.Add(3)
	if r.Has(1) || !r.Has(2) || !r.Has(3) {
		t.Fatalf("ring=%v", r.List())
	}
}
