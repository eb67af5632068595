package carrier

import (
	"testing"

	"hivenet.ai/internal/sim/storage/delivery"
	"hivenet.ai/internal/sim/voxel"
)

type maxStack int

func (m maxStack) MaxStack(voxel.Template) int { return int(m) }

var coal = voxel.Template{Item: "COAL"}

func newTestSwarm(g *voxel.Grid, maxFlight int) *Swarm {
	return NewSwarm(Config{BlocksPerTick: 1, InteractTicks: 2, MaxFlightTicks: maxFlight}, g, maxStack(64))
}

func stepUntilReport(t *testing.T, s *Swarm, limit int) Report {
	t.Helper()
	for i := 0; i < limit; i++ {
		s.Step()
		if rs := s.Drain(); len(rs) > 0 {
			if len(rs) != 1 {
				t.Fatalf("reports=%v want 1", rs)
			}
			return rs[0]
		}
	}
	t.Fatalf("no report within %d ticks", limit)
	return Report{}
}

func TestExtractTripMovesItems(t *testing.T) {
	g := voxel.NewGrid()
	src := g.PlaceContainer(voxel.V(4, 0, 0), "CHEST", 3)
	dst := g.PlaceContainer(voxel.V(0, 0, 4), "IMPORT_INTERFACE", 3)
	src.Slots[0] = voxel.Stack("COAL", 10)

	s := newTestSwarm(g, 0)
	tk := delivery.Task{ID: 7, Template: coal, Count: 6, Origin: voxel.V(4, 0, 0), Destination: voxel.V(0, 0, 4), Type: delivery.Extract}
	if !s.Spawn(tk, voxel.V(0, 0, 0), voxel.V(0, 0, 0), 1, 1) {
		t.Fatalf("Spawn failed")
	}
	if s.Spawn(tk, voxel.V(0, 0, 0), voxel.V(0, 0, 0), 1, 1) {
		t.Fatalf("duplicate Spawn succeeded")
	}

	r := stepUntilReport(t, s, 100)
	if !r.OK || r.TaskID != 7 || !r.Leftover.Empty() {
		t.Fatalf("report=%+v", r)
	}
	if src.Count(coal) != 4 || dst.Count(coal) != 6 {
		t.Fatalf("src=%d dst=%d want 4/6", src.Count(coal), dst.Count(coal))
	}
	if b := s.Bees(); len(b) != 1 || b[0].Phase != Return {
		t.Fatalf("bee should be returning: %+v", b)
	}
	for i := 0; i < 20 && s.Len() > 0; i++ {
		s.Step()
	}
	if s.Len() != 0 {
		t.Fatalf("bee never got home")
	}
}

func TestFlightTakesDistanceOverSpeed(t *testing.T) {
	g := voxel.NewGrid()
	s := newTestSwarm(g, 0)
	tk := delivery.Task{ID: 1, Template: coal, Count: 1, Origin: voxel.V(10, 0, 0)}
	s.Spawn(tk, voxel.V(0, 0, 0), voxel.V(0, 0, 0), 1, 2)
	b := s.Bees()[0]
	if b.remaining != 5 {
		t.Fatalf("remaining=%d want 5 with search speed 2", b.remaining)
	}
}

func TestPreloadedDepositDoesNotTouchOrigin(t *testing.T) {
	g := voxel.NewGrid()
	origin := g.PlaceContainer(voxel.V(1, 0, 0), "EXPORT_INTERFACE", 1)
	dst := g.PlaceContainer(voxel.V(2, 0, 0), "CHEST", 1)
	origin.Slots[0] = voxel.Stack("COAL", 3)

	s := newTestSwarm(g, 0)
	tk := delivery.Task{ID: 2, Template: coal, Count: 5, Origin: voxel.V(1, 0, 0), Destination: voxel.V(2, 0, 0), Type: delivery.Deposit, Preloaded: true}
	s.Spawn(tk, voxel.V(0, 0, 0), voxel.V(0, 0, 0), 1, 1)
	r := stepUntilReport(t, s, 50)
	if !r.OK {
		t.Fatalf("report=%+v", r)
	}
	if origin.Count(coal) != 3 || dst.Count(coal) != 5 {
		t.Fatalf("origin=%d dst=%d want 3/5", origin.Count(coal), dst.Count(coal))
	}
}

func TestEmptyOriginFails(t *testing.T) {
	g := voxel.NewGrid()
	g.PlaceContainer(voxel.V(1, 0, 0), "CHEST", 1)
	s := newTestSwarm(g, 0)
	tk := delivery.Task{ID: 3, Template: coal, Count: 5, Origin: voxel.V(1, 0, 0), Destination: voxel.V(2, 0, 0)}
	s.Spawn(tk, voxel.V(0, 0, 0), voxel.V(0, 0, 0), 1, 1)
	r := stepUntilReport(t, s, 50)
	if r.OK || r.Reason != ReasonNothingToLoad {
		t.Fatalf("report=%+v", r)
	}
}

func TestMissingDestinationHandsPayloadBack(t *testing.T) {
	g := voxel.NewGrid()
	g.PlaceContainer(voxel.V(1, 0, 0), "CHEST", 1).Slots[0] = voxel.Stack("COAL", 5)
	s := newTestSwarm(g, 0)
	tk := delivery.Task{ID: 4, Template: coal, Count: 5, Origin: voxel.V(1, 0, 0), Destination: voxel.V(3, 0, 0)}
	s.Spawn(tk, voxel.V(0, 0, 0), voxel.V(0, 0, 0), 1, 1)
	r := stepUntilReport(t, s, 50)
	if r.OK || r.Reason != ReasonDestinationUnavailable || r.Leftover.Count != 5 {
		t.Fatalf("report=%+v want failure carrying 5", r)
	}
}

func TestFullDestinationReportsLeftover(t *testing.T) {
	g := voxel.NewGrid()
	g.PlaceContainer(voxel.V(1, 0, 0), "CHEST", 1).Slots[0] = voxel.Stack("COAL", 50)
	g.PlaceContainer(voxel.V(2, 0, 0), "CHEST", 1).Slots[0] = voxel.Stack("COAL", 60)
	s := newTestSwarm(g, 0)
	tk := delivery.Task{ID: 5, Template: coal, Count: 50, Origin: voxel.V(1, 0, 0), Destination: voxel.V(2, 0, 0)}
	s.Spawn(tk, voxel.V(0, 0, 0), voxel.V(0, 0, 0), 1, 1)
	r := stepUntilReport(t, s, 50)
	if !r.OK || r.Leftover.Count != 46 {
		t.Fatalf("report=%+v want ok with 46 left over", r)
	}
}

func TestTimeoutFailsAndRemovesBee(t *testing.T) {
	g := voxel.NewGrid()
	s := newTestSwarm(g, 3)
	tk := delivery.Task{ID: 6, Template: coal, Count: 1, Origin: voxel.V(100, 0, 0), Destination: voxel.V(0, 0, 1)}
	s.Spawn(tk, voxel.V(0, 0, 0), voxel.V(0, 0, 0), 1, 1)
	r := stepUntilReport(t, s, 10)
	if r.OK || r.Reason != ReasonTimeout {
		t.Fatalf("report=%+v", r)
	}
	if s.Len() != 0 {
		t.Fatalf("timed out bee still alive")
	}
}

func TestDiscardBeforeLoadIsSilent(t *testing.T) {
	g := voxel.NewGrid()
	s := newTestSwarm(g, 0)
	s.Spawn(delivery.Task{ID: 8, Template: coal, Count: 1}, voxel.V(0, 0, 0), voxel.V(0, 0, 0), 1, 1)
	s.Discard(8)
	s.Step()
	if s.Len() != 0 || len(s.Drain()) != 0 {
		t.Fatalf("discarded bee left traces")
	}
}

func TestDiscardHandsLoadedPayloadBack(t *testing.T) {
	g := voxel.NewGrid()
	src := voxel.V(0, 0, 0)
	g.PlaceContainer(src, "CHEST", 27).Insert(voxel.Stack("COAL", 5), 64)
	s := newTestSwarm(g, 0)
	s.Spawn(delivery.Task{ID: 3, Template: coal, Count: 5, Origin: src, Destination: voxel.V(20, 0, 0), Type: delivery.Extract}, src, src, 1, 1)
	for i := 0; i < 10 && s.Bees()[0].Payload.Empty(); i++ {
		s.Step()
	}
	if got := s.Bees()[0].Payload.Count; got != 5 {
		t.Fatalf("payload=%d want 5 before discard", got)
	}
	s.Drain()

	s.Discard(3)
	rs := s.Drain()
	if s.Len() != 0 || len(rs) != 1 {
		t.Fatalf("bees=%d reports=%v", s.Len(), rs)
	}
	if r := rs[0]; !r.Discarded || r.OK || r.TaskID != 3 || r.Leftover.Count != 5 || r.Leftover.Template != coal {
		t.Fatalf("report=%+v", r)
	}
}

func TestDiscardKeepsPreloadedPayloadWithRequest(t *testing.T) {
	g := voxel.NewGrid()
	s := newTestSwarm(g, 0)
	s.Spawn(delivery.Task{ID: 4, Template: coal, Count: 2, Preloaded: true, Destination: voxel.V(20, 0, 0), Type: delivery.Deposit}, voxel.V(0, 0, 0), voxel.V(0, 0, 0), 1, 1)
	for i := 0; i < 10; i++ {
		s.Step()
	}
	s.Drain()
	s.Discard(4)
	if len(s.Drain()) != 0 {
		t.Fatalf("preloaded payload reported back on discard")
	}
}

func TestSpawnRejectsUnloadedSpawnPoint(t *testing.T) {
	g := voxel.NewGrid()
	g.SetLoadedFunc(func(voxel.Vec3i) bool { return false })
	s := newTestSwarm(g, 0)
	if s.Spawn(delivery.Task{ID: 9, Template: coal, Count: 1}, voxel.V(0, 0, 0), voxel.V(0, 0, 0), 1, 1) {
		t.Fatalf("Spawn in unloaded region succeeded")
	}
}
