package worldtest

import (
	"testing"

	"hivenet.ai/internal/protocol"
	"hivenet.ai/internal/sim/catalogs"
	"hivenet.ai/internal/sim/tuning"
	"hivenet.ai/internal/sim/voxel"
	world "hivenet.ai/internal/sim/world"
)

// Harness is a small black-box test helper for driving a world via exported
// APIs: every command goes through StepOnce, views and events are captured
// from the world's options.
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World

	Views  []protocol.NetworkViewMsg
	Events []world.EventEntry
}

// FastConfig runs every network cadence each tick except fuel, which is
// burned every 10 ticks.
func FastConfig(id string) world.Config {
	t := tuning.Defaults()
	t.ViewEveryTicks = 1
	n := &t.Network
	n.DispatchEveryTicks = 1
	n.FuelEveryTicks = 10
	n.FuelPerInterval = 1
	n.SyncEveryTicks = 1
	n.ProcessEveryTicks = 1
	n.RecheckEveryTicks = 5
	n.ValidateEveryTicks = 10
	n.CarrierInteractTicks = 1
	n.EditIdleTicks = 200
	return world.ConfigFromTuning(id, t)
}

func LoadCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func NewHarness(t *testing.T, cfg world.Config) *Harness {
	t.Helper()
	h := &Harness{T: t, Cats: LoadCatalogs(t)}
	w, err := world.New(cfg, h.Cats, world.Options{
		Events: []world.EventLogger{h},
		Views:  func(_ uint64, vs []protocol.NetworkViewMsg) { h.Views = vs },
	})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	h.W = w
	return h
}

func (h *Harness) WriteEvent(e world.EventEntry) error {
	h.Events = append(h.Events, e)
	return nil
}

// Do runs one tick with a single command and returns its result.
func (h *Harness) Do(cmd protocol.CommandMsg) protocol.CommandResultMsg {
	h.T.Helper()
	cmd.Type = protocol.TypeCommand
	cmd.ProtocolVersion = protocol.Version
	_, res := h.W.StepOnce([]protocol.CommandMsg{cmd})
	if len(res) != 1 {
		h.T.Fatalf("results=%d want 1", len(res))
	}
	return res[0]
}

// Must is Do that fails the test on a rejected command.
func (h *Harness) Must(cmd protocol.CommandMsg) protocol.CommandResultMsg {
	h.T.Helper()
	r := h.Do(cmd)
	if !r.OK {
		h.T.Fatalf("%s: code=%s message=%s", cmd.Op, r.Code, r.Message)
	}
	return r
}

func (h *Harness) StepFor(n int) {
	for i := 0; i < n; i++ {
		h.W.StepOnce(nil)
	}
}

func (h *Harness) SetBlock(p voxel.Vec3i, id, facing string) {
	h.T.Helper()
	h.Must(protocol.CommandMsg{Op: protocol.OpSetBlock, Pos: p.ToArray(), Block: id, Facing: facing})
}

// BuildController places the controller block and its structure at o in the
// unrotated orientation.
func (h *Harness) BuildController(o voxel.Vec3i) {
	h.T.Helper()
	h.SetBlock(o, "HIVE_CONTROLLER", "")
	def, ok := h.Cats.Patterns.ByID["hive_controller"]
	if !ok {
		h.T.Fatalf("hive_controller pattern missing")
	}
	for _, el := range def.Elements {
		at := o.Add(voxel.FromArray(el.Pos))
		switch {
		case el.Air:
		case len(el.AnyOf) > 0:
			h.SetBlock(at, el.AnyOf[0], "")
		default:
			h.SetBlock(at, el.Block, el.Facing)
		}
	}
}

// View returns the latest captured view of the controller at p.
func (h *Harness) View(p voxel.Vec3i) (protocol.NetworkViewMsg, bool) {
	for _, v := range h.Views {
		if v.Controller == p.ToArray() {
			return v, true
		}
	}
	return protocol.NetworkViewMsg{}, false
}

// Count sums item in the inventory at p from an exported snapshot.
func (h *Harness) Count(p voxel.Vec3i, item string) int {
	snap := h.W.ExportSnapshot(h.W.CurrentTick())
	n := 0
	for _, b := range snap.Blocks {
		if b.Pos != p.ToArray() {
			continue
		}
		for _, s := range b.Slots {
			if s.Item == item {
				n += s.Count
			}
		}
	}
	return n
}

func (h *Harness) SawEvent(kind string) bool {
	for _, e := range h.Events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
