package network

import (
	"hivenet.ai/internal/sim/storage/aggregate"
	"hivenet.ai/internal/sim/voxel"
)

// View is the presentation snapshot of one controller's network.
type View struct {
	Pos      voxel.Vec3i
	Formed   bool
	Rotation int
	Fuel     int
	GateOpen bool
	Editing  string

	Items    []aggregate.AggregatedItem
	Chests   []voxel.Vec3i
	Nodes    []voxel.Vec3i
	Devices  []voxel.Vec3i
	Tasks    []TaskView
	Requests []RequestView
}

type TaskView struct {
	ID          uint64
	Item        string
	Count       int
	Type        string
	Status      string
	Origin      voxel.Vec3i
	Destination voxel.Vec3i
	// Phase is the carrier phase of an active task.
	Phase string
	Pos   voxel.Vec3i
}

type RequestView struct {
	ID     string
	Type   string
	Item   string
	Count  int
	Status string
	Reason string
	Source voxel.Vec3i
	Held   int
}

// View builds the presentation snapshot. Items come from the last sync.
func (c *Controller) View() View {
	v := View{
		Pos:      c.pos,
		Formed:   c.formed,
		Rotation: c.rotation,
		Fuel:     c.fuel.Fuel(),
		GateOpen: c.fuel.Open(),
		Editing:  c.edit.Actor,
		Items:    c.agg.Items(),
		Chests:   c.hub.graph.ReachableChests(c.pos),
		Devices:  c.Devices(),
	}
	for _, n := range c.hub.graph.ReachableNodes(c.pos) {
		v.Nodes = append(v.Nodes, n.Pos())
	}

	bees := map[uint64]int{}
	all := c.swarm.Bees()
	for i, b := range all {
		bees[b.Task.ID] = i
	}
	for _, t := range append(c.sched.Active(), c.sched.Queued()...) {
		tv := TaskView{
			ID:          t.ID,
			Item:        t.Template.String(),
			Count:       t.Count,
			Type:        t.Type.String(),
			Status:      t.Status.String(),
			Origin:      t.Origin,
			Destination: t.Destination,
		}
		if i, ok := bees[t.ID]; ok {
			tv.Phase = all[i].Phase.String()
			tv.Pos = all[i].Pos
		}
		v.Tasks = append(v.Tasks, tv)
	}
	for _, r := range c.requests.List() {
		v.Requests = append(v.Requests, RequestView{
			ID:     r.ID,
			Type:   r.Type.String(),
			Item:   r.Template.String(),
			Count:  r.Count,
			Status: r.Status.String(),
			Reason: r.Reason,
			Source: r.Source,
			Held:   r.Held.Count,
		})
	}
	return v
}
