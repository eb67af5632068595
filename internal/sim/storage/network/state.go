package network

import (
	"fmt"

	"hivenet.ai/internal/sim/storage/delivery"
	"hivenet.ai/internal/sim/storage/ownership"
	"hivenet.ai/internal/sim/storage/requests"
	"hivenet.ai/internal/sim/voxel"
)

type DeviceLink struct {
	Pos  voxel.Vec3i
	Role ownership.Role
}

type ControllerState struct {
	Pos      voxel.Vec3i
	Formed   bool
	Rotation int
	Chests   []voxel.Vec3i
	Edges    []voxel.Vec3i
	Devices  []DeviceLink

	Requests requests.State
	Tasks    delivery.State
	Fuel     delivery.ReservoirState
}

type RelayState struct {
	Pos    voxel.Vec3i
	Chests []voxel.Vec3i
	Edges  []voxel.Vec3i
}

// HubState is the persisted form of every node in a world. Carriers and
// edit sessions are not saved: in-flight tasks come back queued and stay
// attached to their requests. Tasks no live request owns are dropped.
type HubState struct {
	Controllers []ControllerState
	Relays      []RelayState
}

func (h *Hub) Export() HubState {
	var st HubState
	for _, c := range h.Controllers() {
		cs := ControllerState{
			Pos:      c.pos,
			Formed:   c.formed,
			Rotation: c.rotation,
			Chests:   c.chests.Chests(),
			Edges:    c.edges.List(),
			Requests: c.requests.Export(),
			Tasks:    c.sched.Export(),
			Fuel:     c.fuel.Export(),
		}
		for _, p := range c.Devices() {
			role, _ := h.registry.RoleOf(p)
			cs.Devices = append(cs.Devices, DeviceLink{Pos: p, Role: role})
		}
		st.Controllers = append(st.Controllers, cs)
	}
	for _, r := range h.Relays() {
		st.Relays = append(st.Relays, RelayState{Pos: r.pos, Chests: r.chests.Chests(), Edges: r.edges.List()})
	}
	return st
}

// Import rebuilds nodes from st against the hub's current world. It must run
// on an empty hub. A saved formed controller stays formed only when its
// structure still validates at the saved rotation.
func (h *Hub) Import(st HubState) error {
	if len(h.controllers) > 0 || len(h.relays) > 0 {
		return fmt.Errorf("network: import into non-empty hub")
	}
	for _, rs := range st.Relays {
		r := newRelay(h, rs.Pos)
		h.relays[rs.Pos] = r
		h.graph.Add(r)
		for _, p := range rs.Chests {
			r.chests.Add(p)
		}
	}
	ctrls := make([]*Controller, 0, len(st.Controllers))
	for _, cs := range st.Controllers {
		c := newController(h, cs.Pos)
		h.controllers[cs.Pos] = c
		h.graph.Add(c)
		for _, p := range cs.Chests {
			c.chests.Add(p)
		}
		for _, d := range cs.Devices {
			h.registry.Register(d.Pos, c.pos, d.Role)
		}
		c.fuel.Import(cs.Fuel)
		owned := cs.Requests.TaskIDs()
		c.sched.Import(cs.Tasks, func(t delivery.Task) bool {
			_, ok := owned[t.ID]
			return ok
		})
		c.requests.Import(cs.Requests, func(id uint64) bool {
			_, ok := c.sched.Get(id)
			return ok
		})
		ctrls = append(ctrls, c)
	}

	for _, rs := range st.Relays {
		for _, e := range rs.Edges {
			h.graph.Connect(rs.Pos, e)
		}
	}
	for i, cs := range st.Controllers {
		for _, e := range cs.Edges {
			h.graph.Connect(cs.Pos, e)
		}
		c := ctrls[i]
		if cs.Formed && h.pattern.Validate(h.world, c.pos, cs.Rotation) {
			c.setFormed(cs.Rotation)
		}
	}
	return nil
}
