package world

import (
	"hivenet.ai/internal/protocol"
	"hivenet.ai/internal/sim/storage/network"
	"hivenet.ai/internal/sim/voxel"
)

// NetworkViews builds one NETWORK_VIEW per placed controller, sorted by
// position.
func (w *World) NetworkViews(tick uint64) []protocol.NetworkViewMsg {
	ctrls := w.hub.Controllers()
	out := make([]protocol.NetworkViewMsg, 0, len(ctrls))
	for _, c := range ctrls {
		out = append(out, w.viewMsg(tick, c.View()))
	}
	return out
}

func (w *World) viewMsg(tick uint64, v network.View) protocol.NetworkViewMsg {
	m := protocol.NetworkViewMsg{
		Type:            protocol.TypeNetworkView,
		ProtocolVersion: protocol.Version,
		WorldID:         w.cfg.ID,
		Tick:            tick,
		Controller:      v.Pos.ToArray(),
		Formed:          v.Formed,
		Rotation:        v.Rotation,
		Fuel:            v.Fuel,
		GateOpen:        v.GateOpen,
		Editing:         v.Editing,
		Chests:          arrays(v.Chests),
		Nodes:           arrays(v.Nodes),
		Devices:         arrays(v.Devices),
	}
	for _, it := range v.Items {
		m.Items = append(m.Items, protocol.ItemView{Item: it.Template.Item, Tag: it.Template.Tag, Name: it.Name, Count: it.Count})
	}
	for _, t := range v.Tasks {
		m.Tasks = append(m.Tasks, protocol.TaskView{
			ID:          t.ID,
			Item:        t.Item,
			Count:       t.Count,
			Type:        t.Type,
			Status:      t.Status,
			Origin:      t.Origin.ToArray(),
			Destination: t.Destination.ToArray(),
			Phase:       t.Phase,
			Pos:         t.Pos.ToArray(),
		})
	}
	for _, r := range v.Requests {
		m.Requests = append(m.Requests, protocol.RequestView{
			ID:     r.ID,
			Type:   r.Type,
			Item:   r.Item,
			Count:  r.Count,
			Status: r.Status,
			Reason: r.Reason,
			Source: r.Source.ToArray(),
			Held:   r.Held,
		})
	}
	return m
}

func arrays(ps []voxel.Vec3i) [][3]int {
	if len(ps) == 0 {
		return nil
	}
	out := make([][3]int, len(ps))
	for i, p := range ps {
		out[i] = p.ToArray()
	}
	return out
}
