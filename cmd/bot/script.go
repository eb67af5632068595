package main

import (
	"fmt"

	"hivenet.ai/internal/protocol"
	"hivenet.ai/internal/sim/catalogs"
	"hivenet.ai/internal/sim/voxel"
)

const controllerPattern = "hive_controller"

// Layout relative to the controller.
var (
	chestOff = voxel.V(4, 0, 0)
	ifaceOff = voxel.V(0, 0, 4)
	standOff = voxel.V(0, 0, 2)
)

func command(op string) protocol.CommandMsg {
	return protocol.CommandMsg{Type: protocol.TypeCommand, ProtocolVersion: protocol.Version, ReqID: fmt.Sprintf("bot-%s", op), Op: op}
}

// buildScript returns the commands that raise an unrotated controller at
// origin, stock a chest with 2*count of item, register it, link an import
// interface, fuel the controller and publish the import.
func buildScript(cats *catalogs.Catalogs, origin voxel.Vec3i, actor, item string, count int) ([]protocol.CommandMsg, error) {
	def, ok := cats.Patterns.ByID[controllerPattern]
	if !ok {
		return nil, fmt.Errorf("pattern %s missing", controllerPattern)
	}
	at := origin.ToArray()
	chest := origin.Add(chestOff).ToArray()
	iface := origin.Add(ifaceOff).ToArray()

	set := func(p voxel.Vec3i, block, facing string) protocol.CommandMsg {
		c := command(protocol.OpSetBlock)
		c.Pos, c.Block, c.Facing = p.ToArray(), block, facing
		return c
	}

	out := []protocol.CommandMsg{set(origin, "HIVE_CONTROLLER", "")}
	for _, el := range def.Elements {
		p := origin.Add(voxel.FromArray(el.Pos))
		switch {
		case el.Air:
		case len(el.AnyOf) > 0:
			out = append(out, set(p, el.AnyOf[0], ""))
		default:
			out = append(out, set(p, el.Block, el.Facing))
		}
	}
	out = append(out, set(origin.Add(chestOff), "CHEST", ""), set(origin.Add(ifaceOff), "IMPORT_INTERFACE", ""))

	put := command(protocol.OpPutItems)
	put.Pos, put.Item, put.Count = chest, item, 2*count
	move := command(protocol.OpMoveActor)
	move.Actor, move.Pos = actor, origin.Add(standOff).ToArray()
	edit := command(protocol.OpBeginEdit)
	edit.Actor, edit.Pos = actor, at
	toggle := command(protocol.OpToggleChest)
	toggle.Actor, toggle.Pos, toggle.Target = actor, at, chest
	link := command(protocol.OpLinkDevice)
	link.Actor, link.Pos, link.Target = actor, at, iface
	done := command(protocol.OpEndEdit)
	done.Actor, done.Pos = actor, at
	fuel := command(protocol.OpAddFuel)
	fuel.Pos, fuel.Item, fuel.Count = at, "HONEY_BOTTLE", 16
	pub := command(protocol.OpPublish)
	pub.Pos, pub.Target, pub.RequestType, pub.Item, pub.Count = at, iface, "IMPORT", item, count

	return append(out, put, move, edit, toggle, link, done, fuel, pub), nil
}

func pendingQuery(origin voxel.Vec3i, item string) protocol.CommandMsg {
	q := command(protocol.OpRequestedCount)
	q.Pos = origin.ToArray()
	q.Target = origin.Add(ifaceOff).ToArray()
	q.RequestType = "IMPORT"
	q.Item = item
	return q
}
