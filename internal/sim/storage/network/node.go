package network

import (
	"hivenet.ai/internal/sim/storage/aggregate"
	"hivenet.ai/internal/sim/storage/graph"
	"hivenet.ai/internal/sim/voxel"
)

// EditSession is the edit-mode state shared by controllers and relays. While
// an actor is editing, chest toggles and links are accepted from that actor.
type EditSession struct {
	Actor      string
	Since      uint64
	LastActive uint64
}

func (e EditSession) Active() bool { return e.Actor != "" }

// node is the part of a network node that controllers and relays share:
// position, chest registry, edges and edit mode.
type node struct {
	hub    *Hub
	pos    voxel.Vec3i
	kind   graph.Kind
	chests *aggregate.ChestManager
	edges  graph.Edges
	edit   EditSession
}

func newNode(h *Hub, pos voxel.Vec3i, kind graph.Kind) node {
	cm := aggregate.NewChestManager(pos, h.cfg.ChestRange, h.registry, h.world)
	cm.SetAcceptFunc(func(p voxel.Vec3i) bool {
		return h.cat.DeviceKind(h.world.BlockAt(p).ID) == ""
	})
	return node{hub: h, pos: pos, kind: kind, chests: cm}
}

func (n *node) Pos() voxel.Vec3i      { return n.pos }
func (n *node) Kind() graph.Kind      { return n.kind }
func (n *node) Chests() []voxel.Vec3i { return n.chests.Chests() }
func (n *node) Edges() *graph.Edges   { return &n.edges }

func (n *node) Editing() EditSession { return n.edit }

// BeginEdit starts or refreshes an edit session for actor standing at actorPos.
func (n *node) BeginEdit(actor string, actorPos voxel.Vec3i) error {
	if actor == "" {
		return ErrNotEditing
	}
	if n.edit.Active() && n.edit.Actor != actor {
		return ErrEditBusy
	}
	if voxel.Chebyshev(actorPos, n.pos) > n.hub.cfg.EditRange {
		return ErrOutOfRange
	}
	if !n.edit.Active() {
		n.edit.Since = n.hub.now
	}
	n.edit.Actor = actor
	n.edit.LastActive = n.hub.now
	return nil
}

func (n *node) EndEdit(actor string) error {
	if !n.edit.Active() || n.edit.Actor != actor {
		return ErrNotEditing
	}
	n.edit = EditSession{}
	return nil
}

// touch checks that actor holds the edit session and marks it active.
func (n *node) touch(actor string) error {
	if !n.edit.Active() || n.edit.Actor != actor {
		return ErrNotEditing
	}
	n.edit.LastActive = n.hub.now
	return nil
}

// checkEdit ends the session when the actor disconnected, walked out of
// range or went idle.
func (n *node) checkEdit(nowTick uint64) {
	if !n.edit.Active() {
		return
	}
	expired := n.hub.cfg.EditIdleTicks > 0 && nowTick > n.edit.LastActive &&
		nowTick-n.edit.LastActive > uint64(n.hub.cfg.EditIdleTicks)
	if !expired && n.hub.actors != nil {
		pos, ok := n.hub.actors.ActorPos(n.edit.Actor)
		expired = !ok || voxel.Chebyshev(pos, n.pos) > n.hub.cfg.EditRange
	}
	if expired {
		n.hub.emit(Event{Kind: EventEditExpired, Node: n.pos, Detail: n.edit.Actor})
		n.edit = EditSession{}
	}
}

// ToggleChest flood-fills or removes chest registrations for the editing actor.
func (n *node) ToggleChest(actor string, p voxel.Vec3i) (registered bool, changed int, err error) {
	if err := n.touch(actor); err != nil {
		return false, 0, err
	}
	if voxel.Chebyshev(p, n.pos) > n.chests.Range() {
		return false, 0, ErrOutOfRange
	}
	if owner, ok := n.hub.registry.OwnerOf(p); ok && owner != n.pos {
		return false, 0, ErrOwnedElsewhere
	}
	registered, changed = n.chests.Toggle(p)
	return registered, changed, nil
}

// Link connects this node to the node at other.
func (n *node) Link(actor string, other voxel.Vec3i) error {
	if err := n.touch(actor); err != nil {
		return err
	}
	if _, ok := n.hub.graph.Resolve(other); !ok {
		return ErrUnknownNode
	}
	if voxel.Chebyshev(other, n.pos) > n.hub.cfg.LinkRange {
		return ErrOutOfRange
	}
	if !n.hub.graph.Connect(n.pos, other) {
		return ErrUnknownNode
	}
	return nil
}

func (n *node) Unlink(actor string, other voxel.Vec3i) error {
	if err := n.touch(actor); err != nil {
		return err
	}
	if !n.hub.graph.Disconnect(n.pos, other) {
		return ErrUnknownNode
	}
	return nil
}

// release drops every registration and edge the node holds.
func (n *node) release() {
	n.chests.Clear()
	n.hub.registry.UnregisterAllByOwner(n.pos)
	n.hub.graph.Remove(n.pos)
	n.edit = EditSession{}
}

// Relay extends a network's reach and chest set. It has no scheduler.
type Relay struct {
	node
}

func newRelay(h *Hub, pos voxel.Vec3i) *Relay {
	return &Relay{node: newNode(h, pos, graph.KindRelay)}
}

func (r *Relay) Tick(nowTick uint64) { r.checkEdit(nowTick) }
