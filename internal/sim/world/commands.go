package world

import (
	"errors"
	"fmt"

	"hivenet.ai/internal/protocol"
	"hivenet.ai/internal/sim/storage/network"
	"hivenet.ai/internal/sim/storage/requests"
	"hivenet.ai/internal/sim/voxel"
)

// commandError carries a protocol error code through the command handlers.
type commandError struct {
	code string
	msg  string
}

func (e *commandError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &commandError{code: protocol.ErrBadRequest, msg: fmt.Sprintf(format, args...)}
}

func invalidTarget(format string, args ...any) error {
	return &commandError{code: protocol.ErrInvalidTarget, msg: fmt.Sprintf(format, args...)}
}

func errorCode(err error) string {
	var ce *commandError
	switch {
	case errors.As(err, &ce):
		return ce.code
	case errors.Is(err, network.ErrNotFormed):
		return protocol.ErrBlocked
	case errors.Is(err, network.ErrNotEditing):
		return protocol.ErrNoPermission
	case errors.Is(err, network.ErrEditBusy), errors.Is(err, network.ErrOwnedElsewhere):
		return protocol.ErrConflict
	case errors.Is(err, network.ErrOutOfRange):
		return protocol.ErrOutOfRange
	case errors.Is(err, network.ErrUnknownNode), errors.Is(err, network.ErrUnknownDevice), errors.Is(err, requests.ErrNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, network.ErrNotDevice):
		return protocol.ErrInvalidTarget
	case errors.Is(err, network.ErrNotFuel), errors.Is(err, network.ErrNothingHeld):
		return protocol.ErrNoResource
	case errors.Is(err, requests.ErrInvalidCount), errors.Is(err, requests.ErrInvalidType), errors.Is(err, requests.ErrInvalidTemplate):
		return protocol.ErrBadRequest
	}
	return protocol.ErrInternal
}

func newResult(cmd protocol.CommandMsg, tick uint64) protocol.CommandResultMsg {
	return protocol.CommandResultMsg{
		Type:            protocol.TypeCommandResult,
		ProtocolVersion: protocol.Version,
		ReqID:           cmd.ReqID,
		Tick:            tick,
	}
}

// outcome is the successful part of a command result.
type outcome struct {
	RequestID string
	Count     int
	Changed   int
	Message   string
}

func (w *World) applyCommand(cmd protocol.CommandMsg, nowTick uint64) protocol.CommandResultMsg {
	res := newResult(cmd, nowTick)
	out, err := w.dispatch(cmd)
	if err != nil {
		res.Code = errorCode(err)
		res.Message = err.Error()
		return res
	}
	res.OK = true
	res.RequestID = out.RequestID
	res.Count = out.Count
	res.Changed = out.Changed
	res.Message = out.Message
	return res
}

func (w *World) dispatch(cmd protocol.CommandMsg) (outcome, error) {
	pos := voxel.FromArray(cmd.Pos)
	target := voxel.FromArray(cmd.Target)

	switch cmd.Op {
	case protocol.OpSetBlock:
		return outcome{}, w.setBlock(pos, cmd.Block, cmd.Facing)
	case protocol.OpRemoveBlock:
		if w.grid.BlockAt(pos).IsAir() {
			return outcome{}, invalidTarget("no block at %s", pos)
		}
		w.grid.RemoveBlock(pos)
		w.hub.OnBlockChanged(pos)
		return outcome{}, nil
	case protocol.OpPutItems:
		return w.putItems(pos, cmd)
	case protocol.OpMoveActor:
		if cmd.Actor == "" {
			return outcome{}, badRequest("missing actor")
		}
		w.actors[cmd.Actor] = pos
		return outcome{}, nil
	case protocol.OpLeave:
		if _, ok := w.actors[cmd.Actor]; !ok {
			return outcome{}, &commandError{code: protocol.ErrNotFound, msg: "unknown actor"}
		}
		delete(w.actors, cmd.Actor)
		return outcome{}, nil

	case protocol.OpBeginEdit, protocol.OpEndEdit, protocol.OpToggleChest, protocol.OpLink, protocol.OpUnlink:
		return w.editCommand(cmd, pos, target)

	case protocol.OpLinkDevice, protocol.OpUnlinkDevice, protocol.OpPublish, protocol.OpCancel,
		protocol.OpCancelRequester, protocol.OpRequestedCount, protocol.OpAddFuel, protocol.OpDeposit, protocol.OpExtract:
		c, ok := w.hub.Controller(pos)
		if !ok {
			return outcome{}, network.ErrUnknownNode
		}
		return w.controllerCommand(c, cmd, target)
	}
	return outcome{}, badRequest("unknown op %q", cmd.Op)
}

func (w *World) setBlock(p voxel.Vec3i, id, facing string) error {
	if id == "" || id == voxel.Air {
		w.grid.RemoveBlock(p)
		w.hub.OnBlockChanged(p)
		return nil
	}
	def, ok := w.cats.Blocks.Defs[id]
	if !ok {
		return badRequest("unknown block %q", id)
	}
	b := voxel.Block{ID: id}
	if facing != "" {
		f, ok := voxel.ParseFacing(facing)
		if !ok {
			return badRequest("bad facing %q", facing)
		}
		b.Facing = f
	}
	if def.Container {
		w.grid.PlaceContainer(p, id, def.Slots)
	} else {
		w.grid.SetBlock(p, b)
	}
	w.hub.OnBlockChanged(p)
	return nil
}

func (w *World) stack(cmd protocol.CommandMsg) (voxel.ItemStack, error) {
	if _, ok := w.cats.Items.Defs[cmd.Item]; !ok {
		return voxel.ItemStack{}, badRequest("unknown item %q", cmd.Item)
	}
	if cmd.Count <= 0 {
		return voxel.ItemStack{}, badRequest("count must be positive")
	}
	return voxel.ItemStack{Template: voxel.Template{Item: cmd.Item, Tag: cmd.Tag}, Count: cmd.Count}, nil
}

func (w *World) putItems(p voxel.Vec3i, cmd protocol.CommandMsg) (outcome, error) {
	inv := w.grid.Inventory(p)
	if inv == nil {
		return outcome{}, invalidTarget("no inventory at %s", p)
	}
	st, err := w.stack(cmd)
	if err != nil {
		return outcome{}, err
	}
	left := inv.Insert(st, w.cats.MaxStack(st.Template))
	return outcome{Count: st.Count - left.Count}, nil
}

// editable is the edit-mode surface controllers and relays share.
type editable interface {
	BeginEdit(actor string, actorPos voxel.Vec3i) error
	EndEdit(actor string) error
	ToggleChest(actor string, p voxel.Vec3i) (registered bool, changed int, err error)
	Link(actor string, other voxel.Vec3i) error
	Unlink(actor string, other voxel.Vec3i) error
}

func (w *World) node(p voxel.Vec3i) (editable, bool) {
	if c, ok := w.hub.Controller(p); ok {
		return c, true
	}
	if r, ok := w.hub.Relay(p); ok {
		return r, true
	}
	return nil, false
}

func (w *World) editCommand(cmd protocol.CommandMsg, pos, target voxel.Vec3i) (outcome, error) {
	n, ok := w.node(pos)
	if !ok {
		return outcome{}, network.ErrUnknownNode
	}
	switch cmd.Op {
	case protocol.OpBeginEdit:
		at, ok := w.actors.ActorPos(cmd.Actor)
		if !ok {
			return outcome{}, &commandError{code: protocol.ErrNotFound, msg: "unknown actor"}
		}
		return outcome{}, n.BeginEdit(cmd.Actor, at)
	case protocol.OpEndEdit:
		return outcome{}, n.EndEdit(cmd.Actor)
	case protocol.OpToggleChest:
		registered, changed, err := n.ToggleChest(cmd.Actor, target)
		if err != nil {
			return outcome{}, err
		}
		msg := "unregistered"
		if registered {
			msg = "registered"
		}
		return outcome{Changed: changed, Message: msg}, nil
	case protocol.OpLink:
		return outcome{}, n.Link(cmd.Actor, target)
	default:
		return outcome{}, n.Unlink(cmd.Actor, target)
	}
}

func parseRequestType(s string) (requests.Type, error) {
	switch s {
	case "IMPORT":
		return requests.Import, nil
	case "EXPORT":
		return requests.Export, nil
	}
	return 0, badRequest("bad request_type %q", s)
}

func parseOrigin(s string) (requests.Origin, error) {
	switch s {
	case "", "INTERFACE":
		return requests.OriginInterface, nil
	case "TERMINAL":
		return requests.OriginTerminal, nil
	}
	return 0, badRequest("bad origin %q", s)
}

func (w *World) controllerCommand(c *network.Controller, cmd protocol.CommandMsg, target voxel.Vec3i) (outcome, error) {
	tpl := voxel.Template{Item: cmd.Item, Tag: cmd.Tag}
	switch cmd.Op {
	case protocol.OpLinkDevice:
		return outcome{}, c.LinkDevice(cmd.Actor, target)
	case protocol.OpUnlinkDevice:
		return outcome{}, c.UnlinkDevice(cmd.Actor, target)

	case protocol.OpPublish:
		typ, err := parseRequestType(cmd.RequestType)
		if err != nil {
			return outcome{}, err
		}
		origin, err := parseOrigin(cmd.Origin)
		if err != nil {
			return outcome{}, err
		}
		id, err := c.Publish(requests.Publication{
			Source:    target,
			Requester: target,
			Type:      typ,
			Template:  tpl,
			Count:     cmd.Count,
			Origin:    origin,
			Preloaded: cmd.Preloaded,
		})
		if err != nil {
			return outcome{}, err
		}
		r, _ := requestByID(c, id)
		return outcome{RequestID: id, Count: r.Count}, nil

	case protocol.OpCancel:
		if cmd.RequestID == "" {
			return outcome{}, badRequest("missing request_id")
		}
		r, err := c.CancelRequest(cmd.RequestID)
		if err != nil {
			return outcome{}, err
		}
		return outcome{RequestID: r.ID, Count: r.Count}, nil
	case protocol.OpCancelRequester:
		return outcome{Changed: len(c.CancelRequestsFromRequester(target))}, nil
	case protocol.OpRequestedCount:
		typ, err := parseRequestType(cmd.RequestType)
		if err != nil {
			return outcome{}, err
		}
		return outcome{Count: c.RequestedCount(target, typ, tpl)}, nil

	case protocol.OpAddFuel:
		st, err := w.stack(cmd)
		if err != nil {
			return outcome{}, err
		}
		units, err := c.AddFuel(st)
		if err != nil {
			return outcome{}, err
		}
		return outcome{Count: units}, nil
	case protocol.OpDeposit:
		st, err := w.stack(cmd)
		if err != nil {
			return outcome{}, err
		}
		left, err := c.Deposit(st)
		if err != nil {
			return outcome{}, err
		}
		return outcome{Count: st.Count - left.Count}, nil
	default:
		if cmd.Count <= 0 {
			return outcome{}, badRequest("count must be positive")
		}
		got, err := c.Extract(tpl, cmd.Count)
		if err != nil {
			return outcome{}, err
		}
		return outcome{Count: got.Count}, nil
	}
}

func requestByID(c *network.Controller, id string) (requests.Request, bool) {
	for _, r := range c.Requests() {
		if r.ID == id {
			return r, true
		}
	}
	return requests.Request{}, false
}
