package network

import (
	"hivenet.ai/internal/sim/storage/aggregate"
	"hivenet.ai/internal/sim/storage/carrier"
	"hivenet.ai/internal/sim/storage/delivery"
	"hivenet.ai/internal/sim/storage/graph"
	"hivenet.ai/internal/sim/storage/ownership"
	"hivenet.ai/internal/sim/storage/pattern"
	"hivenet.ai/internal/sim/storage/requests"
	"hivenet.ai/internal/sim/voxel"
)

// baseBlocksPerTick is carrier flight speed at multiplier 1.
const baseBlocksPerTick = 0.5

// Controller is the root node of a storage network. It exclusively owns its
// aggregator, request manager, scheduler, fuel reservoir and carrier swarm.
type Controller struct {
	node

	formed   bool
	rotation int

	agg      *aggregate.Aggregator
	requests *requests.Manager
	sched    *delivery.Scheduler
	fuel     *delivery.Reservoir
	swarm    *carrier.Swarm
}

func newController(h *Hub, pos voxel.Vec3i) *Controller {
	cfg := h.cfg
	c := &Controller{node: newNode(h, pos, graph.KindController)}
	c.fuel = delivery.NewReservoir(cfg.FuelEveryTicks, cfg.FuelPerInterval)
	c.swarm = carrier.NewSwarm(carrier.Config{
		BlocksPerTick:  baseBlocksPerTick,
		InteractTicks:  cfg.CarrierInteractTicks,
		MaxFlightTicks: cfg.CarrierMaxFlightTicks,
	}, h.world, h.cat)
	c.sched = delivery.NewScheduler(delivery.Config{
		Capacity:           cfg.CarrierCapacity,
		MaxActive:          cfg.MaxActiveCarriers,
		DispatchEveryTicks: cfg.DispatchEveryTicks,
		CompletedHistory:   cfg.CompletedHistory,
		SpawnPos:           pos,
		ReturnPos:          pos,
		Speed:              cfg.CarrierSpeed,
		SearchSpeed:        cfg.CarrierSearchSpeed,
	}, c.swarm, c.fuel)
	c.agg = aggregate.New(h.world, h.cat, networkChests{c}, cfg.SyncEveryTicks)
	c.requests = requests.NewManager(requests.Config{
		ProcessEveryTicks:  cfg.ProcessEveryTicks,
		RecheckEveryTicks:  cfg.RecheckEveryTicks,
		ValidateEveryTicks: cfg.ValidateEveryTicks,
	}, c.agg, c.sched, devices{c})
	c.sched.SetListener(c.requests)
	if h.recorder != nil {
		c.sched.SetRecorder(h.recorder(pos))
	}
	c.requests.SetEventFunc(func(e requests.Event) {
		if e.Kind == requests.EventCancelled {
			c.returnHeld(e.Request)
		}
		h.emit(Event{
			Kind:      EventRequestPrefix + e.Kind,
			Node:      pos,
			RequestID: e.Request.ID,
			Item:      e.Request.Template.String(),
			Count:     e.Request.Count,
			Detail:    e.Request.Reason,
		})
	})
	return c
}

// networkChests is the chest set of everything reachable from a controller.
type networkChests struct{ c *Controller }

func (n networkChests) Chests() []voxel.Vec3i { return n.c.hub.graph.ReachableChests(n.c.pos) }
func (n networkChests) Forget(p voxel.Vec3i)  { n.c.hub.forgetChest(p) }

// devices reports whether a request source is still a device linked to c.
// Devices in unloaded regions count as present.
type devices struct{ c *Controller }

func (d devices) Active(p voxel.Vec3i) bool {
	h := d.c.hub
	e, ok := h.registry.Lookup(p)
	if !ok || e.Owner != d.c.pos || e.Role == ownership.RoleChest {
		return false
	}
	if !h.world.Loaded(p) {
		return true
	}
	return h.cat.DeviceKind(h.world.BlockAt(p).ID) != ""
}

func (c *Controller) Formed() bool  { return c.formed }
func (c *Controller) Rotation() int { return c.rotation }

// TryForm validates the structure in every rotation. On success the
// controller joins the hub's formed index and marks its sub-blocks formed.
func (c *Controller) TryForm() bool {
	if c.formed {
		return true
	}
	rot := c.hub.pattern.ValidateAnyRotation(c.hub.world, c.pos)
	if rot == pattern.NoRotation {
		return false
	}
	c.setFormed(rot)
	c.hub.logf("controller %s formed (rotation %d)", c.pos, rot)
	c.hub.emit(Event{Kind: EventFormed, Node: c.pos, Count: rot})
	return true
}

func (c *Controller) setFormed(rot int) {
	c.formed = true
	c.rotation = rot
	c.propagate(true)
	c.hub.formed[c.pos] = c
}

func (c *Controller) propagate(formed bool) {
	c.hub.world.SetFormed(c.pos, formed)
	for _, p := range c.hub.pattern.Positions(c.pos, c.rotation) {
		c.hub.world.SetFormed(p, formed)
	}
}

// Unform stops the network abruptly: carriers are discarded, the queue and
// active set are cleared, the fuel gate closes and assigned requests go back
// to PENDING. Chests, links and requests survive so the structure can form
// again.
func (c *Controller) Unform() {
	if !c.formed {
		return
	}
	for _, r := range c.swarm.Drain() {
		c.returnLeftover(r)
	}
	for _, b := range c.swarm.Bees() {
		if b.Payload.Empty() || b.Task.Preloaded {
			continue
		}
		c.hub.logf("controller %s: carrier for task %d discarded with %d %s", c.pos, b.Task.ID, b.Payload.Count, b.Payload.Template)
		c.hub.emit(Event{Kind: EventPayloadLost, Node: c.pos, TaskID: b.Task.ID, Item: b.Payload.Template.String(), Count: b.Payload.Count})
	}
	c.sched.Teardown()
	c.swarm.Clear()
	c.fuel.Close()
	c.requests.ResetAssigned()
	c.propagate(false)
	delete(c.hub.formed, c.pos)
	c.formed = false
	c.hub.logf("controller %s unformed", c.pos)
	c.hub.emit(Event{Kind: EventUnformed, Node: c.pos})
}

// Tick runs the controller's cadence. Only edit-mode expiry runs while the
// structure is unformed.
func (c *Controller) Tick(nowTick uint64) {
	c.checkEdit(nowTick)
	if !c.formed {
		return
	}
	c.agg.Sync(nowTick)
	c.fuel.ConsumeInterval(nowTick)
	c.requests.Tick(nowTick)
	c.sched.Dispatch(nowTick)
	c.swarm.Step()
	c.collectReports()
}

func (c *Controller) collectReports() {
	for _, r := range c.swarm.Drain() {
		c.returnLeftover(r)
		if r.Discarded {
			continue
		}
		if r.OK {
			c.sched.MarkCompleted(r.TaskID)
			c.hub.emit(Event{Kind: EventTaskCompleted, Node: c.pos, TaskID: r.TaskID})
			continue
		}
		c.sched.MarkFailed(r.TaskID)
		c.hub.emit(Event{Kind: EventTaskFailed, Node: c.pos, TaskID: r.TaskID, Detail: r.Reason})
	}
}

// returnLeftover deposits what a carrier still held back into the network.
func (c *Controller) returnLeftover(r carrier.Report) {
	if r.Leftover.Empty() {
		return
	}
	if left := c.agg.Deposit(r.Leftover); !left.Empty() {
		c.hub.logf("controller %s: %d %s from task %d did not fit", c.pos, left.Count, left.Template, r.TaskID)
		c.hub.emit(Event{Kind: EventPayloadLost, Node: c.pos, TaskID: r.TaskID, Item: left.Template.String(), Count: left.Count})
	}
}

// Publish accepts a request from a linked device. A preloaded export takes
// the items out of the device immediately.
func (c *Controller) Publish(p requests.Publication) (string, error) {
	d := devices{c}
	if !d.Active(p.Source) {
		return "", ErrUnknownDevice
	}
	if p.Requester != p.Source && !d.Active(p.Requester) {
		return "", ErrUnknownDevice
	}
	if p.Preloaded && p.Type == requests.Export && p.Count > 0 {
		inv := c.hub.world.Inventory(p.Source)
		if inv == nil {
			return "", ErrUnknownDevice
		}
		n := inv.Take(p.Template, p.Count)
		if n == 0 {
			return "", ErrNothingHeld
		}
		id, err := c.requests.Publish(requests.Publication{
			Source: p.Source, Requester: p.Requester, Type: p.Type, Template: p.Template,
			Count: n, Origin: p.Origin, Preloaded: true,
		})
		if err != nil {
			inv.Insert(voxel.ItemStack{Template: p.Template, Count: n}, c.hub.cat.MaxStack(p.Template))
		}
		return id, err
	}
	return c.requests.Publish(p)
}

// CancelRequest cancels one request. Held items the network cannot take go
// back to the source device.
func (c *Controller) CancelRequest(id string) (requests.Request, error) {
	return c.requests.Cancel(id)
}

// CancelRequestsFromRequester cancels everything requester published.
func (c *Controller) CancelRequestsFromRequester(requester voxel.Vec3i) []requests.Request {
	return c.requests.CancelFromRequester(requester)
}

// returnHeld puts a cancelled export's payload that the network could not
// take back into its device.
func (c *Controller) returnHeld(r requests.Request) {
	if r.Held.Empty() {
		return
	}
	left := r.Held
	if inv := c.hub.world.Inventory(r.Source); inv != nil {
		left = inv.Insert(left, c.hub.cat.MaxStack(left.Template))
	}
	if !left.Empty() {
		c.hub.logf("controller %s: request %s dropped %d %s", c.pos, r.ID, left.Count, left.Template)
		c.hub.emit(Event{Kind: EventPayloadLost, Node: c.pos, RequestID: r.ID, Item: left.Template.String(), Count: left.Count})
	}
}

func (c *Controller) RequestedCount(source voxel.Vec3i, t requests.Type, template voxel.Template) int {
	return c.requests.RequestedCount(source, t, template)
}

func (c *Controller) Requests() []requests.Request { return c.requests.List() }

// Deposit places st directly into the network and returns what did not fit.
func (c *Controller) Deposit(st voxel.ItemStack) (voxel.ItemStack, error) {
	if !c.formed {
		return st, ErrNotFormed
	}
	return c.agg.Deposit(st), nil
}

func (c *Controller) Extract(t voxel.Template, count int) (voxel.ItemStack, error) {
	if !c.formed {
		return voxel.ItemStack{Template: t}, ErrNotFormed
	}
	return c.agg.Extract(t, count), nil
}

// Items returns the aggregated view from the last sync.
func (c *Controller) Items() []aggregate.AggregatedItem { return c.agg.Items() }

// Refresh forces an aggregation pass outside the sync interval.
func (c *Controller) Refresh() []aggregate.AggregatedItem { return c.agg.Refresh() }

func (c *Controller) Subscribe(o aggregate.Observer) { c.agg.Subscribe(o) }

// AddFuel converts fuel items into reservoir units.
func (c *Controller) AddFuel(st voxel.ItemStack) (int, error) {
	v := c.hub.cat.FuelValue(st.Item)
	if v <= 0 || st.Count <= 0 {
		return 0, ErrNotFuel
	}
	units := v * st.Count
	c.fuel.Add(units)
	return units, nil
}

func (c *Controller) Fuel() int { return c.fuel.Fuel() }

// LinkDevice attaches an interface or terminal to this controller.
func (c *Controller) LinkDevice(actor string, p voxel.Vec3i) error {
	if err := c.touch(actor); err != nil {
		return err
	}
	role, ok := deviceRole(c.hub.cat.DeviceKind(c.hub.world.BlockAt(p).ID))
	if !ok {
		return ErrNotDevice
	}
	if voxel.Chebyshev(p, c.pos) > c.hub.cfg.ChestRange {
		return ErrOutOfRange
	}
	if !c.hub.registry.Register(p, c.pos, role) {
		return ErrOwnedElsewhere
	}
	return nil
}

// UnlinkDevice detaches a device and cancels the requests it published or
// sources.
func (c *Controller) UnlinkDevice(actor string, p voxel.Vec3i) error {
	if err := c.touch(actor); err != nil {
		return err
	}
	e, ok := c.hub.registry.Lookup(p)
	if !ok || e.Owner != c.pos || e.Role == ownership.RoleChest {
		return ErrUnknownDevice
	}
	c.hub.registry.Unregister(p)
	c.CancelRequestsFromRequester(p)
	for _, r := range c.requests.List() {
		if r.Source == p {
			c.CancelRequest(r.ID)
		}
	}
	return nil
}

func deviceRole(kind string) (ownership.Role, bool) {
	switch kind {
	case "interface":
		return ownership.RoleInterface, true
	case "terminal":
		return ownership.RoleTerminal, true
	}
	return 0, false
}

// Devices lists linked devices sorted by position.
func (c *Controller) Devices() []voxel.Vec3i {
	var out []voxel.Vec3i
	for _, p := range c.hub.registry.AllOwnedBy(c.pos) {
		if role, _ := c.hub.registry.RoleOf(p); role != ownership.RoleChest {
			out = append(out, p)
		}
	}
	return out
}

// TaskCounts returns the number of queued and active deliveries.
func (c *Controller) TaskCounts() (queued, active int) {
	return c.sched.QueueLen(), c.sched.ActiveLen()
}
