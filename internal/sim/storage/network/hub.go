// Package network assembles storage networks: controllers that own the
// request and delivery pipeline, relays that extend them, and the Hub that
// indexes both and reacts to world changes.
package network

import (
	"errors"
	"fmt"
	"log"

	"hivenet.ai/internal/sim/catalogs"
	"hivenet.ai/internal/sim/storage/delivery"
	"hivenet.ai/internal/sim/storage/graph"
	"hivenet.ai/internal/sim/storage/ownership"
	"hivenet.ai/internal/sim/storage/pattern"
	"hivenet.ai/internal/sim/tuning"
	"hivenet.ai/internal/sim/voxel"
)

const (
	ControllerBlock = "HIVE_CONTROLLER"
	RelayBlock      = "HIVE_RELAY"
)

var (
	ErrNotFormed      = errors.New("controller is not formed")
	ErrNotEditing     = errors.New("actor is not editing this node")
	ErrEditBusy       = errors.New("another actor is editing this node")
	ErrOutOfRange     = errors.New("position out of range")
	ErrOwnedElsewhere = errors.New("position is owned by another node")
	ErrUnknownNode    = errors.New("no network node at position")
	ErrUnknownDevice  = errors.New("no linked device at position")
	ErrNotDevice      = errors.New("block is not a network device")
	ErrNotFuel        = errors.New("item is not fuel")
	ErrNothingHeld    = errors.New("device holds none of the requested item")
)

// World is the block and inventory view a hub runs against.
type World interface {
	BlockAt(p voxel.Vec3i) voxel.Block
	Inventory(p voxel.Vec3i) *voxel.Inventory
	Loaded(p voxel.Vec3i) bool
	SetFormed(p voxel.Vec3i, formed bool)
}

// Actors locates actors that may hold edit sessions. A missing actor counts
// as disconnected.
type Actors interface {
	ActorPos(id string) (voxel.Vec3i, bool)
}

// Event kinds.
const (
	EventFormed        = "formed"
	EventUnformed      = "unformed"
	EventDestroyed     = "destroyed"
	EventTaskCompleted = "task_completed"
	EventTaskFailed    = "task_failed"
	EventPayloadLost   = "payload_lost"
	EventEditExpired   = "edit_expired"
	EventRequestPrefix = "request_"
)

// Event is a machine-readable network occurrence.
type Event struct {
	Tick      uint64
	Kind      string
	Node      voxel.Vec3i
	TaskID    uint64
	RequestID string
	Item      string
	Count     int
	Detail    string
}

type Options struct {
	Logger *log.Logger
	Actors Actors
	// Events receives every emitted event. Nil drops them.
	Events func(Event)
	// Recorder builds a per-controller scheduler recorder. Nil disables it.
	Recorder func(controller voxel.Vec3i) delivery.Recorder
}

// Hub owns the node graph, the ownership registry and the index of formed
// controllers used for break detection. One hub serves one world.
type Hub struct {
	world   World
	cat     *catalogs.Catalogs
	cfg     tuning.Network
	pattern *pattern.Pattern
	reach   int

	logger   *log.Logger
	actors   Actors
	events   func(Event)
	recorder func(voxel.Vec3i) delivery.Recorder

	registry    *ownership.Registry
	graph       *graph.Graph
	controllers map[voxel.Vec3i]*Controller
	relays      map[voxel.Vec3i]*Relay
	formed      map[voxel.Vec3i]*Controller
	now         uint64
}

func NewHub(world World, cat *catalogs.Catalogs, cfg tuning.Network, opts Options) (*Hub, error) {
	p, err := cat.Pattern(cfg.ControllerPattern)
	if err != nil {
		return nil, fmt.Errorf("controller pattern: %w", err)
	}
	h := &Hub{
		world:       world,
		cat:         cat,
		cfg:         cfg,
		pattern:     p,
		logger:      opts.Logger,
		actors:      opts.Actors,
		events:      opts.Events,
		recorder:    opts.Recorder,
		registry:    ownership.NewRegistry(),
		graph:       graph.New(),
		controllers: map[voxel.Vec3i]*Controller{},
		relays:      map[voxel.Vec3i]*Relay{},
		formed:      map[voxel.Vec3i]*Controller{},
	}
	h.graph.SetLoadedFunc(world.Loaded)
	for _, e := range p.Elements {
		h.reach = max(h.reach, abs(e.Offset.X), abs(e.Offset.Y), abs(e.Offset.Z))
	}
	return h, nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func (h *Hub) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

func (h *Hub) emit(e Event) {
	if h.events == nil {
		return
	}
	e.Tick = h.now
	h.events(e)
}

func (h *Hub) Registry() *ownership.Registry { return h.registry }
func (h *Hub) Graph() *graph.Graph           { return h.graph }
func (h *Hub) Pattern() *pattern.Pattern     { return h.pattern }
func (h *Hub) Now() uint64                   { return h.now }

func (h *Hub) Controller(p voxel.Vec3i) (*Controller, bool) {
	c, ok := h.controllers[p]
	return c, ok
}

func (h *Hub) Relay(p voxel.Vec3i) (*Relay, bool) {
	r, ok := h.relays[p]
	return r, ok
}

// Controllers returns every placed controller sorted by position.
func (h *Hub) Controllers() []*Controller { return sortedValues(h.controllers) }

// Formed returns the formed-controller index sorted by position.
func (h *Hub) Formed() []*Controller { return sortedValues(h.formed) }

func (h *Hub) Relays() []*Relay { return sortedValues(h.relays) }

func sortedValues[T any](m map[voxel.Vec3i]T) []T {
	out := make([]T, 0, len(m))
	for _, p := range voxel.SortedKeys(m) {
		out = append(out, m[p])
	}
	return out
}

// OnBlockChanged is called after the block at p changed. It creates and
// destroys nodes, unforms controllers whose structure broke, retries
// formation for nearby unformed controllers and drops stale registrations.
func (h *Hub) OnBlockChanged(p voxel.Vec3i) {
	b := h.world.BlockAt(p)

	if c, ok := h.controllers[p]; ok && b.ID != ControllerBlock {
		h.destroyController(c)
	}
	if r, ok := h.relays[p]; ok && b.ID != RelayBlock {
		h.destroyRelay(r)
	}
	switch b.ID {
	case ControllerBlock:
		if _, ok := h.controllers[p]; !ok {
			h.addController(p)
		}
	case RelayBlock:
		if _, ok := h.relays[p]; !ok {
			h.addRelay(p)
		}
	}

	for _, c := range h.Formed() {
		if c.pos == p || !h.pattern.IsPartOf(c.pos, p, c.rotation) {
			continue
		}
		if !h.pattern.Validate(h.world, c.pos, c.rotation) {
			c.Unform()
		}
	}
	for _, c := range h.Controllers() {
		if !c.formed && voxel.Chebyshev(c.pos, p) <= h.reach {
			c.TryForm()
		}
	}

	if e, ok := h.registry.Lookup(p); ok {
		switch e.Role {
		case ownership.RoleChest:
			if h.world.Inventory(p) == nil {
				h.forgetChest(p)
			}
		case ownership.RoleInterface, ownership.RoleTerminal:
			if h.cat.DeviceKind(b.ID) == "" {
				h.registry.Unregister(p)
			}
		}
	}
}

func (h *Hub) addController(p voxel.Vec3i) *Controller {
	c := newController(h, p)
	h.controllers[p] = c
	h.graph.Add(c)
	c.TryForm()
	return c
}

func (h *Hub) addRelay(p voxel.Vec3i) *Relay {
	r := newRelay(h, p)
	h.relays[p] = r
	h.graph.Add(r)
	return r
}

func (h *Hub) destroyController(c *Controller) {
	c.Unform()
	for _, r := range c.requests.List() {
		c.requests.Cancel(r.ID)
	}
	c.release()
	delete(h.controllers, c.pos)
	h.logf("controller %s destroyed", c.pos)
	h.emit(Event{Kind: EventDestroyed, Node: c.pos})
}

func (h *Hub) destroyRelay(r *Relay) {
	r.release()
	delete(h.relays, r.pos)
	h.emit(Event{Kind: EventDestroyed, Node: r.pos})
}

// chestOwner returns the chest manager of the node owning p.
func (h *Hub) chestOwner(p voxel.Vec3i) *node {
	owner, ok := h.registry.OwnerOf(p)
	if !ok {
		return nil
	}
	if c, ok := h.controllers[owner]; ok {
		return &c.node
	}
	if r, ok := h.relays[owner]; ok {
		return &r.node
	}
	return nil
}

func (h *Hub) forgetChest(p voxel.Vec3i) {
	if n := h.chestOwner(p); n != nil {
		n.chests.Remove(p)
		return
	}
	h.registry.Unregister(p)
}

// Tick advances every node in position order, relays first.
func (h *Hub) Tick(nowTick uint64) {
	h.now = nowTick
	for _, r := range h.Relays() {
		r.Tick(nowTick)
	}
	for _, c := range h.Controllers() {
		c.Tick(nowTick)
	}
}
