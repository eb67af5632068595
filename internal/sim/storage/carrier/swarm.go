// Package carrier runs delivery bees: per-task state machines that fly to a
// task's origin, load, fly to its destination, unload and fly home, one tick
// at a time.
package carrier

import (
	"math"
	"sort"

	"hivenet.ai/internal/sim/storage/delivery"
	"hivenet.ai/internal/sim/voxel"
)

type Phase uint8

const (
	TravelToSource Phase = iota + 1
	Load
	TravelToDestination
	Unload
	Return
)

func (p Phase) String() string {
	switch p {
	case TravelToSource:
		return "travel_to_source"
	case Load:
		return "load"
	case TravelToDestination:
		return "travel_to_destination"
	case Unload:
		return "unload"
	case Return:
		return "return"
	}
	return "unknown"
}

// Failure reasons carried in reports.
const (
	ReasonOriginUnavailable      = "origin_unavailable"
	ReasonNothingToLoad          = "nothing_to_load"
	ReasonDestinationUnavailable = "destination_unavailable"
	ReasonTimeout                = "timeout"
	ReasonDiscarded              = "discarded"
)

type World interface {
	Inventory(p voxel.Vec3i) *voxel.Inventory
	Loaded(p voxel.Vec3i) bool
}

type Catalog interface {
	MaxStack(t voxel.Template) int
}

// Report is a bee's message back to its controller. Leftover holds items the
// bee still carries that must go back into the network. Discarded reports
// come from a cancelled task and carry no outcome.
type Report struct {
	TaskID    uint64
	OK        bool
	Reason    string
	Discarded bool
	Leftover  voxel.ItemStack
}

type Config struct {
	// BlocksPerTick is the base flight speed before multipliers.
	BlocksPerTick  float64
	InteractTicks  int
	MaxFlightTicks int
}

type Bee struct {
	Task        delivery.Task
	Phase       Phase
	Pos         voxel.Vec3i
	Home        voxel.Vec3i
	Payload     voxel.ItemStack
	speed       float64
	searchSpeed float64
	remaining   int
	age         int
	reported    bool
}

type Swarm struct {
	cfg   Config
	world World
	cat   Catalog

	bees    map[uint64]*Bee
	reports []Report
}

func NewSwarm(cfg Config, world World, cat Catalog) *Swarm {
	if cfg.BlocksPerTick <= 0 {
		cfg.BlocksPerTick = 0.5
	}
	if cfg.InteractTicks < 0 {
		cfg.InteractTicks = 0
	}
	return &Swarm{cfg: cfg, world: world, cat: cat, bees: map[uint64]*Bee{}}
}

// Spawn launches a bee for t at spawnPos. It fails when the spawn point is
// not loaded, the speeds are not positive, or a bee already serves t.
func (s *Swarm) Spawn(t delivery.Task, spawnPos, returnPos voxel.Vec3i, speed, searchSpeed float64) bool {
	if speed <= 0 || searchSpeed <= 0 {
		return false
	}
	if _, dup := s.bees[t.ID]; dup {
		return false
	}
	if !s.world.Loaded(spawnPos) {
		return false
	}
	b := &Bee{
		Task:        t,
		Pos:         spawnPos,
		Home:        returnPos,
		speed:       speed,
		searchSpeed: searchSpeed,
	}
	s.enter(b, TravelToSource)
	s.bees[t.ID] = b
	return true
}

// Discard removes a bee. Items it picked up are handed back in a Discarded
// report; a preloaded payload stays with its request.
func (s *Swarm) Discard(taskID uint64) {
	b, ok := s.bees[taskID]
	if !ok {
		return
	}
	delete(s.bees, taskID)
	if b.Task.Preloaded || b.Payload.Empty() {
		return
	}
	s.reports = append(s.reports, Report{TaskID: taskID, Reason: ReasonDiscarded, Discarded: true, Leftover: b.Payload})
}

func (s *Swarm) enter(b *Bee, ph Phase) {
	b.Phase = ph
	switch ph {
	case TravelToSource:
		b.remaining = s.flightTicks(b.Pos, b.Task.Origin, b.speed*b.searchSpeed)
	case TravelToDestination:
		b.remaining = s.flightTicks(b.Pos, b.Task.Destination, b.speed)
	case Return:
		b.remaining = s.flightTicks(b.Pos, b.Home, b.speed)
	case Load, Unload:
		b.remaining = s.cfg.InteractTicks
	}
}

func (s *Swarm) flightTicks(from, to voxel.Vec3i, mult float64) int {
	d := from.Sub(to)
	dist := math.Sqrt(float64(d.X*d.X + d.Y*d.Y + d.Z*d.Z))
	return int(math.Ceil(dist / (s.cfg.BlocksPerTick * mult)))
}

// Step advances every bee by one tick in task id order.
func (s *Swarm) Step() {
	for _, id := range s.ids() {
		b := s.bees[id]
		b.age++
		if s.cfg.MaxFlightTicks > 0 && b.age > s.cfg.MaxFlightTicks && !b.reported {
			s.fail(b, ReasonTimeout)
			continue
		}
		if b.remaining > 0 {
			b.remaining--
			continue
		}
		s.advance(b)
	}
}

func (s *Swarm) advance(b *Bee) {
	switch b.Phase {
	case TravelToSource:
		b.Pos = b.Task.Origin
		s.enter(b, Load)
	case Load:
		if !s.load(b) {
			return
		}
		s.enter(b, TravelToDestination)
	case TravelToDestination:
		b.Pos = b.Task.Destination
		s.enter(b, Unload)
	case Unload:
		s.unload(b)
	case Return:
		b.Pos = b.Home
		delete(s.bees, b.Task.ID)
	}
}

func (s *Swarm) load(b *Bee) bool {
	t := b.Task
	if t.Preloaded {
		b.Payload = t.Stack()
		return true
	}
	inv := s.inventory(t.Origin)
	if inv == nil {
		s.fail(b, ReasonOriginUnavailable)
		return false
	}
	n := inv.Take(t.Template, t.Count)
	if n == 0 {
		s.fail(b, ReasonNothingToLoad)
		return false
	}
	b.Payload = voxel.ItemStack{Template: t.Template, Count: n}
	return true
}

func (s *Swarm) unload(b *Bee) {
	inv := s.inventory(b.Task.Destination)
	if inv == nil {
		s.fail(b, ReasonDestinationUnavailable)
		return
	}
	left := inv.Insert(b.Payload, s.cat.MaxStack(b.Payload.Template))
	b.Payload = voxel.ItemStack{}
	s.report(b, Report{TaskID: b.Task.ID, OK: true, Leftover: nonEmpty(left)})
	s.enter(b, Return)
}

// fail reports the task failed and sends the bee home. A preloaded payload
// stays with its request, so only items the bee picked up are handed back.
func (s *Swarm) fail(b *Bee, reason string) {
	r := Report{TaskID: b.Task.ID, Reason: reason}
	if !b.Task.Preloaded {
		r.Leftover = nonEmpty(b.Payload)
	}
	b.Payload = voxel.ItemStack{}
	s.report(b, r)
	if s.cfg.MaxFlightTicks > 0 && b.age > s.cfg.MaxFlightTicks {
		delete(s.bees, b.Task.ID)
		return
	}
	s.enter(b, Return)
}

func (s *Swarm) report(b *Bee, r Report) {
	if b.reported {
		return
	}
	b.reported = true
	s.reports = append(s.reports, r)
}

func (s *Swarm) inventory(p voxel.Vec3i) *voxel.Inventory {
	if !s.world.Loaded(p) {
		return nil
	}
	return s.world.Inventory(p)
}

func nonEmpty(st voxel.ItemStack) voxel.ItemStack {
	if st.Empty() {
		return voxel.ItemStack{}
	}
	return st
}

// Drain hands over the reports produced since the last call.
func (s *Swarm) Drain() []Report {
	out := s.reports
	s.reports = nil
	return out
}

func (s *Swarm) ids() []uint64 {
	ids := make([]uint64, 0, len(s.bees))
	for id := range s.bees {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Swarm) Len() int { return len(s.bees) }

// Bees returns copies of every live bee in task id order.
func (s *Swarm) Bees() []Bee {
	out := make([]Bee, 0, len(s.bees))
	for _, id := range s.ids() {
		out = append(out, *s.bees[id])
	}
	return out
}

// Clear discards every bee and pending report.
func (s *Swarm) Clear() {
	s.bees = map[uint64]*Bee{}
	s.reports = nil
}
