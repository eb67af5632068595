// Package aggregate merges the contents of a network's chests into a single
// count-by-template view and performs network-wide deposit and extract.
package aggregate

import (
	"sort"

	"hivenet.ai/internal/sim/voxel"
)

type Catalog interface {
	MaxStack(t voxel.Template) int
	DisplayName(t voxel.Template) string
}

// ChestSet supplies the chests an aggregator works over, in registration
// order, and accepts removals of chests found to be invalid.
type ChestSet interface {
	Chests() []voxel.Vec3i
	Forget(p voxel.Vec3i)
}

type AggregatedItem struct {
	Template voxel.Template
	Name     string
	Count    int
}

type ChestAmount struct {
	Pos   voxel.Vec3i
	Count int
}

// Observer receives the sorted view after each interval refresh.
type Observer func(nowTick uint64, items []AggregatedItem)

type Aggregator struct {
	world  Containers
	cat    Catalog
	chests ChestSet

	syncEvery uint64
	items     []AggregatedItem
	observers []Observer
}

func New(world Containers, cat Catalog, chests ChestSet, syncEveryTicks int) *Aggregator {
	if syncEveryTicks <= 0 {
		syncEveryTicks = 1
	}
	return &Aggregator{
		world:     world,
		cat:       cat,
		chests:    chests,
		syncEvery: uint64(syncEveryTicks),
	}
}

func (a *Aggregator) Subscribe(o Observer) {
	if o != nil {
		a.observers = append(a.observers, o)
	}
}

// live returns the loaded chests that still hold an inventory. Loaded
// positions that no longer hold a container are forgotten; unloaded ones are
// skipped but kept.
func (a *Aggregator) live() []voxel.Vec3i {
	all := a.chests.Chests()
	out := all[:0]
	for _, p := range all {
		if !a.world.Loaded(p) {
			continue
		}
		if a.world.Inventory(p) == nil {
			a.chests.Forget(p)
			continue
		}
		out = append(out, p)
	}
	return out
}

// Refresh rebuilds the merged view from scratch.
func (a *Aggregator) Refresh() []AggregatedItem {
	totals := map[voxel.Template]int{}
	for _, p := range a.live() {
		for _, s := range a.world.Inventory(p).Slots {
			if s.Empty() {
				continue
			}
			totals[s.Template] += s.Count
		}
	}
	items := make([]AggregatedItem, 0, len(totals))
	for t, n := range totals {
		items = append(items, AggregatedItem{Template: t, Name: a.cat.DisplayName(t), Count: n})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].Template.String() < items[j].Template.String()
	})
	a.items = items
	return a.Items()
}

// Sync refreshes and notifies observers when nowTick falls on the interval.
func (a *Aggregator) Sync(nowTick uint64) bool {
	if nowTick%a.syncEvery != 0 {
		return false
	}
	items := a.Refresh()
	for _, o := range a.observers {
		o(nowTick, items)
	}
	return true
}

// Items returns the view computed by the last refresh.
func (a *Aggregator) Items() []AggregatedItem {
	out := make([]AggregatedItem, len(a.items))
	copy(out, a.items)
	return out
}

// CountOf reads the cached view.
func (a *Aggregator) CountOf(t voxel.Template) int {
	for _, it := range a.items {
		if it.Template == t {
			return it.Count
		}
	}
	return 0
}

// Deposit places st into the network: first topping off existing stacks of
// the same template in every chest, then filling empty slots. It returns what
// could not be placed.
func (a *Aggregator) Deposit(st voxel.ItemStack) voxel.ItemStack {
	if st.Empty() {
		return st
	}
	maxStack := a.cat.MaxStack(st.Template)
	chests := a.live()
	for _, p := range chests {
		if st.Count <= 0 {
			break
		}
		st = a.world.Inventory(p).TopOff(st, maxStack)
	}
	for _, p := range chests {
		if st.Count <= 0 {
			break
		}
		st = a.world.Inventory(p).FillEmpty(st, maxStack)
	}
	if st.Count < 0 {
		st.Count = 0
	}
	return st
}

// Extract drains matching stacks chest by chest in registration order until
// count is met. The result never exceeds count.
func (a *Aggregator) Extract(t voxel.Template, count int) voxel.ItemStack {
	out := voxel.ItemStack{Template: t}
	if count <= 0 {
		return out
	}
	for _, p := range a.live() {
		if out.Count >= count {
			break
		}
		out.Count += a.world.Inventory(p).Take(t, count-out.Count)
	}
	return out
}

// FindSlotForItem prefers a chest with a partial stack of t, then any chest
// with an empty slot. ok is false when the network is full.
func (a *Aggregator) FindSlotForItem(t voxel.Template) (voxel.Vec3i, bool) {
	maxStack := a.cat.MaxStack(t)
	chests := a.live()
	for _, p := range chests {
		if a.world.Inventory(p).HasPartial(t, maxStack) {
			return p, true
		}
	}
	for _, p := range chests {
		if a.world.Inventory(p).HasEmpty() {
			return p, true
		}
	}
	return voxel.Vec3i{}, false
}

// ChestsWith lists chests currently holding t, read live.
func (a *Aggregator) ChestsWith(t voxel.Template) []ChestAmount {
	var out []ChestAmount
	for _, p := range a.live() {
		if n := a.world.Inventory(p).Count(t); n > 0 {
			out = append(out, ChestAmount{Pos: p, Count: n})
		}
	}
	return out
}

// Available counts t across all live chests without touching the cached view.
func (a *Aggregator) Available(t voxel.Template) int {
	n := 0
	for _, c := range a.ChestsWith(t) {
		n += c.Count
	}
	return n
}
