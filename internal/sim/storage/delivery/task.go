// Package delivery schedules carrier trips: a priority queue of tasks, a
// bounded active set, parent/child gating and a fuel gate.
package delivery

import (
	"fmt"

	"hivenet.ai/internal/sim/voxel"
)

type Type uint8

const (
	// Extract moves items out of a network chest to the requesting device.
	Extract Type = iota + 1
	// Deposit moves items from a device into a network chest.
	Deposit
)

func (t Type) String() string {
	switch t {
	case Extract:
		return "EXTRACT"
	case Deposit:
		return "DEPOSIT"
	}
	return "UNKNOWN"
}

type Status uint8

const (
	Queued Status = iota + 1
	Flying
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case Queued:
		return "QUEUED"
	case Flying:
		return "FLYING"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	}
	return "UNKNOWN"
}

type Task struct {
	ID          uint64
	Template    voxel.Template
	Count       int
	Origin      voxel.Vec3i
	Destination voxel.Vec3i
	// Priority is served lowest first.
	Priority  int
	Type      Type
	Preloaded bool
	Requester voxel.Vec3i
	// ParentID gates dispatch until the parent has completed. Zero means none.
	ParentID uint64
	Status   Status
	// Seq orders tasks of equal priority by creation.
	Seq uint64
}

func (t Task) Stack() voxel.ItemStack {
	return voxel.ItemStack{Template: t.Template, Count: t.Count}
}

func (t Task) String() string {
	return fmt.Sprintf("task#%d %s %s x%d %s->%s", t.ID, t.Type, t.Template, t.Count, t.Origin, t.Destination)
}

// idRing is a bounded set that forgets its oldest entries first.
type idRing struct {
	cap   int
	order []uint64
	set   map[uint64]struct{}
}

func newIDRing(capacity int) *idRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &idRing{cap: capacity, set: map[uint64]struct{}{}}
}

func (r *idRing) Add(id uint64) {
	if _, ok := r.set[id]; ok {
		return
	}
	r.set[id] = struct{}{}
	r.order = append(r.order, id)
	for len(r.order) > r.cap {
		delete(r.set, r.order[0])
		r.order = r.order[1:]
	}
}

func (r *idRing) Has(id uint64) bool {
	_, ok := r.set[id]
	return ok
}

func (r *idRing) List() []uint64 {
	out := make([]uint64, len(r.order))
	copy(out, r.order)
	return out
}
