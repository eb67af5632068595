// Package requests tracks import/export demands published by peripheral
// devices and turns ready ones into delivery tasks.
package requests

import (
	"errors"
	"sort"

	"hivenet.ai/internal/sim/voxel"
)

type Type uint8

const (
	// Import pulls items from the network into the source device.
	Import Type = iota + 1
	// Export pushes items from the source device into the network.
	Export
)

func (t Type) String() string {
	switch t {
	case Import:
		return "IMPORT"
	case Export:
		return "EXPORT"
	}
	return "UNKNOWN"
}

type Status uint8

const (
	Pending Status = iota + 1
	Assigned
	Blocked
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Assigned:
		return "ASSIGNED"
	case Blocked:
		return "BLOCKED"
	case Cancelled:
		return "CANCELLED"
	}
	return "UNKNOWN"
}

// Blocked reason codes.
const (
	ReasonItemsUnavailable    = "items_unavailable"
	ReasonNoDestination       = "no_destination"
	ReasonSourceIsDestination = "source_is_destination"
)

// Origin names the kind of device that published a request.
type Origin uint8

const (
	OriginInterface Origin = iota + 1
	OriginTerminal
)

// Priority is the scheduling priority for requests from this origin. Players
// at a terminal are served before automation.
func (o Origin) Priority() int {
	if o == OriginTerminal {
		return 0
	}
	return 10
}

var (
	ErrInvalidCount    = errors.New("request count must be positive")
	ErrInvalidType     = errors.New("unknown request type")
	ErrInvalidTemplate = errors.New("request template is empty")
	ErrNotFound        = errors.New("request not found")
)

// Publication is what a device hands to the manager.
type Publication struct {
	Source    voxel.Vec3i
	Requester voxel.Vec3i
	Type      Type
	Template  voxel.Template
	Count     int
	Origin    Origin
	// Preloaded marks an export whose items were already taken from the
	// device and are held by the request until delivered.
	Preloaded bool
}

func (p Publication) validate() error {
	switch {
	case p.Type != Import && p.Type != Export:
		return ErrInvalidType
	case p.Template.IsZero():
		return ErrInvalidTemplate
	case p.Count <= 0:
		return ErrInvalidCount
	}
	return nil
}

type key struct {
	source   voxel.Vec3i
	typ      Type
	template voxel.Template
}

type Request struct {
	ID        string
	Source    voxel.Vec3i
	Requester voxel.Vec3i
	Type      Type
	Template  voxel.Template
	Count     int
	Priority  int
	Status    Status
	Reason    string
	Preloaded bool
	// Held is the payload of a preloaded export not yet delivered.
	Held voxel.ItemStack
	// Tasks maps outstanding task ids to their item counts.
	Tasks       map[uint64]int
	Seq         uint64
	CreatedTick uint64
}

func (r *Request) key() key { return key{r.Source, r.Type, r.Template} }

// AssignedTaskIDs lists outstanding tasks in ascending order.
func (r *Request) AssignedTaskIDs() []uint64 {
	ids := make([]uint64, 0, len(r.Tasks))
	for id := range r.Tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r Request) clone() Request {
	if r.Tasks != nil {
		tasks := make(map[uint64]int, len(r.Tasks))
		for id, n := range r.Tasks {
			tasks[id] = n
		}
		r.Tasks = tasks
	}
	return r
}
