package requests

import (
	"sort"

	"github.com/google/uuid"

	"hivenet.ai/internal/sim/storage/aggregate"
	"hivenet.ai/internal/sim/storage/delivery"
	"hivenet.ai/internal/sim/voxel"
)

// Inventory is the network view used to plan fulfilment.
type Inventory interface {
	ChestsWith(t voxel.Template) []aggregate.ChestAmount
	FindSlotForItem(t voxel.Template) (voxel.Vec3i, bool)
	Deposit(st voxel.ItemStack) voxel.ItemStack
}

type Scheduler interface {
	Enqueue(t delivery.Task) uint64
	Cancel(id uint64) (delivery.Task, bool)
}

// Devices answers whether the device at a source position still exists and
// is linked to the network.
type Devices interface {
	Active(source voxel.Vec3i) bool
}

type Config struct {
	ProcessEveryTicks  int
	RecheckEveryTicks  int
	ValidateEveryTicks int
}

// Event kinds emitted to the event hook.
const (
	EventPublished = "published"
	EventAssigned  = "assigned"
	EventBlocked   = "blocked"
	EventUnblocked = "unblocked"
	EventRetry     = "retry"
	EventCompleted = "completed"
	EventCancelled = "cancelled"
)

type Event struct {
	Kind    string
	Tick    uint64
	Request Request
}

type Manager struct {
	cfg     Config
	inv     Inventory
	sched   Scheduler
	devices Devices
	newID   func() string
	onEvent func(Event)

	byID   map[string]*Request
	byKey  map[key]*Request
	byTask map[uint64]string
	seq    uint64
	now    uint64
}

func NewManager(cfg Config, inv Inventory, sched Scheduler, devices Devices) *Manager {
	for _, p := range []*int{&cfg.ProcessEveryTicks, &cfg.RecheckEveryTicks, &cfg.ValidateEveryTicks} {
		if *p <= 0 {
			*p = 1
		}
	}
	return &Manager{
		cfg:     cfg,
		inv:     inv,
		sched:   sched,
		devices: devices,
		newID:   uuid.NewString,
		byID:    map[string]*Request{},
		byKey:   map[key]*Request{},
		byTask:  map[uint64]string{},
	}
}

func (m *Manager) SetEventFunc(f func(Event)) { m.onEvent = f }

func (m *Manager) emit(kind string, r *Request) {
	if m.onEvent != nil {
		m.onEvent(Event{Kind: kind, Tick: m.now, Request: r.clone()})
	}
}

// Publish inserts a PENDING request or merges into the active request for the
// same source, type and template. A merge replaces the count; a preloaded
// export instead accumulates its held payload.
func (m *Manager) Publish(p Publication) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	k := key{p.Source, p.Type, p.Template}
	if r, ok := m.byKey[k]; ok {
		r.Requester = p.Requester
		if prio := p.Origin.Priority(); prio < r.Priority {
			r.Priority = prio
		}
		switch {
		case p.Preloaded:
			r.Preloaded = true
			r.Held.Template = p.Template
			r.Held.Count += p.Count
			r.Count = r.Held.Count
		case r.Preloaded:
			// The held payload bounds what can be exported.
		default:
			r.Count = p.Count
		}
		m.emit(EventPublished, r)
		return r.ID, nil
	}

	r := &Request{
		ID:          m.newID(),
		Source:      p.Source,
		Requester:   p.Requester,
		Type:        p.Type,
		Template:    p.Template,
		Count:       p.Count,
		Priority:    p.Origin.Priority(),
		Status:      Pending,
		Preloaded:   p.Preloaded,
		Tasks:       map[uint64]int{},
		Seq:         m.seq,
		CreatedTick: m.now,
	}
	m.seq++
	if p.Preloaded {
		r.Held = voxel.ItemStack{Template: p.Template, Count: p.Count}
	}
	m.byID[r.ID] = r
	m.byKey[k] = r
	m.emit(EventPublished, r)
	return r.ID, nil
}

// Tick drives validation, recheck and processing on their intervals.
func (m *Manager) Tick(nowTick uint64) {
	m.now = nowTick
	if nowTick%uint64(m.cfg.ValidateEveryTicks) == 0 {
		m.ValidateSources()
	}
	if nowTick%uint64(m.cfg.RecheckEveryTicks) == 0 {
		m.Recheck()
	}
	if nowTick%uint64(m.cfg.ProcessEveryTicks) == 0 {
		m.Process()
	}
}

type reservation struct {
	pos      voxel.Vec3i
	template voxel.Template
}

// Process plans every PENDING request in priority order. Chest contents
// allocated to one request in this pass are not offered to the next.
func (m *Manager) Process() {
	reserved := map[reservation]int{}
	for _, r := range m.sorted(Pending) {
		switch r.Type {
		case Import:
			m.planImport(r, reserved)
		case Export:
			m.planExport(r)
		}
	}
}

func (m *Manager) planImport(r *Request, reserved map[reservation]int) {
	remaining := r.Count
	var parent uint64
	for _, c := range m.inv.ChestsWith(r.Template) {
		if remaining <= 0 {
			break
		}
		if c.Pos == r.Source {
			continue
		}
		rk := reservation{c.Pos, r.Template}
		n := min(c.Count-reserved[rk], remaining)
		if n <= 0 {
			continue
		}
		id := m.sched.Enqueue(delivery.Task{
			Template:    r.Template,
			Count:       n,
			Origin:      c.Pos,
			Destination: r.Source,
			Priority:    r.Priority,
			Type:        delivery.Extract,
			Requester:   r.Requester,
			ParentID:    parent,
		})
		if id == 0 {
			continue
		}
		reserved[rk] += n
		m.track(r, id, n)
		parent = id
		remaining -= n
	}
	if len(r.Tasks) == 0 {
		m.block(r, ReasonItemsUnavailable)
		return
	}
	m.assign(r)
}

func (m *Manager) planExport(r *Request) {
	dest, reason := m.exportDestination(r)
	if reason != "" {
		m.block(r, reason)
		return
	}
	count := r.Count
	if r.Preloaded {
		count = r.Held.Count
	}
	id := m.sched.Enqueue(delivery.Task{
		Template:    r.Template,
		Count:       count,
		Origin:      r.Source,
		Destination: dest,
		Priority:    r.Priority,
		Type:        delivery.Deposit,
		Preloaded:   r.Preloaded,
		Requester:   r.Requester,
	})
	if id == 0 {
		m.block(r, ReasonItemsUnavailable)
		return
	}
	m.track(r, id, count)
	m.assign(r)
}

func (m *Manager) exportDestination(r *Request) (voxel.Vec3i, string) {
	dest, ok := m.inv.FindSlotForItem(r.Template)
	if !ok {
		return voxel.Vec3i{}, ReasonNoDestination
	}
	if dest == r.Source {
		return voxel.Vec3i{}, ReasonSourceIsDestination
	}
	return dest, ""
}

func (m *Manager) track(r *Request, taskID uint64, n int) {
	if r.Tasks == nil {
		r.Tasks = map[uint64]int{}
	}
	r.Tasks[taskID] = n
	m.byTask[taskID] = r.ID
}

func (m *Manager) assign(r *Request) {
	r.Status = Assigned
	r.Reason = ""
	m.emit(EventAssigned, r)
}

func (m *Manager) block(r *Request, reason string) {
	r.Status = Blocked
	r.Reason = reason
	m.emit(EventBlocked, r)
}

// Recheck flips BLOCKED requests whose obstacle has cleared back to PENDING.
func (m *Manager) Recheck() {
	for _, r := range m.sorted(Blocked) {
		if !m.feasible(r) {
			continue
		}
		r.Status = Pending
		r.Reason = ""
		m.emit(EventUnblocked, r)
	}
}

func (m *Manager) feasible(r *Request) bool {
	switch r.Type {
	case Import:
		for _, c := range m.inv.ChestsWith(r.Template) {
			if c.Pos != r.Source && c.Count > 0 {
				return true
			}
		}
		return false
	case Export:
		_, reason := m.exportDestination(r)
		return reason == ""
	}
	return false
}

// ValidateSources cancels requests whose device is gone or unlinked.
func (m *Manager) ValidateSources() []Request {
	if m.devices == nil {
		return nil
	}
	var out []Request
	for _, r := range m.sorted(0) {
		if m.devices.Active(r.Source) {
			continue
		}
		out = append(out, m.cancel(r))
	}
	return out
}

// OnTaskCompleted retires one task. The request is removed once none of its
// tasks remain outstanding. A preloaded export still holding items merged in
// after planning goes back to PENDING so the rest is carried too.
func (m *Manager) OnTaskCompleted(taskID uint64) {
	r := m.ownerOf(taskID)
	if r == nil {
		return
	}
	n := r.Tasks[taskID]
	m.untrack(r, taskID)
	r.Count = max(r.Count-n, 0)
	if r.Preloaded {
		r.Held.Count = max(r.Held.Count-n, 0)
	}
	if len(r.Tasks) > 0 {
		return
	}
	if r.Preloaded && r.Held.Count > 0 {
		r.Count = r.Held.Count
		r.Status = Pending
		r.Reason = ""
		return
	}
	m.remove(r)
	m.emit(EventCompleted, r)
}

// OnTaskFailed returns the request to PENDING and cancels the rest of its
// task chain so the next pass replans from scratch.
func (m *Manager) OnTaskFailed(taskID uint64) {
	r := m.ownerOf(taskID)
	if r == nil {
		return
	}
	m.untrack(r, taskID)
	m.dropTasks(r)
	r.Status = Pending
	r.Reason = ""
	m.emit(EventRetry, r)
}

// OnTaskSplit moves part of a task's count to its split-off remainder.
func (m *Manager) OnTaskSplit(orig, rem delivery.Task) {
	r := m.ownerOf(orig.ID)
	if r == nil {
		return
	}
	m.track(r, orig.ID, orig.Count)
	m.track(r, rem.ID, rem.Count)
}

func (m *Manager) ownerOf(taskID uint64) *Request {
	id, ok := m.byTask[taskID]
	if !ok {
		return nil
	}
	return m.byID[id]
}

func (m *Manager) untrack(r *Request, taskID uint64) {
	delete(r.Tasks, taskID)
	delete(m.byTask, taskID)
}

func (m *Manager) dropTasks(r *Request) {
	for _, id := range r.AssignedTaskIDs() {
		m.untrack(r, id)
		m.sched.Cancel(id)
	}
}

// Cancel marks the request CANCELLED, cancels its tasks and removes it. A
// preloaded export's held payload goes back into the network; whatever does
// not fit is left in the returned request's Held.
func (m *Manager) Cancel(id string) (Request, error) {
	r, ok := m.byID[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return m.cancel(r), nil
}

func (m *Manager) cancel(r *Request) Request {
	r.Status = Cancelled
	m.dropTasks(r)
	if r.Preloaded && !r.Held.Empty() {
		r.Held = m.inv.Deposit(r.Held)
	}
	m.remove(r)
	m.emit(EventCancelled, r)
	return r.clone()
}

// CancelFromRequester cancels every request published by requester.
func (m *Manager) CancelFromRequester(requester voxel.Vec3i) []Request {
	var out []Request
	for _, r := range m.sorted(0) {
		if r.Requester == requester {
			out = append(out, m.cancel(r))
		}
	}
	return out
}

func (m *Manager) remove(r *Request) {
	delete(m.byID, r.ID)
	if cur, ok := m.byKey[r.key()]; ok && cur == r {
		delete(m.byKey, r.key())
	}
	for id := range r.Tasks {
		delete(m.byTask, id)
	}
}

// RequestedCount is the outstanding count of the active request for the
// triple, or zero.
func (m *Manager) RequestedCount(source voxel.Vec3i, t Type, template voxel.Template) int {
	if r, ok := m.byKey[key{source, t, template}]; ok {
		return r.Count
	}
	return 0
}

// ResetAssigned drops task bookkeeping after a scheduler teardown and returns
// ASSIGNED requests to PENDING.
func (m *Manager) ResetAssigned() {
	for _, r := range m.byID {
		for id := range r.Tasks {
			delete(m.byTask, id)
		}
		r.Tasks = map[uint64]int{}
		if r.Status == Assigned {
			r.Status = Pending
		}
	}
}

func (m *Manager) Get(id string) (Request, bool) {
	r, ok := m.byID[id]
	if !ok {
		return Request{}, false
	}
	return r.clone(), true
}

// List returns every request in priority then creation order.
func (m *Manager) List() []Request {
	rs := m.sorted(0)
	out := make([]Request, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.clone())
	}
	return out
}

func (m *Manager) Len() int { return len(m.byID) }

// sorted returns live requests with the given status (zero for all) in
// priority then creation order.
func (m *Manager) sorted(status Status) []*Request {
	out := make([]*Request, 0, len(m.byID))
	for _, r := range m.byID {
		if status == 0 || r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

type State struct {
	Seq      uint64
	Requests []Request
}

// Export snapshots live requests. ASSIGNED requests are saved as PENDING
// with their task ids kept so a restore can reattach the saved tasks.
func (m *Manager) Export() State {
	st := State{Seq: m.seq}
	for _, r := range m.List() {
		if r.Status == Assigned {
			r.Status = Pending
		}
		st.Requests = append(st.Requests, r)
	}
	return st
}

// TaskIDs returns every task id owned by a restorable request in st.
func (st State) TaskIDs() map[uint64]struct{} {
	ids := map[uint64]struct{}{}
	for _, r := range st.Requests {
		if r.Status == Cancelled {
			continue
		}
		for id := range r.Tasks {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// Import replaces the manager's contents. Saved task ids for which live
// reports true stay attached and their request comes back ASSIGNED; the
// rest are forgotten and a request left without tasks is planned again.
// A nil live forgets every task.
func (m *Manager) Import(st State, live func(taskID uint64) bool) {
	m.byID = map[string]*Request{}
	m.byKey = map[key]*Request{}
	m.byTask = map[uint64]string{}
	m.seq = st.Seq
	for _, saved := range st.Requests {
		if saved.Status == Cancelled {
			continue
		}
		r := saved.clone()
		r.Tasks = map[uint64]int{}
		if r.Status == Assigned {
			r.Status = Pending
		}
		if r.Seq >= m.seq {
			m.seq = r.Seq + 1
		}
		m.byID[r.ID] = &r
		m.byKey[r.key()] = &r
		for _, id := range saved.AssignedTaskIDs() {
			if live != nil && live(id) {
				m.track(&r, id, saved.Tasks[id])
			}
		}
		if len(r.Tasks) > 0 {
			r.Status = Assigned
			r.Reason = ""
		}
	}
}
