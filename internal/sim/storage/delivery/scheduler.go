package delivery

import (
	"sort"

	"hivenet.ai/internal/sim/voxel"
)

// Listener receives task outcomes. Calls happen from inside Dispatch and may
// re-enter the scheduler (for example to Cancel sibling tasks).
type Listener interface {
	OnTaskCompleted(id uint64)
	OnTaskFailed(id uint64)
	// OnTaskSplit reports that a remainder was split off orig before dispatch.
	OnTaskSplit(orig, remainder Task)
}

// Spawner launches and discards carrier agents.
type Spawner interface {
	Spawn(t Task, spawnPos, returnPos voxel.Vec3i, speed, searchSpeed float64) bool
	Discard(taskID uint64)
}

// Gate suspends dispatch while closed.
type Gate interface {
	Open() bool
}

// Recorder observes scheduler activity. Nil disables recording.
type Recorder interface {
	TaskEnqueued()
	TaskDispatched()
	TaskCompleted()
	TaskFailed()
	QueueDepth(queued, active int)
}

type Config struct {
	Capacity           int
	MaxActive          int
	DispatchEveryTicks int
	CompletedHistory   int
	SpawnPos           voxel.Vec3i
	ReturnPos          voxel.Vec3i
	Speed              float64
	SearchSpeed        float64
}

type Scheduler struct {
	cfg      Config
	listener Listener
	spawner  Spawner
	gate     Gate
	rec      Recorder

	nextID    uint64
	nextSeq   uint64
	queue     []*Task
	active    map[uint64]*Task
	completed *idRing
}

func NewScheduler(cfg Config, spawner Spawner, gate Gate) *Scheduler {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 64
	}
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = 1
	}
	if cfg.DispatchEveryTicks <= 0 {
		cfg.DispatchEveryTicks = 1
	}
	return &Scheduler{
		cfg:       cfg,
		spawner:   spawner,
		gate:      gate,
		nextID:    1,
		active:    map[uint64]*Task{},
		completed: newIDRing(cfg.CompletedHistory),
	}
}

func (s *Scheduler) SetListener(l Listener) { s.listener = l }

func (s *Scheduler) SetRecorder(r Recorder) { s.rec = r }

// Enqueue assigns an id and queues t. Non-positive counts are rejected with id 0.
func (s *Scheduler) Enqueue(t Task) uint64 {
	if t.Count <= 0 {
		return 0
	}
	t.ID = s.nextID
	s.nextID++
	t.Seq = s.nextSeq
	s.nextSeq++
	t.Status = Queued
	s.queue = append(s.queue, &t)
	if s.rec != nil {
		s.rec.TaskEnqueued()
	}
	return t.ID
}

// Cancel removes a queued task or discards an active one. The returned task
// carries its last status.
func (s *Scheduler) Cancel(id uint64) (Task, bool) {
	if i := s.queueIndex(id); i >= 0 {
		t := s.queue[i]
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		return *t, true
	}
	if t, ok := s.active[id]; ok {
		delete(s.active, id)
		if s.spawner != nil {
			s.spawner.Discard(id)
		}
		return *t, true
	}
	return Task{}, false
}

// MarkCompleted and MarkFailed record an agent's outcome. Both are reaped on
// the next dispatch interval.
func (s *Scheduler) MarkCompleted(id uint64) bool { return s.mark(id, Completed) }

func (s *Scheduler) MarkFailed(id uint64) bool { return s.mark(id, Failed) }

func (s *Scheduler) mark(id uint64, st Status) bool {
	t, ok := s.active[id]
	if !ok || t.Status != Flying {
		return false
	}
	t.Status = st
	return true
}

// Dispatch runs one scheduling pass when nowTick falls on the dispatch
// interval. It reports whether the pass ran.
func (s *Scheduler) Dispatch(nowTick uint64) bool {
	if nowTick%uint64(s.cfg.DispatchEveryTicks) != 0 {
		return false
	}
	s.reap()
	if s.gate == nil || s.gate.Open() {
		s.fill()
	}
	if s.rec != nil {
		s.rec.QueueDepth(len(s.queue), len(s.active))
	}
	return true
}

func (s *Scheduler) reap() {
	var done, failed []uint64
	for _, id := range s.activeIDs() {
		switch s.active[id].Status {
		case Completed:
			delete(s.active, id)
			s.completed.Add(id)
			done = append(done, id)
		case Failed:
			delete(s.active, id)
			failed = append(failed, id)
		}
	}
	for _, id := range done {
		if s.rec != nil {
			s.rec.TaskCompleted()
		}
		if s.listener != nil {
			s.listener.OnTaskCompleted(id)
		}
	}
	for _, id := range failed {
		if s.rec != nil {
			s.rec.TaskFailed()
		}
		if s.listener != nil {
			s.listener.OnTaskFailed(id)
		}
	}
}

func (s *Scheduler) fill() {
	sort.SliceStable(s.queue, func(i, j int) bool {
		if s.queue[i].Priority != s.queue[j].Priority {
			return s.queue[i].Priority < s.queue[j].Priority
		}
		return s.queue[i].Seq < s.queue[j].Seq
	})
	for len(s.active) < s.cfg.MaxActive {
		i := s.nextEligible()
		if i < 0 {
			return
		}
		t := s.queue[i]
		s.queue = append(s.queue[:i], s.queue[i+1:]...)

		if t.Count > s.cfg.Capacity {
			rem := *t
			rem.Count = t.Count - s.cfg.Capacity
			t.Count = s.cfg.Capacity
			remID := s.Enqueue(rem)
			if s.listener != nil {
				r, _ := s.queued(remID)
				s.listener.OnTaskSplit(*t, r)
			}
		}

		if s.spawner != nil && s.spawner.Spawn(*t, s.cfg.SpawnPos, s.cfg.ReturnPos, s.cfg.Speed, s.cfg.SearchSpeed) {
			t.Status = Flying
			s.active[t.ID] = t
			if s.rec != nil {
				s.rec.TaskDispatched()
			}
			continue
		}
		t.Status = Failed
		if s.rec != nil {
			s.rec.TaskFailed()
		}
		if s.listener != nil {
			s.listener.OnTaskFailed(t.ID)
		}
	}
}

// nextEligible returns the index of the first queued task whose parent is
// absent or completed, or -1.
func (s *Scheduler) nextEligible() int {
	for i, t := range s.queue {
		if t.ParentID == 0 || s.completed.Has(t.ParentID) {
			return i
		}
	}
	return -1
}

// Teardown discards every active carrier and clears the queue and active set.
// It returns the tasks that were in flight.
func (s *Scheduler) Teardown() []Task {
	var flying []Task
	for _, id := range s.activeIDs() {
		t := s.active[id]
		if s.spawner != nil {
			s.spawner.Discard(id)
		}
		flying = append(flying, *t)
	}
	s.active = map[uint64]*Task{}
	s.queue = nil
	if s.rec != nil {
		s.rec.QueueDepth(0, 0)
	}
	return flying
}

func (s *Scheduler) queueIndex(id uint64) int {
	for i, t := range s.queue {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Scheduler) queued(id uint64) (Task, bool) {
	if i := s.queueIndex(id); i >= 0 {
		return *s.queue[i], true
	}
	return Task{}, false
}

func (s *Scheduler) activeIDs() []uint64 {
	ids := make([]uint64, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Get looks a task up in either the queue or the active set.
func (s *Scheduler) Get(id uint64) (Task, bool) {
	if t, ok := s.active[id]; ok {
		return *t, true
	}
	return s.queued(id)
}

// Queued returns queued tasks in their current order.
func (s *Scheduler) Queued() []Task {
	out := make([]Task, 0, len(s.queue))
	for _, t := range s.queue {
		out = append(out, *t)
	}
	return out
}

// Active returns active tasks sorted by id.
func (s *Scheduler) Active() []Task {
	out := make([]Task, 0, len(s.active))
	for _, id := range s.activeIDs() {
		out = append(out, *s.active[id])
	}
	return out
}

func (s *Scheduler) QueueLen() int  { return len(s.queue) }
func (s *Scheduler) ActiveLen() int { return len(s.active) }

func (s *Scheduler) Completed(id uint64) bool { return s.completed.Has(id) }

// State is the persisted form of a scheduler.
type State struct {
	NextID    uint64
	NextSeq   uint64
	Tasks     []Task
	Completed []uint64
}

// Export returns queued and active tasks, active ones re-queued, in creation
// order.
func (s *Scheduler) Export() State {
	tasks := s.Queued()
	for _, t := range s.Active() {
		t.Status = Queued
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Seq < tasks[j].Seq })
	for i := range tasks {
		tasks[i].Status = Queued
	}
	return State{NextID: s.nextID, NextSeq: s.nextSeq, Tasks: tasks, Completed: s.completed.List()}
}

// Import replaces scheduler contents. Tasks rejected by keep are dropped;
// a nil keep retains all of them.
func (s *Scheduler) Import(st State, keep func(Task) bool) {
	s.queue = nil
	s.active = map[uint64]*Task{}
	s.completed = newIDRing(s.cfg.CompletedHistory)
	for _, id := range st.Completed {
		s.completed.Add(id)
	}
	s.nextID, s.nextSeq = st.NextID, st.NextSeq
	if s.nextID == 0 {
		s.nextID = 1
	}
	for _, t := range st.Tasks {
		if keep != nil && !keep(t) {
			continue
		}
		t := t
		t.Status = Queued
		s.queue = append(s.queue, &t)
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
		if t.Seq >= s.nextSeq {
			s.nextSeq = t.Seq + 1
		}
	}
}
