package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Actors      int `json:"actors"`
	Blocks      int `json:"blocks"`
	Controllers int `json:"controllers"`
	Formed      int `json:"formed"`
	Relays      int `json:"relays"`

	Requests    int `json:"requests"`
	QueuedTasks int `json:"queued_tasks"`
	ActiveTasks int `json:"active_tasks"`
	Fuel        int `json:"fuel"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Admin int `json:"admin"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) storeMetrics(nextTick uint64, stepMS float64) {
	m := WorldMetrics{
		Tick:        nextTick,
		Actors:      len(w.actors),
		Blocks:      len(w.grid.Blocks()),
		Controllers: len(w.hub.Controllers()),
		Formed:      len(w.hub.Formed()),
		Relays:      len(w.hub.Relays()),
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Admin: len(w.admin),
		},
		StepMS: stepMS,
	}
	for _, c := range w.hub.Controllers() {
		m.Requests += len(c.Requests())
		queued, active := c.TaskCounts()
		m.QueuedTasks += queued
		m.ActiveTasks += active
		m.Fuel += c.Fuel()
	}
	w.metrics.Store(m)
}
