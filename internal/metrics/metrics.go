// Package metrics exports scheduler and world counters to Prometheus.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hivenet.ai/internal/sim/storage/delivery"
	"hivenet.ai/internal/sim/voxel"
	"hivenet.ai/internal/sim/world"
)

const namespace = "hivenet"

// Collector owns a private registry so several worlds (and tests) never
// collide on the default one.
type Collector struct {
	reg *prometheus.Registry

	tasks  *prometheus.CounterVec
	queued *prometheus.GaugeVec
	active *prometheus.GaugeVec
}

func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tasks_total",
			Help:      "Delivery task transitions by controller and outcome.",
		}, []string{"controller", "event"}),
		queued: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queued_tasks",
			Help:      "Tasks waiting for a carrier.",
		}, []string{"controller"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "active_tasks",
			Help:      "Tasks with a carrier in flight.",
		}, []string{"controller"}),
	}
	c.reg.MustRegister(c.tasks, c.queued, c.active)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// ForController matches the world's Recorder option.
func (c *Collector) ForController(pos voxel.Vec3i) delivery.Recorder {
	label := fmt.Sprintf("%d,%d,%d", pos.X, pos.Y, pos.Z)
	return &recorder{c: c, label: label}
}

// WatchWorld registers gauges that read src on every scrape.
func (c *Collector) WatchWorld(worldID string, src func() world.WorldMetrics) error {
	labels := prometheus.Labels{"world": worldID}
	gauge := func(name, help string, f func(world.WorldMetrics) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "world",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return f(src()) })
	}
	for _, g := range []prometheus.Collector{
		gauge("tick", "Next tick to run.", func(m world.WorldMetrics) float64 { return float64(m.Tick) }),
		gauge("step_ms", "Duration of the last tick in milliseconds.", func(m world.WorldMetrics) float64 { return m.StepMS }),
		gauge("controllers", "Controllers in the world.", func(m world.WorldMetrics) float64 { return float64(m.Controllers) }),
		gauge("formed_controllers", "Controllers whose structure is complete.", func(m world.WorldMetrics) float64 { return float64(m.Formed) }),
		gauge("relays", "Relay nodes.", func(m world.WorldMetrics) float64 { return float64(m.Relays) }),
		gauge("requests", "Open requests across all controllers.", func(m world.WorldMetrics) float64 { return float64(m.Requests) }),
		gauge("fuel", "Fuel units across all controllers.", func(m world.WorldMetrics) float64 { return float64(m.Fuel) }),
		gauge("inbox_depth", "Commands waiting for the next tick.", func(m world.WorldMetrics) float64 { return float64(m.QueueDepths.Inbox) }),
	} {
		if err := c.reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}

type recorder struct {
	c     *Collector
	label string
}

func (r *recorder) TaskEnqueued()   { r.c.tasks.WithLabelValues(r.label, "enqueued").Inc() }
func (r *recorder) TaskDispatched() { r.c.tasks.WithLabelValues(r.label, "dispatched").Inc() }
func (r *recorder) TaskCompleted()  { r.c.tasks.WithLabelValues(r.label, "completed").Inc() }
func (r *recorder) TaskFailed()     { r.c.tasks.WithLabelValues(r.label, "failed").Inc() }

func (r *recorder) QueueDepth(queued, active int) {
	r.c.queued.WithLabelValues(r.label).Set(float64(queued))
	r.c.active.WithLabelValues(r.label).Set(float64(active))
}
