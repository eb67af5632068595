package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hivenet.ai/internal/sim/voxel"
	"hivenet.ai/internal/sim/world"
)

// value returns the counter or gauge sample of name whose labels include want.
func value(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if got[k] != v {
					continue next
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("no sample %s%v", name, want)
	return 0
}

func TestRecorderCountsPerController(t *testing.T) {
	c := New()
	a := c.ForController(voxel.V(0, 64, 0))
	b := c.ForController(voxel.V(10, 64, 0))

	a.TaskEnqueued()
	a.TaskEnqueued()
	a.TaskDispatched()
	a.TaskCompleted()
	b.TaskEnqueued()
	b.TaskFailed()
	a.QueueDepth(1, 0)
	b.QueueDepth(0, 2)

	reg := c.Registry()
	assert.Equal(t, 2.0, value(t, reg, "hivenet_scheduler_tasks_total", map[string]string{"controller": "0,64,0", "event": "enqueued"}))
	assert.Equal(t, 1.0, value(t, reg, "hivenet_scheduler_tasks_total", map[string]string{"controller": "0,64,0", "event": "completed"}))
	assert.Equal(t, 1.0, value(t, reg, "hivenet_scheduler_tasks_total", map[string]string{"controller": "10,64,0", "event": "failed"}))
	assert.Equal(t, 1.0, value(t, reg, "hivenet_scheduler_queued_tasks", map[string]string{"controller": "0,64,0"}))
	assert.Equal(t, 2.0, value(t, reg, "hivenet_scheduler_active_tasks", map[string]string{"controller": "10,64,0"}))
}

func TestWatchWorldReadsOnScrape(t *testing.T) {
	c := New()
	m := world.WorldMetrics{Tick: 7, Controllers: 2, Formed: 1, Fuel: 40}
	require.NoError(t, c.WatchWorld("w1", func() world.WorldMetrics { return m }))

	assert.Equal(t, 7.0, value(t, c.Registry(), "hivenet_world_tick", map[string]string{"world": "w1"}))
	m.Tick = 9
	assert.Equal(t, 9.0, value(t, c.Registry(), "hivenet_world_tick", map[string]string{"world": "w1"}))
	assert.Equal(t, 40.0, value(t, c.Registry(), "hivenet_world_fuel", nil))

	// A second watch under the same world id collides.
	assert.Error(t, c.WatchWorld("w1", func() world.WorldMetrics { return m }))
}

func TestHandlerServesText(t *testing.T) {
	c := New()
	c.ForController(voxel.V(1, 2, 3)).TaskEnqueued()
	require.NoError(t, c.WatchWorld("w1", func() world.WorldMetrics { return world.WorldMetrics{Tick: 3} }))

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `hivenet_scheduler_tasks_total{controller="1,2,3",event="enqueued"} 1`)
	assert.Contains(t, string(body), `hivenet_world_tick{world="w1"} 3`)
}
