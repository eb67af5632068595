package world

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"hivenet.ai/internal/persistence/snapshot"
	"hivenet.ai/internal/protocol"
	"hivenet.ai/internal/sim/catalogs"
	"hivenet.ai/internal/sim/storage/delivery"
	"hivenet.ai/internal/sim/storage/network"
	"hivenet.ai/internal/sim/tuning"
	"hivenet.ai/internal/sim/voxel"
)

type Config struct {
	ID                 string
	TickRateHz         int
	SnapshotEveryTicks int
	ViewEveryTicks     int
	Network            tuning.Network
}

func ConfigFromTuning(id string, t tuning.Tuning) Config {
	return Config{
		ID:                 id,
		TickRateHz:         t.TickRateHz,
		SnapshotEveryTicks: t.SnapshotEveryTicks,
		ViewEveryTicks:     t.ViewEveryTicks,
		Network:            t.Network,
	}
}

// EventEntry is one network event as written to the event log.
type EventEntry struct {
	Tick      uint64 `json:"tick"`
	WorldID   string `json:"world_id"`
	Kind      string `json:"kind"`
	Node      [3]int `json:"node"`
	TaskID    uint64 `json:"task_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Item      string `json:"item,omitempty"`
	Count     int    `json:"count,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

type EventLogger interface {
	WriteEvent(entry EventEntry) error
}

type Options struct {
	Logger *log.Logger
	// Events receive every network event after the tick that produced it.
	Events []EventLogger
	// Optional snapshot sink. Snapshot writing should be off-thread.
	SnapshotSink chan<- snapshot.SnapshotV1
	// Views is called every ViewEveryTicks with one view per controller.
	Views func(tick uint64, views []protocol.NetworkViewMsg)
	// Recorder builds a per-controller scheduler recorder.
	Recorder func(controller voxel.Vec3i) delivery.Recorder
}

type commandReq struct {
	Cmd  protocol.CommandMsg
	Resp chan protocol.CommandResultMsg
}

// World is a single-threaded authoritative simulation of one block world
// and the storage networks built in it. All state must be accessed only
// from the world loop goroutine.
type World struct {
	cfg    Config
	cats   *catalogs.Catalogs
	logger *log.Logger

	tick atomic.Uint64

	grid   *voxel.Grid
	hub    *network.Hub
	actors actorSet

	// Events emitted during the current tick, flushed at its end.
	pending []network.Event

	eventLoggers []EventLogger
	views        func(uint64, []protocol.NetworkViewMsg)
	snapshotSink chan<- snapshot.SnapshotV1

	inbox    chan commandReq
	admin    chan adminSnapshotReq
	stop     chan struct{}
	stopOnce sync.Once

	metrics atomic.Value
}

// actorSet tracks where connected actors stand.
type actorSet map[string]voxel.Vec3i

func (a actorSet) ActorPos(id string) (voxel.Vec3i, bool) {
	p, ok := a[id]
	return p, ok
}

func New(cfg Config, cats *catalogs.Catalogs, opts Options) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("world %q: tick rate must be positive", cfg.ID)
	}
	w := &World{
		cfg:          cfg,
		cats:         cats,
		logger:       opts.Logger,
		grid:         voxel.NewGrid(),
		actors:       actorSet{},
		eventLoggers: opts.Events,
		views:        opts.Views,
		snapshotSink: opts.SnapshotSink,
		inbox:        make(chan commandReq, 1024),
		admin:        make(chan adminSnapshotReq, 16),
		stop:         make(chan struct{}),
	}
	hub, err := network.NewHub(w.grid, cats, cfg.Network, network.Options{
		Logger:   opts.Logger,
		Actors:   w.actors,
		Events:   func(e network.Event) { w.pending = append(w.pending, e) },
		Recorder: opts.Recorder,
	})
	if err != nil {
		return nil, err
	}
	w.hub = hub
	w.metrics.Store(WorldMetrics{})
	return w, nil
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

// CurrentTick is the tick the next step will run.
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) logf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}
