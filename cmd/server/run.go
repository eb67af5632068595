package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"hivenet.ai/internal/metrics"
	persistlog "hivenet.ai/internal/persistence/log"
	"hivenet.ai/internal/persistence/snapshot"
	"hivenet.ai/internal/sim/catalogs"
	"hivenet.ai/internal/sim/tuning"
	"hivenet.ai/internal/sim/world"
	"hivenet.ai/internal/transport/observer"
	"hivenet.ai/internal/transport/ws"
)

type runOptions struct {
	Addr       string
	WorldID    string
	ConfigDir  string
	DataDir    string
	TuningPath string
	DisableDB  bool

	CommandsPerSecond float64
	CommandBurst      int

	SnapshotPath string
	LoadLatest   bool
}

func runServer(parent context.Context, o runOptions) error {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(o.ConfigDir)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}

	worldDir := filepath.Join(o.DataDir, "worlds", o.WorldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		return err
	}

	snapshotToLoad := strings.TrimSpace(o.SnapshotPath)
	if snapshotToLoad == "" && o.LoadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}

	tp := strings.TrimSpace(o.TuningPath)
	if tp == "" {
		tp = filepath.Join(o.ConfigDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		// A resumed world carries its own tick rate and snapshot cadence.
		if snapshotToLoad == "" || !os.IsNotExist(err) {
			return fmt.Errorf("load tuning: %w", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	idx, err := openRuntimeIndex(worldDir, o.DisableDB)
	if err != nil {
		return fmt.Errorf("open index backend: %w", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(o.ConfigDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	eventLog := persistlog.NewEventLogger(worldDir)
	defer eventLog.Close()

	obs := observer.NewServer(nil, cats, log.New(os.Stdout, "[observer] ", log.LstdFlags))
	mc := metrics.New()

	loggers := []world.EventLogger{eventLog, obs}
	if idx != nil {
		loggers = append(loggers, idx)
	}
	snapCh := make(chan snapshot.SnapshotV1, 2)
	opts := world.Options{
		Logger:       log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds),
		Events:       loggers,
		SnapshotSink: snapCh,
		Views:        obs.PublishViews,
		Recorder:     mc.ForController,
	}

	cfg := world.ConfigFromTuning(o.WorldID, tune)
	var snap snapshot.SnapshotV1
	if snapshotToLoad != "" {
		snap, err = snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != o.WorldID {
			return fmt.Errorf("snapshot world id mismatch: flag=%s snap=%s", o.WorldID, snap.Header.WorldID)
		}
		cfg.TickRateHz = snap.TickRate
		cfg.SnapshotEveryTicks = snap.SnapshotEveryTicks
	}
	w, err := world.New(cfg, cats, opts)
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}
	if snapshotToLoad != "" {
		if err := w.ImportSnapshot(snap); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	}
	obs.SetWorld(w)
	if err := mc.WatchWorld(o.WorldID, w.Metrics); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	control, err := ws.NewServer(w, log.New(os.Stdout, "[control] ", log.LstdFlags), ws.Limits{
		CommandsPerSecond: o.CommandsPerSecond,
		Burst:             o.CommandBurst,
	})
	if err != nil {
		return fmt.Errorf("control server: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", mc.Handler())
	mux.HandleFunc("/v1/ws", control.Handler())
	mux.HandleFunc("/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/observer/ws", obs.WSHandler())
	mux.HandleFunc("/admin/v1/state", adminStateHandler(w))
	mux.HandleFunc("/admin/v1/snapshot", adminSnapshotHandler(w))

	srv := &http.Server{
		Addr:              o.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext(parent)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := w.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		writeSnapshots(gctx, worldDir, snapCh, idx, logger)
		return nil
	})
	g.Go(func() error {
		logger.Printf("listening on %s", o.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ListenAndServe: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		w.Stop()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})
	return g.Wait()
}

func writeSnapshots(ctx context.Context, worldDir string, snapCh <-chan snapshot.SnapshotV1, idx runtimeIndex, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-snapCh:
			path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			if idx != nil {
				idx.RecordSnapshot(path, snap)
			}
		}
	}
}

func adminStateHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			WorldID string             `json:"world_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{
			WorldID: w.ID(),
			Tick:    w.CurrentTick(),
			Metrics: w.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func adminSnapshotHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		tick, err := w.RequestSnapshot(ctx)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
