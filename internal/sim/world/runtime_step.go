package world

import (
	"time"

	"hivenet.ai/internal/sim/storage/network"
)

func (w *World) stepInternal(cmds []commandReq) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	// Commands apply at the tick boundary in inbox order, before any network
	// cadence runs.
	for _, req := range cmds {
		res := w.applyCommand(req.Cmd, nowTick)
		if req.Resp != nil {
			select {
			case req.Resp <- res:
			default:
			}
		}
	}

	w.hub.Tick(nowTick)
	w.flushEvents(nowTick)

	if w.views != nil && w.cfg.ViewEveryTicks > 0 && nowTick%uint64(w.cfg.ViewEveryTicks) == 0 {
		w.views(nowTick, w.NetworkViews(nowTick))
	}

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		every := uint64(w.cfg.SnapshotEveryTicks)
		if nowTick%every == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				// Drop snapshot if sink is backed up.
			}
		}
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	nextTick := w.tick.Add(1)
	w.storeMetrics(nextTick, stepMS)
}

func (w *World) flushEvents(nowTick uint64) {
	if len(w.pending) == 0 {
		return
	}
	for _, e := range w.pending {
		entry := eventEntry(w.cfg.ID, e)
		for _, l := range w.eventLoggers {
			if err := l.WriteEvent(entry); err != nil {
				w.logf("tick %d: event log: %v", nowTick, err)
			}
		}
	}
	w.pending = w.pending[:0]
}

func eventEntry(worldID string, e network.Event) EventEntry {
	return EventEntry{
		Tick:      e.Tick,
		WorldID:   worldID,
		Kind:      e.Kind,
		Node:      e.Node.ToArray(),
		TaskID:    e.TaskID,
		RequestID: e.RequestID,
		Item:      e.Item,
		Count:     e.Count,
		Detail:    e.Detail,
	}
}
