package world

import (
	"context"
	"errors"
	"time"

	"hivenet.ai/internal/protocol"
)

var ErrStopped = errors.New("world stopped")

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingCmds []commandReq
	var pendingAdmin []adminSnapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case req := <-w.inbox:
			pendingCmds = append(pendingCmds, req)
		case <-ticker.C:
			w.stepInternal(pendingCmds)
			w.handleAdminSnapshotRequests(pendingAdmin)
			pendingCmds = pendingCmds[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// Submit queues cmd for the next tick boundary and waits for its result. A
// full inbox is reported as E_WORLD_BUSY without blocking.
func (w *World) Submit(ctx context.Context, cmd protocol.CommandMsg) (protocol.CommandResultMsg, error) {
	resp := make(chan protocol.CommandResultMsg, 1)
	select {
	case w.inbox <- commandReq{Cmd: cmd, Resp: resp}:
	case <-w.stop:
		return protocol.CommandResultMsg{}, ErrStopped
	case <-ctx.Done():
		return protocol.CommandResultMsg{}, ctx.Err()
	default:
		r := newResult(cmd, w.tick.Load())
		r.Code = protocol.ErrWorldBusy
		r.Message = "command inbox full"
		return r, nil
	}

	select {
	case r := <-resp:
		return r, nil
	case <-w.stop:
		return protocol.CommandResultMsg{}, ErrStopped
	case <-ctx.Done():
		return protocol.CommandResultMsg{}, ctx.Err()
	}
}

// StepOnce advances the world by a single tick using the same ordering
// semantics as the server. It is intended for deterministic replays and tests.
func (w *World) StepOnce(cmds []protocol.CommandMsg) (tick uint64, results []protocol.CommandResultMsg) {
	tick = w.tick.Load()
	reqs := make([]commandReq, len(cmds))
	for i, c := range cmds {
		reqs[i] = commandReq{Cmd: c, Resp: make(chan protocol.CommandResultMsg, 1)}
	}
	w.stepInternal(reqs)
	results = make([]protocol.CommandResultMsg, len(reqs))
	for i, r := range reqs {
		results[i] = <-r.Resp
	}
	return tick, results
}
