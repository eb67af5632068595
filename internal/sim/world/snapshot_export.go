package world

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"hivenet.ai/internal/persistence/snapshot"
	"hivenet.ai/internal/sim/voxel"
)

// ExportSnapshot captures the world as of the end of nowTick. It must run on
// the world loop goroutine.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		TickRate:           w.cfg.TickRateHz,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		Network:            w.hub.Export(),
	}

	blocks := w.grid.Blocks()
	for _, p := range voxel.SortedKeys(blocks) {
		b := blocks[p]
		bv := snapshot.BlockV1{Pos: p.ToArray(), ID: b.ID}
		if b.Facing != voxel.FacingNone {
			bv.Facing = b.Facing.String()
		}
		if inv := w.grid.Inventory(p); inv != nil {
			bv.Slots = make([]snapshot.SlotV1, len(inv.Slots))
			for i, s := range inv.Slots {
				if s.Empty() {
					continue
				}
				bv.Slots[i] = snapshot.SlotV1{Item: s.Item, Tag: s.Tag, Count: s.Count}
			}
		}
		snap.Blocks = append(snap.Blocks, bv)
	}

	ids := make([]string, 0, len(w.actors))
	for id := range w.actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		snap.Actors = append(snap.Actors, snapshot.ActorV1{ID: id, Pos: w.actors[id].ToArray()})
	}
	return snap
}

// StateDigest hashes the exported state at nowTick. Two worlds that ran the
// same commands produce the same digest.
func (w *World) StateDigest(nowTick uint64) string {
	b, err := json.Marshal(w.ExportSnapshot(nowTick))
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
