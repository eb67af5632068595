package world

import (
	"fmt"

	"hivenet.ai/internal/persistence/snapshot"
	"hivenet.ai/internal/sim/voxel"
)

// ImportSnapshot restores a snapshot into a freshly constructed world. The
// next step runs the tick after the snapshot's.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if snap.Header.WorldID != "" && w.cfg.ID != "" && snap.Header.WorldID != w.cfg.ID {
		return fmt.Errorf("snapshot world %q does not match %q", snap.Header.WorldID, w.cfg.ID)
	}
	if len(w.grid.Blocks()) > 0 || len(w.hub.Controllers()) > 0 || len(w.hub.Relays()) > 0 {
		return fmt.Errorf("import into non-empty world")
	}

	for _, b := range snap.Blocks {
		p := voxel.FromArray(b.Pos)
		if b.Slots != nil {
			inv := w.grid.PlaceContainer(p, b.ID, len(b.Slots))
			for i, s := range b.Slots {
				if s.Item == "" || s.Count <= 0 {
					continue
				}
				inv.Slots[i] = voxel.ItemStack{Template: voxel.Template{Item: s.Item, Tag: s.Tag}, Count: s.Count}
			}
			continue
		}
		blk := voxel.Block{ID: b.ID}
		if b.Facing != "" {
			f, ok := voxel.ParseFacing(b.Facing)
			if !ok {
				return fmt.Errorf("block %v: bad facing %q", b.Pos, b.Facing)
			}
			blk.Facing = f
		}
		w.grid.SetBlock(p, blk)
	}
	for _, a := range snap.Actors {
		w.actors[a.ID] = voxel.FromArray(a.Pos)
	}
	if err := w.hub.Import(snap.Network); err != nil {
		return err
	}
	w.tick.Store(snap.Header.Tick + 1)
	return nil
}
