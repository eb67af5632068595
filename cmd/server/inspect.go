package main

import (
	"context"
	"encoding/json"
	"io"

	"hivenet.ai/internal/persistence/indexdb"
	"hivenet.ai/internal/persistence/snapshot"
)

func inspectSnapshot(out io.Writer, path string) error {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshot.Summarize(snap))
}

func queryEvents(ctx context.Context, out io.Writer, dbPath, kind string, fromTick uint64, limit int) error {
	idx, err := indexdb.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer idx.Close()
	evs, err := idx.Events(ctx, indexdb.EventFilter{Kind: kind, FromTick: fromTick, Limit: limit})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	for _, e := range evs {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
