package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"hivenet.ai/internal/persistence/indexdb"
)

// dbCmd queries the sqlite index: "snapshots" (default), "events" or
// "requests".
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	tick := fs.Uint64("tick", 0, "snapshot tick for requests (default: latest)")
	status := fs.String("status", "BLOCKED", "request status for requests")
	kind := fs.String("kind", "", "event kind filter for events")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fail("missing -world or -db")
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fail("open:", err)
	}
	defer idx.Close()

	ctx := context.Background()
	enc := json.NewEncoder(os.Stdout)
	switch q {
	case "snapshots":
		recs, err := idx.Snapshots(ctx, *limit)
		if err != nil {
			fail("query:", err)
		}
		for _, r := range recs {
			_ = enc.Encode(r)
		}
	case "events":
		evs, err := idx.Events(ctx, indexdb.EventFilter{Kind: *kind, Limit: *limit})
		if err != nil {
			fail("query:", err)
		}
		for _, e := range evs {
			_ = enc.Encode(e)
		}
	case "requests":
		t := *tick
		if t == 0 {
			recs, err := idx.Snapshots(ctx, 1)
			if err != nil {
				fail("query:", err)
			}
			if len(recs) == 0 {
				fail("no snapshots found")
			}
			t = recs[0].Tick
		}
		n, err := idx.CountRequests(ctx, t, *status)
		if err != nil {
			fail("query:", err)
		}
		_ = enc.Encode(map[string]any{"tick": t, "status": *status, "count": n})
	default:
		fail("unknown query:", q)
	}
}
