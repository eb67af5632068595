package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"hivenet.ai/internal/sim/storage/network"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 is a full world save: blocks with their inventories, actor
// positions and the storage network state.
type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate           int `json:"tick_rate_hz"`
	SnapshotEveryTicks int `json:"snapshot_every_ticks,omitempty"`

	Blocks  []BlockV1        `json:"blocks"`
	Actors  []ActorV1        `json:"actors"`
	Network network.HubState `json:"network"`
}

type BlockV1 struct {
	Pos    [3]int `json:"pos"`
	ID     string `json:"id"`
	Facing string `json:"facing,omitempty"`
	// Slots is nil for blocks without an inventory.
	Slots []SlotV1 `json:"slots,omitempty"`
}

type SlotV1 struct {
	Item  string `json:"item,omitempty"`
	Tag   string `json:"tag,omitempty"`
	Count int    `json:"count,omitempty"`
}

type ActorV1 struct {
	ID  string `json:"id"`
	Pos [3]int `json:"pos"`
}

// Summary is the header plus counts, cheap to print or index.
type Summary struct {
	Header      Header `json:"header"`
	Blocks      int    `json:"blocks"`
	Containers  int    `json:"containers"`
	Actors      int    `json:"actors"`
	Controllers int    `json:"controllers"`
	Formed      int    `json:"formed"`
	Relays      int    `json:"relays"`
	Requests    int    `json:"requests"`
	Tasks       int    `json:"tasks"`
}

func Summarize(snap SnapshotV1) Summary {
	s := Summary{Header: snap.Header, Blocks: len(snap.Blocks), Actors: len(snap.Actors), Relays: len(snap.Network.Relays)}
	for _, b := range snap.Blocks {
		if b.Slots != nil {
			s.Containers++
		}
	}
	for _, c := range snap.Network.Controllers {
		s.Controllers++
		if c.Formed {
			s.Formed++
		}
		s.Requests += len(c.Requests.Requests)
		s.Tasks += len(c.Tasks.Tasks)
	}
	return s
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is repeated inside the gob payload.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}
