package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hivenet.ai/internal/sim/voxel"
)

const DefaultMaxStack = 64

type Catalogs struct {
	Blocks   BlockCatalog
	Items    ItemCatalog
	Patterns PatternCatalog
}

type BlockCatalog struct {
	Palette []string
	Defs    map[string]BlockDef
	Digest  string
}

type BlockDef struct {
	ID          string `json:"id"`
	Solid       bool   `json:"solid"`
	Replaceable bool   `json:"replaceable,omitempty"`
	Directional bool   `json:"directional,omitempty"`
	// Container blocks carry an inventory of Slots slots.
	Container bool `json:"container,omitempty"`
	Slots     int  `json:"slots,omitempty"`
	// Device marks peripherals ("interface", "terminal") that attach to a network.
	Device string `json:"device,omitempty"`
}

type ItemCatalog struct {
	Palette []string
	Defs    map[string]ItemDef
	Digest  string
}

type ItemDef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MaxStack int    `json:"max_stack,omitempty"`
	// FuelValue is how many fuel units one item adds to a controller reservoir.
	FuelValue int `json:"fuel_value,omitempty"`
}

type PatternCatalog struct {
	ByID   map[string]PatternDef
	Digest string
}

type PatternDef struct {
	ID       string              `json:"id"`
	Size     [3]int              `json:"size"`
	Elements []PatternElementDef `json:"elements"`
}

// PatternElementDef sets exactly one of Block, AnyOf or Air.
type PatternElementDef struct {
	Pos    [3]int   `json:"pos"`
	Block  string   `json:"block,omitempty"`
	Facing string   `json:"facing,omitempty"`
	AnyOf  []string `json:"any_of,omitempty"`
	Air    bool     `json:"air,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadPatterns(filepath.Join(configDir, "patterns"), &c.Patterns); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalogs) MaxStack(t voxel.Template) int {
	if c != nil {
		if d, ok := c.Items.Defs[t.Item]; ok && d.MaxStack > 0 {
			return d.MaxStack
		}
	}
	return DefaultMaxStack
}

func (c *Catalogs) DisplayName(t voxel.Template) string {
	if c != nil {
		if d, ok := c.Items.Defs[t.Item]; ok && d.Name != "" {
			return d.Name
		}
	}
	return t.Item
}

func (c *Catalogs) FuelValue(item string) int {
	if c == nil {
		return 0
	}
	return c.Items.Defs[item].FuelValue
}

func (c *Catalogs) IsContainer(blockID string) bool {
	return c != nil && c.Blocks.Defs[blockID].Container
}

func (c *Catalogs) IsReplaceable(blockID string) bool {
	return c != nil && c.Blocks.Defs[blockID].Replaceable
}

func (c *Catalogs) DeviceKind(blockID string) string {
	if c == nil {
		return ""
	}
	return c.Blocks.Defs[blockID].Device
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		if d.Container && d.Slots <= 0 {
			return fmt.Errorf("blocks.json: container %s needs slots", d.ID)
		}
		out.Defs[d.ID] = d
	}
	if _, ok := out.Defs[voxel.Air]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	out.Palette = sortedIDs(out.Defs)
	return nil
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		if d.MaxStack < 0 {
			return fmt.Errorf("items.json: %s: negative max_stack", d.ID)
		}
		out.Defs[d.ID] = d
	}
	out.Palette = sortedIDs(out.Defs)
	return nil
}

func loadPatterns(dir string, out *PatternCatalog) error {
	out.ByID = map[string]PatternDef{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	var concat bytes.Buffer
	for _, p := range files {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		concat.Write(b)
		concat.WriteByte('\n')

		var def PatternDef
		if err := json.Unmarshal(b, &def); err != nil {
			return fmt.Errorf("pattern %s: %w", filepath.Base(p), err)
		}
		if def.ID == "" {
			return fmt.Errorf("pattern %s: missing id", filepath.Base(p))
		}
		out.ByID[def.ID] = def
	}
	out.Digest = sha256Hex(concat.Bytes())
	return nil
}

func sortedIDs[T any](m map[string]T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
