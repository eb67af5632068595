package protocol

// NETWORK_VIEW (server -> observer): read-only presentation snapshot of one
// controller's network.
type NetworkViewMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	WorldID         string `json:"world_id"`
	Tick            uint64 `json:"tick"`

	Controller [3]int `json:"controller"`
	Formed     bool   `json:"formed"`
	Rotation   int    `json:"rotation"`
	Fuel       int    `json:"fuel"`
	GateOpen   bool   `json:"gate_open"`
	Editing    string `json:"editing,omitempty"`

	Items    []ItemView    `json:"items"`
	Chests   [][3]int      `json:"chests"`
	Nodes    [][3]int      `json:"nodes"`
	Devices  [][3]int      `json:"devices"`
	Tasks    []TaskView    `json:"tasks"`
	Requests []RequestView `json:"requests"`
}

type ItemView struct {
	Item  string `json:"item"`
	Tag   string `json:"tag,omitempty"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type TaskView struct {
	ID          uint64 `json:"id"`
	Item        string `json:"item"`
	Count       int    `json:"count"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Origin      [3]int `json:"origin"`
	Destination [3]int `json:"destination"`
	Phase       string `json:"phase,omitempty"`
	Pos         [3]int `json:"pos"`
}

type RequestView struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Item   string `json:"item"`
	Count  int    `json:"count"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Source [3]int `json:"source"`
	Held   int    `json:"held,omitempty"`
}

// EVENT (server -> observer)
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	WorldID         string `json:"world_id"`
	Tick            uint64 `json:"tick"`

	Kind      string `json:"kind"`
	Node      [3]int `json:"node"`
	TaskID    uint64 `json:"task_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Item      string `json:"item,omitempty"`
	Count     int    `json:"count,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string   `json:"protocol_version"`
	WorldID         string   `json:"world_id"`
	Tick            uint64   `json:"tick"`
	TickRateHz      int      `json:"tick_rate_hz"`
	BlockPalette    []string `json:"block_palette"`
	ItemPalette     []string `json:"item_palette"`
}
