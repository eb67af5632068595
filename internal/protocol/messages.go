package protocol

// Command ops.
const (
	OpSetBlock        = "SET_BLOCK"
	OpRemoveBlock     = "REMOVE_BLOCK"
	OpPutItems        = "PUT_ITEMS"
	OpMoveActor       = "MOVE_ACTOR"
	OpLeave           = "LEAVE"
	OpBeginEdit       = "BEGIN_EDIT"
	OpEndEdit         = "END_EDIT"
	OpToggleChest     = "TOGGLE_CHEST"
	OpLink            = "LINK"
	OpUnlink          = "UNLINK"
	OpLinkDevice      = "LINK_DEVICE"
	OpUnlinkDevice    = "UNLINK_DEVICE"
	OpPublish         = "PUBLISH"
	OpCancel          = "CANCEL"
	OpCancelRequester = "CANCEL_REQUESTER"
	OpRequestedCount  = "REQUESTED_COUNT"
	OpAddFuel         = "ADD_FUEL"
	OpDeposit         = "DEPOSIT"
	OpExtract         = "EXTRACT"
)

// CMD (client -> server). Pos addresses the node (controller or relay) or
// the block being changed; Target is the second position an op needs.
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`

	Op     string `json:"op"`
	Actor  string `json:"actor,omitempty"`
	Pos    [3]int `json:"pos"`
	Target [3]int `json:"target"`

	Block  string `json:"block,omitempty"`
	Facing string `json:"facing,omitempty"`

	Item  string `json:"item,omitempty"`
	Tag   string `json:"tag,omitempty"`
	Count int    `json:"count,omitempty"`

	// RequestType is IMPORT or EXPORT.
	RequestType string `json:"request_type,omitempty"`
	// Origin is INTERFACE or TERMINAL.
	Origin    string `json:"origin,omitempty"`
	Preloaded bool   `json:"preloaded,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// CMD_RESULT (server -> client)
type CommandResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Tick            uint64 `json:"tick"`

	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	Count     int    `json:"count,omitempty"`
	Changed   int    `json:"changed,omitempty"`
}

// SUBSCRIBE (observer -> server). An empty Controllers list follows every
// controller in the world.
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Controllers     [][3]int `json:"controllers,omitempty"`
}
