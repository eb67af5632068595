package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"hivenet.ai/internal/protocol"
	"hivenet.ai/schemas"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	s, err := schemas.Compile(name)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// roundTrip marshals a Go message and decodes it generically for validation.
func roundTrip(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateSamples(t *testing.T) {
	viewSchema := compile(t, "network_view.schema.json")
	cmdSchema := compile(t, "command.schema.json")
	resSchema := compile(t, "command_result.schema.json")

	var cmd any
	_ = json.Unmarshal([]byte(`{
	  "type":"CMD",
	  "protocol_version":"1.0",
	  "req_id":"r1",
	  "op":"PUBLISH",
	  "actor":"alice",
	  "pos":[0,64,0],
	  "target":[0,64,4],
	  "item":"COAL",
	  "count":32,
	  "request_type":"IMPORT",
	  "origin":"INTERFACE"
	}`), &cmd)
	if err := cmdSchema.Validate(cmd); err != nil {
		t.Fatalf("validate cmd: %v", err)
	}

	var bad any
	_ = json.Unmarshal([]byte(`{"type":"CMD","protocol_version":"1.0","op":"EXPLODE","pos":[0,0,0]}`), &bad)
	if err := cmdSchema.Validate(bad); err == nil {
		t.Fatalf("unknown op should not validate")
	}

	res := protocol.CommandResultMsg{
		Type: protocol.TypeCommandResult, ProtocolVersion: protocol.Version,
		ReqID: "r1", Tick: 12, OK: false, Code: protocol.ErrBlocked, Message: "controller is not formed",
	}
	if err := resSchema.Validate(roundTrip(t, res)); err != nil {
		t.Fatalf("validate result: %v", err)
	}

	view := protocol.NetworkViewMsg{
		Type: protocol.TypeNetworkView, ProtocolVersion: protocol.Version,
		WorldID: "overworld", Tick: 40,
		Controller: [3]int{0, 64, 0}, Formed: true, Rotation: 1, Fuel: 9, GateOpen: true,
		Items:   []protocol.ItemView{{Item: "COAL", Name: "Coal", Count: 36}},
		Chests:  [][3]int{{4, 64, 0}},
		Nodes:   [][3]int{{0, 64, 0}},
		Devices: [][3]int{{0, 64, 4}},
		Tasks: []protocol.TaskView{{
			ID: 1, Item: "COAL", Count: 64, Type: "EXTRACT", Status: "FLYING",
			Origin: [3]int{4, 64, 0}, Destination: [3]int{0, 64, 4}, Phase: "load", Pos: [3]int{4, 64, 0},
		}},
		Requests: []protocol.RequestView{{ID: "6f1c", Type: "IMPORT", Item: "COAL", Count: 100, Status: "ASSIGNED", Source: [3]int{0, 64, 4}}},
	}
	if err := viewSchema.Validate(roundTrip(t, view)); err != nil {
		t.Fatalf("validate view: %v", err)
	}

	// An idle, unformed controller serializes empty lists as null.
	idle := protocol.NetworkViewMsg{Type: protocol.TypeNetworkView, ProtocolVersion: protocol.Version, WorldID: "overworld"}
	if err := viewSchema.Validate(roundTrip(t, idle)); err != nil {
		t.Fatalf("validate idle view: %v", err)
	}
}

func TestDecodeBase(t *testing.T) {
	b, _ := json.Marshal(protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: protocol.Version})
	m, err := protocol.DecodeBase(b)
	if err != nil || m.Type != protocol.TypeSubscribe || m.ProtocolVersion != protocol.Version {
		t.Fatalf("DecodeBase=%+v,%v", m, err)
	}
}
