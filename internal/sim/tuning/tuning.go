package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
	// ViewEveryTicks is how often presentation views are pushed to observers.
	ViewEveryTicks int `yaml:"view_every_ticks"`

	Network Network `yaml:"network"`
}

// Network holds per-controller cadence and limits. All intervals are ticks.
type Network struct {
	ControllerPattern string `yaml:"controller_pattern"`

	CarrierCapacity   int `yaml:"carrier_capacity"`
	MaxActiveCarriers int `yaml:"max_active_carriers"`

	DispatchEveryTicks int `yaml:"dispatch_every_ticks"`
	FuelEveryTicks     int `yaml:"fuel_every_ticks"`
	FuelPerInterval    int `yaml:"fuel_per_interval"`
	SyncEveryTicks     int `yaml:"sync_every_ticks"`
	ProcessEveryTicks  int `yaml:"process_every_ticks"`
	RecheckEveryTicks  int `yaml:"recheck_every_ticks"`
	ValidateEveryTicks int `yaml:"validate_every_ticks"`

	ChestRange       int `yaml:"chest_range"`
	LinkRange        int `yaml:"link_range"`
	CompletedHistory int `yaml:"completed_history"`

	CarrierSpeed          float64 `yaml:"carrier_speed"`
	CarrierSearchSpeed    float64 `yaml:"carrier_search_speed"`
	CarrierInteractTicks  int     `yaml:"carrier_interact_ticks"`
	CarrierMaxFlightTicks int     `yaml:"carrier_max_flight_ticks"`

	EditRange     int `yaml:"edit_range"`
	EditIdleTicks int `yaml:"edit_idle_ticks"`
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:         20,
		SnapshotEveryTicks: 6000,
		ViewEveryTicks:     20,
		Network: Network{
			ControllerPattern:     "hive_controller",
			CarrierCapacity:       64,
			MaxActiveCarriers:     2,
			DispatchEveryTicks:    20,
			FuelEveryTicks:        200,
			FuelPerInterval:       1,
			SyncEveryTicks:        10,
			ProcessEveryTicks:     20,
			RecheckEveryTicks:     100,
			ValidateEveryTicks:    600,
			ChestRange:            16,
			LinkRange:             24,
			CompletedHistory:      256,
			CarrierSpeed:          1,
			CarrierSearchSpeed:    1,
			CarrierInteractTicks:  10,
			CarrierMaxFlightTicks: 2400,
			EditRange:             8,
			EditIdleTicks:         1200,
		},
	}
}

// Normalize replaces zero or negative values with defaults.
func (t *Tuning) Normalize() {
	d := Defaults()
	pos := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	posf := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	pos(&t.TickRateHz, d.TickRateHz)
	pos(&t.SnapshotEveryTicks, d.SnapshotEveryTicks)
	pos(&t.ViewEveryTicks, d.ViewEveryTicks)

	n, dn := &t.Network, d.Network
	if n.ControllerPattern == "" {
		n.ControllerPattern = dn.ControllerPattern
	}
	pos(&n.CarrierCapacity, dn.CarrierCapacity)
	pos(&n.MaxActiveCarriers, dn.MaxActiveCarriers)
	pos(&n.DispatchEveryTicks, dn.DispatchEveryTicks)
	pos(&n.FuelEveryTicks, dn.FuelEveryTicks)
	if n.FuelPerInterval < 0 {
		n.FuelPerInterval = 0
	}
	pos(&n.SyncEveryTicks, dn.SyncEveryTicks)
	pos(&n.ProcessEveryTicks, dn.ProcessEveryTicks)
	pos(&n.RecheckEveryTicks, dn.RecheckEveryTicks)
	pos(&n.ValidateEveryTicks, dn.ValidateEveryTicks)
	pos(&n.ChestRange, dn.ChestRange)
	pos(&n.LinkRange, dn.LinkRange)
	pos(&n.CompletedHistory, dn.CompletedHistory)
	posf(&n.CarrierSpeed, dn.CarrierSpeed)
	posf(&n.CarrierSearchSpeed, dn.CarrierSearchSpeed)
	pos(&n.CarrierInteractTicks, dn.CarrierInteractTicks)
	pos(&n.CarrierMaxFlightTicks, dn.CarrierMaxFlightTicks)
	pos(&n.EditRange, dn.EditRange)
	pos(&n.EditIdleTicks, dn.EditIdleTicks)
}

// Validate checks cross-field constraints that Normalize cannot repair.
func (t Tuning) Validate() error {
	n := t.Network
	if n.ProcessEveryTicks > n.RecheckEveryTicks {
		return fmt.Errorf("network: process_every_ticks (%d) must not exceed recheck_every_ticks (%d)", n.ProcessEveryTicks, n.RecheckEveryTicks)
	}
	if n.RecheckEveryTicks > n.ValidateEveryTicks {
		return fmt.Errorf("network: recheck_every_ticks (%d) must not exceed validate_every_ticks (%d)", n.RecheckEveryTicks, n.ValidateEveryTicks)
	}
	return nil
}
