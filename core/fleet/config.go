package fleet

import (
	"fmt"
	"time"
)

// Config holds the simulation constants shared by the store and both clocks.
type Config struct {
	TickIntervalMs        int     `json:"tick_interval_ms"`
	MissionTickIntervalMs int     `json:"mission_tick_interval_ms"`
	StepDeg               float64 `json:"step_deg"`
	ReplacementDurationMs int     `json:"replacement_duration_ms"`
	DockServiceDurationMs int     `json:"dock_service_duration_ms"`
	MinFlightBattery      float64 `json:"min_flight_battery"`
	ReturnBattery         float64 `json:"return_battery"`
	ContainerCapacity     int     `json:"container_capacity"`
	ChargePerTick         float64 `json:"charge_per_tick"`
	FlightDrainPerStep    float64 `json:"flight_drain_per_step"`
	ReplaceDrainMin       float64 `json:"replace_drain_min"`
	ReplaceDrainMax       float64 `json:"replace_drain_max"`
	RefillIntervalMs      int     `json:"refill_interval_ms"`
	RefillAmount          int     `json:"refill_amount"`
	DockContainerLimit    int     `json:"dock_container_limit"`
	AutoCooldownMs        int     `json:"auto_cooldown_ms"`
	AutoService           bool    `json:"auto_service"`
	// MaintenancePlanFile optionally points to a YAML or JSON per-drone plan.
	MaintenancePlanFile string  `json:"maintenance_plan_file"`
	EnergyMinW          float64 `json:"energy_min_w"`
	EnergyMaxW          float64 `json:"energy_max_w"`

	Seed SeedConfig `json:"seed"`
}

// SeedConfig drives the deterministic geography generator.
type SeedConfig struct {
	Seed                  int64   `json:"seed"`
	DockCount             int     `json:"dock_count"`
	LampCount             int     `json:"lamp_count"`
	CenterLat             float64 `json:"center_lat"`
	CenterLng             float64 `json:"center_lng"`
	RadiusKm              float64 `json:"radius_km"`
	InitialFailures       int     `json:"initial_failures"`
	InitialFullContainers int     `json:"initial_full_containers"`
}

// SetDefaults fills unset fields.
//
//gocyclo:ignore
func (c *Config) SetDefaults() {
	if c.TickIntervalMs == 0 {
		c.TickIntervalMs = 1000
	}
	if c.MissionTickIntervalMs == 0 {
		c.MissionTickIntervalMs = 250
	}
	if c.StepDeg == 0 {
		c.StepDeg = 0.0005
	}
	if c.ReplacementDurationMs == 0 {
		c.ReplacementDurationMs = 4000
	}
	if c.DockServiceDurationMs == 0 {
		c.DockServiceDurationMs = 6000
	}
	if c.MinFlightBattery == 0 {
		c.MinFlightBattery = 30
	}
	if c.ReturnBattery == 0 {
		c.ReturnBattery = 25
	}
	if c.ContainerCapacity == 0 {
		c.ContainerCapacity = 5
	}
	if c.ChargePerTick == 0 {
		c.ChargePerTick = 2
	}
	if c.FlightDrainPerStep == 0 {
		c.FlightDrainPerStep = 0.05
	}
	if c.ReplaceDrainMin == 0 && c.ReplaceDrainMax == 0 {
		c.ReplaceDrainMin, c.ReplaceDrainMax = 1, 3
	}
	if c.RefillIntervalMs == 0 {
		c.RefillIntervalMs = 30000
	}
	if c.RefillAmount == 0 {
		c.RefillAmount = 2
	}
	if c.DockContainerLimit == 0 {
		c.DockContainerLimit = 10
	}
	if c.AutoCooldownMs == 0 {
		c.AutoCooldownMs = 15000
	}
	if c.EnergyMinW == 0 && c.EnergyMaxW == 0 {
		c.EnergyMinW, c.EnergyMaxW = 35, 55
	}
	c.Seed.SetDefaults()
}

// SetDefaults fills unset fields.
func (c *SeedConfig) SetDefaults() {
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.DockCount == 0 {
		c.DockCount = 4
	}
	if c.LampCount == 0 {
		c.LampCount = 40
	}
	if c.CenterLat == 0 && c.CenterLng == 0 {
		c.CenterLat, c.CenterLng = 55.7558, 37.6173
	}
	if c.RadiusKm == 0 {
		c.RadiusKm = 2.5
	}
	if c.InitialFailures == 0 {
		c.InitialFailures = 3
	}
	if c.InitialFullContainers == 0 {
		c.InitialFullContainers = 4
	}
}

// Validate checks that the constants are consistent.
//
//gocyclo:ignore
func (c Config) Validate() error {
	if c.TickIntervalMs <= 0 || c.MissionTickIntervalMs <= 0 {
		return fmt.Errorf("tick intervals must be positive")
	}
	if c.StepDeg <= 0 {
		return fmt.Errorf("step_deg must be positive")
	}
	if c.ContainerCapacity <= 0 {
		return fmt.Errorf("container_capacity must be positive")
	}
	if c.ReturnBattery < 0 || c.MinFlightBattery > 100 || c.ReturnBattery > c.MinFlightBattery {
		return fmt.Errorf("battery thresholds must satisfy 0 <= return_battery <= min_flight_battery <= 100")
	}
	if c.ReplaceDrainMin < 0 || c.ReplaceDrainMin > c.ReplaceDrainMax {
		return fmt.Errorf("invalid replace drain range [%v, %v]", c.ReplaceDrainMin, c.ReplaceDrainMax)
	}
	if c.EnergyMinW < 0 || c.EnergyMinW > c.EnergyMaxW {
		return fmt.Errorf("invalid energy range [%v, %v]", c.EnergyMinW, c.EnergyMaxW)
	}
	if c.RefillAmount < 0 || c.DockContainerLimit < 0 {
		return fmt.Errorf("refill settings must be non-negative")
	}
	if c.Seed.DockCount <= 0 {
		return fmt.Errorf("seed.dock_count must be positive")
	}
	if c.Seed.LampCount < 0 || c.Seed.InitialFailures < 0 || c.Seed.InitialFailures > c.Seed.LampCount {
		return fmt.Errorf("seed.initial_failures must be within [0, lamp_count]")
	}
	return nil
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (c Config) TickInterval() time.Duration        { return ms(c.TickIntervalMs) }
func (c Config) MissionTickInterval() time.Duration { return ms(c.MissionTickIntervalMs) }
func (c Config) ReplacementDuration() time.Duration { return ms(c.ReplacementDurationMs) }
func (c Config) DockServiceDuration() time.Duration { return ms(c.DockServiceDurationMs) }
func (c Config) RefillInterval() time.Duration      { return ms(c.RefillIntervalMs) }
func (c Config) AutoCooldown() time.Duration        { return ms(c.AutoCooldownMs) }

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}
