package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical predictor defaults file.
const DefaultConfigPath = "configs/predictor.defaults.json"

// TuningConfig is the JSON-backed predictor configuration. Every field is
// optional; the Get* accessors fall back to built-in defaults.
type TuningConfig struct {
	// Physics
	GravityMps2 *float64 `json:"gravity_mps2,omitempty"`

	// Risk ramp (joules)
	EnergyLowJ  *float64 `json:"energy_low_j,omitempty"`
	EnergyHighJ *float64 `json:"energy_high_j,omitempty"`

	// Delay search
	DelayStepS       *float64 `json:"delay_step_s,omitempty"`
	MaxDelayS        *float64 `json:"max_delay_s,omitempty"`
	MaxDelayFraction *float64 `json:"max_delay_fraction,omitempty"`
	MaxRiskReduction *float64 `json:"max_risk_reduction,omitempty"`

	// State assembly
	MinAltitudeM    *float64 `json:"min_altitude_m,omitempty"`
	Tick            *string  `json:"tick,omitempty"` // duration string like "20ms"
	GroundCacheSize *int     `json:"ground_cache_cells,omitempty"`
	GroundCellSizeM *float64 `json:"ground_cell_size_m,omitempty"`

	// Scenario defaults
	WindSpeedMps     *float64 `json:"wind_speed_mps,omitempty"`
	WindDirectionDeg *float64 `json:"wind_direction_deg,omitempty"`
	MassKg           *float64 `json:"mass_kg,omitempty"`
	BottomOffsetM    *float64 `json:"bottom_offset_m,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Omitted fields keep
// their defaults, so partial files are fine.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for tests and binaries started from the repository.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

// Validate checks that the configured values are physically sensible.
func (c *TuningConfig) Validate() error {
	if c.GravityMps2 != nil && !(*c.GravityMps2 > 0) {
		return fmt.Errorf("gravity_mps2 must be positive, got %f", *c.GravityMps2)
	}
	if c.EnergyLowJ != nil && *c.EnergyLowJ < 0 {
		return fmt.Errorf("energy_low_j must be non-negative, got %f", *c.EnergyLowJ)
	}
	if lo, hi := c.GetEnergyLowJ(), c.GetEnergyHighJ(); hi <= lo {
		return fmt.Errorf("energy_high_j (%f) must exceed energy_low_j (%f)", hi, lo)
	}
	if c.DelayStepS != nil && !(*c.DelayStepS > 0) {
		return fmt.Errorf("delay_step_s must be positive, got %f", *c.DelayStepS)
	}
	if c.MaxDelayS != nil && *c.MaxDelayS < 0 {
		return fmt.Errorf("max_delay_s must be non-negative, got %f", *c.MaxDelayS)
	}
	if c.MaxDelayFraction != nil && (*c.MaxDelayFraction < 0 || *c.MaxDelayFraction > 1) {
		return fmt.Errorf("max_delay_fraction must be between 0 and 1, got %f", *c.MaxDelayFraction)
	}
	if c.MaxRiskReduction != nil && (*c.MaxRiskReduction < 0 || *c.MaxRiskReduction >= 1) {
		return fmt.Errorf("max_risk_reduction must be in [0, 1), got %f", *c.MaxRiskReduction)
	}
	if c.MinAltitudeM != nil && !(*c.MinAltitudeM > 0) {
		return fmt.Errorf("min_altitude_m must be positive, got %f", *c.MinAltitudeM)
	}
	if c.Tick != nil && *c.Tick != "" {
		d, err := time.ParseDuration(*c.Tick)
		if err != nil {
			return fmt.Errorf("invalid tick '%s': %w", *c.Tick, err)
		}
		if d <= 0 {
			return fmt.Errorf("tick must be positive, got %s", d)
		}
	}
	if c.GroundCacheSize != nil && *c.GroundCacheSize < 0 {
		return fmt.Errorf("ground_cache_cells must be non-negative, got %d", *c.GroundCacheSize)
	}
	if c.GroundCellSizeM != nil && !(*c.GroundCellSizeM > 0) {
		return fmt.Errorf("ground_cell_size_m must be positive, got %f", *c.GroundCellSizeM)
	}
	if c.WindSpeedMps != nil && *c.WindSpeedMps < 0 {
		return fmt.Errorf("wind_speed_mps must be non-negative, got %f", *c.WindSpeedMps)
	}
	if c.MassKg != nil && !(*c.MassKg > 0) {
		return fmt.Errorf("mass_kg must be positive, got %f", *c.MassKg)
	}
	return nil
}

// GetGravityMps2 returns the gravitational acceleration or the default.
func (c *TuningConfig) GetGravityMps2() float64 {
	if c.GravityMps2 == nil {
		return 9.81
	}
	return *c.GravityMps2
}

// GetEnergyLowJ returns the energy at which risk starts to rise.
func (c *TuningConfig) GetEnergyLowJ() float64 {
	if c.EnergyLowJ == nil {
		return 100
	}
	return *c.EnergyLowJ
}

// GetEnergyHighJ returns the energy at which risk saturates.
func (c *TuningConfig) GetEnergyHighJ() float64 {
	if c.EnergyHighJ == nil {
		return 800
	}
	return *c.EnergyHighJ
}

// GetDelayStepS returns the delay scan increment.
func (c *TuningConfig) GetDelayStepS() float64 {
	if c.DelayStepS == nil {
		return 0.1
	}
	return *c.DelayStepS
}

// GetMaxDelayS returns the absolute ceiling of the delay scan.
func (c *TuningConfig) GetMaxDelayS() float64 {
	if c.MaxDelayS == nil {
		return 3.0
	}
	return *c.MaxDelayS
}

// GetMaxDelayFraction returns the share of time-to-impact the scan may cover.
func (c *TuningConfig) GetMaxDelayFraction() float64 {
	if c.MaxDelayFraction == nil {
		return 0.7
	}
	return *c.MaxDelayFraction
}

// GetMaxRiskReduction returns the ceiling on reported risk reduction.
func (c *TuningConfig) GetMaxRiskReduction() float64 {
	if c.MaxRiskReduction == nil {
		return 0.95
	}
	return *c.MaxRiskReduction
}

// GetMinAltitudeM returns the altitude floor used when no ground height is known.
func (c *TuningConfig) GetMinAltitudeM() float64 {
	if c.MinAltitudeM == nil {
		return 0.01
	}
	return *c.MinAltitudeM
}

// GetTick parses and returns the evaluation tick.
func (c *TuningConfig) GetTick() time.Duration {
	if c.Tick == nil || *c.Tick == "" {
		return 20 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.Tick)
	if err != nil || d <= 0 {
		return 20 * time.Millisecond
	}
	return d
}

// GetGroundCacheSize returns the number of terrain cells memoised; 0 disables the cache.
func (c *TuningConfig) GetGroundCacheSize() int {
	if c.GroundCacheSize == nil {
		return 4096
	}
	return *c.GroundCacheSize
}

// GetGroundCellSizeM returns the terrain cache cell edge length.
func (c *TuningConfig) GetGroundCellSizeM() float64 {
	if c.GroundCellSizeM == nil {
		return 1.0
	}
	return *c.GroundCellSizeM
}

// GetWindSpeedMps returns the starting wind speed.
func (c *TuningConfig) GetWindSpeedMps() float64 {
	if c.WindSpeedMps == nil {
		return 0
	}
	return *c.WindSpeedMps
}

// GetWindDirectionDeg returns the starting wind bearing, unwrapped.
func (c *TuningConfig) GetWindDirectionDeg() float64 {
	if c.WindDirectionDeg == nil {
		return 0
	}
	return *c.WindDirectionDeg
}

// GetMassKg returns the default vehicle mass.
func (c *TuningConfig) GetMassKg() float64 {
	if c.MassKg == nil {
		return 1.0
	}
	return *c.MassKg
}

// GetBottomOffsetM returns the reference-point to underside offset.
func (c *TuningConfig) GetBottomOffsetM() float64 {
	if c.BottomOffsetM == nil {
		return 0
	}
	return *c.BottomOffsetM
}
