package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/scenario.report/internal/geom"
	"github.com/banshee-data/scenario.report/internal/metrics"
	"github.com/banshee-data/scenario.report/internal/scenario"
	"github.com/banshee-data/scenario.report/internal/trajectory"
)

// DefaultConfigPath is the path to the canonical validation defaults
// file. This is the single source of truth for all default values.
const DefaultConfigPath = "config/validation.defaults.json"

// ValidationConfig holds the tunable surface of a conversion plus
// comparison run. All fields are optional; the Get* methods supply
// defaults for anything the JSON omits, so partial configs are safe.
// Nothing here is process-wide state: every pipeline stage receives the
// values it needs explicitly, so runs with different configs can share
// a process.
type ValidationConfig struct {
	// Conversion params
	Profile     *string `json:"profile,omitempty"`      // none | init-actions | road-network-ego
	RoadNetwork *string `json:"road_network,omitempty"` // OpenDRIVE file for the emitted document
	Author      *string `json:"author,omitempty"`
	Description *string `json:"description,omitempty"`
	StopMode    *string `json:"stop_mode,omitempty"` // time | story-done

	// Coordinate offset params
	OffsetMode *string  `json:"offset_mode,omitempty"` // auto | origin | off
	OriginX    *float64 `json:"origin_x,omitempty"`
	OriginY    *float64 `json:"origin_y,omitempty"`
	OriginZ    *float64 `json:"origin_z,omitempty"`

	// Trajectory params
	SkipInvalidObjects *bool   `json:"skip_invalid_objects,omitempty"`
	PairBy             *string `json:"pair_by,omitempty"` // id | start

	// Vehicle placeholder params
	MaxAcceleration *float64 `json:"max_acceleration,omitempty"`
	MaxDeceleration *float64 `json:"max_deceleration,omitempty"`
	MaxSpeed        *float64 `json:"max_speed,omitempty"`
	TrackWidth      *float64 `json:"track_width,omitempty"`

	// Comparison tolerances
	PositionTolerance *float64 `json:"position_tolerance,omitempty"` // meters
	AngleTolerance    *float64 `json:"angle_tolerance,omitempty"`    // radians
	TimeTolerance     *float64 `json:"time_tolerance,omitempty"`     // seconds
	CurveTolerance    *float64 `json:"curve_tolerance,omitempty"`    // unset disables curve measures
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }

// EmptyValidationConfig returns a ValidationConfig with all fields set
// to nil. Use LoadValidationConfig to load actual values from a file.
func EmptyValidationConfig() *ValidationConfig {
	return &ValidationConfig{}
}

// LoadValidationConfig loads a ValidationConfig from a JSON file. The
// file must carry a .json extension and stay under the max file size.
func LoadValidationConfig(path string) (*ValidationConfig, error) {
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

	cfg := EmptyValidationConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical validation defaults from
// DefaultConfigPath, searching upward from the current directory.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *ValidationConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadValidationConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *ValidationConfig) Validate() error {
	if c.Profile != nil {
		if _, err := scenario.ParseProfile(*c.Profile); err != nil {
			return err
		}
	}
	if c.GetProfile() == scenario.ProfileRoadNetworkEgo && c.GetRoadNetwork() == "" {
		return fmt.Errorf("profile %q requires road_network", scenario.ProfileRoadNetworkEgo)
	}
	if c.OffsetMode != nil {
		if _, err := trajectory.ParseOffsetMode(*c.OffsetMode); err != nil {
			return err
		}
	}
	if c.PairBy != nil {
		if _, err := trajectory.ParsePairMode(*c.PairBy); err != nil {
			return err
		}
	}
	if c.StopMode != nil {
		switch *c.StopMode {
		case "", "time", "story-done":
		default:
			return fmt.Errorf("unknown stop_mode %q", *c.StopMode)
		}
	}

	for _, v := range []struct {
		name string
		val  *float64
	}{
		{"position_tolerance", c.PositionTolerance},
		{"angle_tolerance", c.AngleTolerance},
		{"time_tolerance", c.TimeTolerance},
		{"curve_tolerance", c.CurveTolerance},
	} {
		if v.val != nil && *v.val < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", v.name, *v.val)
		}
	}

	for _, v := range []struct {
		name string
		val  *float64
	}{
		{"max_acceleration", c.MaxAcceleration},
		{"max_deceleration", c.MaxDeceleration},
		{"max_speed", c.MaxSpeed},
		{"track_width", c.TrackWidth},
	} {
		if v.val != nil && *v.val <= 0 {
			return fmt.Errorf("%s must be positive, got %v", v.name, *v.val)
		}
	}

	return nil
}

// GetProfile returns the parsed engine profile or the default.
func (c *ValidationConfig) GetProfile() scenario.Profile {
	if c.Profile == nil {
		return scenario.ProfileNone
	}
	p, err := scenario.ParseProfile(*c.Profile)
	if err != nil {
		return scenario.ProfileNone
	}
	return p
}

// GetRoadNetwork returns the road_network value or the default.
func (c *ValidationConfig) GetRoadNetwork() string {
	if c.RoadNetwork == nil {
		return ""
	}
	return *c.RoadNetwork
}

// GetAuthor returns the author value, empty meaning the emitter's
// default.
func (c *ValidationConfig) GetAuthor() string {
	if c.Author == nil {
		return ""
	}
	return *c.Author
}

// GetDescription returns the description value or the default.
func (c *ValidationConfig) GetDescription() string {
	if c.Description == nil {
		return ""
	}
	return *c.Description
}

// GetStopMode returns the parsed stop trigger mode or the default.
func (c *ValidationConfig) GetStopMode() scenario.StopMode {
	if c.StopMode != nil && *c.StopMode == "story-done" {
		return scenario.StopOnStoryDone
	}
	return scenario.StopAtEnd
}

// GetOffsetPolicy returns the coordinate offset policy or the default.
func (c *ValidationConfig) GetOffsetPolicy() trajectory.NormalizePolicy {
	policy := trajectory.NormalizePolicy{Mode: trajectory.OffsetAuto}
	if c.OffsetMode != nil {
		if m, err := trajectory.ParseOffsetMode(*c.OffsetMode); err == nil {
			policy.Mode = m
		}
	}
	if policy.Mode == trajectory.OffsetOrigin {
		policy.Origin = geom.Vec3{
			X: floatOr(c.OriginX, 0),
			Y: floatOr(c.OriginY, 0),
			Z: floatOr(c.OriginZ, 0),
		}
	}
	return policy
}

// GetSkipInvalidObjects returns the skip_invalid_objects value or the
// default.
func (c *ValidationConfig) GetSkipInvalidObjects() bool {
	if c.SkipInvalidObjects == nil {
		return false // default: any invalid object fails the run
	}
	return *c.SkipInvalidObjects
}

// GetPairMode returns the parsed pairing mode or the default.
func (c *ValidationConfig) GetPairMode() trajectory.PairMode {
	if c.PairBy == nil {
		return trajectory.PairByID
	}
	m, err := trajectory.ParsePairMode(*c.PairBy)
	if err != nil {
		return trajectory.PairByID
	}
	return m
}

// GetPositionTolerance returns the position_tolerance value or the
// default.
func (c *ValidationConfig) GetPositionTolerance() float64 {
	return floatOr(c.PositionTolerance, 0.1) // meters
}

// GetAngleTolerance returns the angle_tolerance value or the default.
func (c *ValidationConfig) GetAngleTolerance() float64 {
	return floatOr(c.AngleTolerance, 0.05) // radians
}

// GetTimeTolerance returns the time_tolerance value or the default.
func (c *ValidationConfig) GetTimeTolerance() float64 {
	return floatOr(c.TimeTolerance, metrics.DefaultTimeTolerance)
}

// GetTolerances assembles the metric tolerances. CurveTolerance stays
// nil unless configured, which disables the whole-curve gates.
func (c *ValidationConfig) GetTolerances() metrics.Tolerances {
	return metrics.Tolerances{
		Position: c.GetPositionTolerance(),
		Angle:    c.GetAngleTolerance(),
		Curve:    c.CurveTolerance,
	}
}

// GetPerformance returns the performance override assembled from the
// max_* values, or nil when none are set so the emitter's placeholders
// apply.
func (c *ValidationConfig) GetPerformance() *scenario.Performance {
	if c.MaxAcceleration == nil && c.MaxDeceleration == nil && c.MaxSpeed == nil {
		return nil
	}
	return &scenario.Performance{
		MaxAcceleration: scenario.Float(floatOr(c.MaxAcceleration, scenario.DefaultMaxAcceleration)),
		MaxDeceleration: scenario.Float(floatOr(c.MaxDeceleration, scenario.DefaultMaxDeceleration)),
		MaxSpeed:        scenario.Float(floatOr(c.MaxSpeed, scenario.DefaultMaxSpeed)),
	}
}

// GetTrackWidth returns the track_width value, zero meaning the
// emitter's default.
func (c *ValidationConfig) GetTrackWidth() float64 {
	return floatOr(c.TrackWidth, 0)
}

// BuildOptions assembles the scenario emission options this config
// describes.
func (c *ValidationConfig) BuildOptions() scenario.BuildOptions {
	return scenario.BuildOptions{
		Profile:     c.GetProfile(),
		RoadNetwork: c.GetRoadNetwork(),
		Author:      c.GetAuthor(),
		Description: c.GetDescription(),
		StopMode:    c.GetStopMode(),
		Performance: c.GetPerformance(),
		TrackWidth:  c.GetTrackWidth(),
	}
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
