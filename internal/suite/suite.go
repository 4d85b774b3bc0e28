// Package suite runs YAML-defined validation suites: each case converts
// a recorded trace into a scenario document, hands the document to a
// simulation engine, and scores the engine's output trace against the
// recording.
package suite

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/metrics"
	"github.com/banshee-data/scenario.report/internal/scenario"
	"github.com/banshee-data/scenario.report/internal/trajectory"
)

// Built-in tolerance defaults, applied when neither the suite nor the
// case sets a value. Matched to config/validation.defaults.json.
const (
	DefaultPositionTolerance = 0.1
	DefaultAngleTolerance    = 0.05
)

// Suite is a named collection of validation cases sharing defaults.
type Suite struct {
	Name     string   `yaml:"name"`
	Defaults Defaults `yaml:"defaults,omitempty"`
	Cases    []Case   `yaml:"cases"`

	// dir is the directory the suite file was loaded from; relative
	// trace paths resolve against it.
	dir string
}

// Defaults hold suite-wide settings a case may override.
type Defaults struct {
	Profile            string   `yaml:"profile,omitempty"`
	RoadNetwork        string   `yaml:"road_network,omitempty"`
	OffsetMode         string   `yaml:"offset_mode,omitempty"`
	PairBy             string   `yaml:"pair_by,omitempty"`
	SkipInvalidObjects bool     `yaml:"skip_invalid_objects,omitempty"`
	PositionTolerance  *float64 `yaml:"position_tolerance,omitempty"`
	AngleTolerance     *float64 `yaml:"angle_tolerance,omitempty"`
	TimeTolerance      *float64 `yaml:"time_tolerance,omitempty"`
	CurveTolerance     *float64 `yaml:"curve_tolerance,omitempty"`
}

// Case describes one trace-to-engine validation round trip. Trace is a
// dataset source: a file path, a "builtin:<name>" fixture, a zip
// archive member, or an http(s) URL. Engine is either "replay" (score
// the recording against itself) or a command template containing
// {{scenario}} and {{output}} placeholders.
type Case struct {
	Name              string   `yaml:"name"`
	Trace             string   `yaml:"trace"`
	Channel           string   `yaml:"channel,omitempty"`
	Engine            string   `yaml:"engine,omitempty"`
	StartTime         *float64 `yaml:"start_time,omitempty"`
	Profile           *string  `yaml:"profile,omitempty"`
	RoadNetwork       *string  `yaml:"road_network,omitempty"`
	PositionTolerance *float64 `yaml:"position_tolerance,omitempty"`
	AngleTolerance    *float64 `yaml:"angle_tolerance,omitempty"`
	CurveTolerance    *float64 `yaml:"curve_tolerance,omitempty"`
}

// Load reads and validates a suite file. Unknown YAML fields are
// rejected so typos surface at load time rather than as silently
// ignored settings. Relative trace paths are resolved against the
// suite file's directory.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}

	var s Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse suite %s: %w", path, err)
	}
	s.dir = filepath.Dir(path)

	for i := range s.Cases {
		if t := s.Cases[i].Trace; t != "" {
			s.Cases[i].Trace = dataset.Rebase(t, s.dir)
		}
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks the suite for structural problems: missing names,
// unreadable enum settings, engine templates without placeholders.
func (s *Suite) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	if _, err := scenario.ParseProfile(s.Defaults.Profile); err != nil {
		return err
	}
	if _, err := trajectory.ParseOffsetMode(s.Defaults.OffsetMode); err != nil {
		return err
	}
	if _, err := trajectory.ParsePairMode(s.Defaults.PairBy); err != nil {
		return err
	}
	for _, tol := range []struct {
		name string
		val  *float64
	}{
		{"position_tolerance", s.Defaults.PositionTolerance},
		{"angle_tolerance", s.Defaults.AngleTolerance},
		{"time_tolerance", s.Defaults.TimeTolerance},
		{"curve_tolerance", s.Defaults.CurveTolerance},
	} {
		if tol.val != nil && *tol.val < 0 {
			return fmt.Errorf("defaults: %s must be non-negative, got %v", tol.name, *tol.val)
		}
	}

	seen := make(map[string]struct{}, len(s.Cases))
	for i := range s.Cases {
		c := &s.Cases[i]
		if c.Name == "" {
			return fmt.Errorf("case %d: name is required", i)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("case %q: duplicate name", c.Name)
		}
		seen[c.Name] = struct{}{}

		if c.Trace == "" {
			return fmt.Errorf("case %q: trace is required", c.Name)
		}
		if c.StartTime != nil && *c.StartTime < 0 {
			return fmt.Errorf("case %q: start_time must be non-negative, got %v", c.Name, *c.StartTime)
		}
		if c.Profile != nil {
			if _, err := scenario.ParseProfile(*c.Profile); err != nil {
				return fmt.Errorf("case %q: %w", c.Name, err)
			}
		}
		if p := s.profile(c); p == scenario.ProfileRoadNetworkEgo && s.roadNetwork(c) == "" {
			return fmt.Errorf("case %q: profile %q requires road_network", c.Name, p)
		}
		for _, tol := range []struct {
			name string
			val  *float64
		}{
			{"position_tolerance", c.PositionTolerance},
			{"angle_tolerance", c.AngleTolerance},
			{"curve_tolerance", c.CurveTolerance},
		} {
			if tol.val != nil && *tol.val < 0 {
				return fmt.Errorf("case %q: %s must be non-negative, got %v", c.Name, tol.name, *tol.val)
			}
		}
		if err := validateEngineSpec(c.Engine); err != nil {
			return fmt.Errorf("case %q: %w", c.Name, err)
		}
	}
	return nil
}

func validateEngineSpec(spec string) error {
	if spec == "" || spec == EngineReplay {
		return nil
	}
	if !strings.Contains(spec, ScenarioPlaceholder) {
		return fmt.Errorf("engine command must contain %s", ScenarioPlaceholder)
	}
	if !strings.Contains(spec, OutputPlaceholder) {
		return fmt.Errorf("engine command must contain %s", OutputPlaceholder)
	}
	return nil
}

// tolerances resolves the metric tolerances for one case: case value,
// else suite default, else the built-in default. A zero tolerance is a
// legitimate request for exact agreement, which is why unset values
// are modelled as nil rather than 0.
func (s *Suite) tolerances(c *Case) metrics.Tolerances {
	t := metrics.Tolerances{
		Position: pick(c.PositionTolerance, s.Defaults.PositionTolerance, DefaultPositionTolerance),
		Angle:    pick(c.AngleTolerance, s.Defaults.AngleTolerance, DefaultAngleTolerance),
	}
	if c.CurveTolerance != nil {
		t.Curve = c.CurveTolerance
	} else if s.Defaults.CurveTolerance != nil {
		t.Curve = s.Defaults.CurveTolerance
	}
	return t
}

func (s *Suite) timeTolerance() float64 {
	if s.Defaults.TimeTolerance != nil {
		return *s.Defaults.TimeTolerance
	}
	return metrics.DefaultTimeTolerance
}

func (s *Suite) profile(c *Case) scenario.Profile {
	if c.Profile != nil {
		p, _ := scenario.ParseProfile(*c.Profile)
		return p
	}
	p, _ := scenario.ParseProfile(s.Defaults.Profile)
	return p
}

func (s *Suite) roadNetwork(c *Case) string {
	if c.RoadNetwork != nil {
		return *c.RoadNetwork
	}
	return s.Defaults.RoadNetwork
}

// offsetPolicy returns the coordinate policy applied to BOTH the
// reference and the candidate trace. Suites default to leaving
// coordinates untouched: the whole-curve measures are not
// translation-invariant, so both sides must be scored in one frame,
// and the recorded frame is the only one every engine shares.
func (s *Suite) offsetPolicy() trajectory.NormalizePolicy {
	if s.Defaults.OffsetMode == "" {
		return trajectory.NormalizePolicy{Mode: trajectory.OffsetOff}
	}
	m, _ := trajectory.ParseOffsetMode(s.Defaults.OffsetMode)
	return trajectory.NormalizePolicy{Mode: m}
}

func (s *Suite) pairMode() trajectory.PairMode {
	if s.Defaults.PairBy == "" {
		// Engines renumber objects freely; starting pose is the only
		// identity that survives the round trip.
		return trajectory.PairByStart
	}
	m, _ := trajectory.ParsePairMode(s.Defaults.PairBy)
	return m
}

func pick(caseVal, suiteVal *float64, def float64) float64 {
	if caseVal != nil {
		return *caseVal
	}
	if suiteVal != nil {
		return *suiteVal
	}
	return def
}
