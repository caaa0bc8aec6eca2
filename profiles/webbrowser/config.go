// Package webbrowser is the machine catalog for a simulated casual web
// surfer: the actor alternates between idling and visiting websites, follows
// links to a bounded depth, and backgrounds or closes the browser when
// leaving a site. Browser effects go through an injected Driver; this package
// only declares states, weights, and guards.
package webbrowser

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML string parsing ("90s", "5m").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string

	err := value.Decode(&raw)
	if err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)

	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DurationRange bounds a sampled pause.
type DurationRange struct {
	Min Duration `yaml:"min"`
	Max Duration `yaml:"max"`
}

// Config tunes one web surfer actor.
type Config struct {
	// EndTime stops the actor: once the shared clock passes it, the machine
	// leaves for the day and terminates.
	EndTime time.Time    `yaml:"endTime"`
	User    UserConfig   `yaml:"user"`
	States  StatesConfig `yaml:"states"`
	Idle    IdleConfig   `yaml:"idle"`
}

// UserConfig bounds the surfer's behavior.
type UserConfig struct {
	MaxWebsitesDay int `yaml:"maxWebsitesDay"`
	MaxDepth       int `yaml:"maxDepth"`
}

// StatesConfig carries the transition weights per state.
type StatesConfig struct {
	SelectingActivity SelectingActivityWeights `yaml:"selectingActivity"`
	OnWebsite         OnWebsiteWeights         `yaml:"onWebsite"`
	LeavingWebsite    LeavingWebsiteWeights    `yaml:"leavingWebsite"`
}

// SelectingActivityWeights weighs visiting a site against idling.
type SelectingActivityWeights struct {
	VisitWebsite float64 `yaml:"visitWebsite"`
	Idle         float64 `yaml:"idle"`
}

// OnWebsiteWeights weighs following a link against leaving the site.
type OnWebsiteWeights struct {
	VisitLink    float64 `yaml:"visitLink"`
	LeaveWebsite float64 `yaml:"leaveWebsite"`
}

// LeavingWebsiteWeights weighs backgrounding the tab against closing it.
type LeavingWebsiteWeights struct {
	Background float64 `yaml:"background"`
	Close      float64 `yaml:"close"`
}

// IdleConfig bounds the actor's pauses.
type IdleConfig struct {
	// Big is the pause between activity selections.
	Big DurationRange `yaml:"big"`
	// Medium is the pause after opening a page.
	Medium DurationRange `yaml:"medium"`
}

// DefaultConfig returns the weights and bounds used when a field is omitted.
func DefaultConfig() Config {
	return Config{
		User: UserConfig{
			MaxWebsitesDay: 15,
			MaxDepth:       3,
		},
		States: StatesConfig{
			SelectingActivity: SelectingActivityWeights{VisitWebsite: 0.7, Idle: 0.3},
			OnWebsite:         OnWebsiteWeights{VisitLink: 0.6, LeaveWebsite: 0.4},
			LeavingWebsite:    LeavingWebsiteWeights{Background: 0.5, Close: 0.5},
		},
		Idle: IdleConfig{
			Big:    DurationRange{Min: Duration(30 * time.Second), Max: Duration(5 * time.Minute)},
			Medium: DurationRange{Min: Duration(2 * time.Second), Max: Duration(30 * time.Second)},
		},
	}
}

// ParseConfig decodes YAML over the defaults.
func ParseConfig(raw []byte) (Config, error) {
	config := DefaultConfig()

	err := yaml.Unmarshal(raw, &config)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse web_browser config: %w", err)
	}

	return config, nil
}
