// Package scenario loads TOML descriptions of demo transactions: which
// participants take part, what each one stages, and how each one votes.
package scenario

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/umbralabs/twophase/internal/interpolation"
)

// Vote values accepted in a scenario file.
const (
	VoteCommit = "commit"
	VoteAbort  = "abort"
)

// ErrInvalidScenario indicates a scenario file that parsed but does not
// describe a runnable transaction.
var ErrInvalidScenario = errors.New("invalid scenario")

// Write is one staged key/value write in a scenario. Values may reference
// environment variables with ${VAR} or ${VAR:default} syntax.
type Write struct {
	Key   string `toml:"key"   env_interpolation:"yes"`
	Value string `toml:"value" env_interpolation:"yes"`
}

// Participant describes one demo participant.
type Participant struct {
	Name   string  `toml:"name" env_interpolation:"yes"`
	Vote   string  `toml:"vote"`
	Writes []Write `toml:"writes" env_interpolation:"yes"`
}

// Scenario describes one demo transaction.
type Scenario struct {
	Client       string        `toml:"client" env_interpolation:"yes"`
	Participants []Participant `toml:"participants" env_interpolation:"yes"`
}

// Default returns the built-in scenario used when no file is given: three
// participants that all vote commit.
func Default() Scenario {
	return Scenario{
		Client: "demo-client",
		Participants: []Participant{
			{
				Name:   "inventory",
				Vote:   VoteCommit,
				Writes: []Write{{Key: "stock/widget", Value: "41"}},
			},
			{
				Name:   "billing",
				Vote:   VoteCommit,
				Writes: []Write{{Key: "invoice/1001", Value: "paid"}},
			},
			{
				Name:   "shipping",
				Vote:   VoteCommit,
				Writes: []Write{{Key: "shipment/1001", Value: "scheduled"}},
			},
		},
	}
}

// LoadFile reads and validates a scenario from a TOML file.
func LoadFile(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Load(data)
}

// Load parses and validates a scenario from TOML bytes. Environment
// variable references in tagged fields are expanded before validation.
func Load(data []byte) (Scenario, error) {
	var s Scenario
	if err := toml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := interpolation.InterpolateStruct(&s); err != nil {
		return Scenario{}, fmt.Errorf("failed to interpolate scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// Validate checks that the scenario describes a runnable transaction.
func (s Scenario) Validate() error {
	var errs []error

	if s.Client == "" {
		errs = append(errs, fmt.Errorf("%w: client is required", ErrInvalidScenario))
	}
	if len(s.Participants) < 2 {
		errs = append(errs, fmt.Errorf(
			"%w: two-phase commit requires at least two participants, got %d",
			ErrInvalidScenario, len(s.Participants)))
	}

	seen := make(map[string]struct{}, len(s.Participants))
	for i, p := range s.Participants {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%w: participant %d has no name", ErrInvalidScenario, i))
			continue
		}
		if _, dup := seen[p.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate participant %q", ErrInvalidScenario, p.Name))
		}
		seen[p.Name] = struct{}{}

		switch p.Vote {
		case VoteCommit, VoteAbort:
		default:
			errs = append(errs, fmt.Errorf(
				"%w: participant %q has unknown vote %q", ErrInvalidScenario, p.Name, p.Vote))
		}
	}

	return errors.Join(errs...)
}

// Names returns the participant names in scenario order.
func (s Scenario) Names() []string {
	names := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		names = append(names, p.Name)
	}
	return names
}
