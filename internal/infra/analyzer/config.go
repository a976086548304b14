// Package analyzer builds HTTP-backed sub-analyzers from declarative
// configuration. The fusion engine only sees the fusion.Analyzer contract;
// this package owns the transport details.
package analyzer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"assetpulse/internal/fusion"
)

// Decl declares one upstream analyzer endpoint in the YAML config file.
type Decl struct {
	// Name identifies the analyzer and keys its breaker and limiter
	Name string `yaml:"name"`

	// Confidence is attached to every metric this analyzer reports
	Confidence float64 `yaml:"confidence"`

	// Metrics lists the metric names this analyzer produces
	Metrics []string `yaml:"metrics"`

	// BaseURL is the analyzer's HTTP endpoint, queried as
	// GET {BaseURL}/metrics/{assetID}
	BaseURL string `yaml:"base_url"`
}

// File is the top-level shape of the analyzers config file.
type File struct {
	Analyzers []Decl `yaml:"analyzers"`
}

// LoadFile parses analyzer declarations from a YAML file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read analyzers file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse analyzers file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every declaration for structural validity.
func (f *File) Validate() error {
	if len(f.Analyzers) == 0 {
		return fmt.Errorf("analyzers file declares no analyzers")
	}
	seen := make(map[string]bool, len(f.Analyzers))
	for i, d := range f.Analyzers {
		if d.Name == "" {
			return fmt.Errorf("analyzer %d: name must not be empty", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("analyzer %q declared twice", d.Name)
		}
		seen[d.Name] = true
		if d.Confidence < 0 || d.Confidence > 1 {
			return fmt.Errorf("analyzer %q: confidence must be in [0, 1], got %v", d.Name, d.Confidence)
		}
		if len(d.Metrics) == 0 {
			return fmt.Errorf("analyzer %q: must declare at least one metric", d.Name)
		}
		if d.BaseURL == "" {
			return fmt.Errorf("analyzer %q: base_url must not be empty", d.Name)
		}
	}
	return nil
}

// Build converts the declarations into fusion analyzers backed by HTTP calls.
func (f *File) Build(client *Client) []fusion.Analyzer {
	out := make([]fusion.Analyzer, 0, len(f.Analyzers))
	for _, d := range f.Analyzers {
		out = append(out, fusion.Analyzer{
			Name:       d.Name,
			Confidence: d.Confidence,
			Metrics:    d.Metrics,
			Analyze:    client.AnalyzeFunc(d),
		})
	}
	return out
}
