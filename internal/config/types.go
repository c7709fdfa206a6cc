// Package config loads the run configuration in layers: built-in defaults,
// a YAML file, KIDSLINK_* environment variables and command line overrides.
package config

import "kidslink/internal/schema"

// Config is read once per run and not mutated afterwards.
type Config struct {
	Members    Members    `koanf:"members" yaml:"members"`
	Report     Report     `koanf:"report" yaml:"report"`
	Output     Output     `koanf:"output" yaml:"output"`
	Linkage    Linkage    `koanf:"linkage" yaml:"linkage"`
	Logging    Logging    `koanf:"logging" yaml:"logging"`
	Metrics    Metrics    `koanf:"metrics" yaml:"metrics"`
	Components Components `koanf:"components" yaml:"components"`
	// Options are passed to the component factories as JSON, decoded
	// strictly there.
	Options Options `koanf:"options" yaml:"options"`
}

// Members is the registry input.
type Members struct {
	Path string `koanf:"path" yaml:"path"`
	// Source names the registry.Source implementation (file|sqlite).
	Source    string               `koanf:"source" yaml:"source"`
	StrictIDs bool                 `koanf:"strict_ids" yaml:"strict_ids"`
	Columns   schema.MemberColumns `koanf:"columns" yaml:"columns"`
}

// Report is the kids report input.
type Report struct {
	Path    string               `koanf:"path" yaml:"path"`
	Source  string               `koanf:"source" yaml:"source"`
	Columns schema.ReportColumns `koanf:"columns" yaml:"columns"`
}

// Output is the linkage table.
type Output struct {
	Path      string `koanf:"path" yaml:"path"`
	Separator string `koanf:"separator" yaml:"separator"`
	BOM       bool   `koanf:"bom" yaml:"bom"`
	Atomic    bool   `koanf:"atomic" yaml:"atomic"`
}

// Linkage holds the policies and parallelism of the linkage phase.
type Linkage struct {
	Unresolved  string `koanf:"unresolved" yaml:"unresolved"`
	Tally       string `koanf:"tally" yaml:"tally"`
	Concurrency int    `koanf:"concurrency" yaml:"concurrency"`
	MaxRows     int    `koanf:"max_rows" yaml:"max_rows"`
}

// Logging: level and log directory ("" logs to stderr).
type Logging struct {
	Level string `koanf:"level" yaml:"level"`
	Dir   string `koanf:"dir" yaml:"dir"`
}

// Metrics: optional node-exporter textfile written at the end of the run.
type Metrics struct {
	Textfile string `koanf:"textfile" yaml:"textfile"`
}

// Components selects registry implementations by name.
type Components struct {
	Batcher   string `koanf:"batcher" yaml:"batcher"`
	Assembler string `koanf:"assembler" yaml:"assembler"`
	Writer    string `koanf:"writer" yaml:"writer"`
}

// Options are the raw per-component option trees.
type Options struct {
	MembersSource map[string]any `koanf:"members_source" yaml:"members_source,omitempty"`
	ReportSource  map[string]any `koanf:"report_source" yaml:"report_source,omitempty"`
	Batcher       map[string]any `koanf:"batcher" yaml:"batcher,omitempty"`
	Assembler     map[string]any `koanf:"assembler" yaml:"assembler,omitempty"`
	Writer        map[string]any `koanf:"writer" yaml:"writer,omitempty"`
}
