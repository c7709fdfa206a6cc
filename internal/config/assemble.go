package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"kidslink/internal/diag"
	"kidslink/internal/linkage"
	"kidslink/internal/pipeline"
	"kidslink/pkg/contract"
	"kidslink/pkg/registry"
)

// Validate checks paths, component names, policies and bounds.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Members.Path) == "" {
		return errors.New("config: members.path is required")
	}
	if strings.TrimSpace(cfg.Report.Path) == "" {
		return errors.New("config: report.path is required")
	}
	if cfg.Members.Path == "-" && cfg.Report.Path == "-" {
		return errors.New("config: members and report cannot both read stdin")
	}
	if strings.TrimSpace(cfg.Output.Path) == "" || cfg.Output.Path == "-" {
		return errors.New("config: output.path must name a file")
	}
	if len(cfg.Members.Columns.ID) == 0 {
		return errors.New("config: members.columns.id needs at least one header name")
	}
	if strings.TrimSpace(cfg.Report.Columns.Type) == "" {
		return errors.New("config: report.columns.type is required")
	}
	if registry.Source[cfg.Members.Source] == nil {
		return fmt.Errorf("config: members.source %q not registered", cfg.Members.Source)
	}
	if registry.Source[cfg.Report.Source] == nil {
		return fmt.Errorf("config: report.source %q not registered", cfg.Report.Source)
	}
	if registry.Batcher[cfg.Components.Batcher] == nil {
		return fmt.Errorf("config: batcher %q not registered", cfg.Components.Batcher)
	}
	if registry.Assembler[cfg.Components.Assembler] == nil {
		return fmt.Errorf("config: assembler %q not registered", cfg.Components.Assembler)
	}
	if registry.Writer[cfg.Components.Writer] == nil {
		return fmt.Errorf("config: writer %q not registered", cfg.Components.Writer)
	}
	if err := policy(cfg).Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Linkage.Concurrency < 1 {
		return errors.New("config: linkage.concurrency must be >= 1")
	}
	if cfg.Linkage.MaxRows < 0 {
		return errors.New("config: linkage.max_rows must be >= 0")
	}
	if s := cfg.Output.Separator; s != "" && utf8.RuneCountInString(s) != 1 {
		return fmt.Errorf("config: output.separator %q must be a single character", s)
	}
	if !diag.ValidLevel(cfg.Logging.Level) {
		return fmt.Errorf("config: logging.level %q unknown", cfg.Logging.Level)
	}
	return nil
}

// Assemble validates cfg and builds the pipeline components and settings.
// Option trees are handed to the registry factories as JSON; the output
// section overrides the separator/bom of the assembler and atomic of the
// writer.
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	var comp pipeline.Components
	var err error

	if comp.Members, err = build(registry.Source[cfg.Members.Source], cfg.Options.MembersSource, nil); err != nil {
		return comp, pipeline.Settings{}, fmt.Errorf("config: members source: %w", err)
	}
	if comp.Report, err = build(registry.Source[cfg.Report.Source], cfg.Options.ReportSource, nil); err != nil {
		return comp, pipeline.Settings{}, fmt.Errorf("config: report source: %w", err)
	}
	if comp.Batcher, err = build(registry.Batcher[cfg.Components.Batcher], cfg.Options.Batcher, nil); err != nil {
		return comp, pipeline.Settings{}, fmt.Errorf("config: batcher: %w", err)
	}
	asmOver := map[string]any{"bom": cfg.Output.BOM}
	if cfg.Output.Separator != "" {
		asmOver["separator"] = cfg.Output.Separator
	}
	if comp.Assembler, err = build(registry.Assembler[cfg.Components.Assembler], cfg.Options.Assembler, asmOver); err != nil {
		return comp, pipeline.Settings{}, fmt.Errorf("config: assembler: %w", err)
	}
	if comp.Writer, err = build(registry.Writer[cfg.Components.Writer], cfg.Options.Writer, map[string]any{"atomic": cfg.Output.Atomic}); err != nil {
		return comp, pipeline.Settings{}, fmt.Errorf("config: writer: %w", err)
	}

	set := pipeline.Settings{
		MembersRef:    cfg.Members.Path,
		ReportRef:     cfg.Report.Path,
		Output:        contract.ArtifactID(cfg.Output.Path),
		MemberColumns: cfg.Members.Columns,
		ReportColumns: cfg.Report.Columns,
		StrictIDs:     cfg.Members.StrictIDs,
		Policy:        policy(cfg),
		Concurrency:   cfg.Linkage.Concurrency,
		MaxRows:       cfg.Linkage.MaxRows,
	}
	return comp, set, nil
}

func policy(cfg Config) linkage.Policy {
	return linkage.Policy{
		Unresolved: linkage.UnresolvedPolicy(cfg.Linkage.Unresolved),
		Tally:      linkage.TallyPolicy(cfg.Linkage.Tally),
	}
}

// build merges over into opts and calls the factory with the JSON encoding.
func build[T any](factory func(json.RawMessage) (T, error), opts, over map[string]any) (T, error) {
	merged := make(map[string]any, len(opts)+len(over))
	for k, v := range opts {
		merged[k] = v
	}
	for k, v := range over {
		merged[k] = v
	}
	var raw json.RawMessage
	if len(merged) > 0 {
		b, err := json.Marshal(merged)
		if err != nil {
			var zero T
			return zero, err
		}
		raw = b
	}
	return factory(raw)
}
