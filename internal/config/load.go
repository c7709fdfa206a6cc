package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"kidslink/internal/linkage"
	"kidslink/internal/schema"
)

const (
	// EnvPrefix prefixes every environment override:
	// KIDSLINK_<SECTION>_<FIELD>, e.g. KIDSLINK_LINKAGE_CONCURRENCY=4.
	EnvPrefix = "KIDSLINK_"
	// EnvConfigFile points at the YAML file when --config is not given.
	EnvConfigFile = "KIDSLINK_CONFIG_FILE"
	// DefaultFile is picked up from the working directory when present.
	DefaultFile = "kidslink.yaml"

	maxConfigFileSize = 1 << 20
)

// Defaults returns a runnable configuration apart from the input paths.
func Defaults() Config {
	pol := linkage.DefaultPolicy()
	return Config{
		Members: Members{Source: "file", Columns: schema.DefaultMemberColumns()},
		Report:  Report{Source: "file", Columns: schema.DefaultReportColumns()},
		Output: Output{
			Path:      "tabela_associativa_final.csv",
			Separator: ";",
			BOM:       true,
			Atomic:    true,
		},
		Linkage: Linkage{
			Unresolved:  string(pol.Unresolved),
			Tally:       string(pol.Tally),
			Concurrency: 1,
		},
		Logging:    Logging{Level: "info", Dir: "logs"},
		Components: Components{Batcher: "guardian", Assembler: "csv", Writer: "fs"},
	}
}

// ResolvePath picks the config file: the explicit flag, then
// KIDSLINK_CONFIG_FILE, then ./kidslink.yaml when it exists. "" means none.
func ResolvePath(flag string) string {
	if p := strings.TrimSpace(flag); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p
	}
	if st, err := os.Stat(DefaultFile); err == nil && !st.IsDir() {
		return DefaultFile
	}
	return ""
}

// Load layers defaults, the YAML file at path (optional), the environment and
// overrides (koanf keys such as "linkage.concurrency"), later layers winning.
// Unknown keys are rejected.
func Load(path string, overrides map[string]any) (Config, error) {
	k := koanf.New(".")

	def, err := yaml.Marshal(Defaults())
	if err != nil {
		return Config{}, fmt.Errorf("config: defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(def), kyaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("config: defaults: %w", err)
	}

	if path != "" {
		content, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(rawbytes.Provider(content), kyaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyFunc(k.Keys())), nil); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}

	for key, v := range overrides {
		if err := k.Set(key, v); err != nil {
			return Config{}, fmt.Errorf("config: override %s: %w", key, err)
		}
	}

	var cfg Config
	dc := &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		Result:           &cfg,
		TagName:          "koanf",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", DecoderConfig: dc}); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// envKeyFunc maps environment names to koanf keys. A name with "__" is an
// explicit path (KIDSLINK_OPTIONS__MEMBERS_SOURCE__TABLE ->
// options.members_source.table). Otherwise the name must spell one of the
// known keys with dots as underscores (KIDSLINK_LINKAGE_MAX_ROWS ->
// linkage.max_rows, KIDSLINK_MEMBERS_COLUMNS_ID -> members.columns.id);
// anything else is ignored.
func envKeyFunc(known []string) func(string) string {
	byEnv := make(map[string]string, len(known))
	for _, key := range known {
		byEnv[strings.ReplaceAll(key, ".", "_")] = key
	}
	return func(s string) string {
		if s == EnvConfigFile {
			return ""
		}
		name := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		if strings.Contains(name, "__") {
			parts := strings.Split(name, "__")
			for _, p := range parts {
				if p == "" {
					return ""
				}
			}
			return strings.Join(parts, ".")
		}
		return byEnv[name]
	}
}

func readFile(path string) ([]byte, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("config: %s is a directory", path)
	}
	if st.Size() > maxConfigFileSize {
		return nil, errors.New("config: file larger than 1MiB")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return b, nil
}
