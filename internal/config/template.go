package config

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"kidslink/plugins/decoder/csvtable"
)

const templateHeader = `# kidslink configuration.
# Precedence: defaults < this file < KIDSLINK_<SECTION>_<FIELD> env < flags.
# Nested keys: KIDSLINK_MEMBERS_COLUMNS_ID, or explicit paths with "__"
# (KIDSLINK_OPTIONS__MEMBERS_SOURCE__TABLE).
# members.source may be "sqlite"; options.members_source then takes
# {table: membro_rows} or {query: "SELECT ..."}.
# linkage.unresolved: emit | discard   linkage.tally: with_children | every_guardian
`

// TemplateConfig is the configuration written by init-config.
func TemplateConfig() Config {
	cfg := Defaults()
	cfg.Members.Path = "membro_rows.csv"
	cfg.Report.Path = "relatorio_familias.csv"
	fileSource := map[string]any{
		"decoder": "csv",
		"reader": map[string]any{
			"extensions":        []string{".csv", ".json"},
			"exclude_dir_names": []string{".git"},
		},
		"csv": map[string]any{
			"encodings":       csvtable.DefaultEncodings,
			"separator":       "",
			"repair_mojibake": true,
		},
	}
	cfg.Options.MembersSource = fileSource
	cfg.Options.ReportSource = fileSource
	return cfg
}

// DefaultTemplate renders TemplateConfig as commented YAML.
func DefaultTemplate() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(templateHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(TemplateConfig()); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EnvTemplate is the .env written by init-config. Values are examples and
// commented out.
const EnvTemplate = `# kidslink environment overrides (loaded from ./.env, never overriding the
# process environment).
# KIDSLINK_CONFIG_FILE=kidslink.yaml
# KIDSLINK_MEMBERS_PATH=membro_rows.csv
# KIDSLINK_REPORT_PATH=relatorio_familias.csv
# KIDSLINK_OUTPUT_PATH=tabela_associativa_final.csv
# KIDSLINK_LINKAGE_CONCURRENCY=4
# KIDSLINK_LINKAGE_UNRESOLVED=emit
# KIDSLINK_LOGGING_LEVEL=info
# KIDSLINK_METRICS_TEXTFILE=
# KIDSLINK_MEMBERS_COLUMNS_ID=id_membro,id
# KIDSLINK_OPTIONS__MEMBERS_SOURCE__TABLE=membro_rows
`
