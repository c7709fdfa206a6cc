package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidslink/internal/config"
	"kidslink/internal/diag"
	"kidslink/internal/linkage"
	"kidslink/internal/pipeline"
)

const membersCSV = "id_membro;nome;email;telefone\n" +
	"10;Maria Souza;maria@x.com;(11) 98765-4321\n" +
	"2;João Silva;;11 91234-5678\n" +
	"33;Andréia Lima;;\n"

const reportCSV = "text15;text7;text11;text13\n" +
	"Responsavel;maria souza; MARIA@X.COM ;\n" +
	"Criança;Lia;;\n" +
	"Responsavel;J. Silva;;+55 (11) 91234-5678\n" +
	"Criança;Rafa;;\n" +
	"Responsavel;ANDREIA LIMA;;\n" +
	"Criança;Bia;;\n" +
	"Responsavel;Fulano;f@x.com;\n" +
	"Criança;Caio;;\n"

func workdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvConfigFile, "")
	require.NoError(t, os.WriteFile("membro_rows.csv", []byte(membersCSV), 0o644))
	require.NoError(t, os.WriteFile("relatorio.csv", []byte(reportCSV), 0o644))
	return dir
}

func stubPipeline(t *testing.T, fn func(pipeline.Components, pipeline.Settings) error) {
	t.Helper()
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (pipeline.Summary, error) {
		return pipeline.Summary{Output: set.Output}, fn(comp, set)
	}
	t.Cleanup(func() { pipelineRun = orig })
}

func TestRunEndToEnd(t *testing.T) {
	dir := workdir(t)

	code := run([]string{
		"--members", "membro_rows.csv",
		"--report", "relatorio.csv",
		"--output", "out/tabela.csv",
		"--metrics-textfile", "kidslink.prom",
		"--status=false",
	})
	require.Equal(t, exitOK, code)

	b, err := os.ReadFile(filepath.Join(dir, "out", "tabela.csv"))
	require.NoError(t, err)
	want := "\ufeffid_responsavel;nome_responsavel;nome_crianca;metodo;email_responsavel;telefone_responsavel\n" +
		"2;J. Silva;Rafa;TELEFONE_EXATO;;+55 (11) 91234-5678\n" +
		"10;maria souza;Lia;EMAIL_EXATO;MARIA@X.COM;\n" +
		"33;Andréia Lima;Bia;NOME_SEM_ACENTO;;\n" +
		"MANUAL_CHECK;Fulano;Caio;FALHA;f@x.com;\n"
	assert.Equal(t, want, string(b))

	prom, err := os.ReadFile(filepath.Join(dir, "kidslink.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "kidslink_")

	_, err = os.Stat(filepath.Join(dir, "logs", "kidslink-current.log"))
	assert.NoError(t, err)
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	workdir(t)
	require.NoError(t, os.WriteFile(config.DefaultFile, []byte(`
members:
  path: membro_rows.csv
  strict_ids: true
report:
  path: relatorio.csv
linkage:
  concurrency: 2
`), 0o644))
	t.Setenv("KIDSLINK_LINKAGE_TALLY", "every_guardian")

	var got pipeline.Settings
	stubPipeline(t, func(_ pipeline.Components, set pipeline.Settings) error {
		got = set
		return nil
	})

	code := run([]string{"--concurrency", "5", "--strict-ids=false", "--unresolved", "discard", "--status=false"})
	require.Equal(t, exitOK, code)
	assert.Equal(t, "membro_rows.csv", got.MembersRef)
	assert.Equal(t, 5, got.Concurrency)
	assert.False(t, got.StrictIDs)
	assert.Equal(t, linkage.UnresolvedDiscard, got.Policy.Unresolved)
	assert.Equal(t, linkage.TallyEveryGuardian, got.Policy.Tally)
}

func TestRunDotEnv(t *testing.T) {
	workdir(t)
	t.Setenv("KIDSLINK_MEMBERS_PATH", "")
	require.NoError(t, os.Unsetenv("KIDSLINK_MEMBERS_PATH"))
	t.Setenv("KIDSLINK_REPORT_PATH", "relatorio.csv")
	require.NoError(t, os.WriteFile(".env",
		[]byte("# comment\nexport KIDSLINK_MEMBERS_PATH=\"membro_rows.csv\"\nKIDSLINK_REPORT_PATH=outro.csv\n"), 0o644))

	var got pipeline.Settings
	stubPipeline(t, func(_ pipeline.Components, set pipeline.Settings) error {
		got = set
		return nil
	})
	require.Equal(t, exitOK, run([]string{"--status=false"}))
	assert.Equal(t, "membro_rows.csv", got.MembersRef)
	assert.Equal(t, "relatorio.csv", got.ReportRef, "process env wins over .env")
}

func TestRunConfigErrors(t *testing.T) {
	workdir(t)
	stubPipeline(t, func(pipeline.Components, pipeline.Settings) error {
		t.Fatal("pipeline must not run")
		return nil
	})
	require.NoError(t, os.WriteFile("broken.yaml", []byte("linkage: [\n"), 0o644))

	cases := map[string][]string{
		"missing inputs":  {"--status=false"},
		"bad policy":      {"--members", "membro_rows.csv", "--report", "relatorio.csv", "--unresolved", "keep"},
		"bad concurrency": {"--members", "membro_rows.csv", "--report", "relatorio.csv", "--concurrency", "0"},
		"broken file":     {"--config", "broken.yaml"},
		"missing file":    {"--config", "nope.yaml"},
		"unknown flag":    {"--llm", "openai"},
		"positional":      {"extra"},
	}
	for name, args := range cases {
		assert.Equal(t, exitConfig, run(args), name)
	}
}

func TestRunPipelineFailure(t *testing.T) {
	workdir(t)
	stubPipeline(t, func(pipeline.Components, pipeline.Settings) error {
		return errors.New("boom")
	})
	code := run([]string{"--members", "membro_rows.csv", "--report", "relatorio.csv", "--status=false"})
	assert.Equal(t, exitRun, code)
}

func TestRunMissingInputFile(t *testing.T) {
	dir := workdir(t)
	code := run([]string{"--members", "nao_existe.csv", "--report", "relatorio.csv", "--status=false"})
	assert.Equal(t, exitRun, code)
	_, err := os.Stat(filepath.Join(dir, "tabela_associativa_final.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestInitConfig(t *testing.T) {
	dir := workdir(t)
	out := filepath.Join(dir, "cfg")

	require.Equal(t, exitOK, run([]string{"init-config", out}))
	b, err := os.ReadFile(filepath.Join(out, config.DefaultFile))
	require.NoError(t, err)
	env, err := os.ReadFile(filepath.Join(out, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(env), "KIDSLINK_")

	cfg, err := config.Load(filepath.Join(out, config.DefaultFile), nil)
	require.NoError(t, err)
	require.NoError(t, config.Validate(cfg))

	require.NoError(t, os.WriteFile(filepath.Join(out, config.DefaultFile), []byte("# mine\n"), 0o644))
	require.Equal(t, exitOK, run([]string{"init-config", out}))
	kept, err := os.ReadFile(filepath.Join(out, config.DefaultFile))
	require.NoError(t, err)
	assert.Equal(t, "# mine\n", string(kept))
	assert.True(t, strings.HasPrefix(string(b), "# kidslink configuration."))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(p, []byte(strings.Join([]string{
		"",
		"# skipped",
		"KL_TEST_A=plain",
		"export KL_TEST_B='single quoted'",
		`KL_TEST_C="a\tb"`,
		"KL_TEST_KEEP=from-file",
		"=novalue",
		"garbage",
	}, "\n")), 0o644))
	for _, k := range []string{"KL_TEST_A", "KL_TEST_B", "KL_TEST_C"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("KL_TEST_KEEP", "from-env")

	require.NoError(t, loadDotEnv(p))
	assert.Equal(t, "plain", os.Getenv("KL_TEST_A"))
	assert.Equal(t, "single quoted", os.Getenv("KL_TEST_B"))
	assert.Equal(t, "a\tb", os.Getenv("KL_TEST_C"))
	assert.Equal(t, "from-env", os.Getenv("KL_TEST_KEEP"))

	assert.NoError(t, loadDotEnv(filepath.Join(dir, "missing.env")))
}
