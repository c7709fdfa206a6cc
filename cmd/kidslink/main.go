package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"kidslink/internal/config"
	"kidslink/internal/diag"
	"kidslink/internal/pipeline"
)

var pipelineRun = pipeline.Run

// Exit codes: 0 success, 1 run failure, 3 configuration or usage error.
const (
	exitOK     = 0
	exitRun    = 1
	exitConfig = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

type flags struct {
	config     string
	members    string
	report     string
	output     string
	logLevel   string
	logDir     string
	unresolved string
	tally      string
	metrics    string

	concurrency int
	maxRows     int
	strictIDs   bool
	status      bool
}

func run(args []string) int {
	code := exitOK
	root := newRootCmd(&code)
	root.SetArgs(args)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fprintf("argumentos inválidos: %v\n", err)
		return exitConfig
	}
	return code
}

func newRootCmd(code *int) *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:   "kidslink",
		Short: "Link kids-report children to registry guardians",
		Long: `kidslink reads the member registry and the kids report, resolves every
guardian against the registry (email, then phone, then name) and writes the
guardian/child linkage table.

Configuration layers: defaults < kidslink.yaml < KIDSLINK_* env (.env is
loaded first, never overriding the environment) < flags.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			*code = link(cmd, f)
			return nil
		},
	}
	fl := root.Flags()
	fl.StringVar(&f.config, "config", "", "YAML config file (default $KIDSLINK_CONFIG_FILE or ./kidslink.yaml)")
	fl.StringVar(&f.members, "members", "", "member registry: CSV/JSON file, directory, sqlite db or - for stdin")
	fl.StringVar(&f.report, "report", "", "kids report: CSV/JSON file, directory or - for stdin")
	fl.StringVar(&f.output, "output", "", "linkage table path")
	fl.StringVar(&f.logLevel, "log-level", "", "debug|info|warn|error")
	fl.StringVar(&f.logDir, "log-dir", "", "log directory")
	fl.StringVar(&f.unresolved, "unresolved", "", "children of unresolved guardians: emit|discard")
	fl.StringVar(&f.tally, "tally", "", "guardian tally: with_children|every_guardian")
	fl.StringVar(&f.metrics, "metrics-textfile", "", "write Prometheus metrics to this textfile at exit")
	fl.IntVar(&f.concurrency, "concurrency", 0, "linkage workers")
	fl.IntVar(&f.maxRows, "max-rows", 0, "soft row limit per linkage block (0 = one block per guardian)")
	fl.BoolVar(&f.strictIDs, "strict-ids", false, "fail on registry rows without id")
	fl.BoolVar(&f.status, "status", true, "terminal progress on stderr")

	root.AddCommand(newInitCmd(code))
	return root
}

// overrides turns the flags the user actually set into koanf keys, so an
// explicit --strict-ids=false still beats the file.
func overrides(cmd *cobra.Command, f flags) map[string]any {
	over := map[string]any{}
	set := func(name, key string, v any) {
		if cmd.Flags().Changed(name) {
			over[key] = v
		}
	}
	set("members", "members.path", f.members)
	set("report", "report.path", f.report)
	set("output", "output.path", f.output)
	set("log-level", "logging.level", f.logLevel)
	set("log-dir", "logging.dir", f.logDir)
	set("unresolved", "linkage.unresolved", f.unresolved)
	set("tally", "linkage.tally", f.tally)
	set("metrics-textfile", "metrics.textfile", f.metrics)
	set("concurrency", "linkage.concurrency", f.concurrency)
	set("max-rows", "linkage.max_rows", f.maxRows)
	set("strict-ids", "members.strict_ids", f.strictIDs)
	return over
}

func link(cmd *cobra.Command, f flags) int {
	start := time.Now()
	corrID := uuid.NewString()
	_ = loadDotEnv(".env")
	logger := diag.NewLogger(corrID, "info", "")

	cfg, err := config.Load(config.ResolvePath(f.config), overrides(cmd, f))
	if err != nil {
		fprintf("configuração inválida: %v\n", err)
		logger.Error("config", string(diag.CodeSchema), "load failed", &start)
		return exitConfig
	}
	comp, set, err := config.Assemble(cfg)
	if err != nil {
		fprintf("configuração inválida: %v\n", err)
		logger.Error("config", string(diag.CodeSchema), "assemble failed", &start)
		return exitConfig
	}

	logger = diag.NewLogger(corrID, cfg.Logging.Level, cfg.Logging.Dir)
	defer func() { _ = logger.Sync() }()

	m := diag.NewMetrics()
	diag.SetMetrics(m)
	defer diag.SetMetrics(nil)
	defer writeMetrics(m, cfg.Metrics.Textfile, logger)

	term := diag.NewTerminal(os.Stderr, f.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	logger.Debug("config", "effective", diag.KV(
		"members", cfg.Members.Path,
		"members_source", cfg.Members.Source,
		"report", cfg.Report.Path,
		"report_source", cfg.Report.Source,
		"output", cfg.Output.Path,
		"unresolved", cfg.Linkage.Unresolved,
		"tally", cfg.Linkage.Tally,
		"concurrency", cfg.Linkage.Concurrency,
		"max_rows", cfg.Linkage.MaxRows,
		"strict_ids", cfg.Members.StrictIDs,
	))

	t := logger.Start("pipeline", "run")
	sum, err := pipelineRun(cmd.Context(), comp, set, logger)
	if err != nil {
		code := diag.Classify(err)
		logger.Error("pipeline", string(code), "first error", &start)
		diag.IncOp("pipeline", "error", "error")
		if code != diag.CodeUnknown {
			diag.IncError("pipeline", string(code))
		}
		if !errors.Is(err, context.Canceled) {
			fprintf("execução falhou: %v\n", err)
		}
		term.RunFinish(false, time.Since(start))
		return exitRun
	}
	t.FinishKV("run", int64(sum.Records), diag.KV("output", string(sum.Output)))
	diag.IncOp("pipeline", "finish", "success")
	diag.ObserveDuration("pipeline", "finish", time.Since(start))
	term.RunFinish(true, time.Since(start))
	return exitOK
}

func writeMetrics(m *diag.Metrics, path string, logger *diag.Logger) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := m.WriteTextfile(path); err != nil {
		logger.Warn("metrics", string(diag.CodeIO), "textfile not written", diag.KV("path", path, "err", err))
	}
}

func newInitCmd(code *int) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [dir]",
		Short: "Write kidslink.yaml and a .env template (existing files are kept)",
		Long: `Write a commented kidslink.yaml and a .env template into dir (default the
current directory). Existing files are never overwritten. A dir of - prints
the YAML to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = strings.TrimSpace(args[0])
			}
			if err := initConfig(dir); err != nil {
				fprintf("falha ao gerar configuração: %v\n", err)
				*code = exitConfig
			}
			return nil
		},
	}
}

func initConfig(dir string) error {
	b, err := config.DefaultTemplate()
	if err != nil {
		return err
	}
	if dir == "-" {
		_, err = os.Stdout.Write(b)
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := createNew(filepath.Join(dir, config.DefaultFile), b); err != nil {
		return err
	}
	if err := createNew(filepath.Join(dir, ".env"), []byte(config.EnvTemplate)); err != nil {
		fprintf("aviso: .env não gerado: %v\n", err)
	}
	return nil
}

// createNew writes b to path unless the file already exists.
func createNew(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			fprintf("%s já existe, mantido\n", path)
			return nil
		}
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// loadDotEnv reads KEY=VALUE lines into the process environment. Missing
// files are ignored, blank lines and # comments skipped, an "export " prefix
// and one pair of surrounding quotes stripped. Variables already set win.
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, val, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		val = strings.TrimSpace(val)
		if len(val) >= 2 {
			if q := val[0]; (q == '"' || q == '\'') && val[len(val)-1] == q {
				val = val[1 : len(val)-1]
				if q == '"' {
					val = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\\`, `\`).Replace(val)
				}
			}
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

func fprintf(format string, a ...any) { _, _ = fmt.Fprintf(os.Stderr, format, a...) }
