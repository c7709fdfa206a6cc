package diag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"kidslink/pkg/contract"
)

func TestRotatingFileRotates(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 32)
	for i := 0; i < 5; i++ {
		_, err := w.Write([]byte("xxxxxxxxxxxxxxxxxxxx\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	var current, rotated int
	for _, e := range ents {
		switch {
		case e.Name() == "kidslink-current.log":
			current++
		case strings.HasPrefix(e.Name(), "kidslink-") && strings.HasSuffix(e.Name(), ".log"):
			rotated++
		}
	}
	assert.Equal(t, 1, current)
	assert.GreaterOrEqual(t, rotated, 1)
}

func TestRotatingFileResumesSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kidslink-current.log"), bytes.Repeat([]byte("a"), 30), 0o644))
	w := NewRotatingFile(dir, 32)
	_, err := w.Write([]byte("0123456789\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err := os.ReadFile(filepath.Join(dir, "kidslink-current.log"))
	require.NoError(t, err)
	assert.Equal(t, "0123456789\n", string(b))
}

func observed(t *testing.T, lvl zapcore.Level) (*Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(lvl)
	return NewLoggerWithCore(core, "run-1"), logs
}

func TestLoggerEvents(t *testing.T) {
	l, logs := observed(t, zapcore.DebugLevel)

	tm := l.StartKV("members", "load registry", KV("path", "m.csv"))
	tm.Finish("registry loaded", 3)
	l.Warn("index", "collision", "duplicate key", KV("key", "a@x.com"))
	t0 := time.Now()
	l.Error("pipeline", string(CodeSchema), "boom", &t0)
	l.Debug("linkage", "block", nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 5)

	start := entries[0].ContextMap()
	assert.Equal(t, "members", start["comp"])
	assert.Equal(t, "start", start["stage"])
	assert.Equal(t, "run-1", start["corr_id"])
	assert.Equal(t, map[string]any{"path": "m.csv"}, start["kv"])

	fin := entries[1].ContextMap()
	assert.Equal(t, "finish", fin["stage"])
	assert.Equal(t, int64(3), fin["count"])
	assert.Contains(t, fin, "dur_ms")

	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "collision", entries[2].ContextMap()["code"])

	errEv := entries[3].ContextMap()
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "schema", errEv["code"])
	assert.Contains(t, errEv, "dur_ms")
}

func TestLoggerLevelFilter(t *testing.T) {
	l, logs := observed(t, ParseLevel("warn"))
	l.Start("x", "ignored").Finish("ignored", 0)
	l.Info("x", "ignored", nil)
	l.Warn("x", "", "kept", nil)
	assert.Equal(t, 1, logs.Len())
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	tm := l.Start("x", "y")
	tm.Finish("z", 1)
	l.Warn("x", "", "y", nil)
	l.Error("x", "y", "z", nil)
	assert.NoError(t, l.Sync())
}

func TestNewLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger("corr", "info", dir)
	l.Info("cli", "hello", nil)
	require.NoError(t, l.Sync())

	b, err := os.ReadFile(filepath.Join(dir, "kidslink-current.log"))
	require.NoError(t, err)
	line := string(b)
	assert.Contains(t, line, `"msg":"hello"`)
	assert.Contains(t, line, `"corr_id":"corr"`)
	assert.Contains(t, line, `"comp":"cli"`)
	assert.Contains(t, line, `"ts":`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
	assert.True(t, ValidLevel(""))
	assert.False(t, ValidLevel("verbose"))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{context.Canceled, CodeCancel},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), CodeCancel},
		{fmt.Errorf("x: %w", contract.ErrMissingColumn), CodeSchema},
		{contract.ErrMissingID, CodeSchema},
		{fmt.Errorf("x: %w", contract.ErrDecode), CodeDecode},
		{contract.ErrEmptyInput, CodeDecode},
		{contract.ErrInvariantViolation, CodeInvariant},
		{contract.ErrPathInvalid, CodeInvariant},
		{&fs.PathError{Op: "open", Path: "x", Err: fs.ErrNotExist}, CodeIO},
		{errors.New("other"), CodeUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err), "%v", tc.err)
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	SetMetrics(m)
	t.Cleanup(func() { SetMetrics(nil) })

	IncOp("pipeline", "finish", "success")
	IncError("members", "schema")
	ObserveDuration("linkage", "finish", 20*time.Millisecond)
	AddGuardians(contract.LabelEmail, 2)
	AddChildren(contract.LabelEmail, 3)
	AddChildren(contract.LabelNotFound, 0)
	SetIndexEntries("email", 10)
	IncCollision("name")
	AddSkipped("empty_id", 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ops.WithLabelValues("pipeline", "finish", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("members", "schema")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.guardians.WithLabelValues(contract.LabelEmail)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.children.WithLabelValues(contract.LabelEmail)))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.index.WithLabelValues("email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.collisions.WithLabelValues("name")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.skipped.WithLabelValues("empty_id")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.children))

	path := filepath.Join(t.TempDir(), "kidslink.prom")
	require.NoError(t, m.WriteTextfile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `kidslink_guardians_total{method="EMAIL_EXATO"} 2`)
}

func TestMetricsDisabledIsNoop(t *testing.T) {
	SetMetrics(nil)
	assert.NotPanics(t, func() {
		IncOp("a", "b", "c")
		AddGuardians("x", 1)
	})
}

func TestTerminalNonTTY(t *testing.T) {
	var buf bytes.Buffer
	tm := NewTerminal(&buf, true)
	tm.RunStart("/data/membro_rows.csv", "-", 4)
	tm.MembersLoaded(10, 1, "windows-1252", 9, 8, 10)
	tm.ReportLoaded(30, 5, "utf-8")
	tm.BlockDone()
	tm.Summary(contract.Tally{Email: 3, Phone: 1, Name: 1, Unresolved: 1},
		contract.LinkStats{ManualCheckChildren: 2, OrphanChildren: 1}, 9, "out.csv")
	tm.RunFinish(true, 1500*time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, "cadastro=membro_rows.csv | relatorio=stdin | concorrencia=4")
	assert.Contains(t, out, "[cadastro] 10 membros | email=9 telefone=8 nome=10 | codificacao=windows-1252 | ignorados=1")
	assert.Contains(t, out, "responsaveis=6 | EMAIL_EXATO=3 TELEFONE_EXATO=1 NOME_SEM_ACENTO=1 FALHA=1")
	assert.Contains(t, out, "[aviso] 2 criancas ficaram com responsavel MANUAL_CHECK")
	assert.Contains(t, out, "sem responsavel anterior")
	assert.Contains(t, out, "[ok] concluido em 1.5s")
	assert.NotContains(t, out, "\r", "no inline progress without a TTY")
}

func TestTerminalDisabledAndNil(t *testing.T) {
	var buf bytes.Buffer
	tm := NewTerminal(&buf, false)
	tm.RunStart("a", "b", 1)
	tm.RunFinish(false, time.Second)
	assert.Empty(t, buf.String())

	var nilTerm *Terminal
	assert.NotPanics(t, func() { nilTerm.BlockDone() })

	SetTerminal(tm)
	assert.Same(t, tm, GetTerminal())
	SetTerminal(nil)
}

type failWriter struct{ n int }

func (f *failWriter) Write(p []byte) (int, error) {
	f.n++
	return 0, errors.New("closed")
}

func TestTerminalDisablesOnWriteError(t *testing.T) {
	fw := &failWriter{}
	tm := NewTerminal(fw, true)
	tm.RunStart("a", "b", 1)
	tm.RunFinish(true, 0)
	assert.Equal(t, 1, fw.n)
}

func TestShortenBase(t *testing.T) {
	assert.Equal(t, "file.csv", shortenBase("/a/b/file.csv", 20))
	assert.Equal(t, "abcd…", shortenBase("abcdefgh", 5))
	assert.Equal(t, "stdin", shortenBase("-", 5))
	assert.Equal(t, "", shortenBase(" ", 5))
}
