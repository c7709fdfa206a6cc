package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"kidslink/pkg/contract"
)

// Terminal prints human status lines (not logs) for the operator.
// On a TTY block progress overwrites one line with \r; otherwise only
// milestones are printed. Safe for concurrent use; a failed write disables it.
type Terminal struct {
	w       io.Writer
	enabled bool
	isTTY   bool

	runStart    time.Time
	concurrency int

	blocksTotal int
	blocksDone  int

	lastLen   int
	lastFlush time.Time

	mu sync.Mutex
}

var (
	termMu sync.RWMutex
	term   *Terminal
)

// SetTerminal installs the process terminal (nil clears).
func SetTerminal(t *Terminal) { termMu.Lock(); term = t; termMu.Unlock() }

// GetTerminal returns the installed terminal, possibly nil.
func GetTerminal() *Terminal { termMu.RLock(); defer termMu.RUnlock(); return term }

// NewTerminal builds a Terminal writing to w (stderr when nil).
// enabled=false makes every method a no-op.
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled}
	if os.Getenv("CI") == "" {
		if f, ok := w.(*os.File); ok {
			if fi, err := f.Stat(); err == nil {
				t.isTTY = fi.Mode()&os.ModeCharDevice != 0
			}
		}
	}
	return t
}

// RunStart announces the inputs.
func (t *Terminal) RunStart(members, report string, concurrency int) {
	t.do(func() {
		t.runStart = time.Now()
		t.concurrency = concurrency
		t.println(fmt.Sprintf("[run] cadastro=%s | relatorio=%s | concorrencia=%d",
			shortenBase(members, 48), shortenBase(report, 48), concurrency))
	})
}

// MembersLoaded reports the registry and index sizes.
func (t *Terminal) MembersLoaded(rows, skipped int, encoding string, email, phone, name int) {
	t.do(func() {
		line := fmt.Sprintf("[cadastro] %d membros | email=%d telefone=%d nome=%d", rows, email, phone, name)
		if encoding != "" {
			line += " | codificacao=" + encoding
		}
		if skipped > 0 {
			line += fmt.Sprintf(" | ignorados=%d", skipped)
		}
		t.println(line)
	})
}

// ReportLoaded reports the kids report size.
func (t *Terminal) ReportLoaded(rows, blocks int, encoding string) {
	t.do(func() {
		t.blocksTotal = blocks
		t.blocksDone = 0
		line := fmt.Sprintf("[relatorio] %d linhas | blocos=%d", rows, blocks)
		if encoding != "" {
			line += " | codificacao=" + encoding
		}
		t.println(line)
	})
}

// BlockDone advances the linkage progress line (TTY only, 100ms throttle).
func (t *Terminal) BlockDone() {
	t.do(func() {
		t.blocksDone++
		if !t.isTTY {
			return
		}
		now := time.Now()
		if t.blocksDone < t.blocksTotal && now.Sub(t.lastFlush) < 100*time.Millisecond {
			return
		}
		t.lastFlush = now
		t.printInline(fmt.Sprintf("[vinculo] blocos %d/%d | concorrencia %d | %s",
			t.blocksDone, t.blocksTotal, t.concurrency, formatDur(time.Since(t.runStart))))
	})
}

// Summary prints the per-method tally and warns about children routed to
// manual review.
func (t *Terminal) Summary(tally contract.Tally, stats contract.LinkStats, records int, output string) {
	t.do(func() {
		if t.isTTY && t.lastLen > 0 {
			t.printInline("")
		}
		t.println(fmt.Sprintf("[resumo] responsaveis=%d | %s=%d %s=%d %s=%d %s=%d",
			tally.Total(),
			contract.LabelEmail, tally.Email,
			contract.LabelPhone, tally.Phone,
			contract.LabelName, tally.Name,
			contract.LabelNotFound, tally.Unresolved))
		t.println(fmt.Sprintf("[resumo] criancas vinculadas=%d | arquivo=%s", records, output))
		if stats.ManualCheckChildren > 0 {
			t.println(fmt.Sprintf("[aviso] %d criancas ficaram com responsavel %s; revise manualmente",
				stats.ManualCheckChildren, contract.ManualCheck))
		}
		if stats.DiscardedChildren > 0 {
			t.println(fmt.Sprintf("[aviso] %d criancas descartadas (responsavel nao encontrado)", stats.DiscardedChildren))
		}
		if stats.OrphanChildren > 0 {
			t.println(fmt.Sprintf("[aviso] %d criancas sem responsavel anterior no relatorio", stats.OrphanChildren))
		}
	})
}

// RunFinish prints the final status line.
func (t *Terminal) RunFinish(ok bool, dur time.Duration) {
	t.do(func() {
		if t.isTTY && t.lastLen > 0 {
			t.printInline("")
		}
		tag := "ok"
		if !ok {
			tag = "falha"
		}
		t.println(fmt.Sprintf("[%s] concluido em %s", tag, formatDur(dur)))
	})
}

func (t *Terminal) do(f func()) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	f()
}

func (t *Terminal) println(s string) {
	if !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, safe(s)+"\n"); err != nil {
		t.enabled = false
	}
	t.lastLen = 0
}

func (t *Terminal) printInline(s string) {
	if !t.enabled {
		return
	}
	pad := 0
	if l := visLen(s); t.lastLen > l {
		pad = t.lastLen - l
	}
	var b strings.Builder
	b.WriteByte('\r')
	b.WriteString(safe(s))
	b.WriteString(strings.Repeat(" ", pad))
	if _, err := io.WriteString(t.w, b.String()); err != nil {
		t.enabled = false
		return
	}
	t.lastLen = visLen(s)
}

// shortenBase keeps the base name, truncated to max runes with an ellipsis.
func shortenBase(s string, max int) string {
	s = strings.TrimSpace(s)
	if s == "" || max <= 0 {
		return ""
	}
	if s == "-" {
		return "stdin"
	}
	rs := []rune(filepath.Base(s))
	if len(rs) <= max {
		return string(rs)
	}
	return string(rs[:max-1]) + "…"
}

func visLen(s string) int { return len([]rune(s)) }

func safe(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms < 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(d.Milliseconds())/1000.0)
}
