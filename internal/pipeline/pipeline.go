// Package pipeline runs one linkage batch:
// members source → schema → index, report source → schema → batcher,
// linkage per block (bounded parallelism), assembler → writer.
//
// The registry is fully indexed before the first report row is resolved and
// the index is read-only afterwards. Any error cancels the run before the
// writer is reached, so a failed run never produces output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"kidslink/internal/diag"
	"kidslink/internal/index"
	"kidslink/internal/linkage"
	"kidslink/internal/schema"
	"kidslink/pkg/contract"
)

// Components are the collaborators of a run.
type Components struct {
	Members   contract.Source
	Report    contract.Source
	Batcher   contract.Batcher
	Assembler contract.Assembler
	Writer    contract.Writer
}

// Settings are the per-run parameters.
type Settings struct {
	MembersRef    string
	ReportRef     string
	Output        contract.ArtifactID
	MemberColumns schema.MemberColumns
	ReportColumns schema.ReportColumns
	// StrictIDs makes a registry row without id fatal instead of skipped.
	StrictIDs bool
	Policy    linkage.Policy
	// Concurrency bounds the blocks linked in parallel (>=1).
	Concurrency int
	// MaxRows packs guardian groups into blocks of at most this many rows.
	MaxRows int
}

// Summary describes a finished run.
type Summary struct {
	Members        int
	SkippedMembers int
	MembersEnc     string
	Index          index.Stats
	Collisions     int
	ReportRows     int
	ReportEnc      string
	Blocks         int
	Records        int
	Tally          contract.Tally
	Stats          contract.LinkStats
	Output         contract.ArtifactID
}

// Run executes the batch. The returned Summary is partial on error.
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Summary, error) {
	sum := Summary{Output: set.Output}
	if err := sanity(comp, set); err != nil {
		return sum, fmt.Errorf("sanity: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if t := diag.GetTerminal(); t != nil {
		t.RunStart(set.MembersRef, set.ReportRef, set.Concurrency)
	}

	idx, err := loadMembers(ctx, comp, set, logger, &sum)
	if err != nil {
		return sum, err
	}

	blocks, err := loadReport(ctx, comp, set, logger, &sum)
	if err != nil {
		return sum, err
	}

	var res linkage.Result
	err = stage(logger, "linkage", "link report", func() (int64, error) {
		var lerr error
		res, lerr = linkBlocks(ctx, blocks, idx, set)
		return int64(len(res.Records)), lerr
	})
	if err != nil {
		return sum, fmt.Errorf("linkage: %w", err)
	}
	sum.Records = len(res.Records)
	sum.Tally = res.Tally
	sum.Stats = res.Stats
	observeResult(res)
	if res.Stats.ManualCheckChildren > 0 {
		logger.Warn("linkage", "manual_check", "children linked to unresolved guardians",
			diag.KV("children", res.Stats.ManualCheckChildren, "id", contract.ManualCheck))
	}
	if res.Stats.OrphanChildren > 0 {
		logger.Warn("linkage", "orphan", "children before the first guardian dropped",
			diag.KV("children", res.Stats.OrphanChildren))
	}

	err = stage(logger, "output", "assemble and write", func() (int64, error) {
		r, err := comp.Assembler.Assemble(ctx, res.Records)
		if err != nil {
			return 0, fmt.Errorf("assemble: %w", err)
		}
		if err := comp.Writer.Write(ctx, set.Output, r); err != nil {
			return 0, fmt.Errorf("write %s: %w", set.Output, err)
		}
		return int64(len(res.Records)), nil
	})
	if err != nil {
		return sum, err
	}
	if t := diag.GetTerminal(); t != nil {
		t.Summary(sum.Tally, sum.Stats, sum.Records, string(set.Output))
	}
	return sum, nil
}

func loadMembers(ctx context.Context, comp Components, set Settings, logger *diag.Logger, sum *Summary) (*index.Index, error) {
	var idx *index.Index
	err := stage(logger, "members", "load registry", func() (int64, error) {
		tb, err := comp.Members.Load(ctx, set.MembersRef)
		if err != nil {
			return 0, fmt.Errorf("load %s: %w", set.MembersRef, err)
		}
		sum.MembersEnc = tb.Encoding
		members, skipped, err := schema.Members(tb, set.MemberColumns, set.StrictIDs)
		if err != nil {
			return 0, err
		}
		for _, s := range skipped {
			logger.Warn("members", "skipped", "registry row skipped", diag.KV("line", s.Line, "reason", s.Reason))
		}
		diag.AddSkipped("empty_id", len(skipped))
		sum.Members = len(members)
		sum.SkippedMembers = len(skipped)
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		idx = index.Build(members)
		sum.Index = idx.Stats()
		for _, c := range idx.Collisions() {
			logger.Warn("index", "collision", "normalized key shared by two members; keeping the later",
				diag.KV("strategy", c.Strategy, "key", c.Key, "previous", c.Previous, "current", c.Current, "line", c.Line))
			diag.IncCollision(string(c.Strategy))
		}
		sum.Collisions = len(idx.Collisions())
		diag.SetIndexEntries(string(index.StrategyEmail), sum.Index.Email)
		diag.SetIndexEntries(string(index.StrategyPhone), sum.Index.Phone)
		diag.SetIndexEntries(string(index.StrategyName), sum.Index.Name)
		return int64(len(members)), nil
	})
	if err != nil {
		return nil, fmt.Errorf("members: %w", err)
	}
	logger.Info("index", "index built", diag.KV(
		"members", sum.Index.Members, "email", sum.Index.Email, "phone", sum.Index.Phone,
		"name", sum.Index.Name, "encoding", sum.MembersEnc))
	if t := diag.GetTerminal(); t != nil {
		t.MembersLoaded(sum.Members, sum.SkippedMembers, sum.MembersEnc, sum.Index.Email, sum.Index.Phone, sum.Index.Name)
	}
	return idx, nil
}

func loadReport(ctx context.Context, comp Components, set Settings, logger *diag.Logger, sum *Summary) ([]contract.Block, error) {
	var blocks []contract.Block
	err := stage(logger, "report", "load kids report", func() (int64, error) {
		tb, err := comp.Report.Load(ctx, set.ReportRef)
		if err != nil {
			return 0, fmt.Errorf("load %s: %w", set.ReportRef, err)
		}
		sum.ReportEnc = tb.Encoding
		rows, err := schema.Report(tb, set.ReportColumns)
		if err != nil {
			return 0, err
		}
		sum.ReportRows = len(rows)
		blocks, err = comp.Batcher.Make(ctx, rows, contract.BlockLimit{MaxRows: set.MaxRows})
		if err != nil {
			return 0, fmt.Errorf("batcher: %w", err)
		}
		if err := contract.ValidateBlocks(rows, blocks); err != nil {
			return 0, err
		}
		sum.Blocks = len(blocks)
		return int64(len(rows)), nil
	})
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	if t := diag.GetTerminal(); t != nil {
		t.ReportLoaded(sum.ReportRows, sum.Blocks, sum.ReportEnc)
	}
	return blocks, nil
}

// linkBlocks links each block independently and merges the results in block
// order, which yields exactly the sequential result.
func linkBlocks(ctx context.Context, blocks []contract.Block, idx *index.Index, set Settings) (linkage.Result, error) {
	results := make([]linkage.Result, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(set.Concurrency)
	for i, b := range blocks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = linkage.Link(b.Rows, idx, set.Policy)
			if t := diag.GetTerminal(); t != nil {
				t.BlockDone()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return linkage.Result{}, err
	}
	var out linkage.Result
	for _, r := range results {
		out.Merge(r)
	}
	return out, nil
}

func observeResult(res linkage.Result) {
	diag.AddGuardians(contract.LabelEmail, res.Tally.Email)
	diag.AddGuardians(contract.LabelPhone, res.Tally.Phone)
	diag.AddGuardians(contract.LabelName, res.Tally.Name)
	diag.AddGuardians(contract.LabelNotFound, res.Tally.Unresolved)
	per := map[contract.Method]int{}
	for _, r := range res.Records {
		per[r.Method]++
	}
	for m, n := range per {
		diag.AddChildren(m.String(), n)
	}
	diag.AddSkipped("orphan_child", res.Stats.OrphanChildren)
	diag.AddSkipped("discarded_child", res.Stats.DiscardedChildren)
	diag.AddSkipped("other_row", res.Stats.IgnoredRows)
}

// stage wraps fn with start/finish/error events and stage metrics.
func stage(logger *diag.Logger, comp, msg string, fn func() (int64, error)) error {
	tm := logger.Start(comp, msg)
	count, err := fn()
	dur := time.Since(tm.Started())
	if err != nil {
		code := diag.Classify(err)
		t0 := tm.Started()
		logger.Error(comp, string(code), err.Error(), &t0)
		diag.IncOp(comp, "error", "error")
		diag.IncError(comp, string(code))
		diag.ObserveDuration(comp, "error", dur)
		return err
	}
	tm.Finish(msg, count)
	diag.IncOp(comp, "finish", "success")
	diag.ObserveDuration(comp, "finish", dur)
	return nil
}

func sanity(comp Components, set Settings) error {
	if comp.Members == nil || comp.Report == nil || comp.Batcher == nil ||
		comp.Assembler == nil || comp.Writer == nil {
		return errors.New("missing component")
	}
	if set.MembersRef == "" || set.ReportRef == "" {
		return errors.New("members and report inputs are required")
	}
	if set.Output == "" {
		return errors.New("output is required")
	}
	if set.Concurrency < 1 {
		return errors.New("concurrency must be >= 1")
	}
	if err := set.Policy.Validate(); err != nil {
		return err
	}
	return nil
}
