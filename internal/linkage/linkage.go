// Package linkage walks the kids report in order and attaches every child to
// the most recent guardian row.
//
// The walk is a two-state machine (no guardian yet / guardian active). The
// transition function Step is pure: the current guardian is threaded through
// State values instead of being kept in shared variables.
package linkage

import (
	"fmt"

	"kidslink/internal/resolve"
	"kidslink/pkg/contract"
)

// UnresolvedPolicy decides what happens to children of an unresolved guardian.
type UnresolvedPolicy string

const (
	// UnresolvedEmit writes the children with the ManualCheck id.
	UnresolvedEmit UnresolvedPolicy = "emit"
	// UnresolvedDiscard drops the children.
	UnresolvedDiscard UnresolvedPolicy = "discard"
)

// TallyPolicy decides when a guardian is counted in the Tally.
type TallyPolicy string

const (
	// TallyWithChildren counts a guardian once, when its first child is seen.
	TallyWithChildren TallyPolicy = "with_children"
	// TallyEveryGuardian counts every guardian row.
	TallyEveryGuardian TallyPolicy = "every_guardian"
)

// Policy bundles the linkage variants.
type Policy struct {
	Unresolved UnresolvedPolicy
	Tally      TallyPolicy
}

// DefaultPolicy emits unresolved children and tallies guardians with children.
func DefaultPolicy() Policy {
	return Policy{Unresolved: UnresolvedEmit, Tally: TallyWithChildren}
}

// Validate rejects unknown policy names.
func (p Policy) Validate() error {
	switch p.Unresolved {
	case UnresolvedEmit, UnresolvedDiscard:
	default:
		return fmt.Errorf("linkage: unknown unresolved policy %q", p.Unresolved)
	}
	switch p.Tally {
	case TallyWithChildren, TallyEveryGuardian:
	default:
		return fmt.Errorf("linkage: unknown tally policy %q", p.Tally)
	}
	return nil
}

// State is the current guardian. The zero value is the initial state.
type State struct {
	active  bool
	res     contract.Resolution
	email   string
	phone   string
	tallied bool
}

// Active reports whether a guardian row has been seen.
func (s State) Active() bool { return s.active }

// Effect is what a single row produced.
type Effect int

const (
	EffectGuardian Effect = iota + 1
	EffectChild
	EffectOrphan
	EffectDiscarded
	EffectIgnored
)

// Emit is the output of one Step.
type Emit struct {
	Effect Effect
	// Record is set only for EffectChild.
	Record *contract.OutputRecord
	// Count asks the caller to tally Method once.
	Count  bool
	Method contract.Method
}

// Step applies one report row to st.
func Step(st State, row contract.ReportRow, lk resolve.Lookup, pol Policy) (State, Emit) {
	switch row.Kind {
	case contract.KindGuardian:
		res := resolve.Resolve(row.Guardian(), lk)
		next := State{active: true, res: res, email: row.Email, phone: row.Phone}
		em := Emit{Effect: EffectGuardian, Method: res.Method}
		if pol.Tally == TallyEveryGuardian {
			em.Count = true
			next.tallied = true
		}
		return next, em

	case contract.KindChild:
		if !st.active {
			return st, Emit{Effect: EffectOrphan}
		}
		em := Emit{Method: st.res.Method}
		if !st.tallied {
			em.Count = true
			st.tallied = true
		}
		if !st.res.Resolved() && pol.Unresolved == UnresolvedDiscard {
			em.Effect = EffectDiscarded
			return st, em
		}
		em.Effect = EffectChild
		em.Record = &contract.OutputRecord{
			GuardianID:    st.res.OutputID(),
			GuardianName:  st.res.DisplayName,
			ChildName:     row.Name,
			Method:        st.res.Method,
			GuardianEmail: st.email,
			GuardianPhone: st.phone,
		}
		return st, em

	default:
		return st, Emit{Effect: EffectIgnored}
	}
}

// Result is the outcome of linking a sequence of rows.
type Result struct {
	Records []contract.OutputRecord
	Tally   contract.Tally
	Stats   contract.LinkStats
}

// Link runs Step over rows from the initial state. Output order equals the
// order of the child rows.
func Link(rows []contract.ReportRow, lk resolve.Lookup, pol Policy) Result {
	var (
		st  State
		em  Emit
		out Result
	)
	for _, row := range rows {
		st, em = Step(st, row, lk, pol)
		if em.Count {
			out.Tally.Add(em.Method)
		}
		switch em.Effect {
		case EffectGuardian:
			out.Stats.Guardians++
		case EffectChild:
			out.Records = append(out.Records, *em.Record)
			out.Stats.Children++
			if em.Method == contract.MethodNotFound {
				out.Stats.ManualCheckChildren++
			}
		case EffectOrphan:
			out.Stats.OrphanChildren++
		case EffectDiscarded:
			out.Stats.DiscardedChildren++
		case EffectIgnored:
			out.Stats.IgnoredRows++
		}
	}
	return out
}

// Merge appends o after r, keeping order.
func (r *Result) Merge(o Result) {
	r.Records = append(r.Records, o.Records...)
	r.Tally.Merge(o.Tally)
	r.Stats.Merge(o.Stats)
}
