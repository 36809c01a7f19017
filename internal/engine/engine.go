// Package engine reconciles source items against a flat folder index.
//
// Classification is a pure function of the index, the set of keys consumed so far
// and the item's expected key. Run drives classification in item order, hands
// matches to a Placer and reports every outcome to an optional observer. The index is
// never mutated; consumption lives in a separate set owned by the run.
package engine

import (
	"context"

	"docmigrate/internal/index"
	"docmigrate/internal/organizer"
	"docmigrate/internal/resolver"
)

// Outcome is the terminal state of one source item.
type Outcome string

const (
	// Placed means the item's unique flat file was moved or copied to its destination.
	Placed Outcome = "PLACED"
	// Missing means no unique file carries the expected key, or an earlier item
	// already consumed it.
	Missing Outcome = "MISSING"
	// SkippedDuplicate means several flat files share the expected key; none is placed.
	SkippedDuplicate Outcome = "SKIPPED_DUPLICATE"
	// Failed means a match was found but placing it failed.
	Failed Outcome = "ERROR"
)

// Report reasons.
const (
	ReasonNotFound      = "Not found in flat folder"
	ReasonDuplicate     = "Duplicate filename in flat folder (skipped)"
	ReasonAlreadyPlaced = "Already placed by an earlier item"
)

// Decision is the classification of a single expected key.
type Decision struct {
	Outcome Outcome
	Reason  string
	Match   index.Entry // Set when Outcome is Placed
}

// Classify decides what happens to an item expecting key. Duplicate keys are never
// matched; a unique key matches only while it has not been consumed.
func Classify(idx *index.Index, consumed map[string]bool, key string) Decision {
	if idx.IsDuplicate(key) {
		return Decision{Outcome: SkippedDuplicate, Reason: ReasonDuplicate}
	}
	entry, ok := idx.Lookup(key)
	if !ok {
		return Decision{Outcome: Missing, Reason: ReasonNotFound}
	}
	if consumed[key] {
		return Decision{Outcome: Missing, Reason: ReasonAlreadyPlaced}
	}
	return Decision{Outcome: Placed, Match: entry}
}

// Placer performs the move or copy of a matched file.
type Placer interface {
	Place(req organizer.PlaceRequest) (*organizer.MoveResult, error)
}

// ItemResult records what happened to one source item.
type ItemResult struct {
	Seq         int // 1-based position among considered items
	Item        resolver.SourceItem
	Expectation resolver.Expectation
	Outcome     Outcome
	Reason      string
	FlatPath    string // Matched flat file
	DestPath    string // Set when placed
	Overwrote   bool
	Renamed     bool
	Err         error
}

// Counts are the per-outcome totals of a run.
type Counts struct {
	Considered        int
	Placed            int
	Missing           int
	SkippedDuplicates int
	Errors            int
}

// Observer receives each item result as soon as it is decided.
type Observer func(ItemResult)

// Options configure a run.
type Options struct {
	DestRoot  string
	Action    organizer.Action
	Collision organizer.CollisionPolicy
	Observer  Observer
}

// Result is the outcome of a reconciliation run.
type Result struct {
	Items     []ItemResult
	Orphans   []index.Entry
	Consumed  map[string]bool
	Counts    Counts
	Cancelled bool // ctx was cancelled before every item was processed
}

// Engine runs reconciliations with a fixed Placer.
type Engine struct {
	placer Placer
}

// New creates an Engine that places matches with placer.
func New(placer Placer) *Engine {
	return &Engine{placer: placer}
}

// Run classifies items in order against idx. A failed placement is recorded as an
// error for that item and the run continues. Cancellation is checked before every
// item; items already processed stand. Orphans are computed from whatever was
// consumed, so a cancelled run still reports them.
func (e *Engine) Run(ctx context.Context, idx *index.Index, items []resolver.SourceItem, res resolver.Resolver, opts Options) *Result {
	result := &Result{Consumed: make(map[string]bool)}

	for _, item := range items {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		exp, ok := res.Resolve(item)
		if !ok {
			continue
		}

		result.Counts.Considered++
		ir := ItemResult{
			Seq:         result.Counts.Considered,
			Item:        item,
			Expectation: exp,
		}

		d := Classify(idx, result.Consumed, exp.Key)
		ir.Outcome = d.Outcome
		ir.Reason = d.Reason

		switch d.Outcome {
		case SkippedDuplicate:
			result.Counts.SkippedDuplicates++
		case Missing:
			result.Counts.Missing++
		case Placed:
			ir.FlatPath = d.Match.FullPath
			moved, err := e.placer.Place(organizer.PlaceRequest{
				Source:       d.Match.FullPath,
				DestRoot:     opts.DestRoot,
				TargetRelDir: exp.TargetRelDir,
				Name:         exp.DisplayName,
				Action:       opts.Action,
				Collision:    opts.Collision,
			})
			if err != nil {
				ir.Outcome = Failed
				ir.Reason = "Error: " + err.Error()
				ir.Err = err
				result.Counts.Errors++
			} else {
				result.Consumed[exp.Key] = true
				ir.DestPath = moved.DestinationPath
				ir.Overwrote = moved.Overwrote
				ir.Renamed = moved.Renamed
				result.Counts.Placed++
			}
		}

		result.Items = append(result.Items, ir)
		if opts.Observer != nil {
			opts.Observer(ir)
		}
	}

	result.Orphans = idx.Orphans(result.Consumed)
	return result
}
