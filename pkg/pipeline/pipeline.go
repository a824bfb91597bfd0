// Package pipeline runs the planning pipeline shared by the CLI and
// sessions.
//
// # Stages
//
//  1. Diff: compare the system graph with the staging graph
//  2. Validate: run the soft pre-checks of every changed device
//  3. Build: compile the diff into an action graph
//  4. Schedule: order the actions and verify that replaying the order on
//     the system graph reproduces the staging graph
//
// A [Runner] executes the stages, caches plan summaries and rendered
// artifacts in a [cache.Cache], reports stage timings to the registered
// [observability.PlanHooks] and commits plans through a [commit.Driver].
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	plan, err := runner.Plan(ctx, system, staging)
//	for _, line := range runner.Describe(plan, action.TenseSimplePresent) {
//	    fmt.Println(line)
//	}
//	res, err := runner.Commit(ctx, plan, env, commit.Options{DryRun: true})
package pipeline

import (
	"fmt"
	"time"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/actiongraph"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/diff"
	"github.com/matzehuels/storagegraph/pkg/render"
)

// Graphs that can be rendered.
const (
	GraphDevices = "devices"
	GraphActions = "actions"
)

// Cache lifetimes.
const (
	TTLPlan     = 7 * 24 * time.Hour
	TTLArtifact = 30 * 24 * time.Hour
)

// Plan is a scheduled transition from a system graph to a staging graph.
type Plan struct {
	Diff  *diff.Result
	Graph *actiongraph.Graph
	Order []action.ID
	Stats Stats

	// SystemHash and StagingHash are content hashes of the two graphs.
	SystemHash  string
	StagingHash string
}

// Empty reports whether the plan has nothing to do.
func (p *Plan) Empty() bool { return len(p.Order) == 0 }

// Actions returns the actions in commit order.
func (p *Plan) Actions() []*action.Action {
	out := make([]*action.Action, len(p.Order))
	for i, id := range p.Order {
		out[i] = p.Graph.Action(id)
	}
	return out
}

// Stats records the size of a plan and the time each stage took.
type Stats struct {
	Created       int           `json:"created"`
	Deleted       int           `json:"deleted"`
	Modified      int           `json:"modified"`
	HolderChanges int           `json:"holder_changes"`
	Actions       int           `json:"actions"`
	Edges         int           `json:"edges"`
	Features      []string      `json:"features,omitempty"`
	DiffTime      time.Duration `json:"diff_time"`
	BuildTime     time.Duration `json:"build_time"`
	ScheduleTime  time.Duration `json:"schedule_time"`
}

// Summary is the serializable outcome of planning, as printed by
// "storagegraph plan --json" and stored in the cache.
type Summary struct {
	SystemHash  string `json:"system_hash"`
	StagingHash string `json:"staging_hash"`
	Steps       []Step `json:"steps"`
	Stats       Stats  `json:"stats"`
}

// Step is one action of a summary.
type Step struct {
	N        int             `json:"n"`
	ID       action.ID       `json:"id"`
	Kind     action.Kind     `json:"kind"`
	SID      devicegraph.SID `json:"sid"`
	Text     string          `json:"text"`
	Trailing bool            `json:"trailing,omitempty"`
	Features []string        `json:"features,omitempty"`
}

// Summarize describes p in the simple present tense.
func Summarize(p *Plan) *Summary {
	s := &Summary{
		SystemHash:  p.SystemHash,
		StagingHash: p.StagingHash,
		Steps:       make([]Step, 0, len(p.Order)),
		Stats:       p.Stats,
	}
	for i, a := range p.Actions() {
		s.Steps = append(s.Steps, Step{
			N:        i + 1,
			ID:       a.ID(),
			Kind:     a.Kind,
			SID:      a.SID,
			Text:     a.Describe(nil, action.TenseSimplePresent),
			Trailing: a.Trailing,
			Features: a.Features.Names(),
		})
	}
	return s
}

// RenderOptions selects what [Runner.Render] draws.
type RenderOptions struct {
	Graph    string
	Format   render.Format
	Detailed bool
}

// ValidateAndSetDefaults defaults to the action graph as DOT.
func (o *RenderOptions) ValidateAndSetDefaults() error {
	if o.Graph == "" {
		o.Graph = GraphActions
	}
	if o.Format == "" {
		o.Format = render.FormatDOT
	}
	switch o.Graph {
	case GraphDevices, GraphActions:
	default:
		return fmt.Errorf("unknown graph %q (want %s or %s)", o.Graph, GraphDevices, GraphActions)
	}
	_, err := render.ParseFormat(string(o.Format))
	return err
}
