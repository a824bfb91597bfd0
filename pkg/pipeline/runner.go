package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/actiongraph"
	"github.com/matzehuels/storagegraph/pkg/cache"
	"github.com/matzehuels/storagegraph/pkg/commit"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/diff"
	"github.com/matzehuels/storagegraph/pkg/errors"
	sgio "github.com/matzehuels/storagegraph/pkg/io"
	"github.com/matzehuels/storagegraph/pkg/observability"
	"github.com/matzehuels/storagegraph/pkg/render"
	"github.com/matzehuels/storagegraph/pkg/system"
)

// Runner executes the pipeline with caching.
//
// A Runner keeps no per-plan state, so one Runner may plan several graph
// pairs concurrently. Committing is serialized by the caller's lock.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// Driver commits plans. NewRunner installs one that pre-checks for
	// missing tools.
	Driver *commit.Driver
}

// NewRunner creates a runner. A nil cache disables caching and a nil keyer
// selects [cache.DefaultKeyer].
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	driver := commit.NewDriver(logger)
	driver.PreCheck = system.CheckTools
	return &Runner{Cache: c, Keyer: keyer, Logger: logger, Driver: driver}
}

// Plan diffs the system graph lhs against the staging graph rhs, builds
// the action graph, schedules it and verifies the schedule by simulation.
func (r *Runner) Plan(ctx context.Context, lhs, rhs *devicegraph.Graph) (*Plan, error) {
	hooks := observability.Plan()
	p := &Plan{}

	var err error
	if p.SystemHash, err = GraphHash(lhs); err != nil {
		return nil, err
	}
	if p.StagingHash, err = GraphHash(rhs); err != nil {
		return nil, err
	}

	start := time.Now()
	p.Diff = diff.Compare(lhs, rhs)
	p.Stats.DiffTime = time.Since(start)
	counts := p.Diff.Counts()
	p.Stats.Created = counts[diff.Created]
	p.Stats.Deleted = counts[diff.Deleted]
	p.Stats.Modified = counts[diff.Modified]
	p.Stats.HolderChanges = len(p.Diff.HolderChanges())
	hooks.OnDiffComplete(ctx, p.Stats.Created, p.Stats.Deleted, p.Stats.Modified, p.Stats.DiffTime)
	r.Logger.Debug("compared graphs", "changes", p.Diff, "duration", p.Stats.DiffTime)

	start = time.Now()
	hooks.OnBuildStart(ctx, len(p.Diff.Changes())+p.Stats.HolderChanges)
	p.Graph, err = actiongraph.Build(ctx, p.Diff, actiongraph.WithLogger(r.Logger))
	p.Stats.BuildTime = time.Since(start)
	if err != nil {
		hooks.OnBuildComplete(ctx, 0, 0, p.Stats.BuildTime, err)
		return nil, err
	}
	p.Stats.Actions = p.Graph.Len()
	p.Stats.Edges = p.Graph.NumEdges()
	p.Stats.Features = action.Union(p.Graph.Actions()).Names()
	hooks.OnBuildComplete(ctx, p.Stats.Actions, p.Stats.Edges, p.Stats.BuildTime, nil)

	start = time.Now()
	p.Order, err = actiongraph.Schedule(p.Graph)
	if err == nil {
		err = verify(p)
	}
	p.Stats.ScheduleTime = time.Since(start)
	hooks.OnScheduleComplete(ctx, len(p.Order), p.Stats.ScheduleTime, err)
	if err != nil {
		return nil, err
	}

	r.Logger.Info("planned",
		"actions", p.Stats.Actions,
		"edges", p.Stats.Edges,
		"duration", p.Stats.DiffTime+p.Stats.BuildTime+p.Stats.ScheduleTime)
	r.store(ctx, "plan", r.Keyer.PlanKey(p.SystemHash, p.StagingHash), Summarize(p), TTLPlan)
	return p, nil
}

func verify(p *Plan) error {
	ok, err := actiongraph.RoundTrip(p.Graph, p.Order)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.ErrCodeInternal, "scheduled plan does not reproduce the staging graph")
	}
	return nil
}

// Summary returns the plan summary for the graph pair, from the cache if
// possible. The bool reports a cache hit.
func (r *Runner) Summary(ctx context.Context, lhs, rhs *devicegraph.Graph) (*Summary, bool, error) {
	sh, err := GraphHash(lhs)
	if err != nil {
		return nil, false, err
	}
	th, err := GraphHash(rhs)
	if err != nil {
		return nil, false, err
	}

	var s Summary
	if r.load(ctx, "plan", r.Keyer.PlanKey(sh, th), &s) {
		return &s, true, nil
	}
	p, err := r.Plan(ctx, lhs, rhs)
	if err != nil {
		return nil, false, err
	}
	return Summarize(p), false, nil
}

// Describe returns one line per action of p in commit order.
func (r *Runner) Describe(p *Plan, tense action.Tense) []string {
	out := make([]string, len(p.Order))
	for i, a := range p.Actions() {
		out[i] = a.Describe(nil, tense)
	}
	return out
}

// Render draws the device or action graph of p. SVG and PNG artifacts are
// cached by the hash of their DOT source; the bool reports a cache hit.
func (r *Runner) Render(ctx context.Context, p *Plan, opts RenderOptions) ([]byte, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInvalidInput, err, "render options")
	}

	var dot string
	if opts.Graph == GraphDevices {
		dot = render.DevicegraphDOT(p.Diff.RHS, render.Options{Detailed: opts.Detailed, Diff: p.Diff})
	} else {
		dot = render.ActiongraphDOT(p.Graph, p.Order)
	}
	if opts.Format == render.FormatDOT {
		return []byte(dot), false, nil
	}

	key := r.Keyer.ArtifactKey(cache.Hash([]byte(dot)), cache.ArtifactKeyOpts{
		Graph:  opts.Graph,
		Format: string(opts.Format),
	})
	if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
		observability.Cache().OnCacheHit(ctx, "artifact")
		return data, true, nil
	}
	observability.Cache().OnCacheMiss(ctx, "artifact")

	start := time.Now()
	data, err := render.Render(ctx, dot, opts.Format)
	if err != nil {
		return nil, false, err
	}
	r.Logger.Debug("rendered", "graph", opts.Graph, "format", opts.Format, "bytes", len(data), "duration", time.Since(start))

	if err := r.Cache.Set(ctx, key, data, TTLArtifact); err != nil {
		r.Logger.Warn("cache write failed", "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "artifact", len(data))
	}
	return data, false, nil
}

// Commit commits p through the runner's driver.
func (r *Runner) Commit(ctx context.Context, p *Plan, env *action.Env, opts commit.Options) (*commit.Result, error) {
	return r.Driver.Commit(ctx, p.Graph, p.Order, env, opts)
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) load(ctx context.Context, keyType, key string, v any) bool {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "err", err)
	}
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, keyType)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		observability.Cache().OnCacheMiss(ctx, keyType)
		return false
	}
	observability.Cache().OnCacheHit(ctx, keyType)
	return true
}

func (r *Runner) store(ctx context.Context, keyType, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Warn("cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyType, len(data))
}

// GraphHash returns the content hash of g's canonical JSON encoding.
func GraphHash(g *devicegraph.Graph) (string, error) {
	var buf bytes.Buffer
	if err := sgio.WriteJSON(g, &buf); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "hash graph")
	}
	return cache.Hash(buf.Bytes()), nil
}
