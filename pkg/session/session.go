// Package session holds the graphs of one storage planning session.
//
// A session probes the machine once and keeps three graphs:
//
//   - probed: the first probe, never modified
//   - system: the last probed truth, replaced by every re-probe
//   - staging: the desired target, mutated by the caller
//
// Staging starts as a clone of system, so devices keep their sids and the
// diff matches them by identity.
//
//	sess, err := session.New(ctx, session.FileProber{Path: "system.yaml"}, runner, logger)
//	staging := sess.Staging()
//	// ... mutate staging ...
//	plan, err := sess.Plan(ctx)
//	res, err := sess.Commit(ctx, plan, env, commit.Options{})
//
// After a commit, successful or not, the session re-probes so that system
// reflects reality; a failed plan must not be resumed. The caller holds the
// machine-wide lock (system.Acquire) from New through Commit.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/commit"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/devices"
	sgio "github.com/matzehuels/storagegraph/pkg/io"
	"github.com/matzehuels/storagegraph/pkg/pipeline"
)

// Prober discovers the storage configuration of the machine.
type Prober interface {
	Probe(ctx context.Context) (*devicegraph.Graph, error)
}

// ProberFunc adapts a function to [Prober].
type ProberFunc func(ctx context.Context) (*devicegraph.Graph, error)

func (f ProberFunc) Probe(ctx context.Context) (*devicegraph.Graph, error) { return f(ctx) }

// FileProber reads a persisted graph instead of probing, for offline
// planning and tests.
type FileProber struct {
	Path string
}

func (p FileProber) Probe(context.Context) (*devicegraph.Graph, error) {
	return sgio.Import(p.Path)
}

// Session is one planning session. Its methods are safe for concurrent use,
// but the graphs it returns are not.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	prober Prober
	runner *pipeline.Runner
	logger *log.Logger

	mu      sync.RWMutex
	probed  *devicegraph.Graph
	system  *devicegraph.Graph
	staging *devicegraph.Graph
	resize  *devicegraph.Cache[devices.ResizeInfo]
}

// New probes once and starts a session. A nil runner gets an uncached one.
func New(ctx context.Context, prober Prober, runner *pipeline.Runner, logger *log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.Default()
	}
	if runner == nil {
		runner = pipeline.NewRunner(nil, nil, logger)
	}
	s := &Session{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		prober:    prober,
		runner:    runner,
	}
	s.logger = logger.With("session", s.ID.String()[:8])

	g, err := s.probe(ctx)
	if err != nil {
		return nil, err
	}
	s.probed = g
	s.setSystem(g.Clone())
	s.staging = s.system.Clone()
	return s, nil
}

func (s *Session) probe(ctx context.Context) (*devicegraph.Graph, error) {
	start := time.Now()
	g, err := s.prober.Probe(ctx)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	if err := g.Check(); err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	s.logger.Info("probed", "devices", g.NumDevices(), "holders", g.NumHolders(), "duration", time.Since(start))
	return g, nil
}

func (s *Session) setSystem(g *devicegraph.Graph) {
	s.system = g
	s.resize = devicegraph.NewCache[devices.ResizeInfo](g)
}

// Probed returns a copy of the first probe.
func (s *Session) Probed() *devicegraph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.probed.Clone()
}

// System returns a copy of the last probed state.
func (s *Session) System() *devicegraph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.system.Clone()
}

// Staging returns the staging graph itself; the caller mutates it in place.
func (s *Session) Staging() *devicegraph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.staging
}

// SetStaging replaces the staging graph, e.g. with an imported target.
func (s *Session) SetStaging(g *devicegraph.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staging = g
}

// ResetStaging discards staged changes.
func (s *Session) ResetStaging() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staging = s.system.Clone()
}

// Plan schedules the transition from system to staging.
func (s *Session) Plan(ctx context.Context) (*pipeline.Plan, error) {
	s.mu.RLock()
	lhs, rhs := s.system, s.staging
	s.mu.RUnlock()
	if err := rhs.Check(); err != nil {
		return nil, fmt.Errorf("staging: %w", err)
	}
	return s.runner.Plan(ctx, lhs, rhs)
}

// Commit commits p and re-probes. Dry runs do not re-probe. If the commit
// fails, the returned error is the commit error; a re-probe failure is
// joined to it.
func (s *Session) Commit(ctx context.Context, p *pipeline.Plan, env *action.Env, opts commit.Options) (*commit.Result, error) {
	res, err := s.runner.Commit(ctx, p, env, opts)
	if opts.DryRun || res == nil {
		return res, err
	}
	if perr := s.Reprobe(context.WithoutCancel(ctx)); perr != nil {
		s.logger.Error("re-probe failed", "err", perr)
		return res, stderrors.Join(err, perr)
	}
	return res, err
}

// Reprobe replaces system with a fresh probe. Staging is kept.
func (s *Session) Reprobe(ctx context.Context) error {
	g, err := s.probe(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setSystem(g)
	return nil
}

// ResizeInfo returns the resize range of sid in the system graph. Results
// are memoized until the system graph changes.
func (s *Session) ResizeInfo(sid devicegraph.SID) (devices.ResizeInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resize.GetOrCompute(sid, func() (devices.ResizeInfo, error) {
		return devices.ResizeLimits(s.system, sid)
	})
}

// Graph file names written by SaveGraphs.
const (
	ProbedFile  = "probed.yaml"
	SystemFile  = "system.yaml"
	StagingFile = "staging.yaml"
)

// SaveGraphs writes the three graphs to dir.
func (s *Session) SaveGraphs(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, g := range map[string]*devicegraph.Graph{
		ProbedFile:  s.probed,
		SystemFile:  s.system,
		StagingFile: s.staging,
	} {
		if err := sgio.Export(g, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("save session %s: %w", s.ID, err)
		}
	}
	return nil
}
