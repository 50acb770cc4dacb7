// Package analysis runs the load, merge and layout pipeline and hands results to the web server.
package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/umsu/umsugraph/pkg/dataset"
	"github.com/umsu/umsugraph/pkg/layout"
	"github.com/umsu/umsugraph/pkg/logging"
	"github.com/umsu/umsugraph/pkg/merge"
	"github.com/umsu/umsugraph/pkg/model"
	"github.com/umsu/umsugraph/pkg/pubsub"
	"github.com/umsu/umsugraph/pkg/store"
	"github.com/umsu/umsugraph/pkg/watcher"
	"github.com/umsu/umsugraph/pkg/web"
)

// Options names the inputs of a run.
type Options struct {
	Datasets   []string // Dataset files, lowest priority first
	StatePath  string   // Optional state document; its datasets rank below Datasets
	GroupsPath string   // Optional group table; its groups rank above the state's
	Forces     layout.Forces
	CacheSize  int
}

// Runner orchestrates merge runs. Runs are serialized.
type Runner struct {
	opts   Options
	loader *dataset.Loader
	server *web.Server // nil in CLI mode

	mu   sync.Mutex
	last *web.Snapshot

	stateMu sync.Mutex // Serializes read-modify-write of the state document
}

var _ web.StateEditor = (*Runner)(nil)

// ErrNoState is returned by state edits when no state document is configured.
var ErrNoState = errors.New("no state document configured")

// NewRunner creates a runner. server may be nil.
func NewRunner(opts Options, server *web.Server) (*Runner, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	loader, err := dataset.NewLoader(opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Runner{opts: opts, loader: loader, server: server}, nil
}

func (r *Runner) publish(status pubsub.GraphStatus) {
	if r.server == nil {
		return
	}
	if err := r.server.PublishGraphStatus(status); err != nil {
		logging.Warn("failed to publish status", "state", status.State, "error", err)
	}
}

func (r *Runner) fail(reason string, err error) error {
	logging.Error("merge run failed", "reason", reason, "error", err)
	r.publish(pubsub.GraphStatus{State: pubsub.StateFailed, Reason: reason, Message: err.Error()})
	return err
}

// inputs is everything read from disk for one run
type inputs struct {
	fragments []model.Fragment
	names     []string
	groups    []model.Group
	forces    layout.Forces
	problems  []error
}

func (r *Runner) readState() (*store.State, error) {
	if r.opts.StatePath == "" {
		return store.New(), nil
	}
	return store.Load(r.opts.StatePath)
}

func (r *Runner) readGroups(state *store.State) ([]model.Group, error) {
	var groups []model.Group
	if r.opts.GroupsPath != "" {
		fromFile, err := store.LoadGroups(r.opts.GroupsPath)
		if err != nil {
			return nil, err
		}
		groups = append(groups, fromFile...)
	}
	return append(groups, state.Groups...), nil
}

func (r *Runner) load() (*inputs, error) {
	state, err := r.readState()
	if err != nil {
		return nil, err
	}
	groups, err := r.readGroups(state)
	if err != nil {
		return nil, err
	}

	in := &inputs{groups: groups, forces: state.ForcesOr(r.opts.Forces)}

	if state.Autoload {
		stored, errs := r.loader.LoadEntries(state.Data)
		in.fragments = append(in.fragments, stored...)
		in.problems = append(in.problems, errs...)
	}
	files, errs := r.loader.LoadFiles(r.opts.Datasets)
	in.fragments = append(in.fragments, files...)
	in.problems = append(in.problems, errs...)

	for _, f := range in.fragments {
		in.names = append(in.names, f.Name)
	}
	return in, nil
}

// Run loads every input, merges and publishes the result.
func (r *Runner) Run(ctx context.Context, reason string) (*web.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	logging.Info("starting merge", "reason", reason)
	r.publish(pubsub.GraphStatus{State: pubsub.StateLoading, Reason: reason, Message: "Loading datasets..."})

	in, err := r.load()
	if err != nil {
		return nil, r.fail(reason, errors.Wrap(err, "loading inputs"))
	}
	if err := ctx.Err(); err != nil {
		return nil, r.fail(reason, err)
	}

	r.publish(pubsub.GraphStatus{
		State:    pubsub.StateMerging,
		Reason:   reason,
		Message:  fmt.Sprintf("Merging %d datasets...", len(in.fragments)),
		Datasets: len(in.fragments),
	})
	if err := in.forces.Strength.Validate(); err != nil {
		return nil, r.fail(reason, err)
	}

	result := merge.Merge(in.fragments)
	warnings := append(in.problems, result.Warnings...)
	snap := web.NewSnapshot(result.Graph, layout.NewTable(in.groups), in.forces, warnings, in.names)
	r.finish(snap, reason, start)
	return snap, nil
}

// Relayout re-reads the group table and restyles the last merge without re-merging.
func (r *Runner) Relayout(ctx context.Context, reason string) (*web.Snapshot, error) {
	r.mu.Lock()
	last := r.last
	if last == nil {
		r.mu.Unlock()
		return r.Run(ctx, reason)
	}
	defer r.mu.Unlock()

	start := time.Now()
	state, err := r.readState()
	if err != nil {
		return nil, r.fail(reason, err)
	}
	groups, err := r.readGroups(state)
	if err != nil {
		return nil, r.fail(reason, err)
	}
	forces := state.ForcesOr(r.opts.Forces)
	if err := forces.Strength.Validate(); err != nil {
		return nil, r.fail(reason, err)
	}
	snap := last.WithTable(layout.NewTable(groups), forces)
	r.finish(snap, reason, start)
	return snap, nil
}

func (r *Runner) finish(snap *web.Snapshot, reason string, start time.Time) {
	r.last = snap
	if r.server != nil {
		r.server.SetSnapshot(snap)
	}

	for _, w := range snap.Warnings {
		logging.Debug("merge warning", "error", w)
	}
	logging.Info("merge complete",
		"reason", reason,
		"nodes", len(snap.Graph.Nodes),
		"links", len(snap.Graph.Links),
		"components", len(snap.Components),
		"warnings", len(snap.Warnings),
		"cached", r.loader.Len(),
		"durationMs", time.Since(start).Milliseconds())

	r.publish(pubsub.GraphStatus{
		State:      pubsub.StateReady,
		Reason:     reason,
		Message:    "Graph ready",
		Datasets:   len(snap.Datasets),
		Nodes:      len(snap.Graph.Nodes),
		Links:      len(snap.Graph.Links),
		Components: len(snap.Components),
		Warnings:   len(snap.Warnings),
	})
}

// Apply re-runs whatever a batch of file changes requires.
func (r *Runner) Apply(ctx context.Context, change *watcher.ChangeAnalysis) error {
	var err error
	switch {
	case change.NeedMerge || change.NeedStateReload:
		_, err = r.Run(ctx, change.Reason())
	case change.NeedGroups:
		_, err = r.Relayout(ctx, change.Reason())
	}
	return err
}

// Watch feeds debounced change events into Apply until the channel closes.
func (r *Runner) Watch(ctx context.Context, events <-chan watcher.ChangeEvent) {
	for event := range events {
		change := watcher.AnalyzeChanges(event)
		logging.Info("inputs changed", "type", event.Type.String(), "files", len(change.ChangedFiles))
		if err := r.Apply(ctx, change); err != nil {
			logging.Warn("re-run after change failed", "error", err)
		}
	}
}

// State returns the stored state document, or an empty one when none is configured.
func (r *Runner) State() (*store.State, error) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.readState()
}

func (r *Runner) editState(edit func(*store.State) error) error {
	if r.opts.StatePath == "" {
		return ErrNoState
	}
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	_, err := store.Update(r.opts.StatePath, edit)
	return err
}

// AddDataset stores a dataset in the state document, replacing one with the same name,
// and re-merges. Data that does not decode to a {nodes, links} fragment is rejected
// before anything is written.
func (r *Runner) AddDataset(ctx context.Context, name string, data []byte) error {
	if name == "" {
		return errors.Mark(errors.New("dataset name is required"), dataset.ErrDecode)
	}
	fragment, err := r.loader.Load(name, data, dataset.FormatAuto)
	if err != nil {
		return err
	}
	if err := fragment.Validate(); err != nil {
		return errors.Mark(errors.Wrapf(err, "dataset %q", name), dataset.ErrDecode)
	}

	err = r.editState(func(s *store.State) error {
		s.AddDataset(name, data)
		return nil
	})
	if err != nil {
		return err
	}
	logging.Info("dataset stored", "name", name, "bytes", len(data))
	_, err = r.Run(ctx, fmt.Sprintf("dataset %s added", name))
	return err
}

// RemoveDataset drops a stored dataset and re-merges.
func (r *Runner) RemoveDataset(ctx context.Context, name string) error {
	err := r.editState(func(s *store.State) error {
		if !s.RemoveDataset(name) {
			return errors.Wrapf(store.ErrDatasetNotFound, "%q", name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logging.Info("dataset removed", "name", name)
	_, err = r.Run(ctx, fmt.Sprintf("dataset %s removed", name))
	return err
}

// SetForces stores new force parameters and restyles the last graph without re-merging.
func (r *Runner) SetForces(ctx context.Context, forces layout.Forces) error {
	if err := forces.Strength.Validate(); err != nil {
		return err
	}
	err := r.editState(func(s *store.State) error {
		s.Forces = &forces
		return nil
	})
	if err != nil {
		return err
	}
	_, err = r.Relayout(ctx, "forces changed")
	return err
}

// Last returns the snapshot of the latest successful run.
func (r *Runner) Last() *web.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
