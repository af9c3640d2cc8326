// Package analysis runs the reactor pipeline: discover POM files, build the
// projects, sort them and look for cycles.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ritzau/pomreactor/pkg/builder"
	"github.com/ritzau/pomreactor/pkg/cycles"
	"github.com/ritzau/pomreactor/pkg/finder"
	"github.com/ritzau/pomreactor/pkg/logging"
	"github.com/ritzau/pomreactor/pkg/model"
	"github.com/ritzau/pomreactor/pkg/project"
	"github.com/ritzau/pomreactor/pkg/pubsub"
)

const totalSteps = 4

// Options configures a reactor run
type Options struct {
	// Basedir is searched for POM files when Files is empty
	Basedir   string
	Files     []string
	Recursive bool
	Request   *builder.Request
}

// Result is the outcome of one reactor run
type Result struct {
	Run      int // sequence number of the run, from 1
	Reason   string
	Files    []string
	Results  []*project.BuildingResult
	Sorter   *project.Sorter
	Graph    *model.Graph
	Cycles   []cycles.Cycle
	Err      error
	Duration time.Duration
}

// Projects returns the projects in build order, or in build result order
// when sorting failed
func (r *Result) Projects() []*project.Project {
	if r.Sorter != nil {
		return r.Sorter.SortedProjects()
	}
	var out []*project.Project
	for _, res := range r.Results {
		if res.Project != nil {
			out = append(out, res.Project)
		}
	}
	return out
}

// Runner runs the reactor pipeline, one run at a time
type Runner struct {
	builder   builder.Builder
	opts      Options
	publisher pubsub.Publisher

	mu    sync.Mutex // serializes runs
	files []string
	runs  int

	lastMu sync.RWMutex
	last   *Result
}

// NewRunner creates a runner. publisher may be nil.
func NewRunner(b builder.Builder, opts Options, publisher pubsub.Publisher) *Runner {
	if opts.Request == nil {
		opts.Request = builder.NewRequest()
	}
	return &Runner{builder: b, opts: opts, publisher: publisher}
}

// Last returns the result of the latest completed run, or nil
func (r *Runner) Last() *Result {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	return r.last
}

// Rediscover drops the discovered POM files so the next run searches again
func (r *Runner) Rediscover() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = nil
}

func (r *Runner) publishStatus(state, message, reason string, step int) {
	if r.publisher == nil {
		return
	}
	status := pubsub.ReactorStatus{State: state, Message: message, Reason: reason, Step: step, Total: totalSteps}
	if err := r.publisher.Publish(pubsub.TopicReactorStatus, state, status); err != nil {
		logging.Warn("failed to publish status", "state", state, "error", err)
	}
}

func (r *Runner) publishGraph(res *Result) {
	if r.publisher == nil {
		return
	}
	data := pubsub.ReactorGraphData{Complete: res.Err == nil}
	for _, b := range res.Results {
		data.Problems += len(b.Problems)
	}
	if res.Graph != nil {
		data.ProjectsCount = len(res.Graph.Nodes)
		for _, e := range res.Graph.Edges {
			if e.Dropped {
				data.DroppedCount++
			}
		}
		data.EdgesCount = len(res.Graph.Edges) - data.DroppedCount
	}
	for _, p := range res.Projects() {
		data.BuildOrder = append(data.BuildOrder, p.ID())
	}
	eventType := "sorted"
	if res.Err != nil {
		eventType = "failed"
	}
	if err := r.publisher.Publish(pubsub.TopicReactorGraph, eventType, data); err != nil {
		logging.Warn("failed to publish reactor graph", "error", err)
	}
}

// Run executes the pipeline. Failures are reported in Result.Err; the
// returned error is only set when ctx is done.
func (r *Runner) Run(ctx context.Context, reason string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	r.runs++
	res := &Result{Run: r.runs, Reason: reason}
	logging.InfoContext(ctx, "Starting reactor run", "run", res.Run, "reason", reason)

	defer func() {
		res.Duration = time.Since(start)
		r.lastMu.Lock()
		r.last = res
		r.lastMu.Unlock()
		r.publishGraph(res)
	}()

	// Phase 1: discovery
	r.publishStatus("discovering", "Looking for POM files...", reason, 1)
	files, err := r.discover()
	if err != nil {
		res.Err = err
		r.publishStatus("error", err.Error(), reason, 1)
		return res, nil
	}
	res.Files = files
	logging.DebugContext(ctx, "Discovered POM files", "count", len(files))

	// Phase 2: build
	r.publishStatus("building", fmt.Sprintf("Building %d POM files...", len(files)), reason, 2)
	res.Results, err = r.builder.BuildReactor(ctx, files, r.opts.Recursive, r.opts.Request)
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if err != nil {
		res.Err = err
		r.publishStatus("error", "The reactor could not be built", reason, 2)
		logging.WarnContext(ctx, "Reactor build failed", "error", err)
		return res, nil
	}

	// Phase 3: sort
	r.publishStatus("sorting", fmt.Sprintf("Sorting %d projects...", len(res.Results)), reason, 3)
	projects := res.Projects()
	res.Sorter, err = project.NewSorter(projects)
	if err != nil {
		res.Err = err
		r.publishStatus("error", err.Error(), reason, 3)
		logging.WarnContext(ctx, "Reactor sort failed", "error", err)
		return res, nil
	}
	res.Graph = res.Sorter.Graph()

	// Phase 4: cycles hidden by dropped edges
	r.publishStatus("analyzing_cycles", "Looking for hidden cycles...", reason, 4)
	res.Cycles = cycles.FindReactorCycles(res.Graph)

	r.publishStatus("ready", "Reactor sorted", reason, totalSteps)
	logging.InfoContext(ctx, "Reactor run complete", "reason", reason, "projects", len(projects),
		"cycles", len(res.Cycles), "duration", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// discover returns the configured files, or the POM files of the basedir.
// A recursive run over a basedir with a pom.xml starts from that POM alone,
// its modules are found through it.
func (r *Runner) discover() ([]string, error) {
	if len(r.opts.Files) > 0 {
		return r.opts.Files, nil
	}
	if r.files != nil {
		return r.files, nil
	}

	basedir := r.opts.Basedir
	if basedir == "" {
		basedir = "."
	}
	root := filepath.Join(basedir, finder.POMFileName)
	if _, err := os.Stat(root); err == nil && r.opts.Recursive {
		r.files = []string{root}
		return r.files, nil
	}

	files, err := finder.FindPOMFiles(basedir)
	if err != nil {
		return nil, fmt.Errorf("failed to find POM files in %s: %w", basedir, err)
	}
	if len(files) == 0 {
		return nil, errors.New("no POM files found in " + basedir)
	}
	r.files = files
	return files, nil
}
