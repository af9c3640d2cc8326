package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ritzau/pomreactor/pkg/analysis"
	"github.com/ritzau/pomreactor/pkg/artifact"
	"github.com/ritzau/pomreactor/pkg/builder"
	"github.com/ritzau/pomreactor/pkg/config"
	"github.com/ritzau/pomreactor/pkg/logging"
	"github.com/ritzau/pomreactor/pkg/output"
	"github.com/ritzau/pomreactor/pkg/project"
	"github.com/ritzau/pomreactor/pkg/pubsub"
	"github.com/ritzau/pomreactor/pkg/watcher"
	"github.com/ritzau/pomreactor/pkg/web"
)

// env is what every command needs from the configuration
type env struct {
	cfg     *config.Config
	builder *builder.DefaultBuilder
	request *builder.Request
	format  output.Format
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	req, err := cfg.BuildingRequest()
	if err != nil {
		return nil, err
	}
	b, err := cfg.NewBuilder()
	if err != nil {
		return nil, err
	}
	format, err := output.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, builder: b, request: req, format: format}, nil
}

func (e *env) runner(pub pubsub.Publisher) *analysis.Runner {
	return analysis.NewRunner(e.builder, analysis.Options{
		Basedir:   e.cfg.Basedir,
		Files:     e.cfg.Files,
		Recursive: e.cfg.Recursive,
		Request:   e.request,
	}, pub)
}

// report prints a run and returns errFailed when it failed
func (e *env) report(res *analysis.Result, withGraph bool) error {
	if err := output.Write(os.Stdout, e.format, output.NewReport(res, withGraph)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if res.Err != nil {
		return errFailed
	}
	return nil
}

func newSortCmd() *cobra.Command {
	var withGraph bool
	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Build the reactor and print its build order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			res, err := e.runner(nil).Run(cmd.Context(), "sort")
			if err != nil {
				return err
			}
			return e.report(res, withGraph)
		},
	}
	cmd.Flags().BoolVar(&withGraph, "graph", false, "Include the project graph (json and yaml only)")
	return cmd
}

func newBuildCmd() *cobra.Command {
	var allowStub bool
	cmd := &cobra.Command{
		Use:   "build <pom.xml|groupId:artifactId:version>...",
		Short: "Build single projects from POM files or repository coordinates",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			start := time.Now()
			res := &analysis.Result{Reason: "build"}
			var failures []error
			for _, arg := range args {
				result, err := buildOne(cmd.Context(), e, arg, allowStub)
				if result != nil {
					res.Results = append(res.Results, result)
				}
				if err != nil {
					logging.WarnContext(cmd.Context(), "Build failed", "input", arg, "error", err)
					failures = append(failures, err)
				}
			}
			res.Err = errors.Join(failures...)
			res.Duration = time.Since(start)
			return e.report(res, false)
		},
	}
	cmd.Flags().BoolVar(&allowStub, "allow-stub", false, "Use a stub model when a coordinate's POM cannot be resolved")
	return cmd
}

// buildOne builds a POM file, or the POM of groupId:artifactId:version
func buildOne(ctx context.Context, e *env, arg string, allowStub bool) (*project.BuildingResult, error) {
	if parts := strings.Split(arg, ":"); len(parts) == 3 && !strings.ContainsAny(arg, `/\`) {
		a := artifact.New(parts[0], parts[1], parts[2], "pom")
		res, err := e.builder.BuildArtifact(ctx, a, allowStub, e.request)
		return partial(res, err), err
	}
	res, err := e.builder.Build(ctx, arg, e.request)
	return partial(res, err), err
}

// partial returns the best-effort result a failed build may carry
func partial(res *project.BuildingResult, err error) *project.BuildingResult {
	if res != nil {
		return res
	}
	var buildErr *project.BuildingError
	if errors.As(err, &buildErr) {
		return buildErr.Result
	}
	return nil
}

func newCyclesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycles",
		Short: "List project cycles, including those broken by dropped edges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			res, err := e.runner(nil).Run(cmd.Context(), "cycles")
			if err != nil {
				return err
			}

			report := output.NewReport(res, false)
			if e.format != output.FormatText {
				return e.report(res, false)
			}
			if res.Err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", res.Err)
				return errFailed
			}
			if len(report.Cycles) == 0 {
				fmt.Println("No cycles found")
				return nil
			}
			for i, c := range report.Cycles {
				fmt.Printf("Cycle %d: %s\n", i+1, strings.Join(c.Projects, ", "))
				for _, d := range c.Dropped {
					fmt.Printf("  dropped %s\n", d)
				}
			}
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Rebuild and resort the reactor whenever a POM changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			runner := e.runner(nil)

			res, err := runner.Run(ctx, "initial")
			if err != nil {
				return err
			}
			_ = e.report(res, false)

			return watchLoop(ctx, e, runner, func(res *analysis.Result) {
				_ = e.report(res, false)
			})
		},
	}
}

func newServeCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sorted reactor over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			server := web.NewServer()
			runner := e.runner(server.Publisher())

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return server.Start(ctx, e.cfg.Port)
			})
			g.Go(func() error {
				res, err := runner.Run(ctx, "initial")
				if err != nil {
					return err
				}
				server.SetResult(res)
				if !watch {
					return nil
				}
				return watchLoop(ctx, e, runner, server.SetResult)
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Rebuild when POM files change")
	return cmd
}

// watchLoop reruns the reactor after each debounced batch of POM changes
// until ctx is done
func watchLoop(ctx context.Context, e *env, runner *analysis.Runner, onResult func(*analysis.Result)) error {
	fw, err := watcher.NewFileWatcher(e.cfg.Basedir)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	quiet := time.Duration(e.cfg.WatchQuietMs) * time.Millisecond
	debouncer := watcher.NewDebouncer(fw.Events(), quiet, 10*quiet)
	debouncer.Start(ctx)

	for event := range debouncer.Output() {
		changes := watcher.AnalyzeChanges(event)
		if changes.NeedRediscovery {
			runner.Rediscover()
			if err := fw.Rescan(); err != nil {
				logging.Warn("Failed to rescan workspace", "error", err)
			}
		}
		logging.Info("POM files changed", "type", event.Type, "files", len(changes.ChangedFiles))

		res, err := runner.Run(ctx, fmt.Sprintf("%s change: %s", event.Type, strings.Join(changes.ChangedFiles, ", ")))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		onResult(res)
	}
	return nil
}
