package project

import (
	"fmt"
	"strings"

	"github.com/ritzau/pomreactor/pkg/artifact"
	"github.com/ritzau/pomreactor/pkg/graph"
	"github.com/ritzau/pomreactor/pkg/model"
)

// DuplicateProjectError is returned when two reactor projects share an id
type DuplicateProjectError struct {
	ProjectID  string
	FirstFile  string
	SecondFile string
}

func (e *DuplicateProjectError) Error() string {
	return fmt.Sprintf("Project '%s' is duplicated in the reactor: %s and %s", e.ProjectID, e.FirstFile, e.SecondFile)
}

// DependencyResolutionResult is the outcome of resolving a project's dependencies
type DependencyResolutionResult interface {
	Dependencies() []*artifact.Artifact
	UnresolvedDependencies() []*artifact.Artifact
	CollectionErrors() []error
}

// BuildingResult is the outcome of building one POM. Project is nil when no
// usable model could be built.
type BuildingResult struct {
	ProjectID            string
	POMFile              string
	Project              *Project
	Problems             model.Problems
	DependencyResolution DependencyResolutionResult
}

// BuildingError reports a failed project build. A single-project failure
// carries ProjectID, POMFile, Message and, when a best-effort project was
// built anyway, Result; a reactor failure carries the result of every POM
// in Results.
type BuildingError struct {
	ProjectID string
	POMFile   string
	Message   string
	Result    *BuildingResult
	Results   []*BuildingResult
	Err       error
}

func (e *BuildingError) Error() string {
	if e.Results != nil {
		return formatResults(e.Results)
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	var b strings.Builder
	b.WriteString(msg)
	if e.ProjectID != "" {
		b.WriteString(" for project " + e.ProjectID)
	}
	if e.POMFile != "" {
		b.WriteString(" at " + e.POMFile)
	}
	return b.String()
}

func (e *BuildingError) Unwrap() error {
	return e.Err
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// formatResults renders the reactor report. Warnings are left out whenever
// any error is present; they remain available on the results.
func formatResults(results []*BuildingResult) string {
	total, errs := 0, 0
	for _, r := range results {
		total += len(r.Problems)
		errs += r.Problems.Count(model.SeverityError)
	}
	minimum := model.SeverityWarning
	if errs > 0 {
		minimum = model.SeverityError
	}

	verb := "was"
	if total != 1 {
		verb = "were"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d %s %s encountered while building the effective %s (%d %s)",
		total, plural(total, "problem"), verb, plural(len(results), "model"), errs, plural(errs, "error"))

	for _, r := range results {
		if r.Problems.Count(minimum) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n[%s] %s", r.ProjectID, r.POMFile)
		for _, p := range r.Problems {
			if p.Severity >= minimum {
				b.WriteString("\n  " + p.String())
			}
		}
	}
	return b.String()
}

// ReactorCycleError reports projects whose relationships form a cycle. It is
// returned instead of a BuildingError so callers can tell an ordering cycle
// from invalid POMs.
type ReactorCycleError struct {
	Cycle   *graph.CycleDetectedError
	Results []*BuildingResult
}

func (e *ReactorCycleError) Error() string {
	return "The projects in the reactor contain a cyclic reference: " + e.Cycle.Error()
}

func (e *ReactorCycleError) Unwrap() error {
	return e.Cycle
}
