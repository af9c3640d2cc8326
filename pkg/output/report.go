// Package output renders reactor runs as text, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/ritzau/pomreactor/pkg/analysis"
	"github.com/ritzau/pomreactor/pkg/model"
)

// Format selects how a report is written
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a format name, defaulting to text
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// ProjectEntry is one project in build order
type ProjectEntry struct {
	Order      int      `json:"order" yaml:"order"`
	ID         string   `json:"id" yaml:"id"`
	Packaging  string   `json:"packaging" yaml:"packaging"`
	File       string   `json:"file,omitempty" yaml:"file,omitempty"`
	Parent     string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Dependents []string `json:"dependents,omitempty" yaml:"dependents,omitempty"`
	Artifacts  []string `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

// ProblemEntry is a problem reported while building a project
type ProblemEntry struct {
	Project  string `json:"project,omitempty" yaml:"project,omitempty"`
	Severity string `json:"severity" yaml:"severity"`
	Message  string `json:"message" yaml:"message"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

// CycleEntry is a cycle the sorter had to break
type CycleEntry struct {
	Projects []string `json:"projects" yaml:"projects"`
	Dropped  []string `json:"dropped" yaml:"dropped"`
}

// Report is the printable outcome of a reactor run
type Report struct {
	Reason   string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	Duration string         `json:"duration" yaml:"duration"`
	Projects []ProjectEntry `json:"projects" yaml:"projects"`
	Cycles   []CycleEntry   `json:"cycles,omitempty" yaml:"cycles,omitempty"`
	Problems []ProblemEntry `json:"problems,omitempty" yaml:"problems,omitempty"`
	Graph    *model.Graph   `json:"graph,omitempty" yaml:"graph,omitempty"`
	Error    string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewReport summarizes a run. withGraph includes the exported graph.
func NewReport(res *analysis.Result, withGraph bool) *Report {
	r := &Report{
		Reason:   res.Reason,
		Duration: res.Duration.String(),
		Projects: []ProjectEntry{},
	}

	for i, p := range res.Projects() {
		entry := ProjectEntry{
			Order:     i,
			ID:        p.ID(),
			Packaging: p.Packaging(),
			File:      p.File(),
		}
		if parent := p.Parent(); parent != nil {
			entry.Parent = parent.ID()
		}
		if res.Sorter != nil {
			entry.Dependents = res.Sorter.Dependents(p.ID())
		}
		for _, a := range p.Artifacts() {
			entry.Artifacts = append(entry.Artifacts, a.ID())
		}
		r.Projects = append(r.Projects, entry)
	}

	for _, b := range res.Results {
		id := b.ProjectID
		if b.Project != nil {
			id = b.Project.ID()
		}
		for _, p := range b.Problems {
			msg := p.Message
			if msg == "" && p.Err != nil {
				msg = p.Err.Error()
			}
			r.Problems = append(r.Problems, ProblemEntry{
				Project:  id,
				Severity: p.Severity.String(),
				Message:  msg,
				Location: p.Location(),
			})
		}
	}

	for _, c := range res.Cycles {
		entry := CycleEntry{Projects: c.Projects}
		for _, e := range c.DroppedEdges() {
			entry.Dropped = append(entry.Dropped, fmt.Sprintf("%s -> %s (%s)", e.Source, e.Target, e.Type))
		}
		r.Cycles = append(r.Cycles, entry)
	}

	if withGraph {
		r.Graph = res.Graph
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}

// Write renders the report in the given format
func Write(w io.Writer, format Format, r *Report) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeText(w, r)
	}
}

func writeText(w io.Writer, r *Report) error {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	var err error
	printf := func(c *color.Color, format string, args ...any) {
		if err != nil {
			return
		}
		if c == nil {
			_, err = fmt.Fprintf(w, format, args...)
			return
		}
		_, err = c.Fprintf(w, format, args...)
	}

	printf(bold, "Reactor Build Order:\n")
	for _, p := range r.Projects {
		printf(nil, "  %3d. ", p.Order+1)
		printf(cyan, "%s", p.ID)
		printf(nil, " [%s]\n", p.Packaging)
	}
	printf(nil, "\n")

	if len(r.Cycles) > 0 {
		printf(yellow, "Cycles broken by dropped edges: %d\n", len(r.Cycles))
		for _, c := range r.Cycles {
			printf(nil, "  %s\n", strings.Join(c.Projects, ", "))
			for _, d := range c.Dropped {
				printf(yellow, "    dropped %s\n", d)
			}
		}
		printf(nil, "\n")
	}

	if len(r.Problems) > 0 {
		printf(bold, "Problems:\n")
		for _, p := range r.Problems {
			c := yellow
			if p.Severity != model.SeverityWarning.String() {
				c = red
			}
			printf(c, "  [%s] ", p.Severity)
			printf(nil, "%s", p.Message)
			if p.Location != "" {
				printf(nil, " @ %s", p.Location)
			}
			printf(nil, "\n")
		}
		printf(nil, "\n")
	}

	if r.Error != "" {
		printf(red, "FAILURE: %s\n", r.Error)
		return err
	}
	printf(green, "SUCCESS: %d project(s) in %s\n", len(r.Projects), r.Duration)
	return err
}
