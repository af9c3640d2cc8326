package model

import (
	"fmt"
	"log/slog"
	"strings"
)

// Severity of a model problem. Ordered so that a higher value is more severe.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityFatal:
		return "FATAL"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Level maps the severity onto a slog level for logging
func (s Severity) Level() slog.Level {
	switch s {
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Version is the model version a problem applies to
type Version int

const (
	VersionBase Version = iota
	Version20
	Version30
	Version31
	Version40
)

func (v Version) String() string {
	switch v {
	case VersionBase:
		return "BASE"
	case Version20:
		return "V20"
	case Version30:
		return "V30"
	case Version31:
		return "V31"
	case Version40:
		return "V40"
	default:
		return fmt.Sprintf("Version(%d)", int(v))
	}
}

// Problem is a diagnostic raised while building a model or a project
type Problem struct {
	Message  string   `json:"message" yaml:"message"`
	Severity Severity `json:"severity" yaml:"severity"`
	Version  Version  `json:"version" yaml:"version"`
	Source   string   `json:"source,omitempty" yaml:"source,omitempty"`
	Line     int      `json:"line,omitempty" yaml:"line,omitempty"`
	Column   int      `json:"column,omitempty" yaml:"column,omitempty"`
	ModelID  string   `json:"modelId,omitempty" yaml:"modelId,omitempty"`
	Err      error    `json:"-" yaml:"-"`
}

// Location formats "source, line L, column C", omitting unknown parts
func (p Problem) Location() string {
	var parts []string
	if p.Source != "" {
		parts = append(parts, p.Source)
	}
	if p.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", p.Line))
	}
	if p.Column > 0 {
		parts = append(parts, fmt.Sprintf("column %d", p.Column))
	}
	return strings.Join(parts, ", ")
}

func (p Problem) String() string {
	msg := p.Message
	if msg == "" && p.Err != nil {
		msg = p.Err.Error()
	}
	s := fmt.Sprintf("[%s] %s", p.Severity, msg)
	if loc := p.Location(); loc != "" {
		s += " @ " + loc
	}
	return s
}

// Problems accumulates model problems
type Problems []Problem

// Add appends a problem
func (ps *Problems) Add(p Problem) {
	*ps = append(*ps, p)
}

// Addf appends a problem with a formatted message
func (ps *Problems) Addf(sev Severity, ver Version, format string, args ...any) {
	ps.Add(Problem{Message: fmt.Sprintf(format, args...), Severity: sev, Version: ver})
}

// HasErrors reports whether any problem is ERROR or worse
func (ps Problems) HasErrors() bool {
	for _, p := range ps {
		if p.Severity >= SeverityError {
			return true
		}
	}
	return false
}

// HasFatal reports whether any problem is FATAL
func (ps Problems) HasFatal() bool {
	for _, p := range ps {
		if p.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

// Count returns how many problems have at least the given severity
func (ps Problems) Count(minimum Severity) int {
	n := 0
	for _, p := range ps {
		if p.Severity >= minimum {
			n++
		}
	}
	return n
}
