package artifact

import "strings"

// Filter decides whether an artifact is visible
type Filter interface {
	Include(a *Artifact) bool
}

// FilterFunc adapts a function to Filter
type FilterFunc func(a *Artifact) bool

func (f FilterFunc) Include(a *Artifact) bool {
	return f(a)
}

// ScopeFilter includes artifacts whose scope is part of a classpath scope.
// Scopes may be combined with '+', e.g. "compile+runtime".
type ScopeFilter struct {
	scopes map[string]bool
}

// NewScopeFilter builds a filter for the given classpath scope
func NewScopeFilter(scope string) *ScopeFilter {
	f := &ScopeFilter{scopes: make(map[string]bool)}
	for _, s := range strings.Split(scope, "+") {
		switch strings.TrimSpace(s) {
		case ScopeCompile:
			f.add(ScopeCompile, ScopeProvided, ScopeSystem)
		case ScopeRuntime:
			f.add(ScopeCompile, ScopeRuntime)
		case ScopeTest:
			f.add(ScopeCompile, ScopeProvided, ScopeRuntime, ScopeSystem, ScopeTest)
		case ScopeProvided:
			f.add(ScopeProvided)
		case ScopeSystem:
			f.add(ScopeSystem)
		}
	}
	return f
}

func (f *ScopeFilter) add(scopes ...string) {
	for _, s := range scopes {
		f.scopes[s] = true
	}
}

func (f *ScopeFilter) Include(a *Artifact) bool {
	scope := a.Scope
	if scope == "" {
		scope = ScopeCompile
	}
	return f.scopes[scope]
}

// And combines filters, including an artifact only when all of them do
func And(filters ...Filter) Filter {
	return FilterFunc(func(a *Artifact) bool {
		for _, f := range filters {
			if f != nil && !f.Include(a) {
				return false
			}
		}
		return true
	})
}
