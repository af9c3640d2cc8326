// Package resolver resolves the dependency graph of a project against a
// repository system.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/ritzau/pomreactor/pkg/artifact"
	"github.com/ritzau/pomreactor/pkg/logging"
	"github.com/ritzau/pomreactor/pkg/model"
	"github.com/ritzau/pomreactor/pkg/project"
	"github.com/ritzau/pomreactor/pkg/repository"
)

// Resolver resolves the dependencies of a project. On failure a
// *ResolutionError carries whatever could be resolved.
type Resolver interface {
	Resolve(ctx context.Context, req *Request) (*Result, error)
}

// Request asks for the dependencies of one project
type Request struct {
	Project *project.Project
	Session *repository.Session
	// Filter restricts which dependencies are resolved, nil for all
	Filter artifact.Filter
}

// Node is one vertex of a resolved dependency graph
type Node struct {
	Artifact   *artifact.Artifact
	Dependency *model.Dependency
	Children   []*Node
	// Depth is 0 for the project and 1 for direct dependencies
	Depth int
	// PremanagedVersion is the declared version when management replaced it
	PremanagedVersion string
}

// Result is the resolved graph plus the flattened artifacts
type Result struct {
	Graph *Node

	dependencies []*artifact.Artifact
	unresolved   []*artifact.Artifact
	errors       []error
}

var _ project.DependencyResolutionResult = (*Result)(nil)

// Dependencies returns every selected dependency, resolved or not, in
// breadth-first order
func (r *Result) Dependencies() []*artifact.Artifact { return r.dependencies }

// UnresolvedDependencies returns the selected dependencies without a file
func (r *Result) UnresolvedDependencies() []*artifact.Artifact { return r.unresolved }

// CollectionErrors returns the errors hit while reading descriptors or
// resolving files
func (r *Result) CollectionErrors() []error { return r.errors }

// ResolutionError is returned when some dependencies could not be resolved
type ResolutionError struct {
	Result *Result
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Result == nil || e.Result.Graph == nil || e.Result.Graph.Artifact == nil {
		return fmt.Sprintf("Could not resolve dependencies: %v", e.Err)
	}
	return fmt.Sprintf("Could not resolve dependencies for project %s: %v", e.Result.Graph.Artifact.Coordinates(), e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// DescriptorReader returns the dependencies and dependency management an
// artifact declares in its POM
type DescriptorReader interface {
	ReadDescriptor(ctx context.Context, session *repository.Session, a *artifact.Artifact, repos []*repository.RemoteRepository) (*model.Model, error)
}

// POMDescriptorReader reads descriptors as raw POMs resolved through a
// repository system, without parent inheritance
type POMDescriptorReader struct {
	System repository.System
}

func (r *POMDescriptorReader) ReadDescriptor(ctx context.Context, session *repository.Session, a *artifact.Artifact, repos []*repository.RemoteRepository) (*model.Model, error) {
	pom := artifact.New(a.GroupID, a.ArtifactID, a.Version, "pom")
	res, err := r.System.ResolveArtifact(ctx, session, &repository.ArtifactRequest{Artifact: pom, Repositories: repos, Context: "project"})
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(res.Artifact.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor of %s: %w", a.Coordinates(), err)
	}
	m, err := model.ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse descriptor of %s: %w", a.Coordinates(), err)
	}
	return m, nil
}

// DefaultResolver collects the transitive graph breadth first. The nearest
// declaration of a groupId:artifactId wins; managed versions and scopes of
// the project apply at every depth.
type DefaultResolver struct {
	System      repository.System
	Descriptors DescriptorReader
}

// New creates a resolver reading raw POM descriptors through system
func New(system repository.System) *DefaultResolver {
	return &DefaultResolver{System: system, Descriptors: &POMDescriptorReader{System: system}}
}

type pending struct {
	node       *Node
	exclusions []model.Exclusion
}

func (r *DefaultResolver) Resolve(ctx context.Context, req *Request) (*Result, error) {
	p := req.Project
	root := &Node{Artifact: p.Artifact()}
	if root.Artifact == nil {
		root.Artifact = artifact.New(p.GroupID(), p.ArtifactID(), p.Version(), p.Packaging())
	}
	result := &Result{Graph: root}
	managed := p.ManagedVersionMap()
	repos := p.RemoteProjectRepositories()

	selected := map[string]bool{root.Artifact.VersionlessID(): true}
	queue := []pending{{node: root}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]

		deps, err := r.dependenciesOf(ctx, req, current.node, repos)
		if err != nil {
			result.errors = append(result.errors, err)
			continue
		}

		for _, d := range deps {
			if current.node.Depth > 0 && !inheritable(d) {
				continue
			}
			if excluded(current.exclusions, d) {
				continue
			}

			child := &Node{Dependency: &d, Depth: current.node.Depth + 1}
			if m, ok := managed[d.ManagementKey()]; ok && current.node.Depth > 0 {
				if m.Version != "" && m.Version != d.Version {
					child.PremanagedVersion = d.Version
					d.Version = m.Version
				}
				if m.Scope != "" {
					d.Scope = m.Scope
				}
			}

			scope := d.Scope
			if current.node.Depth > 0 {
				if scope = mediateScope(current.node.Artifact.Scope, d.Scope); scope == "" {
					continue
				}
			}

			a := &artifact.Artifact{
				GroupID:    d.GroupID,
				ArtifactID: d.ArtifactID,
				Version:    d.Version,
				Type:       d.TypeOrDefault(),
				Classifier: d.Classifier,
				Scope:      orDefault(scope, artifact.ScopeCompile),
				Optional:   d.IsOptional(),
			}
			if req.Filter != nil && !req.Filter.Include(a) {
				continue
			}
			if selected[a.VersionlessID()] {
				continue
			}
			selected[a.VersionlessID()] = true

			if err := r.selectVersion(ctx, req.Session, a, repos); err != nil {
				result.errors = append(result.errors, err)
			}
			child.Artifact = a
			current.node.Children = append(current.node.Children, child)

			r.resolveFile(ctx, req.Session, a, d.SystemPath, repos, result)
			queue = append(queue, pending{node: child, exclusions: slices.Concat(current.exclusions, d.Exclusions)})
		}
	}

	logging.DebugContext(ctx, "Resolved dependencies", "project", p.ID(),
		"dependencies", len(result.dependencies), "unresolved", len(result.unresolved))

	if len(result.errors) > 0 {
		return result, &ResolutionError{Result: result, Err: errors.Join(result.errors...)}
	}
	return result, nil
}

// dependenciesOf returns the declared dependencies of a node: the project's
// own for the root, the descriptor's otherwise
func (r *DefaultResolver) dependenciesOf(ctx context.Context, req *Request, n *Node, repos []*repository.RemoteRepository) ([]model.Dependency, error) {
	if n.Depth == 0 {
		return req.Project.Dependencies(), nil
	}
	if n.Artifact.Scope == artifact.ScopeSystem || r.Descriptors == nil {
		return nil, nil
	}
	m, err := r.Descriptors.ReadDescriptor(ctx, req.Session, n.Artifact, repos)
	if err != nil {
		// A missing descriptor leaves the artifact without transitive dependencies
		var resErr *repository.ArtifactResolutionError
		if errors.As(err, &resErr) && resErr.Missing {
			logging.DebugContext(ctx, "Missing descriptor", "artifact", n.Artifact.Coordinates())
			return nil, nil
		}
		return nil, err
	}

	managed := make(map[string]model.Dependency)
	for _, md := range m.ManagedDependencies() {
		managed[md.ManagementKey()] = md
	}
	deps := make([]model.Dependency, 0, len(m.Dependencies))
	for _, d := range m.Dependencies {
		if md, ok := managed[d.ManagementKey()]; ok {
			d.Version = orDefault(d.Version, md.Version)
			d.Scope = orDefault(d.Scope, md.Scope)
		}
		deps = append(deps, d)
	}
	return deps, nil
}

// selectVersion replaces a version range with the highest available match
func (r *DefaultResolver) selectVersion(ctx context.Context, session *repository.Session, a *artifact.Artifact, repos []*repository.RemoteRepository) error {
	if !artifact.IsRange(a.Version) {
		return nil
	}
	res, err := r.System.ResolveVersionRange(ctx, session, &repository.VersionRangeRequest{Artifact: a, Repositories: repos, Context: "project"})
	if err != nil {
		return fmt.Errorf("failed to resolve version range for %s: %w", a.ID(), err)
	}
	if res.Highest() == "" {
		return fmt.Errorf("no versions available for %s within specified range", a.ID())
	}
	a.Version = res.Highest()
	return nil
}

func (r *DefaultResolver) resolveFile(ctx context.Context, session *repository.Session, a *artifact.Artifact, systemPath string, repos []*repository.RemoteRepository, result *Result) {
	result.dependencies = append(result.dependencies, a)

	if a.Scope == artifact.ScopeSystem {
		if _, err := os.Stat(systemPath); err == nil {
			a.File = systemPath
			a.Resolved = true
			return
		}
		result.unresolved = append(result.unresolved, a)
		result.errors = append(result.errors, fmt.Errorf("system artifact %s not found at %q", a.ID(), systemPath))
		return
	}

	res, err := r.System.ResolveArtifact(ctx, session, &repository.ArtifactRequest{Artifact: a, Repositories: repos, Context: "project"})
	if err != nil {
		result.unresolved = append(result.unresolved, a)
		result.errors = append(result.errors, err)
		return
	}
	a.File = res.Artifact.File
	a.Resolved = true
}

// inheritable reports whether a dependency of a dependency is transitive
func inheritable(d model.Dependency) bool {
	if d.IsOptional() {
		return false
	}
	switch d.Scope {
	case artifact.ScopeTest, artifact.ScopeProvided, artifact.ScopeSystem:
		return false
	}
	return true
}

// mediateScope returns the scope of a transitive dependency declared with
// scope under a parent in parentScope, "" when it is not transitive
func mediateScope(parentScope, scope string) string {
	scope = orDefault(scope, artifact.ScopeCompile)
	switch orDefault(parentScope, artifact.ScopeCompile) {
	case artifact.ScopeCompile:
		return scope
	case artifact.ScopeRuntime:
		return artifact.ScopeRuntime
	case artifact.ScopeProvided:
		return artifact.ScopeProvided
	case artifact.ScopeTest:
		return artifact.ScopeTest
	default:
		return ""
	}
}

func excluded(exclusions []model.Exclusion, d model.Dependency) bool {
	for _, e := range exclusions {
		if matches(e.GroupID, d.GroupID) && matches(e.ArtifactID, d.ArtifactID) {
			return true
		}
	}
	return false
}

func matches(pattern, value string) bool {
	return pattern == "*" || strings.EqualFold(pattern, value)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
