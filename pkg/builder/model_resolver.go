package builder

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ritzau/pomreactor/pkg/artifact"
	"github.com/ritzau/pomreactor/pkg/logging"
	"github.com/ritzau/pomreactor/pkg/model"
	"github.com/ritzau/pomreactor/pkg/modelbuilder"
	"github.com/ritzau/pomreactor/pkg/repository"
)

// ModelPool maps the coordinates of reactor POMs to their files
type ModelPool struct {
	mu    sync.RWMutex
	files map[string]string
}

// NewModelPool creates an empty pool
func NewModelPool() *ModelPool {
	return &ModelPool{files: make(map[string]string)}
}

// Put registers the POM file of groupId:artifactId:version
func (p *ModelPool) Put(groupID, artifactID, version, file string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[model.ModelID(groupID, artifactID, version)] = file
}

// Get returns the POM file of groupId:artifactId:version
func (p *ModelPool) Get(groupID, artifactID, version string) (string, bool) {
	if p == nil {
		return "", false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	file, ok := p.files[model.ModelID(groupID, artifactID, version)]
	return file, ok
}

// parentEntry memoizes the resolution of one parent reference
type parentEntry struct {
	once    sync.Once
	version string
	source  modelbuilder.Source
	err     error
}

// parentCache is shared by a resolver and all of its copies
type parentCache struct {
	mu      sync.Mutex
	entries map[string]*parentEntry
}

func (c *parentCache) entry(key string) *parentEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &parentEntry{}
		c.entries[key] = e
	}
	return e
}

// ModelResolver locates parent and import POMs in the reactor and the
// repository system. Repositories declared by the POMs it visits are merged
// with the request's according to the merging mode.
type ModelResolver struct {
	session *repository.Session
	system  repository.System
	manager *repository.RemoteRepositoryManager
	merging RepositoryMerging
	pool    *ModelPool
	parents *parentCache

	repositories    []*repository.RemoteRepository
	pomRepositories []*repository.RemoteRepository
	external        []*repository.RemoteRepository
	repositoryIDs   map[string]bool
}

var _ modelbuilder.Resolver = (*ModelResolver)(nil)

// NewModelResolver creates a resolver over the request repositories. pool
// may be nil outside reactor builds.
func NewModelResolver(session *repository.Session, system repository.System, manager *repository.RemoteRepositoryManager,
	repositories []*repository.RemoteRepository, merging RepositoryMerging, pool *ModelPool) *ModelResolver {
	return &ModelResolver{
		session:       session,
		system:        system,
		manager:       manager,
		merging:       merging,
		pool:          pool,
		parents:       &parentCache{entries: make(map[string]*parentEntry)},
		repositories:  slices.Clone(repositories),
		external:      slices.Clone(repositories),
		repositoryIDs: make(map[string]bool),
	}
}

// Repositories returns the current search order
func (r *ModelResolver) Repositories() []*repository.RemoteRepository {
	return slices.Clone(r.repositories)
}

// AddRepository adds a repository declared in a POM. An id seen before is
// ignored unless replace is set, in which case the earlier declaration is
// dropped.
func (r *ModelResolver) AddRepository(repo model.Repository, replace bool) error {
	remote, err := repository.FromModel(repo)
	if err != nil {
		return err
	}

	if r.repositoryIDs[remote.ID] {
		if !replace {
			return nil
		}
		r.repositories = removeRepository(r.repositories, remote.ID)
		r.pomRepositories = removeRepository(r.pomRepositories, remote.ID)
	}
	r.repositoryIDs[remote.ID] = true

	added := []*repository.RemoteRepository{remote}
	if r.merging == RequestDominant {
		r.repositories = r.manager.AggregateRepositories(r.session, r.repositories, added, true)
	} else {
		r.pomRepositories = r.manager.AggregateRepositories(r.session, r.pomRepositories, added, true)
		r.repositories = r.manager.AggregateRepositories(r.session, r.pomRepositories, r.external, false)
	}
	return nil
}

func removeRepository(repos []*repository.RemoteRepository, id string) []*repository.RemoteRepository {
	return slices.DeleteFunc(slices.Clone(repos), func(r *repository.RemoteRepository) bool { return r.ID == id })
}

// NewCopy returns a resolver with its own repository lists that shares the
// reactor pool and the parent cache
func (r *ModelResolver) NewCopy() modelbuilder.Resolver {
	c := *r
	c.repositories = slices.Clone(r.repositories)
	c.pomRepositories = slices.Clone(r.pomRepositories)
	c.external = slices.Clone(r.external)
	c.repositoryIDs = make(map[string]bool, len(r.repositoryIDs))
	for id := range r.repositoryIDs {
		c.repositoryIDs[id] = true
	}
	return &c
}

// ResolveModel returns the POM of groupId:artifactId:version, from the
// reactor when it is a member
func (r *ModelResolver) ResolveModel(ctx context.Context, groupID, artifactID, version string) (modelbuilder.Source, error) {
	if file, ok := r.pool.Get(groupID, artifactID, version); ok {
		return &modelbuilder.FileSource{Path: file}, nil
	}

	pom := artifact.New(groupID, artifactID, version, "pom")
	res, err := r.system.ResolveArtifact(ctx, r.session, &repository.ArtifactRequest{
		Artifact:     pom,
		Repositories: r.repositories,
		Context:      "project",
	})
	if err != nil {
		return nil, &modelbuilder.UnresolvableModelError{
			GroupID:    groupID,
			ArtifactID: artifactID,
			Version:    version,
			Message:    err.Error(),
			Err:        err,
		}
	}
	if res.FromWorkspace() {
		return &modelbuilder.FileSource{Path: res.Artifact.File}, nil
	}
	return &modelbuilder.ArtifactSource{Path: res.Artifact.File, Coordinates: model.ModelID(groupID, artifactID, version)}, nil
}

// ResolveParent resolves the parent version, which may be a range with an
// upper bound, and rewrites parent.Version to the selected version.
// Resolutions are remembered per parent reference.
func (r *ModelResolver) ResolveParent(ctx context.Context, parent *model.Parent) (modelbuilder.Source, error) {
	e := r.parents.entry(parent.ID())
	e.once.Do(func() {
		e.version, e.err = r.resolveVersion(ctx, parent.GroupID, parent.ArtifactID, parent.Version, "parent")
		if e.err == nil {
			e.source, e.err = r.ResolveModel(ctx, parent.GroupID, parent.ArtifactID, e.version)
		}
	})
	if e.err != nil {
		return nil, e.err
	}
	parent.Version = e.version
	return e.source, nil
}

// ResolveDependency resolves an imported POM like ResolveParent, rewriting
// dep.Version
func (r *ModelResolver) ResolveDependency(ctx context.Context, dep *model.Dependency) (modelbuilder.Source, error) {
	version, err := r.resolveVersion(ctx, dep.GroupID, dep.ArtifactID, dep.Version, "dependency")
	if err != nil {
		return nil, err
	}
	src, err := r.ResolveModel(ctx, dep.GroupID, dep.ArtifactID, version)
	if err != nil {
		return nil, err
	}
	dep.Version = version
	return src, nil
}

func (r *ModelResolver) resolveVersion(ctx context.Context, groupID, artifactID, version, kind string) (string, error) {
	fail := func(err error, format string, args ...any) error {
		return &modelbuilder.UnresolvableModelError{
			GroupID:    groupID,
			ArtifactID: artifactID,
			Version:    version,
			Message:    fmt.Sprintf(format, args...),
			Err:        err,
		}
	}

	res, err := r.system.ResolveVersionRange(ctx, r.session, &repository.VersionRangeRequest{
		Artifact:     artifact.New(groupID, artifactID, version, "pom"),
		Repositories: r.repositories,
		Context:      "project",
	})
	if err != nil {
		return "", fail(err, "%v", err)
	}
	highest := res.Highest()
	if highest == "" {
		return "", fail(nil, "No versions matched the requested %s version range '%s'", kind, version)
	}
	if res.Constraint != nil && res.Constraint.IsRange() && !res.Constraint.HasUpperBound() {
		return "", fail(nil, "The requested %s version range '%s' does not specify an upper bound", kind, version)
	}
	if highest != version {
		logging.Debug("Resolved version range", "artifact", groupID+":"+artifactID, "range", version, "version", highest)
	}
	return highest, nil
}
