// Package builder turns POM files and artifact coordinates into fully
// initialized projects, one at a time or as a reactor.
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ritzau/pomreactor/pkg/artifact"
	"github.com/ritzau/pomreactor/pkg/graph"
	"github.com/ritzau/pomreactor/pkg/lifecycle"
	"github.com/ritzau/pomreactor/pkg/logging"
	"github.com/ritzau/pomreactor/pkg/model"
	"github.com/ritzau/pomreactor/pkg/modelbuilder"
	"github.com/ritzau/pomreactor/pkg/project"
	"github.com/ritzau/pomreactor/pkg/repository"
	"github.com/ritzau/pomreactor/pkg/resolver"
)

// DefaultModelCacheSize is the number of raw models kept between builds
const DefaultModelCacheSize = 1024

// Builder builds projects
type Builder interface {
	Build(ctx context.Context, pomFile string, req *Request) (*project.BuildingResult, error)
	BuildSource(ctx context.Context, src modelbuilder.Source, req *Request) (*project.BuildingResult, error)
	BuildArtifact(ctx context.Context, a *artifact.Artifact, allowStub bool, req *Request) (*project.BuildingResult, error)
	BuildReactor(ctx context.Context, pomFiles []string, recursive bool, req *Request) ([]*project.BuildingResult, error)
}

// DefaultBuilder builds projects with a model builder, a repository system, a
// lifecycle injector and a dependency resolver
type DefaultBuilder struct {
	ModelBuilder modelbuilder.Builder
	System       repository.System
	Dependencies resolver.Resolver
	Injector     lifecycle.Injector
	Manager      *repository.RemoteRepositoryManager
	// ModelCache is shared by all builds unless a request disables it
	ModelCache modelbuilder.Cache
}

var _ Builder = (*DefaultBuilder)(nil)

// NewDefaultBuilder wires the default collaborators around a repository system
func NewDefaultBuilder(system repository.System) *DefaultBuilder {
	cache, err := modelbuilder.NewLRUCache(DefaultModelCacheSize)
	if err != nil {
		panic(err)
	}
	b := &DefaultBuilder{
		ModelBuilder: modelbuilder.NewDefaultBuilder(),
		System:       system,
		Injector:     lifecycle.NewDefaultInjector(),
		Manager:      repository.NewRemoteRepositoryManager(),
		ModelCache:   cache,
	}
	b.Dependencies = &resolver.DefaultResolver{
		System:      system,
		Descriptors: &ModelDescriptorReader{Builder: b.ModelBuilder, System: system, Manager: b.Manager, Cache: cache},
	}
	return b
}

// SetModelCache replaces the model cache of project and descriptor builds
func (b *DefaultBuilder) SetModelCache(cache modelbuilder.Cache) {
	b.ModelCache = cache
	if d, ok := b.Dependencies.(*resolver.DefaultResolver); ok {
		if r, ok := d.Descriptors.(*ModelDescriptorReader); ok {
			r.Cache = cache
		}
	}
}

// session is the state of one public build call
type session struct {
	b        *DefaultBuilder
	request  *Request
	repo     *repository.Session
	pool     *ModelPool
	projects *project.Pool

	profilesXML map[string]bool
}

func (b *DefaultBuilder) newSession(req *Request, pool *ModelPool) *session {
	repo := req.Session
	if repo == nil {
		repo = repository.NewSession(req.LocalRepository)
		repo.Offline = req.Offline
	}
	return &session{
		b:           b,
		request:     req.Copy(),
		repo:        repo,
		pool:        pool,
		projects:    project.NewPool(),
		profilesXML: make(map[string]bool),
	}
}

// Build builds the project of a POM file
func (b *DefaultBuilder) Build(ctx context.Context, pomFile string, req *Request) (*project.BuildingResult, error) {
	s := b.newSession(req, nil)
	return s.build(logging.WithRequestID(ctx, s.repo.ID), modelbuilder.NewFileSource(pomFile))
}

// BuildSource builds the project of an arbitrary POM source
func (b *DefaultBuilder) BuildSource(ctx context.Context, src modelbuilder.Source, req *Request) (*project.BuildingResult, error) {
	s := b.newSession(req, nil)
	return s.build(logging.WithRequestID(ctx, s.repo.ID), src)
}

// BuildArtifact builds the project of an artifact's POM. POMs resolved from
// the workspace are built as local projects. When allowStub is set, a POM
// missing from every repository is replaced by a stub declaring only the
// artifact's coordinates and packaging.
func (b *DefaultBuilder) BuildArtifact(ctx context.Context, a *artifact.Artifact, allowStub bool, req *Request) (*project.BuildingResult, error) {
	s := b.newSession(req, nil)
	return s.buildArtifact(logging.WithRequestID(ctx, s.repo.ID), a, allowStub)
}

func (s *session) buildArtifact(ctx context.Context, a *artifact.Artifact, allowStub bool) (*project.BuildingResult, error) {
	pom := a.Copy()
	pom.Type = "pom"
	pom.Classifier = ""

	res, err := s.b.System.ResolveArtifact(ctx, s.repo, &repository.ArtifactRequest{
		Artifact:     pom,
		Repositories: s.request.RemoteRepositories,
		Context:      "project",
	})
	if err != nil {
		var resErr *repository.ArtifactResolutionError
		if allowStub && errors.As(err, &resErr) && resErr.Missing {
			logging.DebugContext(ctx, "Building stub model", "artifact", a.ID())
			return s.build(ctx, stubSource(a))
		}
		return nil, &project.BuildingError{
			ProjectID: a.ID(),
			Message:   "Error resolving project artifact: " + err.Error(),
			Err:       err,
		}
	}

	if a.Type == "pom" {
		a.Version = res.Artifact.Version
		a.File = res.Artifact.File
		a.Resolved = true
	}

	if res.FromWorkspace() {
		return s.build(ctx, &modelbuilder.FileSource{Path: res.Artifact.File})
	}
	return s.build(ctx, &modelbuilder.ArtifactSource{
		Path:        res.Artifact.File,
		Coordinates: model.ModelID(a.GroupID, a.ArtifactID, a.Version),
	})
}

// stubSource declares only the coordinates and packaging of an artifact
func stubSource(a *artifact.Artifact) *modelbuilder.StringSource {
	var b strings.Builder
	b.WriteString("<?xml version='1.0'?>\n")
	b.WriteString("<project>\n")
	b.WriteString("  <modelVersion>4.0.0</modelVersion>\n")
	b.WriteString("  <groupId>" + a.GroupID + "</groupId>\n")
	b.WriteString("  <artifactId>" + a.ArtifactID + "</artifactId>\n")
	b.WriteString("  <version>" + a.BaseVersion() + "</version>\n")
	b.WriteString("  <packaging>" + a.TypeOrDefault() + "</packaging>\n")
	b.WriteString("</project>\n")
	return &modelbuilder.StringSource{Content: b.String(), Name: a.ID()}
}

func fileOf(src modelbuilder.Source) string {
	if fb, ok := src.(modelbuilder.FileBacked); ok {
		return fb.File()
	}
	return ""
}

// build builds one project. When the model has errors but could still be
// assembled, the project is initialized anyway and returned inside the
// error's result.
func (s *session) build(ctx context.Context, src modelbuilder.Source) (*project.BuildingResult, error) {
	saved := s.request.RemoteRepositories
	defer func() { s.request.RemoteRepositories = saved }()

	pomFile := fileOf(src)
	proj := s.request.Project
	var problems model.Problems
	var softErr error

	if proj == nil {
		proj = project.New()
		proj.SetFile(pomFile)

		result, err := s.b.ModelBuilder.Build(ctx, s.modelRequest(src, s.request.requestType(), &projectListener{s: s, project: proj}))
		if err != nil {
			var buildErr *modelbuilder.BuildError
			if !errors.As(err, &buildErr) || buildErr.Result == nil || buildErr.Result.EffectiveModel == nil {
				projectID := ""
				if buildErr != nil {
					projectID = buildErr.ModelID
				}
				return nil, &project.BuildingError{ProjectID: projectID, POMFile: pomFile, Message: err.Error(), Err: err}
			}
			softErr = err
			result = buildErr.Result
		}

		if err := s.initProject(ctx, proj, nil, result); err != nil {
			return nil, &project.BuildingError{ProjectID: result.ModelID(), POMFile: pomFile, Message: err.Error(), Err: err}
		}
		problems = result.Problems
		if softErr == nil && problems.HasErrors() {
			softErr = &modelbuilder.BuildError{ModelID: result.ModelID(), Result: result}
		}
	}

	var resolution project.DependencyResolutionResult
	if s.request.ResolveDependencies {
		resolution = s.resolveDependencies(ctx, proj)
	}

	res := &project.BuildingResult{
		ProjectID:            proj.ID(),
		POMFile:              proj.File(),
		Project:              proj,
		Problems:             problems,
		DependencyResolution: resolution,
	}
	if softErr != nil {
		results := []*project.BuildingResult{res}
		return res, &project.BuildingError{ProjectID: res.ProjectID, POMFile: res.POMFile, Result: res, Results: results, Err: softErr}
	}
	return res, nil
}

// modelRequest creates the model build request for the current request
// repositories
func (s *session) modelRequest(src modelbuilder.Source, typ modelbuilder.RequestType, listener modelbuilder.Listener) *modelbuilder.Request {
	req := &modelbuilder.Request{
		Source:             src,
		Type:               typ,
		ValidationLevel:    s.request.ValidationLevel,
		ProcessPlugins:     s.request.ProcessPlugins,
		LocationTracking:   true,
		ActiveProfileIDs:   s.request.ActiveProfileIDs,
		InactiveProfileIDs: s.request.InactiveProfileIDs,
		Profiles:           s.request.Profiles,
		SystemProperties:   s.request.SystemProperties,
		UserProperties:     s.request.UserProperties,
		Resolver: NewModelResolver(s.repo, s.b.System, s.b.Manager,
			s.request.RemoteRepositories, s.request.RepositoryMerging, s.pool),
		Listener: listener,
	}
	if !s.request.DisableModelCache {
		req.Cache = s.b.ModelCache
	}
	return req
}

// projectListener fills a project while its effective model is assembled
type projectListener struct {
	s       *session
	project *project.Project
}

func (l *projectListener) BuildExtensionsAssembled(ctx context.Context, e *modelbuilder.Event) {
	s := l.s
	m := e.Model

	pluginRepos, err := s.artifactRepositories(m.PluginRepositories, s.request.PluginRepositories)
	if err != nil {
		e.Problems.Add(model.Problem{
			Message:  "Invalid plugin repository: " + err.Error(),
			Severity: model.SeverityError,
			Version:  model.Version20,
			ModelID:  m.ID(),
			Err:      err,
		})
	}
	l.project.SetRemotePluginRepositories(pluginRepos)

	if e.Request.ProcessPlugins && s.b.Injector != nil {
		m = s.b.Injector.Inject(ctx, m, e.Problems)
	}

	repos, err := s.artifactRepositories(m.Repositories, s.request.RemoteRepositories)
	if err != nil {
		e.Problems.Add(model.Problem{
			Message:  "Invalid artifact repository: " + err.Error(),
			Severity: model.SeverityError,
			Version:  model.Version20,
			ModelID:  m.ID(),
			Err:      err,
		})
	}
	l.project.SetRemoteProjectRepositories(repos)

	l.project.SetModel(m)
	e.Model = m
}

// artifactRepositories merges POM repositories with the request's, in the
// order given by the merging mode
func (s *session) artifactRepositories(declared []model.Repository, external []*repository.RemoteRepository) ([]*repository.RemoteRepository, error) {
	internal, err := repository.FromModels(declared)
	if err != nil {
		return slices.Clone(external), err
	}
	for i, r := range internal {
		internal[i] = s.b.Manager.Prepare(s.repo, r)
	}

	dominant, recessive := internal, external
	if s.request.RepositoryMerging == RequestDominant {
		dominant, recessive = external, internal
	}
	return s.b.Manager.AggregateRepositories(s.repo, dominant, recessive, false), nil
}

// BuildReactor builds every POM file and, when recursive, the modules they
// declare. Each POM is built once; a project referenced as a module and as a
// parent is the same instance. The results of every POM are returned, also
// when the error reports problems. A cycle between parents is returned as a
// *project.ReactorCycleError, any other error as a *project.BuildingError.
func (b *DefaultBuilder) BuildReactor(ctx context.Context, pomFiles []string, recursive bool, req *Request) ([]*project.BuildingResult, error) {
	pool := NewModelPool()
	s := b.newSession(req, pool)
	ctx = logging.WithRequestID(ctx, s.repo.ID)

	files := make([]string, len(pomFiles))
	for i, f := range pomFiles {
		files[i] = modelbuilder.LocatePOM(f)
	}
	s.populatePool(files, recursive)

	// every project is allocated before any is initialized, so parents
	// resolve through the pool whatever the file order
	rc := &reactor{s: s, roots: files, built: make(map[string]bool), projects: make(map[*modelbuilder.Result]*project.Project)}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !rc.built[file] {
			rc.buildModels(ctx, file, recursive)
		}
	}

	results := make([]*project.BuildingResult, 0, len(rc.interims))
	for _, in := range rc.interims {
		results = append(results, rc.init(ctx, in))
	}

	logging.InfoContext(ctx, "Built reactor", "files", len(files), "projects", s.projects.Len(), "results", len(results))

	if !slices.ContainsFunc(results, func(r *project.BuildingResult) bool { return r.Problems.HasErrors() }) {
		return results, nil
	}
	for _, r := range results {
		for _, p := range r.Problems {
			var cycle *graph.CycleDetectedError
			if errors.As(p.Err, &cycle) {
				return results, &project.ReactorCycleError{Cycle: cycle, Results: results}
			}
		}
	}
	return results, &project.BuildingError{Results: results}
}

// interim is a model build result waiting for its project to be initialized
type interim struct {
	file   string
	result *modelbuilder.Result
	err    error
}

type reactor struct {
	s        *session
	roots    []string
	built    map[string]bool
	interims []interim
	projects map[*modelbuilder.Result]*project.Project
}

// buildModels builds the model of one POM and its discovered modules and
// allocates their projects in the pool
func (r *reactor) buildModels(ctx context.Context, file string, recursive bool) {
	s := r.s
	listeners := make(map[string]*projectListener)
	listenerFor := func(src modelbuilder.Source) modelbuilder.Listener {
		l := &projectListener{s: s, project: project.New()}
		listeners[src.Location()] = l
		return l
	}

	src := &modelbuilder.FileSource{Path: file}
	mreq := s.modelRequest(src, modelbuilder.RequestBuildProject, listenerFor(src))
	mreq.Recursive = recursive
	mreq.Listeners = listenerFor

	root, err := s.b.ModelBuilder.Build(ctx, mreq)
	if root == nil {
		r.built[file] = true
		r.interims = append(r.interims, interim{file: file, err: err})
		return
	}

	for _, res := range root.All() {
		path := fileOf(res.Source)
		if r.built[path] {
			// built before as a module of an earlier file
			if proj, ok := s.projects.Get(res.ModelID()); ok {
				r.projects[res] = proj
			}
			continue
		}
		r.built[path] = true
		r.interims = append(r.interims, interim{file: path, result: res})

		if res.EffectiveModel == nil {
			continue
		}
		l := listeners[res.Source.Location()]
		proj, created := s.projects.GetOrCreate(res.ModelID(), func() *project.Project { return l.project })
		if !created {
			// the same id from another file; the sorter reports the duplicate
			proj = l.project
		}
		r.projects[res] = proj
	}
}

// init initializes the project of one model build result
func (r *reactor) init(ctx context.Context, in interim) *project.BuildingResult {
	s := r.s
	if in.result == nil {
		return &project.BuildingResult{POMFile: in.file, Problems: model.Problems{{
			Message:  in.err.Error(),
			Severity: model.SeverityFatal,
			Version:  model.VersionBase,
			Source:   in.file,
			Err:      in.err,
		}}}
	}

	res := in.result
	proj, ok := r.projects[res]
	if !ok {
		return &project.BuildingResult{ProjectID: res.ModelID(), POMFile: in.file, Problems: res.Problems}
	}

	proj.SetFile(in.file)
	proj.SetExecutionRoot(slices.Contains(r.roots, in.file))
	proj.SetRootDirectory(r.rootDirectory(in.file))
	if err := s.initProject(ctx, proj, s.projects, res); err != nil {
		res.Problems.Add(model.Problem{
			Message:  err.Error(),
			Severity: model.SeverityFatal,
			Version:  model.VersionBase,
			Source:   in.file,
			ModelID:  res.ModelID(),
			Err:      err,
		})
	}

	// modules nested below this POM, independent of dependencies
	var collected []*project.Project
	for _, c := range res.All()[1:] {
		if cp, ok := r.projects[c]; ok {
			collected = append(collected, cp)
		}
	}
	proj.SetCollectedProjects(collected)

	var resolution project.DependencyResolutionResult
	if s.request.ResolveDependencies {
		resolution = s.resolveDependencies(ctx, proj)
	}
	return &project.BuildingResult{
		ProjectID:            res.ModelID(),
		POMFile:              in.file,
		Project:              proj,
		Problems:             res.Problems,
		DependencyResolution: resolution,
	}
}

// rootDirectory locates the root of the multi-module build holding file: the
// nearest enclosing directory with a .mvn directory, else the topmost
// enclosing directory whose pom.xml is part of the reactor
func (r *reactor) rootDirectory(file string) string {
	root := filepath.Dir(file)
	for dir := root; ; {
		if info, err := os.Stat(filepath.Join(dir, ".mvn")); err == nil && info.IsDir() {
			return dir
		}
		if r.built[filepath.Join(dir, "pom.xml")] {
			root = dir
		}
		up := filepath.Dir(dir)
		if up == dir {
			return root
		}
		dir = up
	}
}

// populatePool registers the coordinates of every reactor POM so that
// parents and imports inside the reactor resolve to their files, and exposes
// the POMs to artifact resolution through the session workspace
func (s *session) populatePool(files []string, recursive bool) {
	var workspace *repository.DirWorkspaceReader
	if s.repo.WorkspaceReader == nil {
		workspace = repository.NewDirWorkspaceReader()
		s.repo.WorkspaceReader = workspace
	}

	seen := make(map[string]bool)
	var visit func(file string)
	visit = func(file string) {
		if seen[file] {
			return
		}
		seen[file] = true

		m, err := readRawModel(file)
		if err != nil {
			logging.Debug("Skipping unreadable reactor POM", "file", file, "error", err)
			return
		}
		groupID, version := m.EffectiveGroupID(), m.EffectiveVersion()
		s.pool.Put(groupID, m.ArtifactID, version, file)
		if workspace != nil {
			workspace.Add(artifact.New(groupID, m.ArtifactID, version, "pom"), file)
		}

		if !recursive {
			return
		}
		for _, module := range m.Modules {
			if module = strings.TrimSpace(module); module != "" {
				visit(modelbuilder.LocatePOM(filepath.Join(filepath.Dir(file), filepath.FromSlash(module))))
			}
		}
	}
	for _, f := range files {
		visit(f)
	}
}

// ModelDescriptorReader reads dependency descriptors as effective models, so
// inherited dependencies and managed versions of parents apply
type ModelDescriptorReader struct {
	Builder modelbuilder.Builder
	System  repository.System
	Manager *repository.RemoteRepositoryManager
	Cache   modelbuilder.Cache
}

func (r *ModelDescriptorReader) ReadDescriptor(ctx context.Context, session *repository.Session, a *artifact.Artifact, repos []*repository.RemoteRepository) (*model.Model, error) {
	mr := NewModelResolver(session, r.System, r.Manager, repos, POMDominant, nil)
	src, err := mr.ResolveModel(ctx, a.GroupID, a.ArtifactID, a.Version)
	if err != nil {
		return nil, err
	}

	result, err := r.Builder.Build(ctx, &modelbuilder.Request{
		Source:          src,
		Type:            modelbuilder.RequestConsumerParent,
		ValidationLevel: modelbuilder.ValidationMinimal,
		Resolver:        mr,
		Cache:           r.Cache,
	})
	if err != nil {
		var buildErr *modelbuilder.BuildError
		if errors.As(err, &buildErr) && buildErr.Result != nil && buildErr.Result.EffectiveModel != nil {
			logging.DebugContext(ctx, "Using descriptor with problems", "artifact", a.ID(), "error", err)
			return buildErr.Result.EffectiveModel, nil
		}
		return nil, fmt.Errorf("failed to read descriptor of %s: %w", a.ID(), err)
	}
	return result.EffectiveModel, nil
}
