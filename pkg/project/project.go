package project

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/ritzau/pomreactor/pkg/artifact"
	"github.com/ritzau/pomreactor/pkg/model"
	"github.com/ritzau/pomreactor/pkg/repository"
)

// Placeholder coordinates of a project that has not been populated yet
const (
	EmptyProjectGroupID    = "unknown"
	EmptyProjectArtifactID = "empty-project"
	EmptyProjectVersion    = "0"
)

// ExternalProfileSource keys the injected profile ids of profiles that did not
// come from a POM
const ExternalProfileSource = "external"

// cell caches a derived value until reset. Not safe for concurrent use.
type cell[T any] struct {
	value T
	valid bool
}

func (c *cell[T]) get(compute func() T) T {
	if !c.valid {
		c.value = compute()
		c.valid = true
	}
	return c.value
}

func (c *cell[T]) set(v T) {
	c.value = v
	c.valid = true
}

func (c *cell[T]) reset() {
	var zero T
	c.value = zero
	c.valid = false
}

// phaseSet is an insertion-ordered set guarded by a mutex
type phaseSet struct {
	mu    sync.Mutex
	order []string
	seen  map[string]bool
}

func newPhaseSet() *phaseSet {
	return &phaseSet{seen: make(map[string]bool)}
}

func (s *phaseSet) add(phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[phase] {
		return
	}
	s.seen[phase] = true
	s.order = append(s.order, phase)
}

func (s *phaseSet) contains(phase string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[phase]
}

func (s *phaseSet) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

func (s *phaseSet) copy() *phaseSet {
	c := newPhaseSet()
	for _, p := range s.list() {
		c.add(p)
	}
	return c
}

// Project is a fully materialized POM: the effective model plus the
// artifacts, repositories and relationships computed while building it.
type Project struct {
	file          string
	basedir       string
	model         *model.Model
	originalModel *model.Model

	parent         *Project
	parentFile     string
	parentArtifact *artifact.Artifact
	artifact       *artifact.Artifact

	executionRoot bool
	rootDirectory string

	remoteProjectRepositories []*repository.RemoteRepository
	remotePluginRepositories  []*repository.RemoteRepository
	releaseRepository         *repository.RemoteRepository
	snapshotRepository        *repository.RemoteRepository

	dependencyArtifacts []*artifact.Artifact
	resolvedArtifacts   []*artifact.Artifact
	artifactFilter      artifact.Filter
	artifacts           cell[[]*artifact.Artifact]
	artifactMap         cell[map[string]*artifact.Artifact]

	pluginArtifacts      []*artifact.Artifact
	pluginArtifactMap    cell[map[string]*artifact.Artifact]
	reportArtifacts      []*artifact.Artifact
	reportArtifactMap    cell[map[string]*artifact.Artifact]
	extensionArtifacts   []*artifact.Artifact
	extensionArtifactMap cell[map[string]*artifact.Artifact]

	attachedArtifacts []*artifact.Artifact
	collectedProjects []*Project
	projectReferences map[string]*Project

	compileSourceRoots     []string
	testCompileSourceRoots []string
	scriptSourceRoots      []string

	managedVersionMap func() map[string]*artifact.Artifact

	activeProfiles     []model.Profile
	injectedProfileIDs map[string][]string
	context            map[string]any
	lifecyclePhases    *phaseSet
}

// New creates a placeholder project with coordinates unknown:empty-project:0
func New() *Project {
	return NewFromModel(&model.Model{
		ModelVersion: "4.0.0",
		GroupID:      EmptyProjectGroupID,
		ArtifactID:   EmptyProjectArtifactID,
		Version:      EmptyProjectVersion,
	})
}

// NewFromModel creates a project around an existing model
func NewFromModel(m *model.Model) *Project {
	return &Project{
		model:              m,
		projectReferences:  make(map[string]*Project),
		injectedProfileIDs: make(map[string][]string),
		context:            make(map[string]any),
		lifecyclePhases:    newPhaseSet(),
	}
}

// ID returns groupId:artifactId:version, the reactor identity of a project
func (p *Project) ID() string {
	return model.ModelID(p.GroupID(), p.ArtifactID(), p.Version())
}

// GroupID returns the model groupId, falling back to the parent reference
func (p *Project) GroupID() string {
	return p.model.EffectiveGroupID()
}

// ArtifactID returns the model artifactId
func (p *Project) ArtifactID() string {
	return p.model.ArtifactID
}

// Version returns the model version, falling back to the parent reference
func (p *Project) Version() string {
	return p.model.EffectiveVersion()
}

// Packaging returns the model packaging, jar when unset
func (p *Project) Packaging() string {
	return p.model.PackagingOrDefault()
}

// Name returns the display name of the project
func (p *Project) Name() string {
	if p.model.Name != "" {
		return p.model.Name
	}
	return "Unnamed - " + p.ID()
}

func (p *Project) String() string {
	if p.file == "" {
		return "Project: " + p.ID()
	}
	return fmt.Sprintf("Project: %s @ %s", p.ID(), p.file)
}

// Model returns the effective model
func (p *Project) Model() *model.Model { return p.model }

// SetModel replaces the effective model
func (p *Project) SetModel(m *model.Model) { p.model = m }

// OriginalModel returns the raw model as read from the POM
func (p *Project) OriginalModel() *model.Model { return p.originalModel }

// SetOriginalModel sets the raw model
func (p *Project) SetOriginalModel(m *model.Model) { p.originalModel = m }

// File returns the POM file, empty for projects without one
func (p *Project) File() string { return p.file }

// SetFile sets the POM file and derives the base directory from it
func (p *Project) SetFile(file string) {
	p.file = file
	if file == "" {
		p.basedir = ""
		return
	}
	p.basedir = filepath.Dir(file)
}

// Basedir returns the directory of the POM file
func (p *Project) Basedir() string { return p.basedir }

// Parent returns the parent project, nil when it could not be built
func (p *Project) Parent() *Project { return p.parent }

// SetParent sets the parent project
func (p *Project) SetParent(parent *Project) { p.parent = parent }

// HasParent reports whether a parent project is set
func (p *Project) HasParent() bool { return p.parent != nil }

// ParentFile returns the POM file of the parent
func (p *Project) ParentFile() string { return p.parentFile }

// SetParentFile sets the POM file of the parent
func (p *Project) SetParentFile(file string) { p.parentFile = file }

// ParentArtifact returns the artifact of the parent POM
func (p *Project) ParentArtifact() *artifact.Artifact { return p.parentArtifact }

// SetParentArtifact sets the artifact of the parent POM
func (p *Project) SetParentArtifact(a *artifact.Artifact) { p.parentArtifact = a }

// Artifact returns the main artifact of the project
func (p *Project) Artifact() *artifact.Artifact { return p.artifact }

// SetArtifact sets the main artifact of the project
func (p *Project) SetArtifact(a *artifact.Artifact) { p.artifact = a }

// IsExecutionRoot reports whether the project is the one the build was started from
func (p *Project) IsExecutionRoot() bool { return p.executionRoot }

// SetExecutionRoot marks the project as the build's starting point
func (p *Project) SetExecutionRoot(root bool) { p.executionRoot = root }

// RootDirectory returns the directory of the multi-module build the project
// belongs to, empty when unknown
func (p *Project) RootDirectory() string { return p.rootDirectory }

// SetRootDirectory sets the root directory of the multi-module build
func (p *Project) SetRootDirectory(dir string) { p.rootDirectory = dir }

// RemoteProjectRepositories returns repositories used for dependencies
func (p *Project) RemoteProjectRepositories() []*repository.RemoteRepository {
	return slices.Clone(p.remoteProjectRepositories)
}

// SetRemoteProjectRepositories sets the repositories used for dependencies
func (p *Project) SetRemoteProjectRepositories(repos []*repository.RemoteRepository) {
	p.remoteProjectRepositories = slices.Clone(repos)
}

// RemotePluginRepositories returns repositories used for plugins
func (p *Project) RemotePluginRepositories() []*repository.RemoteRepository {
	return slices.Clone(p.remotePluginRepositories)
}

// SetRemotePluginRepositories sets the repositories used for plugins
func (p *Project) SetRemotePluginRepositories(repos []*repository.RemoteRepository) {
	p.remotePluginRepositories = slices.Clone(repos)
}

// ReleaseArtifactRepository returns the release distribution repository
func (p *Project) ReleaseArtifactRepository() *repository.RemoteRepository {
	return p.releaseRepository
}

// SetReleaseArtifactRepository sets the release distribution repository
func (p *Project) SetReleaseArtifactRepository(r *repository.RemoteRepository) {
	p.releaseRepository = r
}

// SnapshotArtifactRepository returns the snapshot distribution repository
func (p *Project) SnapshotArtifactRepository() *repository.RemoteRepository {
	return p.snapshotRepository
}

// SetSnapshotArtifactRepository sets the snapshot distribution repository
func (p *Project) SetSnapshotArtifactRepository(r *repository.RemoteRepository) {
	p.snapshotRepository = r
}

// DistributionManagementArtifactRepository returns the repository the main
// artifact deploys to: the snapshot repository for snapshots when one is set,
// the release repository otherwise.
func (p *Project) DistributionManagementArtifactRepository() *repository.RemoteRepository {
	if p.artifact != nil && p.artifact.IsSnapshot() && p.snapshotRepository != nil {
		return p.snapshotRepository
	}
	return p.releaseRepository
}

// DependencyArtifacts returns the direct dependency artifacts
func (p *Project) DependencyArtifacts() []*artifact.Artifact {
	return slices.Clone(p.dependencyArtifacts)
}

// SetDependencyArtifacts sets the direct dependency artifacts
func (p *Project) SetDependencyArtifacts(arts []*artifact.Artifact) {
	p.dependencyArtifacts = slices.Clone(arts)
}

// SetResolvedArtifacts sets the full resolution result. The filtered artifact
// view and its map are recomputed on next access.
func (p *Project) SetResolvedArtifacts(arts []*artifact.Artifact) {
	if arts == nil {
		arts = []*artifact.Artifact{}
	}
	p.resolvedArtifacts = slices.Clone(arts)
	p.artifacts.reset()
	p.artifactMap.reset()
}

// ResolvedArtifacts returns the unfiltered resolution result
func (p *Project) ResolvedArtifacts() []*artifact.Artifact {
	return slices.Clone(p.resolvedArtifacts)
}

// SetArtifactFilter sets the filter applied to resolved artifacts
func (p *Project) SetArtifactFilter(f artifact.Filter) {
	p.artifactFilter = f
	p.artifacts.reset()
	p.artifactMap.reset()
}

// ArtifactFilter returns the filter applied to resolved artifacts
func (p *Project) ArtifactFilter() artifact.Filter {
	return p.artifactFilter
}

// SetArtifacts overrides the filtered artifact view directly
func (p *Project) SetArtifacts(arts []*artifact.Artifact) {
	p.artifacts.set(slices.Clone(arts))
	p.artifactMap.reset()
}

// Artifacts returns the resolved artifacts accepted by the artifact filter.
// Without a filter or a resolution result the view is empty.
func (p *Project) Artifacts() []*artifact.Artifact {
	arts := p.artifacts.get(func() []*artifact.Artifact {
		out := []*artifact.Artifact{}
		if p.artifactFilter == nil || p.resolvedArtifacts == nil {
			return out
		}
		for _, a := range p.resolvedArtifacts {
			if p.artifactFilter.Include(a) {
				out = append(out, a)
			}
		}
		return out
	})
	return slices.Clone(arts)
}

// ArtifactMap indexes Artifacts by groupId:artifactId
func (p *Project) ArtifactMap() map[string]*artifact.Artifact {
	return maps.Clone(p.artifactMap.get(func() map[string]*artifact.Artifact {
		return artifact.MapByVersionlessID(p.Artifacts())
	}))
}

// PluginArtifacts returns the build plugin artifacts
func (p *Project) PluginArtifacts() []*artifact.Artifact {
	return slices.Clone(p.pluginArtifacts)
}

// SetPluginArtifacts sets the build plugin artifacts
func (p *Project) SetPluginArtifacts(arts []*artifact.Artifact) {
	p.pluginArtifacts = slices.Clone(arts)
	p.pluginArtifactMap.reset()
}

// PluginArtifactMap indexes PluginArtifacts by groupId:artifactId
func (p *Project) PluginArtifactMap() map[string]*artifact.Artifact {
	return maps.Clone(p.pluginArtifactMap.get(func() map[string]*artifact.Artifact {
		return artifact.MapByVersionlessID(p.pluginArtifacts)
	}))
}

// ReportArtifacts returns the reporting plugin artifacts
func (p *Project) ReportArtifacts() []*artifact.Artifact {
	return slices.Clone(p.reportArtifacts)
}

// SetReportArtifacts sets the reporting plugin artifacts
func (p *Project) SetReportArtifacts(arts []*artifact.Artifact) {
	p.reportArtifacts = slices.Clone(arts)
	p.reportArtifactMap.reset()
}

// ReportArtifactMap indexes ReportArtifacts by groupId:artifactId
func (p *Project) ReportArtifactMap() map[string]*artifact.Artifact {
	return maps.Clone(p.reportArtifactMap.get(func() map[string]*artifact.Artifact {
		return artifact.MapByVersionlessID(p.reportArtifacts)
	}))
}

// ExtensionArtifacts returns the build extension artifacts
func (p *Project) ExtensionArtifacts() []*artifact.Artifact {
	return slices.Clone(p.extensionArtifacts)
}

// SetExtensionArtifacts sets the build extension artifacts
func (p *Project) SetExtensionArtifacts(arts []*artifact.Artifact) {
	p.extensionArtifacts = slices.Clone(arts)
	p.extensionArtifactMap.reset()
}

// ExtensionArtifactMap indexes ExtensionArtifacts by groupId:artifactId
func (p *Project) ExtensionArtifactMap() map[string]*artifact.Artifact {
	return maps.Clone(p.extensionArtifactMap.get(func() map[string]*artifact.Artifact {
		return artifact.MapByVersionlessID(p.extensionArtifacts)
	}))
}

// AttachedArtifacts returns secondary artifacts produced by the build
func (p *Project) AttachedArtifacts() []*artifact.Artifact {
	return slices.Clone(p.attachedArtifacts)
}

// AddAttachedArtifact attaches a secondary artifact
func (p *Project) AddAttachedArtifact(a *artifact.Artifact) {
	p.attachedArtifacts = append(p.attachedArtifacts, a)
}

// CollectedProjects returns the modules collected below an aggregator
func (p *Project) CollectedProjects() []*Project {
	return slices.Clone(p.collectedProjects)
}

// SetCollectedProjects sets the modules collected below an aggregator
func (p *Project) SetCollectedProjects(projects []*Project) {
	p.collectedProjects = slices.Clone(projects)
}

// AddProjectReference records a reactor project this project refers to
func (p *Project) AddProjectReference(ref *Project) {
	p.projectReferences[ref.ID()] = ref
}

// ProjectReferences returns the referenced reactor projects keyed by id
func (p *Project) ProjectReferences() map[string]*Project {
	return maps.Clone(p.projectReferences)
}

// CompileSourceRoots returns the main source roots
func (p *Project) CompileSourceRoots() []string {
	return slices.Clone(p.compileSourceRoots)
}

// AddCompileSourceRoot adds a main source root
func (p *Project) AddCompileSourceRoot(path string) {
	p.compileSourceRoots = p.addPath(p.compileSourceRoots, path)
}

// TestCompileSourceRoots returns the test source roots
func (p *Project) TestCompileSourceRoots() []string {
	return slices.Clone(p.testCompileSourceRoots)
}

// AddTestCompileSourceRoot adds a test source root
func (p *Project) AddTestCompileSourceRoot(path string) {
	p.testCompileSourceRoots = p.addPath(p.testCompileSourceRoots, path)
}

// ScriptSourceRoots returns the script source roots
func (p *Project) ScriptSourceRoots() []string {
	return slices.Clone(p.scriptSourceRoots)
}

// AddScriptSourceRoot adds a script source root
func (p *Project) AddScriptSourceRoot(path string) {
	p.scriptSourceRoots = p.addPath(p.scriptSourceRoots, path)
}

// addPath resolves a relative path against the base directory and appends it
// unless it is already present
func (p *Project) addPath(paths []string, path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return paths
	}
	switch {
	case filepath.IsAbs(path):
		path = filepath.Clean(path)
	case path == ".":
		path = p.basedir
	default:
		path = filepath.Join(p.basedir, path)
	}
	if slices.Contains(paths, path) {
		return paths
	}
	return append(paths, path)
}

// SetManagedVersionMap sets a fixed managed version map
func (p *Project) SetManagedVersionMap(m map[string]*artifact.Artifact) {
	p.managedVersionMap = func() map[string]*artifact.Artifact { return m }
}

// SetManagedVersionMapSupplier installs a function computing the managed
// version map. It runs at most once, on first access.
func (p *Project) SetManagedVersionMapSupplier(supplier func() map[string]*artifact.Artifact) {
	p.managedVersionMap = sync.OnceValue(supplier)
}

// ManagedVersionMap returns the managed dependency artifacts keyed by
// management key, nil when none was set
func (p *Project) ManagedVersionMap() map[string]*artifact.Artifact {
	if p.managedVersionMap == nil {
		return nil
	}
	return p.managedVersionMap()
}

// ActiveProfiles returns the profiles active for this project
func (p *Project) ActiveProfiles() []model.Profile {
	return slices.Clone(p.activeProfiles)
}

// SetActiveProfiles sets the profiles active for this project
func (p *Project) SetActiveProfiles(profiles []model.Profile) {
	p.activeProfiles = slices.Clone(profiles)
}

// SetInjectedProfileIDs records the profile ids activated for a model id or
// for ExternalProfileSource
func (p *Project) SetInjectedProfileIDs(source string, ids []string) {
	if ids == nil {
		delete(p.injectedProfileIDs, source)
		return
	}
	p.injectedProfileIDs[source] = slices.Clone(ids)
}

// InjectedProfileIDs returns the profile ids by source
func (p *Project) InjectedProfileIDs() map[string][]string {
	out := make(map[string][]string, len(p.injectedProfileIDs))
	for k, v := range p.injectedProfileIDs {
		out[k] = slices.Clone(v)
	}
	return out
}

// SetContextValue stores a value for the lifetime of the project
func (p *Project) SetContextValue(key string, value any) {
	if value == nil {
		delete(p.context, key)
		return
	}
	p.context[key] = value
}

// ContextValue returns a stored value or nil
func (p *Project) ContextValue(key string) any {
	return p.context[key]
}

// AddLifecyclePhase records that a lifecycle phase ran
func (p *Project) AddLifecyclePhase(phase string) {
	p.lifecyclePhases.add(phase)
}

// HasLifecyclePhase reports whether a lifecycle phase ran
func (p *Project) HasLifecyclePhase(phase string) bool {
	return p.lifecyclePhases.contains(phase)
}

// LifecyclePhases returns the recorded phases in order
func (p *Project) LifecyclePhases() []string {
	return p.lifecyclePhases.list()
}

// Dependencies returns the effective model dependencies
func (p *Project) Dependencies() []model.Dependency {
	return p.model.Dependencies
}

// BuildPlugins returns the effective build plugins
func (p *Project) BuildPlugins() []model.Plugin {
	return p.model.PluginsOrEmpty()
}

// Modules returns the declared module paths
func (p *Project) Modules() []string {
	return p.model.Modules
}

// Clone returns a copy whose per-build state can be changed without
// affecting the original. Artifact sets are shared and never modified in
// place; source roots, attached artifacts, the model and the main artifact
// are copied.
func (p *Project) Clone() *Project {
	c := &Project{
		file:          p.file,
		basedir:       p.basedir,
		model:         p.model.Clone(),
		originalModel: p.originalModel,

		parent:         p.parent,
		parentFile:     p.parentFile,
		parentArtifact: p.parentArtifact,
		executionRoot:  p.executionRoot,
		rootDirectory:  p.rootDirectory,

		remoteProjectRepositories: slices.Clip(p.remoteProjectRepositories),
		remotePluginRepositories:  slices.Clip(p.remotePluginRepositories),
		releaseRepository:         p.releaseRepository,
		snapshotRepository:        p.snapshotRepository,

		dependencyArtifacts: slices.Clip(p.dependencyArtifacts),
		resolvedArtifacts:   slices.Clip(p.resolvedArtifacts),
		artifactFilter:      p.artifactFilter,
		pluginArtifacts:     slices.Clip(p.pluginArtifacts),
		reportArtifacts:     slices.Clip(p.reportArtifacts),
		extensionArtifacts:  slices.Clip(p.extensionArtifacts),

		attachedArtifacts: slices.Clone(p.attachedArtifacts),
		collectedProjects: slices.Clip(p.collectedProjects),
		projectReferences: maps.Clone(p.projectReferences),

		compileSourceRoots:     slices.Clone(p.compileSourceRoots),
		testCompileSourceRoots: slices.Clone(p.testCompileSourceRoots),
		scriptSourceRoots:      slices.Clone(p.scriptSourceRoots),

		managedVersionMap:  p.managedVersionMap,
		activeProfiles:     slices.Clip(p.activeProfiles),
		injectedProfileIDs: p.InjectedProfileIDs(),
		context:            maps.Clone(p.context),
		lifecyclePhases:    p.lifecyclePhases.copy(),
	}
	if p.artifacts.valid {
		c.artifacts.set(slices.Clip(p.artifacts.value))
	}
	if p.artifact != nil {
		c.artifact = p.artifact.Copy()
	}
	return c
}
