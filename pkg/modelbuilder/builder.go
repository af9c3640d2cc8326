package modelbuilder

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ritzau/pomreactor/pkg/artifact"
	"github.com/ritzau/pomreactor/pkg/graph"
	"github.com/ritzau/pomreactor/pkg/logging"
	"github.com/ritzau/pomreactor/pkg/model"
)

// ProfileSourceExternal marks profiles supplied with the request
const ProfileSourceExternal = "external"

// DefaultBuilder reads POMs and assembles effective models: lineage, profile
// activation and injection, inheritance, interpolation, dependency management
// import and injection, and validation. Modules are discovered and built when
// building a project recursively.
type DefaultBuilder struct{}

// NewDefaultBuilder creates a model builder
func NewDefaultBuilder() *DefaultBuilder {
	return &DefaultBuilder{}
}

// buildState is carried through nested builds
type buildState struct {
	aggregators []string // POM files of the enclosing aggregators
	imports     []string // ids of the models importing this one
}

type lineageEntry struct {
	id     string
	raw    *model.Model
	source Source
}

// Build assembles the effective model of req.Source. When the model has
// errors a *BuildError is returned together with the partial result. Errors
// of discovered modules are reported in their own results under Children.
func (b *DefaultBuilder) Build(ctx context.Context, req *Request) (*Result, error) {
	if req.Source == nil {
		return nil, errors.New("model build request has no source")
	}
	return b.build(ctx, req, buildState{})
}

func (b *DefaultBuilder) build(ctx context.Context, req *Request, state buildState) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := newResult(req.Source)
	problems := &result.Problems

	fileModel, err := b.readModel(req, req.Source, problems)
	if err != nil {
		return result, &BuildError{Result: result}
	}
	result.FileModel = fileModel

	level := req.ValidationLevel
	if req.Type == RequestConsumerParent {
		level = ValidationMinimal
	}
	v := &validator{level: level, source: req.Source.Location(), modelID: fileModel.ID(), problems: problems}
	v.validateRaw(fileModel)
	if problems.HasFatal() {
		return result, &BuildError{ModelID: fileModel.ID(), Result: result}
	}

	lineage := b.readLineage(ctx, req, fileModel, result)
	if problems.HasFatal() {
		return result, &BuildError{ModelID: fileModel.ID(), Result: result}
	}
	if len(lineage) > 1 {
		result.ParentModel = lineage[1].raw
	}

	basedir := basedirOf(req.Source)
	effective := b.assemble(req, lineage, basedir, result)

	newInterpolator(effective, basedir, req, problems).interpolate()
	b.importManagement(ctx, req, effective, problems, append(slices.Clone(state.imports), effective.ID()))
	injectManagement(effective, req.ProcessPlugins)
	alignPaths(effective, basedir)

	if req.Listener != nil {
		e := &Event{Model: effective, Request: req, Problems: problems}
		req.Listener.BuildExtensionsAssembled(ctx, e)
		effective = e.Model
	}

	v.modelID = effective.ID()
	v.validateEffective(effective)
	result.EffectiveModel = effective

	if req.Type == RequestBuildProject && req.Recursive {
		if fb, ok := req.Source.(FileBacked); ok {
			b.discoverModules(ctx, req, fb.File(), result, state)
		}
	}

	logging.Debug("Built effective model", "model", effective.ID(), "source", req.Source.Location(),
		"type", req.Type, "problems", len(result.Problems))

	if problems.HasErrors() {
		return result, &BuildError{ModelID: effective.ID(), Result: result}
	}
	return result, nil
}

func basedirOf(src Source) string {
	if fb, ok := src.(FileBacked); ok {
		return filepath.Dir(fb.File())
	}
	return ""
}

// readModel parses a source, going through the request cache when the source
// can be cached
func (b *DefaultBuilder) readModel(req *Request, src Source, problems *model.Problems) (*model.Model, error) {
	key := ""
	if req.Cache != nil {
		if key = cacheKey(src); key != "" {
			if m, ok := req.Cache.Get(key); ok {
				return m, nil
			}
		}
	}

	rc, err := src.Open()
	if err != nil {
		problems.Add(model.Problem{
			Message:  fmt.Sprintf("Non-readable POM %s: %v", src.Location(), err),
			Severity: model.SeverityFatal,
			Version:  model.VersionBase,
			Source:   src.Location(),
			Err:      err,
		})
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err == nil {
		var m *model.Model
		if m, err = model.ParseModel(data); err == nil {
			if fb, ok := src.(FileBacked); ok {
				m.PomFile = fb.File()
			}
			if key != "" {
				req.Cache.Put(key, m)
			}
			return m, nil
		}
	}

	p := model.Problem{
		Message:  fmt.Sprintf("Non-parseable POM %s: %v", src.Location(), err),
		Severity: model.SeverityFatal,
		Version:  model.VersionBase,
		Source:   src.Location(),
		Err:      err,
	}
	var syntaxErr *xml.SyntaxError
	if req.LocationTracking && errors.As(err, &syntaxErr) {
		p.Line = syntaxErr.Line
	}
	problems.Add(p)
	return nil, err
}

// readLineage walks from the file model up through its parents. Each model's
// repositories are made available to the resolver before its parent is
// resolved.
func (b *DefaultBuilder) readLineage(ctx context.Context, req *Request, fileModel *model.Model, result *Result) []lineageEntry {
	problems := &result.Problems
	parents := graph.New()

	var lineage []lineageEntry
	current, src := fileModel, req.Source
	for current != nil {
		id := current.ID()
		lineage = append(lineage, lineageEntry{id: id, raw: current, source: src})
		result.ModelIDs = append(result.ModelIDs, id)
		result.rawModels[id] = current

		profiles := newActivation(req, basedirOf(src)).selectProfiles(current.Profiles, ProfileSourcePOM, problems)
		result.activePOMProfiles[id] = profiles
		b.addRepositories(req, current, profiles, problems)

		if current.Parent == nil {
			break
		}
		parent, parentSrc := b.readParent(ctx, req, current, src, problems)
		if parent == nil {
			break
		}
		if err := parents.AddEdge(id, parent.ID()); err != nil {
			var cycle *graph.CycleDetectedError
			errors.As(err, &cycle)
			problems.Add(model.Problem{
				Message:  "The parents form a cycle: " + strings.Join(cycle.Cycle, " -> "),
				Severity: model.SeverityFatal,
				Version:  model.VersionBase,
				Source:   src.Location(),
				ModelID:  id,
				Err:      err,
			})
			break
		}
		current, src = parent, parentSrc
	}

	result.ModelIDs = append(result.ModelIDs, "")
	return lineage
}

func (b *DefaultBuilder) addRepositories(req *Request, m *model.Model, profiles []model.Profile, problems *model.Problems) {
	if req.Resolver == nil {
		return
	}
	repos := slices.Clone(m.Repositories)
	for _, p := range profiles {
		repos = append(repos, p.Repositories...)
	}
	for _, r := range repos {
		if err := req.Resolver.AddRepository(r, false); err != nil {
			problems.Add(model.Problem{
				Message:  fmt.Sprintf("Invalid repository %s: %v", r.ID, err),
				Severity: model.SeverityError,
				Version:  model.VersionBase,
				ModelID:  m.ID(),
				Err:      err,
			})
		}
	}
}

// readParent locates the parent of child, first through relativePath for
// local projects, then through the resolver
func (b *DefaultBuilder) readParent(ctx context.Context, req *Request, child *model.Model, childSrc Source, problems *model.Problems) (*model.Model, Source) {
	ref := child.Parent
	if fb, ok := childSrc.(FileBacked); ok {
		if m, src := b.readLocalParent(req, ref, fb.File(), problems); m != nil {
			return m, src
		}
	}

	if req.Resolver == nil {
		problems.Add(model.Problem{
			Message:  fmt.Sprintf("Non-resolvable parent POM %s for %s: no resolver available", ref.ID(), child.ID()),
			Severity: model.SeverityFatal,
			Version:  model.VersionBase,
			Source:   childSrc.Location(),
			ModelID:  child.ID(),
		})
		return nil, nil
	}

	resolved := *ref
	src, err := req.Resolver.ResolveParent(ctx, &resolved)
	if err != nil {
		problems.Add(model.Problem{
			Message:  fmt.Sprintf("Non-resolvable parent POM %s for %s: %v", ref.ID(), child.ID(), err),
			Severity: model.SeverityFatal,
			Version:  model.VersionBase,
			Source:   childSrc.Location(),
			ModelID:  child.ID(),
			Err:      err,
		})
		return nil, nil
	}

	m, err := b.readModel(req, src, problems)
	if err != nil {
		return nil, nil
	}
	if m.EffectiveGroupID() != ref.GroupID || m.ArtifactID != ref.ArtifactID {
		problems.Add(model.Problem{
			Message: fmt.Sprintf("Parent POM %s resolved for %s declares coordinates %s",
				resolved.ID(), child.ID(), m.ID()),
			Severity: model.SeverityFatal,
			Version:  model.VersionBase,
			Source:   src.Location(),
			ModelID:  child.ID(),
		})
		return nil, nil
	}
	return m, src
}

// readLocalParent returns the model at the parent's relativePath when it is
// the referenced parent
func (b *DefaultBuilder) readLocalParent(req *Request, ref *model.Parent, childFile string, problems *model.Problems) (*model.Model, Source) {
	rel := ref.RelativePathOrDefault()
	if rel == "" {
		return nil, nil
	}
	path := LocatePOM(filepath.Join(filepath.Dir(childFile), filepath.FromSlash(rel)))
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}

	src := &FileSource{Path: path}
	var discard model.Problems
	m, err := b.readModel(req, src, &discard)
	if err != nil {
		return nil, nil
	}

	if m.EffectiveGroupID() != ref.GroupID || m.ArtifactID != ref.ArtifactID || !versionMatches(ref.Version, m.EffectiveVersion()) {
		if ref.RelativePath != nil {
			problems.Add(model.Problem{
				Message: fmt.Sprintf("'parent.relativePath' of POM %s points at %s instead of %s, please verify your project structure",
					childFile, m.ID(), ref.ID()),
				Severity: model.SeverityWarning,
				Version:  model.VersionBase,
				Source:   childFile,
			})
		}
		return nil, nil
	}
	return m, src
}

func versionMatches(spec, version string) bool {
	if !artifact.IsRange(spec) {
		return spec == version
	}
	c, err := artifact.ParseConstraint(spec)
	if err != nil {
		return false
	}
	return c.Contains(version)
}

// assemble injects active profiles and applies inheritance from the super POM
// down to the file model
func (b *DefaultBuilder) assemble(req *Request, lineage []lineageEntry, basedir string, result *Result) *model.Model {
	effective := superModel()
	for i := len(lineage) - 1; i >= 0; i-- {
		entry := lineage[i]
		m := entry.raw.Clone()
		for _, p := range result.activePOMProfiles[entry.id] {
			injectProfile(m, p)
		}
		if i == 0 {
			external := newActivation(req, basedir).selectProfiles(req.Profiles, ProfileSourceExternal, &result.Problems)
			for _, p := range external {
				injectProfile(m, p)
			}
			result.ActiveExternalProfiles = external
		}
		effective = inherit(m, effective)
	}
	return effective
}

// importManagement replaces scope=import type=pom entries of dependency
// management with the dependency management of the referenced POMs. chain
// holds the ids of the importing models, ending with m.
func (b *DefaultBuilder) importManagement(ctx context.Context, req *Request, m *model.Model, problems *model.Problems, chain []string) {
	if m.DependencyManagement == nil {
		return
	}

	var kept []model.Dependency
	var imported []*model.DependencyManagement
	for _, d := range m.DependencyManagement.Dependencies {
		if d.Scope != "import" || d.TypeOrDefault() != "pom" {
			kept = append(kept, d)
			continue
		}
		if dm := b.importPOM(ctx, req, d, problems, chain); dm != nil {
			imported = append(imported, dm)
		}
	}

	dm := &model.DependencyManagement{Dependencies: kept}
	for _, imp := range imported {
		dm = mergeDependencyManagement(dm, imp)
	}
	m.DependencyManagement = dm
}

func (b *DefaultBuilder) importPOM(ctx context.Context, req *Request, d model.Dependency, problems *model.Problems, chain []string) *model.DependencyManagement {
	id := model.ModelID(d.GroupID, d.ArtifactID, d.Version)
	fail := func(format string, args ...any) {
		problems.Add(model.Problem{
			Message:  fmt.Sprintf(format, args...),
			Severity: model.SeverityError,
			Version:  model.VersionBase,
			ModelID:  chain[len(chain)-1],
		})
	}

	if slices.Contains(chain, id) {
		fail("The dependencies of type=pom and with scope=import form a cycle: %s", strings.Join(append(chain, id), " -> "))
		return nil
	}
	if req.Resolver == nil {
		fail("Non-resolvable import POM %s: no resolver available", id)
		return nil
	}

	resolver := req.Resolver.NewCopy()
	src, err := resolver.ResolveDependency(ctx, &d)
	if err != nil {
		fail("Non-resolvable import POM %s: %v", id, err)
		return nil
	}

	importReq := *req
	importReq.Source = src
	importReq.Type = RequestConsumerParent
	importReq.Recursive = false
	importReq.Resolver = resolver
	importReq.Listener = nil
	importReq.Listeners = nil
	importReq.Profiles = nil

	res, err := b.build(ctx, &importReq, buildState{imports: chain})
	if err != nil {
		var buildErr *BuildError
		if errors.As(err, &buildErr) && buildErr.Result != nil {
			for _, p := range buildErr.Result.Problems {
				if p.Severity >= model.SeverityError {
					problems.Add(p)
				}
			}
		}
		fail("Non-resolvable import POM %s: %v", id, err)
		return nil
	}
	return res.EffectiveModel.DependencyManagement
}

// discoverModules builds the modules of an aggregator. Missing modules and
// aggregation cycles are reported on the aggregator.
func (b *DefaultBuilder) discoverModules(ctx context.Context, req *Request, file string, result *Result, state buildState) {
	file = LocatePOM(file)
	aggregators := append(slices.Clone(state.aggregators), file)
	basedir := filepath.Dir(file)

	for _, module := range result.EffectiveModel.Modules {
		module = strings.TrimSpace(module)
		if module == "" {
			continue
		}
		path := LocatePOM(filepath.Join(basedir, filepath.FromSlash(module)))

		if _, err := os.Stat(path); err != nil {
			result.Problems.Add(model.Problem{
				Message:  fmt.Sprintf("Child module %s of %s does not exist", path, file),
				Severity: model.SeverityError,
				Version:  model.VersionBase,
				Source:   file,
				ModelID:  result.ModelID(),
				Err:      err,
			})
			continue
		}

		if i := slices.Index(aggregators, path); i >= 0 {
			cycle := append(slices.Clone(aggregators[i:]), path)
			result.Problems.Add(model.Problem{
				Message:  fmt.Sprintf("Child module %s of %s forms aggregation cycle %s", path, file, strings.Join(cycle, " -> ")),
				Severity: model.SeverityError,
				Version:  model.VersionBase,
				Source:   file,
				ModelID:  result.ModelID(),
			})
			continue
		}

		childReq := *req
		childReq.Source = &FileSource{Path: path}
		if req.Listeners != nil {
			childReq.Listener = req.Listeners(childReq.Source)
		}
		if req.Resolver != nil {
			childReq.Resolver = req.Resolver.NewCopy()
		}

		child, err := b.build(ctx, &childReq, buildState{aggregators: aggregators})
		if child == nil {
			logging.Warn("Failed to build module", "module", path, "error", err)
			continue
		}
		result.Children = append(result.Children, child)
	}
}
