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
	"github.com/ritzau/pomreactor/pkg/logging"
	"github.com/ritzau/pomreactor/pkg/model"
	"github.com/ritzau/pomreactor/pkg/modelbuilder"
	"github.com/ritzau/pomreactor/pkg/project"
	"github.com/ritzau/pomreactor/pkg/repository"
	"github.com/ritzau/pomreactor/pkg/resolver"
)

// initProject fills a project from a model build result. projects holds the
// reactor projects a parent may be taken from; a parent that is not among them
// is built. The returned error means a distribution repository could not be
// created.
func (s *session) initProject(ctx context.Context, proj *project.Project, projects *project.Pool, result *modelbuilder.Result) error {
	m := result.EffectiveModel
	proj.SetModel(m)
	proj.SetOriginalModel(result.RawModel(result.ModelID()))
	proj.SetFile(m.PomFile)

	s.initParent(ctx, proj, projects, result)

	proj.SetArtifact(artifact.New(proj.GroupID(), proj.ArtifactID(), proj.Version(), proj.Packaging()))

	if proj.File() != "" {
		if build := m.Build; build != nil {
			proj.AddScriptSourceRoot(build.ScriptSourceDirectory)
			proj.AddCompileSourceRoot(build.SourceDirectory)
			proj.AddTestCompileSourceRoot(build.TestSourceDirectory)
		}
	}

	proj.SetActiveProfiles(slices.Concat(result.ActivePOMProfiles(result.ModelID()), result.ActiveExternalProfiles))
	proj.SetInjectedProfileIDs(project.ExternalProfileSource, profileIDs(result.ActiveExternalProfiles))
	for _, id := range result.ModelIDs {
		proj.SetInjectedProfileIDs(id, profileIDs(result.ActivePOMProfiles(id)))
	}

	if id := s.findProfilesXML(result); id != "" {
		result.Problems.Add(model.Problem{
			Message:  "Detected profiles.xml alongside " + id + ", this file is no longer supported and was ignored, please use the settings.xml instead",
			Severity: model.SeverityWarning,
			Version:  model.Version30,
			Source:   m.PomFile,
			ModelID:  id,
		})
	}

	proj.SetPluginArtifacts(pluginArtifacts(m))
	proj.SetReportArtifacts(reportArtifacts(m))
	proj.SetExtensionArtifacts(extensionArtifacts(m))

	if managed := m.ManagedDependencies(); len(managed) > 0 {
		proj.SetManagedVersionMapSupplier(func() map[string]*artifact.Artifact {
			out := make(map[string]*artifact.Artifact, len(managed))
			for _, d := range managed {
				out[d.ManagementKey()] = dependencyArtifact(d)
			}
			return out
		})
	} else {
		proj.SetManagedVersionMap(map[string]*artifact.Artifact{})
	}

	if dm := m.DistributionManagement; dm != nil {
		release, err := s.deploymentRepository(dm.Repository)
		if err != nil {
			return fmt.Errorf("failed to create release distribution repository for %s: %w", proj.ID(), err)
		}
		if release != nil {
			proj.SetReleaseArtifactRepository(release)
		}
		snapshot, err := s.deploymentRepository(dm.SnapshotRepository)
		if err != nil {
			return fmt.Errorf("failed to create snapshot distribution repository for %s: %w", proj.ID(), err)
		}
		if snapshot != nil {
			proj.SetSnapshotArtifactRepository(snapshot)
		}
	}
	return nil
}

// deploymentRepository returns nil when the declaration lacks an id or url
func (s *session) deploymentRepository(r *model.DeploymentRepository) (*repository.RemoteRepository, error) {
	if r == nil || strings.TrimSpace(r.ID) == "" || strings.TrimSpace(r.URL) == "" {
		return nil, nil
	}
	repo, err := repository.FromModel(r.Repository)
	if err != nil {
		return nil, err
	}
	return s.b.Manager.Prepare(s.repo, repo), nil
}

// initParent links the project to its parent, taken from projects or built
func (s *session) initParent(ctx context.Context, proj *project.Project, projects *project.Pool, result *modelbuilder.Result) {
	ids := result.ModelIDs
	if len(ids) < 2 || ids[1] == "" {
		return
	}
	parentID := ids[1]
	parentModel := result.RawModel(parentID)
	if parentModel == nil {
		return
	}

	proj.SetParentArtifact(artifact.New(inheritedGroupID(result, 1), parentModel.ArtifactID, inheritedVersion(result, 1), "pom"))

	var parent *project.Project
	if projects != nil {
		parent, _ = projects.Get(parentID)
	}

	if parent == nil {
		// repositories declared by the child are visible to the parent build
		s.request.RemoteRepositories = proj.RemoteProjectRepositories()

		var res *project.BuildingResult
		var err error
		if parentModel.PomFile != "" {
			proj.SetParentFile(parentModel.PomFile)
			res, err = s.build(ctx, &modelbuilder.FileSource{Path: parentModel.PomFile})
		} else {
			res, err = s.buildArtifact(ctx, proj.ParentArtifact(), false)
		}

		if err != nil {
			s.parentFailed(ctx, proj, result, err)
		} else {
			parent = res.Project
		}
	}

	proj.SetParent(parent)
	if proj.ParentFile() == "" && parent != nil {
		proj.SetParentFile(parent.File())
	}
}

func (s *session) parentFailed(ctx context.Context, proj *project.Project, result *modelbuilder.Result, err error) {
	if s.request.ParentPolicy == ParentStrict {
		result.Problems.Add(model.Problem{
			Message:  fmt.Sprintf("Failed to build parent project for %s: %v", proj.ID(), err),
			Severity: model.SeverityError,
			Version:  model.VersionBase,
			Source:   proj.File(),
			ModelID:  result.ModelID(),
			Err:      err,
		})
		return
	}
	if logging.IsDebug() {
		logging.WarnContext(ctx, "Failed to build parent project for "+proj.ID(), "error", err)
	} else {
		logging.WarnContext(ctx, "Failed to build parent project for "+proj.ID())
	}
}

// inheritedGroupID returns the groupId of the lineage member at index,
// falling back to its ancestors
func inheritedGroupID(result *modelbuilder.Result, index int) string {
	for _, id := range result.ModelIDs[index:] {
		if id == "" {
			break
		}
		if m := result.RawModel(id); m != nil && m.GroupID != "" {
			return m.GroupID
		}
	}
	return ""
}

func inheritedVersion(result *modelbuilder.Result, index int) string {
	for _, id := range result.ModelIDs[index:] {
		if id == "" {
			break
		}
		if m := result.RawModel(id); m != nil && m.Version != "" {
			return m.Version
		}
	}
	return ""
}

// findProfilesXML returns the id of the first lineage member with a
// profiles.xml next to its POM
func (s *session) findProfilesXML(result *modelbuilder.Result) string {
	for _, id := range result.ModelIDs {
		m := result.RawModel(id)
		if m == nil || m.PomFile == "" {
			break
		}
		dir := filepath.Dir(m.PomFile)
		found, ok := s.profilesXML[dir]
		if !ok {
			_, err := os.Stat(filepath.Join(dir, "profiles.xml"))
			found = err == nil
			s.profilesXML[dir] = found
		}
		if found {
			return id
		}
	}
	return ""
}

func profileIDs(profiles []model.Profile) []string {
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	return ids
}

func pluginArtifact(groupID, artifactID, version string) *artifact.Artifact {
	if version == "" {
		version = artifact.ReleaseVersion
	}
	return artifact.New(groupID, artifactID, version, "maven-plugin")
}

func pluginArtifacts(m *model.Model) []*artifact.Artifact {
	var out []*artifact.Artifact
	for _, p := range m.PluginsOrEmpty() {
		out = append(out, pluginArtifact(p.GroupIDOrDefault(), p.ArtifactID, p.Version))
	}
	return artifact.Dedupe(out)
}

func reportArtifacts(m *model.Model) []*artifact.Artifact {
	var out []*artifact.Artifact
	for _, p := range m.ReportPluginsOrEmpty() {
		out = append(out, pluginArtifact(p.GroupIDOrDefault(), p.ArtifactID, p.Version))
	}
	return artifact.Dedupe(out)
}

func extensionArtifacts(m *model.Model) []*artifact.Artifact {
	var out []*artifact.Artifact
	for _, e := range m.ExtensionsOrEmpty() {
		version := e.Version
		if version == "" {
			version = artifact.ReleaseVersion
		}
		out = append(out, artifact.New(e.GroupID, e.ArtifactID, version, "jar"))
	}
	return artifact.Dedupe(out)
}

func dependencyArtifact(d model.Dependency) *artifact.Artifact {
	a := artifact.New(d.GroupID, d.ArtifactID, d.Version, d.TypeOrDefault())
	a.Classifier = d.Classifier
	a.Scope = d.Scope
	a.Optional = d.IsOptional()
	return a
}

// resolveDependencies resolves the project's dependencies and stores them on
// the project. A failed resolution still yields its partial result.
func (s *session) resolveDependencies(ctx context.Context, proj *project.Project) project.DependencyResolutionResult {
	result, err := s.b.Dependencies.Resolve(ctx, &resolver.Request{Project: proj, Session: s.repo})
	if err != nil {
		var resErr *resolver.ResolutionError
		if !errors.As(err, &resErr) {
			logging.WarnContext(ctx, "Dependency resolution failed", "project", proj.ID(), "error", err)
			return nil
		}
		logging.DebugContext(ctx, "Using partial dependency resolution", "project", proj.ID(), "error", err)
		result = resErr.Result
	}
	if result == nil {
		logging.WarnContext(ctx, "Dependency resolution returned no result", "project", proj.ID())
		return nil
	}

	var arts []*artifact.Artifact
	if result.Graph != nil {
		arts = flatten(nil, result.Graph.Children)
		// compatibility shim: every artifact points into the local repository,
		// resolved or not
		for _, a := range arts {
			a.File = s.repo.LocalPath(a)
		}
	}
	proj.SetResolvedArtifacts(arts)
	proj.SetArtifacts(arts)
	return result
}

// flatten copies the artifacts of a dependency graph in depth-first order,
// keeping the first occurrence of each id
func flatten(out []*artifact.Artifact, nodes []*resolver.Node) []*artifact.Artifact {
	for _, n := range nodes {
		if n.Artifact != nil {
			out = append(out, n.Artifact.Copy())
		}
		out = flatten(out, n.Children)
	}
	return artifact.Dedupe(out)
}

// readRawModel parses a POM without building it
func readRawModel(file string) (*model.Model, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return model.ParseModel(data)
}
