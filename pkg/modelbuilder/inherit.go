package modelbuilder

import (
	"path/filepath"
	"strings"

	"github.com/ritzau/pomreactor/pkg/model"
)

// CentralURL is the repository every model inherits from the super POM
const CentralURL = "https://repo.maven.apache.org/maven2"

// superModel returns the implicit root of every lineage
func superModel() *model.Model {
	return &model.Model{
		ModelVersion: "4.0.0",
		Repositories: []model.Repository{{
			ID:        "central",
			Name:      "Central Repository",
			URL:       CentralURL,
			Layout:    "default",
			Snapshots: &model.RepositoryPolicy{Enabled: "false"},
		}},
		PluginRepositories: []model.Repository{{
			ID:        "central",
			Name:      "Central Repository",
			URL:       CentralURL,
			Layout:    "default",
			Snapshots: &model.RepositoryPolicy{Enabled: "false"},
			Releases:  &model.RepositoryPolicy{UpdatePolicy: "never"},
		}},
		Build: &model.Build{
			Directory:             "target",
			OutputDirectory:       "target/classes",
			FinalName:             "${project.artifactId}-${project.version}",
			TestOutputDirectory:   "target/test-classes",
			SourceDirectory:       "src/main/java",
			ScriptSourceDirectory: "src/main/scripts",
			TestSourceDirectory:   "src/test/java",
		},
	}
}

// inherit assembles child on top of parent. Modules, name, packaging and
// profiles are never inherited.
func inherit(child, parent *model.Model) *model.Model {
	out := child.Clone()
	if parent == nil {
		return out
	}

	out.GroupID = orDefault(child.GroupID, parent.GroupID)
	out.Version = orDefault(child.Version, parent.Version)
	out.Description = orDefault(child.Description, parent.Description)
	out.ModelVersion = orDefault(child.ModelVersion, parent.ModelVersion)
	if child.URL == "" && parent.URL != "" {
		out.URL = strings.TrimSuffix(parent.URL, "/") + "/" + child.ArtifactID
	}

	out.Properties = mergeProperties(child.Properties, parent.Properties)
	out.DependencyManagement = mergeDependencyManagement(child.DependencyManagement, parent.DependencyManagement)
	out.Dependencies = mergeByKey(child.Dependencies, parent.Dependencies, dependencyKey)
	out.Repositories = mergeByKey(child.Repositories, parent.Repositories, repositoryKey)
	out.PluginRepositories = mergeByKey(child.PluginRepositories, parent.PluginRepositories, repositoryKey)
	out.Build = mergeBuild(child.Build, parent.Build)
	out.Reporting = mergeReporting(child.Reporting, parent.Reporting)
	out.DistributionManagement = mergeDistributionManagement(child.DistributionManagement, parent.DistributionManagement)
	return out
}

// injectManagement fills in versions and scopes of dependencies from
// dependency management, and plugin versions from plugin management when
// plugins are processed
func injectManagement(m *model.Model, plugins bool) {
	if managed := m.ManagedDependencies(); len(managed) > 0 {
		index := make(map[string]model.Dependency, len(managed))
		for _, d := range managed {
			index[d.ManagementKey()] = d
		}
		for i := range m.Dependencies {
			d := &m.Dependencies[i]
			md, ok := index[d.ManagementKey()]
			if !ok {
				continue
			}
			if d.Version == "" {
				d.Version = md.Version
			}
			if d.Scope == "" {
				d.Scope = md.Scope
			}
			if len(d.Exclusions) == 0 {
				d.Exclusions = md.Exclusions
			}
			if d.SystemPath == "" {
				d.SystemPath = md.SystemPath
			}
		}
	}

	if !plugins || m.Build == nil || m.Build.PluginManagement == nil {
		return
	}
	index := make(map[string]model.Plugin, len(m.Build.PluginManagement.Plugins))
	for _, p := range m.Build.PluginManagement.Plugins {
		index[p.Key()] = p
	}
	for i := range m.Build.Plugins {
		p := &m.Build.Plugins[i]
		if mp, ok := index[p.Key()]; ok {
			*p = mergePlugin(*p, mp)
		}
	}
}

// alignPaths makes build directories absolute against basedir
func alignPaths(m *model.Model, basedir string) {
	if m.Build == nil || basedir == "" {
		return
	}
	align := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(basedir, p)
	}
	b := m.Build
	b.Directory = align(b.Directory)
	b.OutputDirectory = align(b.OutputDirectory)
	b.TestOutputDirectory = align(b.TestOutputDirectory)
	b.SourceDirectory = align(b.SourceDirectory)
	b.ScriptSourceDirectory = align(b.ScriptSourceDirectory)
	b.TestSourceDirectory = align(b.TestSourceDirectory)
}
