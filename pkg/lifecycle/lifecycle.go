// Package lifecycle injects the default plugin bindings of a packaging type
// into effective models.
package lifecycle

import (
	"context"
	"slices"

	"github.com/ritzau/pomreactor/pkg/logging"
	"github.com/ritzau/pomreactor/pkg/model"
)

// Injector adds the plugins a packaging binds to the default lifecycle
type Injector interface {
	Inject(ctx context.Context, m *model.Model, problems *model.Problems) *model.Model
}

// Binding binds one plugin goal to a phase
type Binding struct {
	Phase      string
	ArtifactID string
	Version    string
	Goal       string
}

// DefaultBindings lists the bindings of the standard packaging types
var DefaultBindings = map[string][]Binding{
	"pom": {
		{Phase: "install", ArtifactID: "maven-install-plugin", Version: "3.1.2", Goal: "install"},
		{Phase: "deploy", ArtifactID: "maven-deploy-plugin", Version: "3.1.2", Goal: "deploy"},
	},
	"jar": {
		{Phase: "process-resources", ArtifactID: "maven-resources-plugin", Version: "3.3.1", Goal: "resources"},
		{Phase: "compile", ArtifactID: "maven-compiler-plugin", Version: "3.13.0", Goal: "compile"},
		{Phase: "process-test-resources", ArtifactID: "maven-resources-plugin", Version: "3.3.1", Goal: "testResources"},
		{Phase: "test-compile", ArtifactID: "maven-compiler-plugin", Version: "3.13.0", Goal: "testCompile"},
		{Phase: "test", ArtifactID: "maven-surefire-plugin", Version: "3.2.5", Goal: "test"},
		{Phase: "package", ArtifactID: "maven-jar-plugin", Version: "3.4.1", Goal: "jar"},
		{Phase: "install", ArtifactID: "maven-install-plugin", Version: "3.1.2", Goal: "install"},
		{Phase: "deploy", ArtifactID: "maven-deploy-plugin", Version: "3.1.2", Goal: "deploy"},
	},
	"war": {
		{Phase: "process-resources", ArtifactID: "maven-resources-plugin", Version: "3.3.1", Goal: "resources"},
		{Phase: "compile", ArtifactID: "maven-compiler-plugin", Version: "3.13.0", Goal: "compile"},
		{Phase: "process-test-resources", ArtifactID: "maven-resources-plugin", Version: "3.3.1", Goal: "testResources"},
		{Phase: "test-compile", ArtifactID: "maven-compiler-plugin", Version: "3.13.0", Goal: "testCompile"},
		{Phase: "test", ArtifactID: "maven-surefire-plugin", Version: "3.2.5", Goal: "test"},
		{Phase: "package", ArtifactID: "maven-war-plugin", Version: "3.4.0", Goal: "war"},
		{Phase: "install", ArtifactID: "maven-install-plugin", Version: "3.1.2", Goal: "install"},
		{Phase: "deploy", ArtifactID: "maven-deploy-plugin", Version: "3.1.2", Goal: "deploy"},
	},
	"maven-plugin": {
		{Phase: "process-resources", ArtifactID: "maven-resources-plugin", Version: "3.3.1", Goal: "resources"},
		{Phase: "compile", ArtifactID: "maven-compiler-plugin", Version: "3.13.0", Goal: "compile"},
		{Phase: "process-classes", ArtifactID: "maven-plugin-plugin", Version: "3.13.1", Goal: "descriptor"},
		{Phase: "test-compile", ArtifactID: "maven-compiler-plugin", Version: "3.13.0", Goal: "testCompile"},
		{Phase: "test", ArtifactID: "maven-surefire-plugin", Version: "3.2.5", Goal: "test"},
		{Phase: "package", ArtifactID: "maven-jar-plugin", Version: "3.4.1", Goal: "jar"},
		{Phase: "package", ArtifactID: "maven-plugin-plugin", Version: "3.13.1", Goal: "addPluginArtifactMetadata"},
		{Phase: "install", ArtifactID: "maven-install-plugin", Version: "3.1.2", Goal: "install"},
		{Phase: "deploy", ArtifactID: "maven-deploy-plugin", Version: "3.1.2", Goal: "deploy"},
	},
	"ear": {
		{Phase: "generate-resources", ArtifactID: "maven-ear-plugin", Version: "3.3.0", Goal: "generate-application-xml"},
		{Phase: "process-resources", ArtifactID: "maven-resources-plugin", Version: "3.3.1", Goal: "resources"},
		{Phase: "package", ArtifactID: "maven-ear-plugin", Version: "3.3.0", Goal: "ear"},
		{Phase: "install", ArtifactID: "maven-install-plugin", Version: "3.1.2", Goal: "install"},
		{Phase: "deploy", ArtifactID: "maven-deploy-plugin", Version: "3.1.2", Goal: "deploy"},
	},
}

// DefaultInjector injects bindings from a packaging table
type DefaultInjector struct {
	bindings map[string][]Binding
}

// NewDefaultInjector creates an injector over DefaultBindings
func NewDefaultInjector() *DefaultInjector {
	return &DefaultInjector{bindings: DefaultBindings}
}

// NewInjector creates an injector over custom bindings
func NewInjector(bindings map[string][]Binding) *DefaultInjector {
	return &DefaultInjector{bindings: bindings}
}

// Inject returns a copy of m with the packaging's plugins added. Plugins the
// model already declares keep their version; missing goal executions are
// appended. Unknown packaging types are reported as a warning.
func (i *DefaultInjector) Inject(ctx context.Context, m *model.Model, problems *model.Problems) *model.Model {
	packaging := m.PackagingOrDefault()
	bindings, ok := i.bindings[packaging]
	if !ok {
		problems.Add(model.Problem{
			Message:  "Unknown packaging: " + packaging,
			Severity: model.SeverityWarning,
			Version:  model.VersionBase,
			Source:   m.PomFile,
			ModelID:  m.ID(),
		})
		return m
	}

	out := m.Clone()
	build := out.EnsureBuild()
	for _, b := range bindings {
		key := model.DefaultPluginGroupID + ":" + b.ArtifactID
		idx := slices.IndexFunc(build.Plugins, func(p model.Plugin) bool { return p.Key() == key })
		if idx < 0 {
			build.Plugins = append(build.Plugins, model.Plugin{
				GroupID:    model.DefaultPluginGroupID,
				ArtifactID: b.ArtifactID,
				Version:    b.Version,
			})
			idx = len(build.Plugins) - 1
		}

		plugin := &build.Plugins[idx]
		if plugin.Version == "" {
			plugin.Version = b.Version
		}
		execID := "default-" + b.Goal
		if !slices.ContainsFunc(plugin.Executions, func(e model.PluginExecution) bool { return e.ID == execID }) {
			plugin.Executions = append(plugin.Executions, model.PluginExecution{
				ID:    execID,
				Phase: b.Phase,
				Goals: []string{b.Goal},
			})
		}
	}

	logging.DebugContext(ctx, "Injected lifecycle bindings", "model", m.ID(), "packaging", packaging, "bindings", len(bindings))
	return out
}

// Phases returns the phases a packaging binds, in binding order without duplicates
func Phases(packaging string) []string {
	var phases []string
	for _, b := range DefaultBindings[packaging] {
		if !slices.Contains(phases, b.Phase) {
			phases = append(phases, b.Phase)
		}
	}
	return phases
}
