package modelbuilder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ritzau/pomreactor/pkg/model"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_\-.]+$`)

// validator reports model problems according to a validation level
type validator struct {
	level    ValidationLevel
	source   string
	modelID  string
	problems *model.Problems
}

func (v *validator) add(sev model.Severity, ver model.Version, format string, args ...any) {
	v.problems.Add(model.Problem{
		Message:  fmt.Sprintf(format, args...),
		Severity: sev,
		Version:  ver,
		Source:   v.source,
		ModelID:  v.modelID,
	})
}

// severityFrom returns ERROR at or above errorLevel, otherwise WARNING
func (v *validator) severityFrom(errorLevel ValidationLevel) model.Severity {
	if v.level >= errorLevel {
		return model.SeverityError
	}
	return model.SeverityWarning
}

// validateRaw checks a model as read, before inheritance
func (v *validator) validateRaw(m *model.Model) {
	if m.Parent != nil {
		if m.Parent.GroupID == "" {
			v.add(model.SeverityFatal, model.VersionBase, "'parent.groupId' is missing.")
		}
		if m.Parent.ArtifactID == "" {
			v.add(model.SeverityFatal, model.VersionBase, "'parent.artifactId' is missing.")
		}
		if m.Parent.Version == "" {
			v.add(model.SeverityFatal, model.VersionBase, "'parent.version' is missing.")
		}
		if m.Parent.GroupID == m.GroupID && m.Parent.ArtifactID == m.ArtifactID && m.GroupID != "" {
			v.add(model.SeverityFatal, model.VersionBase,
				"The parent element cannot have the same groupId:artifactId as the project.")
		}
	}
	if v.level == ValidationMinimal {
		return
	}

	if m.ModelVersion != "" && m.ModelVersion != "4.0.0" {
		v.add(model.SeverityError, model.Version20,
			"'modelVersion' must be one of [4.0.0] but is '%s'.", m.ModelVersion)
	}

	seen := make(map[string]bool)
	for _, p := range m.Profiles {
		if seen[p.ID] {
			v.add(model.SeverityError, model.Version20, "'profiles.profile.id' must be unique but found duplicate profile with id %s", p.ID)
		}
		seen[p.ID] = true
	}
}

// validateEffective checks an assembled model
func (v *validator) validateEffective(m *model.Model) {
	v.required("groupId", m.GroupID)
	v.required("artifactId", m.ArtifactID)
	v.required("version", m.Version)
	if v.level == ValidationMinimal {
		return
	}

	v.validID("groupId", m.GroupID)
	v.validID("artifactId", m.ArtifactID)

	if len(m.Modules) > 0 && m.PackagingOrDefault() != "pom" {
		v.add(model.SeverityError, model.VersionBase,
			"Aggregator projects require 'pom' as packaging but is '%s'.", m.PackagingOrDefault())
	}

	v.validateDependencies("dependencies.dependency", m.Dependencies, true)
	v.validateDependencies("dependencyManagement.dependencies.dependency", m.ManagedDependencies(), false)

	seenPlugins := make(map[string]bool)
	for _, p := range m.PluginsOrEmpty() {
		key := p.Key()
		if seenPlugins[key] {
			v.add(v.severityFrom(Validation31), model.Version20,
				"'build.plugins.plugin.(groupId:artifactId)' must be unique but found duplicate declaration of plugin %s", key)
		}
		seenPlugins[key] = true
		if p.Version == "" {
			v.add(model.SeverityWarning, model.Version20,
				"'build.plugins.plugin.version' for %s is missing.", key)
		}
	}

	for _, r := range m.Repositories {
		v.validateRepository("repositories.repository", r)
	}
	for _, r := range m.PluginRepositories {
		v.validateRepository("pluginRepositories.pluginRepository", r)
	}
}

func (v *validator) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(model.SeverityError, model.VersionBase, "'%s' is missing.", field)
	}
}

func (v *validator) validID(field, value string) {
	if value != "" && !strings.Contains(value, "${") && !validID.MatchString(value) {
		v.add(model.SeverityError, model.Version20,
			"'%s' with value '%s' does not match a valid id pattern.", field, value)
	}
}

func (v *validator) validateDependencies(prefix string, deps []model.Dependency, requireVersion bool) {
	seen := make(map[string]bool, len(deps))
	for _, d := range deps {
		key := d.ManagementKey()
		if seen[key] {
			v.add(v.severityFrom(Validation31), model.Version20,
				"'%s.(groupId:artifactId:type:classifier)' must be unique: %s -> duplicate declaration of version %s",
				prefix, key, d.Version)
		}
		seen[key] = true

		if d.GroupID == "" {
			v.add(model.SeverityError, model.VersionBase, "'%s.groupId' for %s is missing.", prefix, key)
		}
		if d.ArtifactID == "" {
			v.add(model.SeverityError, model.VersionBase, "'%s.artifactId' for %s is missing.", prefix, key)
		}
		if requireVersion && d.Version == "" {
			v.add(model.SeverityError, model.VersionBase, "'%s.version' for %s is missing.", prefix, key)
		}

		if d.Scope == "system" {
			if d.SystemPath == "" {
				v.add(model.SeverityError, model.VersionBase, "'%s.systemPath' for %s is missing.", prefix, key)
			}
		} else if d.SystemPath != "" {
			v.add(model.SeverityError, model.VersionBase,
				"'%s.systemPath' for %s must be omitted. This field may only be specified for a dependency with system scope.", prefix, key)
		}

		if d.Scope == "import" && requireVersion {
			v.add(v.severityFrom(Validation30), model.Version20,
				"'%s.scope' for %s declares usage of deprecated 'import' scope.", prefix, key)
		}
	}
}

func (v *validator) validateRepository(prefix string, r model.Repository) {
	if r.ID == "" {
		v.add(model.SeverityError, model.Version20, "'%s.id' is missing.", prefix)
	}
	if r.URL == "" {
		v.add(model.SeverityError, model.Version20, "'%s.url' for %s is missing.", prefix, r.ID)
	}
}
