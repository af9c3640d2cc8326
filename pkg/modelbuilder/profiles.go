package modelbuilder

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ritzau/pomreactor/pkg/model"
)

// ProfileSourcePOM marks profiles declared in a POM
const ProfileSourcePOM = "pom"

// activation holds the inputs profile activation is evaluated against
type activation struct {
	active   map[string]bool
	inactive map[string]bool
	props    map[string]string
	basedir  string
}

func newActivation(req *Request, basedir string) *activation {
	a := &activation{
		active:   make(map[string]bool),
		inactive: make(map[string]bool),
		props:    make(map[string]string),
		basedir:  basedir,
	}
	for _, id := range req.ActiveProfileIDs {
		a.active[id] = true
	}
	for _, id := range req.InactiveProfileIDs {
		a.inactive[id] = true
	}
	for k, v := range req.SystemProperties {
		a.props[k] = v
	}
	for k, v := range req.UserProperties {
		a.props[k] = v
	}
	return a
}

// selectProfiles returns the active profiles in declaration order. Profiles
// active by default only apply when nothing else in the list is active.
func (a *activation) selectProfiles(profiles []model.Profile, source string, problems *model.Problems) []model.Profile {
	var active, defaults []model.Profile
	for _, p := range profiles {
		if a.inactive[p.ID] {
			continue
		}
		p.Source = source
		switch {
		case a.active[p.ID]:
			active = append(active, p)
		case p.Activation == nil:
		case a.matches(p, problems):
			active = append(active, p)
		case p.Activation.ActiveByDefault:
			defaults = append(defaults, p)
		}
	}
	if len(active) == 0 {
		return defaults
	}
	return active
}

// matches reports whether every activation condition of p holds. A profile
// with only activeByDefault set has no conditions and does not match.
func (a *activation) matches(p model.Profile, problems *model.Problems) bool {
	act := p.Activation
	conditions := 0

	if prop := act.Property; prop != nil && prop.Name != "" {
		conditions++
		if !a.propertyMatches(prop) {
			return false
		}
	}

	if file := act.File; file != nil && (file.Exists != "" || file.Missing != "") {
		conditions++
		ok, err := a.fileMatches(file)
		if err != nil {
			problems.Add(model.Problem{
				Message:  "Failed to interpolate file location for profile " + p.ID + ": " + err.Error(),
				Severity: model.SeverityError,
				Version:  model.VersionBase,
			})
			return false
		}
		if !ok {
			return false
		}
	}
	return conditions > 0
}

func (a *activation) propertyMatches(prop *model.ActivationProperty) bool {
	name, negated := strings.CutPrefix(prop.Name, "!")
	value, present := a.props[name]

	if prop.Value == "" {
		return present != negated
	}
	want, notEqual := strings.CutPrefix(prop.Value, "!")
	return (value == want) != notEqual
}

func (a *activation) fileMatches(file *model.ActivationFile) (bool, error) {
	path, missing := file.Exists, false
	if path == "" {
		path, missing = file.Missing, true
	}
	path = strings.NewReplacer("${basedir}", a.basedir, "${project.basedir}", a.basedir).Replace(path)
	if strings.Contains(path, "${") {
		return false, errUnresolvedExpression(path)
	}
	if !filepath.IsAbs(path) && a.basedir != "" {
		path = filepath.Join(a.basedir, path)
	}
	_, err := os.Stat(path)
	return (err == nil) != missing, nil
}

type unresolvedExpressionError string

func (e unresolvedExpressionError) Error() string {
	return "unresolved expression in " + string(e)
}

func errUnresolvedExpression(s string) error {
	return unresolvedExpressionError(s)
}

// injectProfile overlays a profile onto a model, the profile winning
func injectProfile(m *model.Model, p model.Profile) {
	for _, mod := range p.Modules {
		if !slices.Contains(m.Modules, mod) {
			m.Modules = append(m.Modules, mod)
		}
	}
	m.Properties = mergeProperties(p.Properties, m.Properties)

	if p.DependencyManagement != nil {
		var base []model.Dependency
		if m.DependencyManagement != nil {
			base = m.DependencyManagement.Dependencies
		}
		m.DependencyManagement = &model.DependencyManagement{
			Dependencies: overlayByKey(base, p.DependencyManagement.Dependencies, dependencyKey, replace[model.Dependency]),
		}
	}
	m.Dependencies = overlayByKey(m.Dependencies, p.Dependencies, dependencyKey, replace[model.Dependency])
	m.Repositories = overlayByKey(m.Repositories, p.Repositories, repositoryKey, replace[model.Repository])
	m.PluginRepositories = overlayByKey(m.PluginRepositories, p.PluginRepositories, repositoryKey, replace[model.Repository])

	if p.Build != nil {
		m.Build = mergeBuild(p.Build, m.Build)
	}
	if p.Reporting != nil {
		m.Reporting = mergeReporting(p.Reporting, m.Reporting)
	}
	if p.DistributionManagement != nil {
		m.DistributionManagement = mergeDistributionManagement(p.DistributionManagement, m.DistributionManagement)
	}
}

func profileIDs(profiles []model.Profile) []string {
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	return ids
}
