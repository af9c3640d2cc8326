package model

import (
	"encoding/xml"
	"strings"

	"github.com/mitchellh/copystructure"
)

// DefaultPluginGroupID is used for plugins that omit their groupId
const DefaultPluginGroupID = "org.apache.maven.plugins"

// Model is the in-memory form of a POM, either raw (as read from disk) or effective
// (after inheritance, interpolation and management injection)
type Model struct {
	XMLName      xml.Name `xml:"project" json:"-" yaml:"-"`
	ModelVersion string   `xml:"modelVersion" json:"modelVersion,omitempty" yaml:"modelVersion,omitempty"`

	Parent     *Parent `xml:"parent" json:"parent,omitempty" yaml:"parent,omitempty"`
	GroupID    string  `xml:"groupId" json:"groupId,omitempty" yaml:"groupId,omitempty"`
	ArtifactID string  `xml:"artifactId" json:"artifactId" yaml:"artifactId"`
	Version    string  `xml:"version" json:"version,omitempty" yaml:"version,omitempty"`
	Packaging  string  `xml:"packaging" json:"packaging,omitempty" yaml:"packaging,omitempty"`

	Name        string `xml:"name" json:"name,omitempty" yaml:"name,omitempty"`
	Description string `xml:"description" json:"description,omitempty" yaml:"description,omitempty"`
	URL         string `xml:"url" json:"url,omitempty" yaml:"url,omitempty"`

	Modules    []string   `xml:"modules>module" json:"modules,omitempty" yaml:"modules,omitempty"`
	Properties Properties `xml:"properties" json:"properties,omitempty" yaml:"properties,omitempty"`

	DependencyManagement *DependencyManagement `xml:"dependencyManagement" json:"dependencyManagement,omitempty" yaml:"dependencyManagement,omitempty"`
	Dependencies         []Dependency          `xml:"dependencies>dependency" json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	Repositories       []Repository `xml:"repositories>repository" json:"repositories,omitempty" yaml:"repositories,omitempty"`
	PluginRepositories []Repository `xml:"pluginRepositories>pluginRepository" json:"pluginRepositories,omitempty" yaml:"pluginRepositories,omitempty"`

	Build     *Build     `xml:"build" json:"build,omitempty" yaml:"build,omitempty"`
	Reporting *Reporting `xml:"reporting" json:"reporting,omitempty" yaml:"reporting,omitempty"`
	Profiles  []Profile  `xml:"profiles>profile" json:"profiles,omitempty" yaml:"profiles,omitempty"`

	DistributionManagement *DistributionManagement `xml:"distributionManagement" json:"distributionManagement,omitempty" yaml:"distributionManagement,omitempty"`

	// PomFile is the file the model was read from, empty for models without a file
	PomFile string `xml:"-" json:"pomFile,omitempty" yaml:"pomFile,omitempty"`
}

// Parent references the POM a model inherits from
type Parent struct {
	GroupID      string  `xml:"groupId" json:"groupId" yaml:"groupId"`
	ArtifactID   string  `xml:"artifactId" json:"artifactId" yaml:"artifactId"`
	Version      string  `xml:"version" json:"version" yaml:"version"`
	RelativePath *string `xml:"relativePath" json:"relativePath,omitempty" yaml:"relativePath,omitempty"`
}

// ID returns groupId:artifactId:version of the referenced parent
func (p *Parent) ID() string {
	return ModelID(p.GroupID, p.ArtifactID, p.Version)
}

// RelativePathOrDefault returns the declared relative path, defaulting to ../pom.xml
func (p *Parent) RelativePathOrDefault() string {
	if p.RelativePath == nil {
		return "../pom.xml"
	}
	return strings.TrimSpace(*p.RelativePath)
}

// Exclusion removes a transitive dependency
type Exclusion struct {
	GroupID    string `xml:"groupId" json:"groupId" yaml:"groupId"`
	ArtifactID string `xml:"artifactId" json:"artifactId" yaml:"artifactId"`
}

// Dependency is a declared dependency of a model or plugin
type Dependency struct {
	GroupID    string      `xml:"groupId" json:"groupId" yaml:"groupId"`
	ArtifactID string      `xml:"artifactId" json:"artifactId" yaml:"artifactId"`
	Version    string      `xml:"version" json:"version,omitempty" yaml:"version,omitempty"`
	Type       string      `xml:"type" json:"type,omitempty" yaml:"type,omitempty"`
	Classifier string      `xml:"classifier" json:"classifier,omitempty" yaml:"classifier,omitempty"`
	Scope      string      `xml:"scope" json:"scope,omitempty" yaml:"scope,omitempty"`
	SystemPath string      `xml:"systemPath" json:"systemPath,omitempty" yaml:"systemPath,omitempty"`
	Optional   string      `xml:"optional" json:"optional,omitempty" yaml:"optional,omitempty"`
	Exclusions []Exclusion `xml:"exclusions>exclusion" json:"exclusions,omitempty" yaml:"exclusions,omitempty"`
}

// TypeOrDefault returns the dependency type, jar when unset
func (d *Dependency) TypeOrDefault() string {
	if d.Type == "" {
		return "jar"
	}
	return d.Type
}

// ManagementKey identifies a dependency within dependency management:
// groupId:artifactId:type[:classifier]
func (d *Dependency) ManagementKey() string {
	key := d.GroupID + ":" + d.ArtifactID + ":" + d.TypeOrDefault()
	if d.Classifier != "" {
		key += ":" + d.Classifier
	}
	return key
}

// IsOptional reports whether the dependency is marked optional
func (d *Dependency) IsOptional() bool {
	return strings.EqualFold(strings.TrimSpace(d.Optional), "true")
}

// DependencyManagement holds managed dependency versions
type DependencyManagement struct {
	Dependencies []Dependency `xml:"dependencies>dependency" json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// PluginExecution binds plugin goals to a lifecycle phase
type PluginExecution struct {
	ID    string   `xml:"id" json:"id,omitempty" yaml:"id,omitempty"`
	Phase string   `xml:"phase" json:"phase,omitempty" yaml:"phase,omitempty"`
	Goals []string `xml:"goals>goal" json:"goals,omitempty" yaml:"goals,omitempty"`
}

// Plugin is a build plugin declaration
type Plugin struct {
	GroupID      string            `xml:"groupId" json:"groupId,omitempty" yaml:"groupId,omitempty"`
	ArtifactID   string            `xml:"artifactId" json:"artifactId" yaml:"artifactId"`
	Version      string            `xml:"version" json:"version,omitempty" yaml:"version,omitempty"`
	Extensions   string            `xml:"extensions" json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Dependencies []Dependency      `xml:"dependencies>dependency" json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Executions   []PluginExecution `xml:"executions>execution" json:"executions,omitempty" yaml:"executions,omitempty"`
}

// GroupIDOrDefault returns the plugin groupId, defaulting to org.apache.maven.plugins
func (p *Plugin) GroupIDOrDefault() string {
	if p.GroupID == "" {
		return DefaultPluginGroupID
	}
	return p.GroupID
}

// Key returns groupId:artifactId
func (p *Plugin) Key() string {
	return p.GroupIDOrDefault() + ":" + p.ArtifactID
}

// PluginManagement holds managed plugin configuration
type PluginManagement struct {
	Plugins []Plugin `xml:"plugins>plugin" json:"plugins,omitempty" yaml:"plugins,omitempty"`
}

// Extension is a build extension declaration
type Extension struct {
	GroupID    string `xml:"groupId" json:"groupId" yaml:"groupId"`
	ArtifactID string `xml:"artifactId" json:"artifactId" yaml:"artifactId"`
	Version    string `xml:"version" json:"version,omitempty" yaml:"version,omitempty"`
}

// Build holds build directories, plugins and extensions
type Build struct {
	SourceDirectory       string `xml:"sourceDirectory" json:"sourceDirectory,omitempty" yaml:"sourceDirectory,omitempty"`
	ScriptSourceDirectory string `xml:"scriptSourceDirectory" json:"scriptSourceDirectory,omitempty" yaml:"scriptSourceDirectory,omitempty"`
	TestSourceDirectory   string `xml:"testSourceDirectory" json:"testSourceDirectory,omitempty" yaml:"testSourceDirectory,omitempty"`
	OutputDirectory       string `xml:"outputDirectory" json:"outputDirectory,omitempty" yaml:"outputDirectory,omitempty"`
	TestOutputDirectory   string `xml:"testOutputDirectory" json:"testOutputDirectory,omitempty" yaml:"testOutputDirectory,omitempty"`
	Directory             string `xml:"directory" json:"directory,omitempty" yaml:"directory,omitempty"`
	FinalName             string `xml:"finalName" json:"finalName,omitempty" yaml:"finalName,omitempty"`
	DefaultGoal           string `xml:"defaultGoal" json:"defaultGoal,omitempty" yaml:"defaultGoal,omitempty"`

	Plugins          []Plugin          `xml:"plugins>plugin" json:"plugins,omitempty" yaml:"plugins,omitempty"`
	PluginManagement *PluginManagement `xml:"pluginManagement" json:"pluginManagement,omitempty" yaml:"pluginManagement,omitempty"`
	Extensions       []Extension       `xml:"extensions>extension" json:"extensions,omitempty" yaml:"extensions,omitempty"`
}

// ReportPlugin is a reporting plugin declaration
type ReportPlugin struct {
	GroupID    string `xml:"groupId" json:"groupId,omitempty" yaml:"groupId,omitempty"`
	ArtifactID string `xml:"artifactId" json:"artifactId" yaml:"artifactId"`
	Version    string `xml:"version" json:"version,omitempty" yaml:"version,omitempty"`
}

// GroupIDOrDefault returns the report plugin groupId, defaulting to org.apache.maven.plugins
func (p *ReportPlugin) GroupIDOrDefault() string {
	if p.GroupID == "" {
		return DefaultPluginGroupID
	}
	return p.GroupID
}

// Reporting holds report plugins
type Reporting struct {
	Plugins []ReportPlugin `xml:"plugins>plugin" json:"plugins,omitempty" yaml:"plugins,omitempty"`
}

// RepositoryPolicy controls release or snapshot handling of a repository
type RepositoryPolicy struct {
	Enabled        string `xml:"enabled" json:"enabled,omitempty" yaml:"enabled,omitempty"`
	UpdatePolicy   string `xml:"updatePolicy" json:"updatePolicy,omitempty" yaml:"updatePolicy,omitempty"`
	ChecksumPolicy string `xml:"checksumPolicy" json:"checksumPolicy,omitempty" yaml:"checksumPolicy,omitempty"`
}

// IsEnabled treats a missing policy or empty flag as enabled
func (p *RepositoryPolicy) IsEnabled() bool {
	if p == nil || strings.TrimSpace(p.Enabled) == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(p.Enabled), "true")
}

// Repository is an artifact or plugin repository declaration
type Repository struct {
	ID        string            `xml:"id" json:"id" yaml:"id"`
	Name      string            `xml:"name" json:"name,omitempty" yaml:"name,omitempty"`
	URL       string            `xml:"url" json:"url" yaml:"url"`
	Layout    string            `xml:"layout" json:"layout,omitempty" yaml:"layout,omitempty"`
	Releases  *RepositoryPolicy `xml:"releases" json:"releases,omitempty" yaml:"releases,omitempty"`
	Snapshots *RepositoryPolicy `xml:"snapshots" json:"snapshots,omitempty" yaml:"snapshots,omitempty"`
}

// DeploymentRepository is a distribution target
type DeploymentRepository struct {
	Repository
	UniqueVersion string `xml:"uniqueVersion" json:"uniqueVersion,omitempty" yaml:"uniqueVersion,omitempty"`
}

// DistributionManagement declares where artifacts are deployed
type DistributionManagement struct {
	Repository         *DeploymentRepository `xml:"repository" json:"repository,omitempty" yaml:"repository,omitempty"`
	SnapshotRepository *DeploymentRepository `xml:"snapshotRepository" json:"snapshotRepository,omitempty" yaml:"snapshotRepository,omitempty"`
}

// ActivationProperty activates a profile based on a system or user property
type ActivationProperty struct {
	Name  string `xml:"name" json:"name" yaml:"name"`
	Value string `xml:"value" json:"value,omitempty" yaml:"value,omitempty"`
}

// ActivationFile activates a profile based on the presence of a file
type ActivationFile struct {
	Exists  string `xml:"exists" json:"exists,omitempty" yaml:"exists,omitempty"`
	Missing string `xml:"missing" json:"missing,omitempty" yaml:"missing,omitempty"`
}

// Activation holds profile activation triggers
type Activation struct {
	ActiveByDefault bool                `xml:"activeByDefault" json:"activeByDefault,omitempty" yaml:"activeByDefault,omitempty"`
	Property        *ActivationProperty `xml:"property" json:"property,omitempty" yaml:"property,omitempty"`
	File            *ActivationFile     `xml:"file" json:"file,omitempty" yaml:"file,omitempty"`
}

// Profile is a conditional overlay of model elements
type Profile struct {
	ID         string      `xml:"id" json:"id" yaml:"id"`
	Activation *Activation `xml:"activation" json:"activation,omitempty" yaml:"activation,omitempty"`

	// Source is "pom" for profiles declared in a POM, "external" for injected ones
	Source string `xml:"-" json:"source,omitempty" yaml:"source,omitempty"`

	Modules                []string                `xml:"modules>module" json:"modules,omitempty" yaml:"modules,omitempty"`
	Properties             Properties              `xml:"properties" json:"properties,omitempty" yaml:"properties,omitempty"`
	DependencyManagement   *DependencyManagement   `xml:"dependencyManagement" json:"dependencyManagement,omitempty" yaml:"dependencyManagement,omitempty"`
	Dependencies           []Dependency            `xml:"dependencies>dependency" json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Repositories           []Repository            `xml:"repositories>repository" json:"repositories,omitempty" yaml:"repositories,omitempty"`
	PluginRepositories     []Repository            `xml:"pluginRepositories>pluginRepository" json:"pluginRepositories,omitempty" yaml:"pluginRepositories,omitempty"`
	Build                  *Build                  `xml:"build" json:"build,omitempty" yaml:"build,omitempty"`
	Reporting              *Reporting              `xml:"reporting" json:"reporting,omitempty" yaml:"reporting,omitempty"`
	DistributionManagement *DistributionManagement `xml:"distributionManagement" json:"distributionManagement,omitempty" yaml:"distributionManagement,omitempty"`
}

// Properties is a flat key/value map read from a <properties> element
type Properties map[string]string

// UnmarshalXML reads each child element of <properties> as one entry
func (p *Properties) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	if *p == nil {
		*p = make(Properties)
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var value string
			if err := d.DecodeElement(&value, &t); err != nil {
				return err
			}
			(*p)[t.Name.Local] = strings.TrimSpace(value)
		case xml.EndElement:
			return nil
		}
	}
}

// ModelID formats groupId:artifactId:version
func ModelID(groupID, artifactID, version string) string {
	return groupID + ":" + artifactID + ":" + version
}

// EffectiveGroupID returns the groupId, inherited from the parent reference when unset
func (m *Model) EffectiveGroupID() string {
	if m.GroupID == "" && m.Parent != nil {
		return m.Parent.GroupID
	}
	return m.GroupID
}

// EffectiveVersion returns the version, inherited from the parent reference when unset
func (m *Model) EffectiveVersion() string {
	if m.Version == "" && m.Parent != nil {
		return m.Parent.Version
	}
	return m.Version
}

// PackagingOrDefault returns the packaging, jar when unset
func (m *Model) PackagingOrDefault() string {
	if m.Packaging == "" {
		return "jar"
	}
	return m.Packaging
}

// ID returns groupId:artifactId:version using inherited coordinates
func (m *Model) ID() string {
	return ModelID(m.EffectiveGroupID(), m.ArtifactID, m.EffectiveVersion())
}

// Clone returns a deep copy of the model
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	return copystructure.Must(copystructure.Copy(m)).(*Model)
}

// EnsureBuild returns the build section, creating an empty one when missing
func (m *Model) EnsureBuild() *Build {
	if m.Build == nil {
		m.Build = &Build{}
	}
	return m.Build
}

// PluginsOrEmpty returns the build plugins, nil-safe
func (m *Model) PluginsOrEmpty() []Plugin {
	if m.Build == nil {
		return nil
	}
	return m.Build.Plugins
}

// ExtensionsOrEmpty returns the build extensions, nil-safe
func (m *Model) ExtensionsOrEmpty() []Extension {
	if m.Build == nil {
		return nil
	}
	return m.Build.Extensions
}

// ReportPluginsOrEmpty returns the reporting plugins, nil-safe
func (m *Model) ReportPluginsOrEmpty() []ReportPlugin {
	if m.Reporting == nil {
		return nil
	}
	return m.Reporting.Plugins
}

// ManagedDependencies returns dependencyManagement entries, nil-safe
func (m *Model) ManagedDependencies() []Dependency {
	if m.DependencyManagement == nil {
		return nil
	}
	return m.DependencyManagement.Dependencies
}

// ParseModel decodes a POM document
func ParseModel(data []byte) (*Model, error) {
	var m Model
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
