package artifact

import (
	"regexp"
	"strings"
)

const (
	ScopeCompile  = "compile"
	ScopeProvided = "provided"
	ScopeRuntime  = "runtime"
	ScopeTest     = "test"
	ScopeSystem   = "system"
	ScopeImport   = "import"

	// LatestVersion and ReleaseVersion are meta versions resolved by the repository
	LatestVersion  = "LATEST"
	ReleaseVersion = "RELEASE"

	snapshotSuffix = "SNAPSHOT"
)

var timestampedSnapshot = regexp.MustCompile(`^(.*)-(\d{8}\.\d{6})-(\d+)$`)

// Artifact identifies a file in a repository and carries its resolution state
type Artifact struct {
	GroupID    string `json:"groupId" yaml:"groupId"`
	ArtifactID string `json:"artifactId" yaml:"artifactId"`
	Version    string `json:"version" yaml:"version"`
	Type       string `json:"type" yaml:"type"`
	Classifier string `json:"classifier,omitempty" yaml:"classifier,omitempty"`
	Scope      string `json:"scope,omitempty" yaml:"scope,omitempty"`
	Optional   bool   `json:"optional,omitempty" yaml:"optional,omitempty"`

	File     string `json:"file,omitempty" yaml:"file,omitempty"`
	Resolved bool   `json:"resolved" yaml:"resolved"`
}

// New creates an artifact with the given coordinates
func New(groupID, artifactID, version, typ string) *Artifact {
	if typ == "" {
		typ = "jar"
	}
	return &Artifact{GroupID: groupID, ArtifactID: artifactID, Version: version, Type: typ}
}

// ID returns groupId:artifactId:type[:classifier]:version
func (a *Artifact) ID() string {
	var b strings.Builder
	b.WriteString(a.GroupID)
	b.WriteByte(':')
	b.WriteString(a.ArtifactID)
	b.WriteByte(':')
	b.WriteString(a.TypeOrDefault())
	if a.Classifier != "" {
		b.WriteByte(':')
		b.WriteString(a.Classifier)
	}
	b.WriteByte(':')
	b.WriteString(a.Version)
	return b.String()
}

// Coordinates returns groupId:artifactId:version
func (a *Artifact) Coordinates() string {
	return a.GroupID + ":" + a.ArtifactID + ":" + a.Version
}

// VersionlessID returns groupId:artifactId
func (a *Artifact) VersionlessID() string {
	return VersionlessKey(a.GroupID, a.ArtifactID)
}

// VersionlessKey formats groupId:artifactId
func VersionlessKey(groupID, artifactID string) string {
	return groupID + ":" + artifactID
}

// TypeOrDefault returns the type, jar when unset
func (a *Artifact) TypeOrDefault() string {
	if a.Type == "" {
		return "jar"
	}
	return a.Type
}

// Extension returns the file extension implied by the artifact type
func (a *Artifact) Extension() string {
	switch a.TypeOrDefault() {
	case "test-jar", "ejb", "ejb-client", "maven-plugin", "java-source", "javadoc", "bundle":
		return "jar"
	default:
		return a.TypeOrDefault()
	}
}

// BaseVersion converts a timestamped snapshot version back to X-SNAPSHOT
func (a *Artifact) BaseVersion() string {
	return BaseVersion(a.Version)
}

// BaseVersion converts a timestamped snapshot version back to X-SNAPSHOT
func BaseVersion(version string) string {
	if m := timestampedSnapshot.FindStringSubmatch(version); m != nil {
		return m[1] + "-" + snapshotSuffix
	}
	return version
}

// IsSnapshot reports whether the version is a snapshot
func (a *Artifact) IsSnapshot() bool {
	return IsSnapshot(a.Version)
}

// IsSnapshot reports whether the version is a snapshot
func IsSnapshot(version string) bool {
	return strings.HasSuffix(version, snapshotSuffix) || timestampedSnapshot.MatchString(version)
}

// Copy returns a shallow copy of the artifact
func (a *Artifact) Copy() *Artifact {
	c := *a
	return &c
}

func (a *Artifact) String() string {
	s := a.ID()
	if a.Scope != "" {
		s += ":" + a.Scope
	}
	return s
}

// MapByVersionlessID indexes artifacts by groupId:artifactId. Later entries win.
func MapByVersionlessID(artifacts []*Artifact) map[string]*Artifact {
	m := make(map[string]*Artifact, len(artifacts))
	for _, a := range artifacts {
		m[a.VersionlessID()] = a
	}
	return m
}

// Dedupe removes artifacts with an ID already seen, keeping the first occurrence
func Dedupe(artifacts []*Artifact) []*Artifact {
	seen := make(map[string]bool, len(artifacts))
	out := make([]*Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		id := a.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, a)
	}
	return out
}
