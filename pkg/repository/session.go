package repository

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ritzau/pomreactor/pkg/artifact"
)

// WorkspaceReader resolves artifacts produced by projects of the current
// build before any repository is consulted
type WorkspaceReader interface {
	FindArtifact(a *artifact.Artifact) (string, bool)
	FindVersions(a *artifact.Artifact) []string
}

// ProxySelector picks the proxy for a repository
type ProxySelector interface {
	Proxy(repo *RemoteRepository) *Proxy
}

// AuthenticationSelector picks the credentials for a repository
type AuthenticationSelector interface {
	Authentication(repo *RemoteRepository) *Authentication
}

// Session carries the state shared by all resolution requests of one build
type Session struct {
	ID              string
	LocalRepository string
	Offline         bool
	Properties      map[string]string

	WorkspaceReader        WorkspaceReader
	ProxySelector          ProxySelector
	AuthenticationSelector AuthenticationSelector
	MirrorSelector         *MirrorSelector
}

// NewSession creates a session rooted at a local repository directory
func NewSession(localRepository string) *Session {
	return &Session{
		ID:              uuid.NewString(),
		LocalRepository: localRepository,
		Properties:      make(map[string]string),
	}
}

// PathOf returns the default-layout path of an artifact relative to a repository root:
// groupId/as/dirs/artifactId/baseVersion/artifactId-version[-classifier].extension
func PathOf(a *artifact.Artifact) string {
	name := a.ArtifactID + "-" + a.Version
	if a.Classifier != "" {
		name += "-" + a.Classifier
	}
	name += "." + a.Extension()
	return filepath.Join(strings.ReplaceAll(a.GroupID, ".", string(filepath.Separator)), a.ArtifactID, a.BaseVersion(), name)
}

// LocalPath returns where an artifact lives in the local repository
func (s *Session) LocalPath(a *artifact.Artifact) string {
	return filepath.Join(s.LocalRepository, PathOf(a))
}

// versionsDir returns the directory listing the versions of groupId:artifactId under root
func versionsDir(root string, a *artifact.Artifact) string {
	return filepath.Join(root, strings.ReplaceAll(a.GroupID, ".", string(filepath.Separator)), a.ArtifactID)
}

// StaticProxySelector uses the same proxy for every repository except those
// whose host is listed in NonProxyHosts
type StaticProxySelector struct {
	Default       *Proxy
	NonProxyHosts []string
}

func (s *StaticProxySelector) Proxy(repo *RemoteRepository) *Proxy {
	for _, h := range s.NonProxyHosts {
		if h != "" && strings.Contains(repo.URL, h) {
			return nil
		}
	}
	return s.Default
}

// StaticAuthenticationSelector looks credentials up by repository id
type StaticAuthenticationSelector map[string]*Authentication

func (s StaticAuthenticationSelector) Authentication(repo *RemoteRepository) *Authentication {
	return s[repo.ID]
}
