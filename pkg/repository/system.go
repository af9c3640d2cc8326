package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ritzau/pomreactor/pkg/artifact"
	"github.com/ritzau/pomreactor/pkg/logging"
)

// Kind tells where an artifact was resolved from
type Kind int

const (
	KindWorkspace Kind = iota
	KindLocal
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindWorkspace:
		return "workspace"
	case KindLocal:
		return "local"
	default:
		return "remote"
	}
}

// ArtifactRequest asks for one artifact
type ArtifactRequest struct {
	Artifact     *artifact.Artifact
	Repositories []*RemoteRepository
	Context      string
}

// ArtifactResult is a resolved artifact and where it came from
type ArtifactResult struct {
	Request    *ArtifactRequest
	Artifact   *artifact.Artifact
	Kind       Kind
	Repository *RemoteRepository
}

// FromWorkspace reports whether the artifact was produced by the current build
func (r *ArtifactResult) FromWorkspace() bool {
	return r.Kind == KindWorkspace
}

// ArtifactResolutionError is returned when an artifact cannot be resolved
type ArtifactResolutionError struct {
	Artifact     *artifact.Artifact
	Repositories []string
	Missing      bool
	Err          error
}

func (e *ArtifactResolutionError) Error() string {
	if e.Missing {
		return fmt.Sprintf("could not find artifact %s in %s", e.Artifact.ID(), describeRepos(e.Repositories))
	}
	return fmt.Sprintf("could not resolve artifact %s: %v", e.Artifact.ID(), e.Err)
}

func (e *ArtifactResolutionError) Unwrap() error {
	return e.Err
}

func describeRepos(ids []string) string {
	if len(ids) == 0 {
		return "local repository"
	}
	return "local repository, " + strings.Join(ids, ", ")
}

// VersionRangeRequest asks which versions satisfy the artifact's version constraint
type VersionRangeRequest struct {
	Artifact     *artifact.Artifact
	Repositories []*RemoteRepository
	Context      string
}

// VersionRangeResult lists the matching versions in ascending order
type VersionRangeResult struct {
	Constraint *artifact.Constraint
	Versions   []string
}

// Highest returns the highest matching version, or "" when none matched
func (r *VersionRangeResult) Highest() string {
	if len(r.Versions) == 0 {
		return ""
	}
	return r.Versions[len(r.Versions)-1]
}

// System resolves artifacts and version ranges
type System interface {
	ResolveArtifact(ctx context.Context, session *Session, req *ArtifactRequest) (*ArtifactResult, error)
	ResolveVersionRange(ctx context.Context, session *Session, req *VersionRangeRequest) (*VersionRangeResult, error)
}

// LocalSystem resolves from the session workspace, then the local repository,
// then any file:// remote repositories. Artifacts found remotely are copied
// into the local repository.
type LocalSystem struct{}

// NewLocalSystem creates a filesystem repository system
func NewLocalSystem() *LocalSystem {
	return &LocalSystem{}
}

func (s *LocalSystem) ResolveArtifact(ctx context.Context, session *Session, req *ArtifactRequest) (*ArtifactResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := req.Artifact

	if session.WorkspaceReader != nil {
		if file, ok := session.WorkspaceReader.FindArtifact(a); ok {
			return s.result(req, file, KindWorkspace, nil), nil
		}
	}

	local := session.LocalPath(a)
	if fileExists(local) {
		return s.result(req, local, KindLocal, nil), nil
	}

	if !session.Offline {
		for _, repo := range req.Repositories {
			root, ok := fileRoot(repo)
			if !ok {
				logging.Debug("skipping non-file repository", "repository", repo.ID, "url", repo.URL)
				continue
			}
			if !policyAllows(repo, a) {
				continue
			}
			remote := filepath.Join(root, PathOf(a))
			if !fileExists(remote) {
				continue
			}
			if err := copyFile(remote, local); err != nil {
				return nil, &ArtifactResolutionError{Artifact: a, Repositories: IDs(req.Repositories), Err: err}
			}
			logging.Debug("installed artifact into local repository", "artifact", a.ID(), "repository", repo.ID)
			return s.result(req, local, KindRemote, repo), nil
		}
	}

	return nil, &ArtifactResolutionError{Artifact: a, Repositories: IDs(req.Repositories), Missing: true}
}

func (s *LocalSystem) result(req *ArtifactRequest, file string, kind Kind, repo *RemoteRepository) *ArtifactResult {
	resolved := req.Artifact.Copy()
	resolved.File = file
	resolved.Resolved = true
	return &ArtifactResult{Request: req, Artifact: resolved, Kind: kind, Repository: repo}
}

func (s *LocalSystem) ResolveVersionRange(ctx context.Context, session *Session, req *VersionRangeRequest) (*VersionRangeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	constraint, err := artifact.ParseConstraint(req.Artifact.Version)
	if err != nil {
		return nil, err
	}
	result := &VersionRangeResult{Constraint: constraint}
	if !constraint.IsRange() {
		result.Versions = []string{constraint.Recommended}
		return result, nil
	}

	seen := make(map[string]bool)
	var candidates []string
	add := func(versions []string) {
		for _, v := range versions {
			if !seen[v] {
				seen[v] = true
				candidates = append(candidates, v)
			}
		}
	}

	if session.WorkspaceReader != nil {
		add(session.WorkspaceReader.FindVersions(req.Artifact))
	}
	add(listVersions(versionsDir(session.LocalRepository, req.Artifact)))
	if !session.Offline {
		for _, repo := range req.Repositories {
			if root, ok := fileRoot(repo); ok {
				add(listVersions(versionsDir(root, req.Artifact)))
			}
		}
	}

	result.Versions = constraint.Filter(candidates)
	return result, nil
}

func policyAllows(repo *RemoteRepository, a *artifact.Artifact) bool {
	if a.IsSnapshot() {
		return repo.Snapshots.Enabled
	}
	return repo.Releases.Enabled
}

// fileRoot returns the directory behind a file:// repository url
func fileRoot(repo *RemoteRepository) (string, bool) {
	u, err := url.Parse(repo.URL)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

func listVersions(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	return versions
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Join(err, os.Remove(dst))
	}
	return out.Close()
}

// DirWorkspaceReader serves artifacts from a map of coordinates to files,
// used to expose reactor projects to resolution
type DirWorkspaceReader struct {
	files map[string]string
}

// NewDirWorkspaceReader creates an empty workspace reader
func NewDirWorkspaceReader() *DirWorkspaceReader {
	return &DirWorkspaceReader{files: make(map[string]string)}
}

// Add registers a file for an artifact
func (w *DirWorkspaceReader) Add(a *artifact.Artifact, file string) {
	w.files[a.ID()] = file
}

func (w *DirWorkspaceReader) FindArtifact(a *artifact.Artifact) (string, bool) {
	file, ok := w.files[a.ID()]
	if !ok {
		return "", false
	}
	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		return "", false
	}
	return file, true
}

func (w *DirWorkspaceReader) FindVersions(a *artifact.Artifact) []string {
	prefix := a.GroupID + ":" + a.ArtifactID + ":" + a.TypeOrDefault() + ":"
	if a.Classifier != "" {
		prefix = a.GroupID + ":" + a.ArtifactID + ":" + a.TypeOrDefault() + ":" + a.Classifier + ":"
	}
	var versions []string
	for id := range w.files {
		if v, ok := strings.CutPrefix(id, prefix); ok && !strings.Contains(v, ":") {
			versions = append(versions, v)
		}
	}
	artifact.SortVersions(versions)
	return versions
}
