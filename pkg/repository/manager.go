package repository

import (
	"strings"
)

// Mirror redirects requests for matching repositories to another URL
type Mirror struct {
	ID       string `koanf:"id" json:"id" yaml:"id"`
	URL      string `koanf:"url" json:"url" yaml:"url"`
	MirrorOf string `koanf:"mirror_of" json:"mirrorOf" yaml:"mirrorOf"`
}

// MirrorSelector picks the first mirror whose mirrorOf pattern matches a repository
type MirrorSelector struct {
	Mirrors []Mirror
}

// Mirror returns the mirror repository for repo, or nil when none matches
func (s *MirrorSelector) Mirror(repo *RemoteRepository) *RemoteRepository {
	if s == nil {
		return nil
	}
	for _, m := range s.Mirrors {
		if m.ID == repo.ID || !matchesMirrorOf(m.MirrorOf, repo) {
			continue
		}
		mirror := NewRemoteRepository(m.ID, m.URL)
		mirror.Layout = repo.Layout
		mirror.Releases = repo.Releases
		mirror.Snapshots = repo.Snapshots
		mirror.MirroredRepositories = []*RemoteRepository{repo}
		return mirror
	}
	return nil
}

// matchesMirrorOf evaluates patterns such as "*", "central", "a,b", "*,!snapshots",
// and "external:*" (anything not on localhost or file://)
func matchesMirrorOf(pattern string, repo *RemoteRepository) bool {
	matched := false
	for _, p := range strings.Split(pattern, ",") {
		p = strings.TrimSpace(p)
		switch {
		case p == "":
			continue
		case strings.HasPrefix(p, "!"):
			if p[1:] == repo.ID {
				return false
			}
		case p == "*":
			matched = true
		case p == "external:*":
			if !isLocal(repo.URL) {
				matched = true
			}
		case p == repo.ID:
			matched = true
		}
	}
	return matched
}

func isLocal(url string) bool {
	return strings.HasPrefix(url, "file:") ||
		strings.Contains(url, "://localhost") ||
		strings.Contains(url, "://127.0.0.1")
}

// RemoteRepositoryManager merges repository lists by id
type RemoteRepositoryManager struct{}

// NewRemoteRepositoryManager creates a repository manager
func NewRemoteRepositoryManager() *RemoteRepositoryManager {
	return &RemoteRepositoryManager{}
}

// AggregateRepositories returns dominant followed by every recessive repository
// whose id is not already present. Recessive repositories marked raw have the
// session's mirror, proxy and authentication selection applied first; when a
// mirror replaces several repositories it appears once.
func (m *RemoteRepositoryManager) AggregateRepositories(session *Session, dominant, recessive []*RemoteRepository, recessiveIsRaw bool) []*RemoteRepository {
	if len(recessive) == 0 {
		return append([]*RemoteRepository(nil), dominant...)
	}

	result := make([]*RemoteRepository, 0, len(dominant)+len(recessive))
	index := make(map[string]int, len(dominant)+len(recessive))
	for _, r := range dominant {
		if _, ok := index[r.ID]; ok {
			continue
		}
		index[r.ID] = len(result)
		result = append(result, r)
	}

	for _, r := range recessive {
		if recessiveIsRaw {
			r = m.prepare(session, r)
		}
		if i, ok := index[r.ID]; ok {
			// a mirror already present absorbs the repositories it replaces
			if existing := result[i]; len(r.MirroredRepositories) > 0 && len(existing.MirroredRepositories) > 0 {
				merged := existing.Copy()
				merged.MirroredRepositories = append(append([]*RemoteRepository(nil), existing.MirroredRepositories...), r.MirroredRepositories...)
				result[i] = merged
			}
			continue
		}
		index[r.ID] = len(result)
		result = append(result, r)
	}
	return result
}

func (m *RemoteRepositoryManager) prepare(session *Session, repo *RemoteRepository) *RemoteRepository {
	if session == nil {
		return repo
	}
	if mirror := session.MirrorSelector.Mirror(repo); mirror != nil {
		repo = mirror
	} else {
		repo = repo.Copy()
	}
	if session.ProxySelector != nil {
		repo.Proxy = session.ProxySelector.Proxy(repo)
	}
	if session.AuthenticationSelector != nil {
		repo.Authentication = session.AuthenticationSelector.Authentication(repo)
	}
	return repo
}

// Prepare applies the session's mirror, proxy and authentication selection to one repository
func (m *RemoteRepositoryManager) Prepare(session *Session, repo *RemoteRepository) *RemoteRepository {
	return m.prepare(session, repo)
}
