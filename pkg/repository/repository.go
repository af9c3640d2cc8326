package repository

import (
	"fmt"
	"strings"

	"github.com/ritzau/pomreactor/pkg/model"
)

// Policy controls whether releases or snapshots are fetched from a repository
type Policy struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	UpdatePolicy   string `json:"updatePolicy,omitempty" yaml:"updatePolicy,omitempty"`
	ChecksumPolicy string `json:"checksumPolicy,omitempty" yaml:"checksumPolicy,omitempty"`
}

// Proxy is the network proxy used to reach a repository
type Proxy struct {
	Type string `json:"type" yaml:"type"`
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Authentication holds credentials for a repository
type Authentication struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"-" yaml:"-"`
}

// RemoteRepository is a repository artifacts can be resolved from or deployed to
type RemoteRepository struct {
	ID             string          `json:"id" yaml:"id"`
	URL            string          `json:"url" yaml:"url"`
	Layout         string          `json:"layout,omitempty" yaml:"layout,omitempty"`
	Releases       Policy          `json:"releases" yaml:"releases"`
	Snapshots      Policy          `json:"snapshots" yaml:"snapshots"`
	Proxy          *Proxy          `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Authentication *Authentication `json:"authentication,omitempty" yaml:"authentication,omitempty"`

	// MirroredRepositories lists the repositories this one replaces
	MirroredRepositories []*RemoteRepository `json:"mirrored,omitempty" yaml:"mirrored,omitempty"`
}

// NewRemoteRepository creates a default-layout repository with releases and snapshots enabled
func NewRemoteRepository(id, url string) *RemoteRepository {
	return &RemoteRepository{
		ID:        id,
		URL:       url,
		Layout:    "default",
		Releases:  Policy{Enabled: true},
		Snapshots: Policy{Enabled: true},
	}
}

// Copy returns a shallow copy of the repository
func (r *RemoteRepository) Copy() *RemoteRepository {
	c := *r
	return &c
}

func (r *RemoteRepository) String() string {
	return fmt.Sprintf("%s (%s)", r.ID, r.URL)
}

// InvalidRepositoryError is returned for repository declarations missing an id or url
type InvalidRepositoryError struct {
	ID  string
	URL string
}

func (e *InvalidRepositoryError) Error() string {
	return fmt.Sprintf("invalid repository declaration id=%q url=%q: id and url are required", e.ID, e.URL)
}

// FromModel converts a POM repository declaration
func FromModel(r model.Repository) (*RemoteRepository, error) {
	id := strings.TrimSpace(r.ID)
	url := strings.TrimSpace(r.URL)
	if id == "" || url == "" {
		return nil, &InvalidRepositoryError{ID: r.ID, URL: r.URL}
	}

	repo := NewRemoteRepository(id, url)
	if r.Layout != "" {
		repo.Layout = r.Layout
	}
	repo.Releases = policyFromModel(r.Releases)
	repo.Snapshots = policyFromModel(r.Snapshots)
	return repo, nil
}

func policyFromModel(p *model.RepositoryPolicy) Policy {
	if p == nil {
		return Policy{Enabled: true}
	}
	return Policy{
		Enabled:        p.IsEnabled(),
		UpdatePolicy:   p.UpdatePolicy,
		ChecksumPolicy: p.ChecksumPolicy,
	}
}

// FromModels converts repository declarations, failing on the first invalid one
func FromModels(repos []model.Repository) ([]*RemoteRepository, error) {
	out := make([]*RemoteRepository, 0, len(repos))
	for _, r := range repos {
		repo, err := FromModel(r)
		if err != nil {
			return nil, err
		}
		out = append(out, repo)
	}
	return out, nil
}

// IDs returns the ids of the repositories in order
func IDs(repos []*RemoteRepository) []string {
	ids := make([]string, len(repos))
	for i, r := range repos {
		ids[i] = r.ID
	}
	return ids
}
