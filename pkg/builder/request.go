package builder

import (
	"fmt"
	"slices"

	"github.com/ritzau/pomreactor/pkg/model"
	"github.com/ritzau/pomreactor/pkg/modelbuilder"
	"github.com/ritzau/pomreactor/pkg/project"
	"github.com/ritzau/pomreactor/pkg/repository"
)

// RepositoryMerging decides whether POM or request repositories come first
type RepositoryMerging int

const (
	// POMDominant puts repositories declared in POMs before the request's
	POMDominant RepositoryMerging = iota
	// RequestDominant keeps the request's repositories first
	RequestDominant
)

func (m RepositoryMerging) String() string {
	if m == RequestDominant {
		return "request_dominant"
	}
	return "pom_dominant"
}

// ParseRepositoryMerging maps "pom_dominant" and "request_dominant"
func ParseRepositoryMerging(s string) (RepositoryMerging, error) {
	switch s {
	case "pom_dominant", "":
		return POMDominant, nil
	case "request_dominant":
		return RequestDominant, nil
	default:
		return 0, fmt.Errorf("unknown repository merging %q", s)
	}
}

// ParentPolicy decides what happens when a parent project cannot be built
type ParentPolicy int

const (
	// ParentLenient logs a warning and leaves the project without a parent
	ParentLenient ParentPolicy = iota
	// ParentStrict reports the failure as an error on the child
	ParentStrict
)

func (p ParentPolicy) String() string {
	if p == ParentStrict {
		return "strict"
	}
	return "lenient"
}

// ParseParentPolicy maps "lenient" and "strict"
func ParseParentPolicy(s string) (ParentPolicy, error) {
	switch s {
	case "lenient", "":
		return ParentLenient, nil
	case "strict":
		return ParentStrict, nil
	default:
		return 0, fmt.Errorf("unknown parent policy %q", s)
	}
}

// Request configures a project build
type Request struct {
	ValidationLevel     modelbuilder.ValidationLevel
	ProcessPlugins      bool
	ResolveDependencies bool

	// Session is used as is when set; otherwise one is created per build
	// from LocalRepository and Offline
	Session         *repository.Session
	LocalRepository string
	Offline         bool

	RemoteRepositories []*repository.RemoteRepository
	PluginRepositories []*repository.RemoteRepository
	RepositoryMerging  RepositoryMerging
	ParentPolicy       ParentPolicy

	ActiveProfileIDs   []string
	InactiveProfileIDs []string
	Profiles           []model.Profile
	SystemProperties   map[string]string
	UserProperties     map[string]string

	// Project is reused instead of building a fresh one
	Project *project.Project

	DisableModelCache bool
}

// NewRequest returns a request with strict validation and plugin processing
func NewRequest() *Request {
	return &Request{
		ValidationLevel: modelbuilder.ValidationStrict,
		ProcessPlugins:  true,
	}
}

// Copy returns a request whose repository lists can be replaced without
// affecting r
func (r *Request) Copy() *Request {
	c := *r
	c.RemoteRepositories = slices.Clone(r.RemoteRepositories)
	c.PluginRepositories = slices.Clone(r.PluginRepositories)
	return &c
}

func (r *Request) requestType() modelbuilder.RequestType {
	if r.ProcessPlugins && r.ValidationLevel >= modelbuilder.ValidationStrict {
		return modelbuilder.RequestBuildEffective
	}
	return modelbuilder.RequestConsumerParent
}
