package modelbuilder

import (
	"context"
	"fmt"

	"github.com/ritzau/pomreactor/pkg/model"
)

// RequestType selects how much of the model pipeline runs
type RequestType int

const (
	// RequestBuildProject builds a reactor member, discovering modules when recursive
	RequestBuildProject RequestType = iota
	// RequestBuildEffective builds a complete effective model of a single POM
	RequestBuildEffective
	// RequestConsumerParent builds only what is needed to use the model as an
	// ancestor or a dependency: minimal validation, no plugin processing
	RequestConsumerParent
)

func (t RequestType) String() string {
	switch t {
	case RequestBuildProject:
		return "BUILD_PROJECT"
	case RequestBuildEffective:
		return "BUILD_EFFECTIVE"
	case RequestConsumerParent:
		return "CONSUMER_PARENT"
	default:
		return fmt.Sprintf("RequestType(%d)", int(t))
	}
}

// ValidationLevel controls which checks run and how severe they are
type ValidationLevel int

const (
	ValidationMinimal ValidationLevel = 0
	Validation20      ValidationLevel = 20
	Validation30      ValidationLevel = 30
	Validation31      ValidationLevel = 31
	Validation40      ValidationLevel = 40
	ValidationStrict                  = Validation40
)

// ParseValidationLevel maps names such as "minimal", "3.0" or "strict" to a level
func ParseValidationLevel(s string) (ValidationLevel, error) {
	switch s {
	case "minimal", "0":
		return ValidationMinimal, nil
	case "2.0", "20":
		return Validation20, nil
	case "3.0", "30":
		return Validation30, nil
	case "3.1", "31":
		return Validation31, nil
	case "4.0", "40", "strict", "":
		return Validation40, nil
	default:
		return 0, fmt.Errorf("unknown validation level %q", s)
	}
}

// Resolver locates the POMs of parents and imported dependencies and
// collects the repositories declared along the way
type Resolver interface {
	ResolveModel(ctx context.Context, groupID, artifactID, version string) (Source, error)
	// ResolveParent resolves parent.Version when it is a range and rewrites it
	// to the selected version
	ResolveParent(ctx context.Context, parent *model.Parent) (Source, error)
	// ResolveDependency resolves dep.Version when it is a range and rewrites
	// it to the selected version
	ResolveDependency(ctx context.Context, dep *model.Dependency) (Source, error)
	AddRepository(repo model.Repository, replace bool) error
	NewCopy() Resolver
}

// Event is passed to a Listener once the effective model is assembled
type Event struct {
	Model    *model.Model
	Request  *Request
	Problems *model.Problems
}

// Listener is notified while models are built. BuildExtensionsAssembled may
// replace e.Model, e.g. to inject lifecycle bindings.
type Listener interface {
	BuildExtensionsAssembled(ctx context.Context, e *Event)
}

// Request describes one model build
type Request struct {
	Source           Source
	Type             RequestType
	ValidationLevel  ValidationLevel
	ProcessPlugins   bool
	LocationTracking bool
	// Recursive discovers and builds modules when Type is RequestBuildProject
	Recursive bool

	ActiveProfileIDs   []string
	InactiveProfileIDs []string
	// Profiles are external profiles, e.g. from settings
	Profiles         []model.Profile
	SystemProperties map[string]string
	UserProperties   map[string]string

	Resolver Resolver
	Listener Listener
	Cache    Cache

	// Listeners returns the listener for a module discovered while building
	// recursively; when nil, Listener is used for every module
	Listeners func(src Source) Listener
}

// Builder turns a POM into an effective model
type Builder interface {
	Build(ctx context.Context, req *Request) (*Result, error)
}

// Result is the outcome of a model build. ModelIDs lists the lineage from the
// built model up to its topmost parent, followed by "" for the super POM.
type Result struct {
	Source         Source
	EffectiveModel *model.Model
	FileModel      *model.Model
	ParentModel    *model.Model
	ModelIDs       []string

	rawModels              map[string]*model.Model
	activePOMProfiles      map[string][]model.Profile
	ActiveExternalProfiles []model.Profile
	Problems               model.Problems

	// Children holds the results of discovered modules
	Children []*Result
}

func newResult(src Source) *Result {
	return &Result{
		Source:            src,
		rawModels:         make(map[string]*model.Model),
		activePOMProfiles: make(map[string][]model.Profile),
	}
}

// RawModel returns the model of a lineage member as read, before inheritance
func (r *Result) RawModel(modelID string) *model.Model {
	return r.rawModels[modelID]
}

// ActivePOMProfiles returns the POM profiles activated in a lineage member
func (r *Result) ActivePOMProfiles(modelID string) []model.Profile {
	return r.activePOMProfiles[modelID]
}

// ModelID returns the id of the built model, or "" when none was read
func (r *Result) ModelID() string {
	if len(r.ModelIDs) == 0 {
		return ""
	}
	return r.ModelIDs[0]
}

// All returns the result followed by every descendant module result, depth first
func (r *Result) All() []*Result {
	out := []*Result{r}
	for _, c := range r.Children {
		out = append(out, c.All()...)
	}
	return out
}

// BuildError is returned when a model has errors. Result is set whenever a
// partial model was read; its EffectiveModel is nil when the model could not
// be assembled at all.
type BuildError struct {
	ModelID string
	Result  *Result
}

func (e *BuildError) Error() string {
	problems := e.Problems()
	n := problems.Count(model.SeverityError)
	msg := fmt.Sprintf("%d %s encountered while building the effective model", n, pluralize(n, "problem was", "problems were"))
	if e.ModelID != "" {
		msg += " for " + e.ModelID
	}
	for _, p := range problems {
		if p.Severity >= model.SeverityError {
			msg += "\n" + p.String()
		}
	}
	return msg
}

// Problems returns the problems of the partial result
func (e *BuildError) Problems() model.Problems {
	if e.Result == nil {
		return nil
	}
	return e.Result.Problems
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// UnresolvableModelError is returned by resolvers when a POM cannot be located
type UnresolvableModelError struct {
	GroupID    string
	ArtifactID string
	Version    string
	Message    string
	Err        error
}

func (e *UnresolvableModelError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s (%s)", msg, model.ModelID(e.GroupID, e.ArtifactID, e.Version))
}

func (e *UnresolvableModelError) Unwrap() error {
	return e.Err
}
