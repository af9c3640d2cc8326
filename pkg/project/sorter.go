package project

import (
	"errors"
	"strings"

	"github.com/ritzau/pomreactor/pkg/artifact"
	"github.com/ritzau/pomreactor/pkg/graph"
	"github.com/ritzau/pomreactor/pkg/logging"
	"github.com/ritzau/pomreactor/pkg/model"
)

// DroppedEdge is a safe edge that was not added because it closed a cycle
type DroppedEdge struct {
	From  string         `json:"from" yaml:"from"`
	To    string         `json:"to" yaml:"to"`
	Type  model.EdgeType `json:"type" yaml:"type"`
	Cycle []string       `json:"cycle" yaml:"cycle"`
}

type edgeKey struct {
	from, to string
}

type versionedVertex struct {
	version string
	vertex  *graph.Vertex
}

// vertexIndex maps groupId:artifactId to the reactor versions of that
// coordinate, in reactor order
type vertexIndex map[string][]versionedVertex

// Sorter orders the projects of a reactor so that every project comes after
// the projects it depends on, through dependencies, its parent, build plugins,
// plugin dependencies and build extensions.
type Sorter struct {
	dag        *graph.DAG
	projectMap map[string]*Project
	sorted     []*Project
	edgeTypes  map[edgeKey]model.EdgeType
	dropped    []DroppedEdge
}

// NewSorter builds the project graph and sorts it. It fails with a
// *DuplicateProjectError when two projects share an id and with a
// *graph.CycleDetectedError when dependencies form a cycle.
func NewSorter(projects []*Project) (*Sorter, error) {
	s := &Sorter{
		dag:        graph.New(),
		projectMap: make(map[string]*Project, len(projects)),
		edgeTypes:  make(map[edgeKey]model.EdgeType),
	}
	index := make(vertexIndex)

	for _, p := range projects {
		id := p.ID()
		if existing, ok := s.projectMap[id]; ok {
			return nil, &DuplicateProjectError{ProjectID: id, FirstFile: existing.File(), SecondFile: p.File()}
		}
		s.projectMap[id] = p

		v := s.dag.AddVertex(id)
		key := artifact.VersionlessKey(p.GroupID(), p.ArtifactID())
		index[key] = append(index[key], versionedVertex{version: p.Version(), vertex: v})
	}

	for _, p := range projects {
		if err := s.addProjectEdges(index, p); err != nil {
			return nil, err
		}
	}

	for _, id := range s.dag.VisitAll() {
		s.sorted = append(s.sorted, s.projectMap[id])
	}
	return s, nil
}

func (s *Sorter) addProjectEdges(index vertexIndex, p *Project) error {
	m := p.Model()
	from := s.dag.Vertex(p.ID())

	for _, d := range m.Dependencies {
		if err := s.addEdges(index, p, from, d.GroupID, d.ArtifactID, d.Version, model.EdgeDependency, false, false); err != nil {
			return err
		}
	}

	if parent := m.Parent; parent != nil {
		// the parent is not a project reference, only an ordering constraint
		if err := s.addEdges(index, nil, from, parent.GroupID, parent.ArtifactID, parent.Version, model.EdgeParent, true, true); err != nil {
			return err
		}
	}

	for _, plugin := range m.PluginsOrEmpty() {
		if err := s.addEdges(index, p, from, plugin.GroupIDOrDefault(), plugin.ArtifactID, plugin.Version, model.EdgePlugin, false, true); err != nil {
			return err
		}
		for _, d := range plugin.Dependencies {
			if err := s.addEdges(index, p, from, d.GroupID, d.ArtifactID, d.Version, model.EdgePlugin, false, true); err != nil {
				return err
			}
		}
	}

	for _, ext := range m.ExtensionsOrEmpty() {
		if err := s.addEdges(index, p, from, ext.GroupID, ext.ArtifactID, ext.Version, model.EdgeExtension, false, true); err != nil {
			return err
		}
	}
	return nil
}

// isSpecificVersion reports whether a reference names exactly one version.
// Empty versions and ranges match every reactor version of the coordinate.
func isSpecificVersion(version string) bool {
	return version != "" && !strings.HasPrefix(version, "[") && !strings.HasPrefix(version, "(")
}

func (s *Sorter) addEdges(index vertexIndex, fromProject *Project, from *graph.Vertex, groupID, artifactID, version string, typ model.EdgeType, force, safe bool) error {
	candidates := index[artifact.VersionlessKey(groupID, artifactID)]
	for _, c := range candidates {
		if isSpecificVersion(version) && c.version != version {
			continue
		}
		if err := s.addEdge(fromProject, from, c.vertex, typ, force, safe); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sorter) addEdge(fromProject *Project, from, to *graph.Vertex, typ model.EdgeType, force, safe bool) error {
	if fromProject != nil {
		fromProject.AddProjectReference(s.projectMap[to.Label()])
	}

	if force && s.dag.HasEdge(to.Label(), from.Label()) {
		s.dag.RemoveEdge(to.Label(), from.Label())
		logging.Debug("removed opposing edge", "from", to.Label(), "to", from.Label(), "type", typ)
	}

	key := edgeKey{from.Label(), to.Label()}
	existed := s.dag.HasEdge(key.from, key.to)

	err := s.dag.AddEdge(key.from, key.to)
	var cycle *graph.CycleDetectedError
	switch {
	case err == nil:
		if !existed {
			s.edgeTypes[key] = typ
		}
		return nil
	case safe && errors.As(err, &cycle):
		logging.Debug("dropped edge closing a cycle", "from", key.from, "to", key.to, "type", typ, "cycle", strings.Join(cycle.Cycle, " --> "))
		s.dropped = append(s.dropped, DroppedEdge{From: key.from, To: key.to, Type: typ, Cycle: cycle.Cycle})
		return nil
	default:
		return err
	}
}

// SortedProjects returns the projects in build order
func (s *Sorter) SortedProjects() []*Project {
	return append([]*Project(nil), s.sorted...)
}

// ProjectMap returns the projects by id
func (s *Sorter) ProjectMap() map[string]*Project {
	return s.projectMap
}

// TopLevelProject returns the first execution root in build order, or nil
func (s *Sorter) TopLevelProject() *Project {
	for _, p := range s.sorted {
		if p.IsExecutionRoot() {
			return p
		}
	}
	return nil
}

// HasMultipleProjects reports whether the reactor has more than one project
func (s *Sorter) HasMultipleProjects() bool {
	return len(s.sorted) > 1
}

// Dependents returns the ids of the projects that depend on id
func (s *Sorter) Dependents(id string) []string {
	v := s.dag.Vertex(id)
	if v == nil {
		return nil
	}
	return v.ParentLabels()
}

// Dependencies returns the ids of the projects id depends on
func (s *Sorter) Dependencies(id string) []string {
	v := s.dag.Vertex(id)
	if v == nil {
		return nil
	}
	return v.ChildLabels()
}

// EdgeType returns why from depends on to, and false when there is no such edge
func (s *Sorter) EdgeType(from, to string) (model.EdgeType, bool) {
	if !s.dag.HasEdge(from, to) {
		return "", false
	}
	return s.edgeTypes[edgeKey{from, to}], true
}

// DroppedEdges returns the safe edges that were ignored because they closed a cycle
func (s *Sorter) DroppedEdges() []DroppedEdge {
	return append([]DroppedEdge(nil), s.dropped...)
}

// DAG returns the underlying project graph
func (s *Sorter) DAG() *graph.DAG {
	return s.dag
}

// Graph exports the reactor: one node per project in build order, one edge per
// dependency kept in the graph, the dropped edges flagged, and module edges
// from each aggregator to its collected projects.
func (s *Sorter) Graph() *model.Graph {
	g := model.NewGraph()
	for i, p := range s.sorted {
		node := &model.Node{
			ID:    p.ID(),
			Label: p.ArtifactID(),
			Type:  p.Packaging(),
			Order: i,
			Metadata: map[string]interface{}{
				"name":          p.Name(),
				"file":          p.File(),
				"executionRoot": p.IsExecutionRoot(),
			},
		}
		if parent := p.Model().Parent; parent != nil {
			if _, ok := s.projectMap[parent.ID()]; ok {
				node.Parent = parent.ID()
			}
		}
		g.AddNode(node)
	}

	for _, v := range s.dag.Vertices() {
		for _, child := range v.ChildLabels() {
			g.AddEdge(&model.Edge{Source: v.Label(), Target: child, Type: s.edgeTypes[edgeKey{v.Label(), child}]})
		}
	}
	for _, d := range s.dropped {
		g.AddEdge(&model.Edge{
			Source:   d.From,
			Target:   d.To,
			Type:     d.Type,
			Dropped:  true,
			Metadata: map[string]interface{}{"cycle": d.Cycle},
		})
	}
	for _, p := range s.sorted {
		for _, c := range p.CollectedProjects() {
			if _, ok := s.projectMap[c.ID()]; ok {
				g.AddEdge(&model.Edge{Source: p.ID(), Target: c.ID(), Type: model.EdgeModule})
			}
		}
	}
	return g
}
