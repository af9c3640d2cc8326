package project

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/pomreactor/pkg/graph"
	"github.com/ritzau/pomreactor/pkg/model"
)

func createProject(groupID, artifactID, version string) *Project {
	return NewFromModel(&model.Model{
		GroupID:    groupID,
		ArtifactID: artifactID,
		Version:    version,
		Build:      &model.Build{},
	})
}

func dependencyOn(p *Project) model.Dependency {
	return model.Dependency{GroupID: p.GroupID(), ArtifactID: p.ArtifactID(), Version: p.Version()}
}

func pluginOf(p *Project) model.Plugin {
	return model.Plugin{GroupID: p.GroupID(), ArtifactID: p.ArtifactID(), Version: p.Version()}
}

func setParent(child, parent *Project) {
	child.SetParent(parent)
	child.Model().Parent = &model.Parent{GroupID: parent.GroupID(), ArtifactID: parent.ArtifactID(), Version: parent.Version()}
}

func ids(projects []*Project) []string {
	out := make([]string, len(projects))
	for i, p := range projects {
		out[i] = p.ArtifactID()
	}
	return out
}

func TestSorter_PluginDependencyOnCurrentProject(t *testing.T) {
	p := createProject("group", "artifact", "1.0")
	plugin := model.Plugin{GroupID: "other.group", ArtifactID: "other-artifact", Version: "1.0"}
	plugin.Dependencies = append(plugin.Dependencies, dependencyOn(p))
	p.Model().Build.Plugins = append(p.Model().Build.Plugins, plugin)

	if _, err := NewSorter([]*Project{p}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
}

func TestSorter_ManagedPluginDependencyOnCurrentProject(t *testing.T) {
	p := createProject("group", "artifact", "1.0")
	plugin := model.Plugin{GroupID: "other.group", ArtifactID: "other-artifact", Version: "1.0"}
	plugin.Dependencies = append(plugin.Dependencies, dependencyOn(p))
	p.Model().Build.PluginManagement = &model.PluginManagement{Plugins: []model.Plugin{plugin}}

	if _, err := NewSorter([]*Project{p}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
}

func TestSorter_ReferenceOutsideReactorIgnored(t *testing.T) {
	p := createProject("group", "artifact", "1.0")
	p.Model().Build.Extensions = append(p.Model().Build.Extensions, model.Extension{GroupID: "other.group", ArtifactID: "other-artifact", Version: "1.0"})
	p.Model().Dependencies = append(p.Model().Dependencies, model.Dependency{GroupID: "x", ArtifactID: "y", Version: "1"})

	s, err := NewSorter([]*Project{p})
	require.NoError(t, err)
	assert.Empty(t, s.Dependencies(p.ID()))
	assert.Empty(t, p.ProjectReferences())
}

func TestSorter_MatchingArtifactIDsDifferentGroupIDs(t *testing.T) {
	p1 := createProject("groupId1", "artifactId", "1.0")
	p2 := createProject("groupId2", "artifactId", "1.0")
	p1.Model().Dependencies = append(p1.Model().Dependencies, dependencyOn(p2))

	s, err := NewSorter([]*Project{p1, p2})
	require.NoError(t, err)
	sorted := s.SortedProjects()
	assert.Same(t, p2, sorted[0])
	assert.Same(t, p1, sorted[1])
}

func TestSorter_MatchingGroupIDsDifferentArtifactIDs(t *testing.T) {
	p1 := createProject("groupId", "artifactId1", "1.0")
	p2 := createProject("groupId", "artifactId2", "1.0")
	p1.Model().Dependencies = append(p1.Model().Dependencies, dependencyOn(p2))

	s, err := NewSorter([]*Project{p1, p2})
	require.NoError(t, err)
	assert.Equal(t, []string{"artifactId2", "artifactId1"}, ids(s.SortedProjects()))
}

func TestSorter_DuplicateProject(t *testing.T) {
	p1 := createProject("groupId", "artifactId", "1.0")
	p1.SetFile("/work/a/pom.xml")
	p2 := createProject("groupId", "artifactId", "1.0")
	p2.SetFile("/work/b/pom.xml")

	_, err := NewSorter([]*Project{p1, p2})
	var dup *DuplicateProjectError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected DuplicateProjectError, got %v", err)
	}
	assert.Equal(t, "groupId:artifactId:1.0", dup.ProjectID)
	assert.Contains(t, err.Error(), "/work/a/pom.xml")
	assert.Contains(t, err.Error(), "/work/b/pom.xml")
}

func TestSorter_MatchingIDsDifferentVersions(t *testing.T) {
	p1 := createProject("groupId", "artifactId", "1.0")
	p2 := createProject("groupId", "artifactId", "2.0")

	s, err := NewSorter([]*Project{p1, p2})
	require.NoError(t, err)
	sorted := s.SortedProjects()
	assert.Same(t, p1, sorted[0])
	assert.Same(t, p2, sorted[1])
}

func TestSorter_PluginDependenciesInfluenceSorting(t *testing.T) {
	parent := createProject("groupId", "parent", "1.0")
	declarer := createProject("groupId", "declarer", "1.0")
	setParent(declarer, parent)
	pluginDep := createProject("groupId", "plugin-level-dep", "1.0")
	setParent(pluginDep, parent)
	pluginProject := createProject("groupId", "plugin", "1.0")
	setParent(pluginProject, parent)

	plugin := pluginOf(pluginProject)
	plugin.Dependencies = append(plugin.Dependencies, dependencyOn(pluginDep))
	declarer.Model().Build.Plugins = append(declarer.Model().Build.Plugins, plugin)

	s, err := NewSorter([]*Project{parent, declarer, pluginDep, pluginProject})
	require.NoError(t, err)
	sorted := s.SortedProjects()
	assert.Same(t, parent, sorted[0])
	assert.Contains(t, sorted, pluginProject)
	assert.Contains(t, sorted, pluginDep)
	assert.Same(t, declarer, sorted[3])
}

func TestSorter_PluginDeclaredInParent(t *testing.T) {
	parent := createProject("groupId", "parent-declarer", "1.0")
	pluginProject := createProject("groupId", "plugin", "1.0")
	setParent(pluginProject, parent)
	pluginDep := createProject("groupId", "plugin-level-dep", "1.0")
	setParent(pluginDep, parent)

	plugin := pluginOf(pluginProject)
	plugin.Dependencies = append(plugin.Dependencies, dependencyOn(pluginDep))
	parent.Model().Build.Plugins = append(parent.Model().Build.Plugins, plugin)

	s, err := NewSorter([]*Project{parent, pluginProject, pluginDep})
	require.NoError(t, err)
	sorted := s.SortedProjects()
	assert.Same(t, parent, sorted[0], "parent edge must win over the plugin edge")
	assert.Contains(t, sorted, pluginProject)
	assert.Contains(t, sorted, pluginDep)
	_, ok := s.EdgeType(parent.ID(), pluginProject.ID())
	assert.False(t, ok, "the opposing plugin edge should have been removed")
	assert.Contains(t, parent.ProjectReferences(), pluginProject.ID())
}

func TestSorter_SafeEdgeCycleDropped(t *testing.T) {
	a := createProject("g", "a", "1")
	b := createProject("g", "b", "1")
	a.Model().Dependencies = append(a.Model().Dependencies, dependencyOn(b))
	b.Model().Build.Plugins = append(b.Model().Build.Plugins, pluginOf(a))

	s, err := NewSorter([]*Project{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(s.SortedProjects()))
	dropped := s.DroppedEdges()
	require.Len(t, dropped, 1)
	assert.Equal(t, DroppedEdge{From: "g:b:1", To: "g:a:1", Type: model.EdgePlugin, Cycle: []string{"g:b:1", "g:a:1", "g:b:1"}}, dropped[0])
}

func TestSorter_PluginVersionsAreConsidered(t *testing.T) {
	a := createProject("group", "plugin-a", "2.0-SNAPSHOT")
	a.Model().Build.Plugins = append(a.Model().Build.Plugins, model.Plugin{GroupID: "group", ArtifactID: "plugin-b", Version: "1.0"})
	b := createProject("group", "plugin-b", "2.0-SNAPSHOT")
	b.Model().Build.Plugins = append(b.Model().Build.Plugins, model.Plugin{GroupID: "group", ArtifactID: "plugin-a", Version: "1.0"})

	s, err := NewSorter([]*Project{a, b})
	require.NoError(t, err)
	assert.Len(t, s.SortedProjects(), 2)
	assert.Empty(t, s.Dependencies(a.ID()))
}

func TestSorter_SpecificDependencyVersion(t *testing.T) {
	using := createProject("group", "project", "1.0")
	using.Model().Dependencies = append(using.Model().Dependencies, model.Dependency{GroupID: "group", ArtifactID: "dependency", Version: "1.0"})
	dep := createProject("group", "dependency", "1.0")

	s, err := NewSorter([]*Project{using, dep})
	require.NoError(t, err)
	assert.Equal(t, []string{"dependency", "project"}, ids(s.SortedProjects()))
}

func TestSorter_RangeDependencyFansOut(t *testing.T) {
	using := createProject("group", "project", "1.0")
	using.Model().Dependencies = append(using.Model().Dependencies, model.Dependency{GroupID: "group", ArtifactID: "dependency", Version: "[1.0,)"})
	v1 := createProject("group", "dependency", "1.0")
	v2 := createProject("group", "dependency", "2.0")

	s, err := NewSorter([]*Project{using, v1, v2})
	require.NoError(t, err)
	assert.Equal(t, []string{"group:dependency:1.0", "group:dependency:2.0"}, s.Dependencies(using.ID()))
	sorted := s.SortedProjects()
	assert.Same(t, using, sorted[2])
	assert.Len(t, using.ProjectReferences(), 2)
}

func TestSorter_UnversionedDependencyFansOut(t *testing.T) {
	using := createProject("group", "project", "1.0")
	using.Model().Dependencies = append(using.Model().Dependencies, model.Dependency{GroupID: "group", ArtifactID: "dependency"})
	dep := createProject("group", "dependency", "1.0")

	s, err := NewSorter([]*Project{using, dep})
	require.NoError(t, err)
	assert.Equal(t, []string{"group:dependency:1.0"}, s.Dependencies(using.ID()))
	assert.Equal(t, []string{"group:project:1.0"}, s.Dependents(dep.ID()))
}

func TestSorter_DependencyCycle(t *testing.T) {
	x := createProject("group", "x", "1.0")
	y := createProject("group", "y", "1.0")
	x.Model().Dependencies = append(x.Model().Dependencies, dependencyOn(y))
	y.Model().Dependencies = append(y.Model().Dependencies, dependencyOn(x))

	_, err := NewSorter([]*Project{x, y})
	var cycle *graph.CycleDetectedError
	if !errors.As(err, &cycle) {
		t.Fatalf("Expected CycleDetectedError, got %v", err)
	}
	assert.Equal(t, []string{"group:y:1.0", "group:x:1.0", "group:y:1.0"}, cycle.Cycle)
}

func TestSorter_SelfDependency(t *testing.T) {
	p := createProject("g", "a", "1.0")
	p.Model().Dependencies = append(p.Model().Dependencies, dependencyOn(p))

	_, err := NewSorter([]*Project{p})
	var cycle *graph.CycleDetectedError
	if !errors.As(err, &cycle) {
		t.Fatalf("Expected CycleDetectedError, got %v", err)
	}
	assert.Equal(t, []string{"g:a:1.0", "g:a:1.0"}, cycle.Cycle)
	assert.Contains(t, p.ProjectReferences(), p.ID())
}

func TestSorter_SelfPluginDropped(t *testing.T) {
	p := createProject("g", "a", "1.0")
	p.Model().Build.Plugins = append(p.Model().Build.Plugins, pluginOf(p))

	s, err := NewSorter([]*Project{p})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(s.SortedProjects()))
	dropped := s.DroppedEdges()
	require.Len(t, dropped, 1)
	assert.Equal(t, DroppedEdge{From: "g:a:1.0", To: "g:a:1.0", Type: model.EdgePlugin, Cycle: []string{"g:a:1.0", "g:a:1.0"}}, dropped[0])
}

func TestSorter_ParentEdgeForcesOpposingEdge(t *testing.T) {
	parent := createProject("group", "parent", "1.0")
	child := createProject("group", "child", "1.0")
	// the parent depends on its own child, the parent edge must still win
	parent.Model().Dependencies = append(parent.Model().Dependencies, dependencyOn(child))
	setParent(child, parent)

	s, err := NewSorter([]*Project{parent, child})
	require.NoError(t, err)
	assert.Equal(t, []string{"parent", "child"}, ids(s.SortedProjects()))
	typ, ok := s.EdgeType(child.ID(), parent.ID())
	assert.True(t, ok)
	assert.Equal(t, model.EdgeParent, typ)
	assert.Contains(t, parent.ProjectReferences(), child.ID(), "references are recorded even when the edge is removed later")
}

func TestSorter_ParentIsNotAProjectReference(t *testing.T) {
	parent := createProject("group", "parent", "1.0")
	child := createProject("group", "child", "1.0")
	setParent(child, parent)

	_, err := NewSorter([]*Project{parent, child})
	require.NoError(t, err)
	assert.Empty(t, child.ProjectReferences())
}

func TestSorter_LinearReactor(t *testing.T) {
	core := createProject("org.example", "core", "1.0")
	lib := createProject("org.example", "lib", "1.0")
	app := createProject("org.example", "app", "1.0")
	lib.Model().Dependencies = append(lib.Model().Dependencies, dependencyOn(core))
	app.Model().Dependencies = append(app.Model().Dependencies, dependencyOn(lib))

	for _, order := range [][]*Project{{core, lib, app}, {app, lib, core}, {lib, app, core}} {
		s, err := NewSorter(order)
		require.NoError(t, err)
		assert.Equal(t, []string{"core", "lib", "app"}, ids(s.SortedProjects()))
	}
}

func TestSorter_Deterministic(t *testing.T) {
	build := func() []string {
		a := createProject("g", "a", "1")
		b := createProject("g", "b", "1")
		c := createProject("g", "c", "1")
		d := createProject("g", "d", "1")
		c.Model().Dependencies = append(c.Model().Dependencies, dependencyOn(a))
		s, err := NewSorter([]*Project{d, c, b, a})
		require.NoError(t, err)
		return ids(s.SortedProjects())
	}

	first := build()
	assert.Equal(t, []string{"d", "a", "c", "b"}, first)
	for range 10 {
		assert.Equal(t, first, build())
	}
}

func TestSorter_TopologicalValidity(t *testing.T) {
	var projects []*Project
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		projects = append(projects, createProject("g", name, "1"))
	}
	deps := map[int][]int{0: {3, 4}, 1: {0}, 2: {1, 5}, 4: {5}}
	for from, tos := range deps {
		for _, to := range tos {
			projects[from].Model().Dependencies = append(projects[from].Model().Dependencies, dependencyOn(projects[to]))
		}
	}

	s, err := NewSorter(projects)
	require.NoError(t, err)
	position := make(map[string]int)
	for i, p := range s.SortedProjects() {
		position[p.ID()] = i
	}
	for _, p := range projects {
		for _, dep := range s.Dependencies(p.ID()) {
			if position[dep] >= position[p.ID()] {
				t.Errorf("Expected %s before %s", dep, p.ID())
			}
		}
	}
}

func TestSorter_TopLevelProject(t *testing.T) {
	a := createProject("g", "a", "1")
	b := createProject("g", "b", "1")
	b.SetExecutionRoot(true)

	s, err := NewSorter([]*Project{a, b})
	require.NoError(t, err)
	assert.Same(t, b, s.TopLevelProject())
	assert.True(t, s.HasMultipleProjects())
	assert.Len(t, s.ProjectMap(), 2)
}

func TestSorter_Graph(t *testing.T) {
	parent := createProject("g", "parent", "1")
	parent.Model().Packaging = "pom"
	child := createProject("g", "child", "1")
	setParent(child, parent)
	parent.SetCollectedProjects([]*Project{child})

	s, err := NewSorter([]*Project{parent, child})
	require.NoError(t, err)
	g := s.Graph()

	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "pom", g.Nodes["g:parent:1"].Type)
	assert.Equal(t, "g:parent:1", g.Nodes["g:child:1"].Parent)
	assert.Equal(t, 1, g.Nodes["g:child:1"].Order)

	var types []model.EdgeType
	for _, e := range g.Edges {
		types = append(types, e.Type)
	}
	assert.ElementsMatch(t, []model.EdgeType{model.EdgeParent, model.EdgeModule}, types)
}
