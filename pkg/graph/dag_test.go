package graph

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddVertex_Idempotent(t *testing.T) {
	d := New()
	a := d.AddVertex("a")
	if got := d.AddVertex("a"); got != a {
		t.Error("Expected AddVertex to return the existing vertex")
	}
	if len(d.Vertices()) != 1 {
		t.Errorf("Expected 1 vertex, got %d", len(d.Vertices()))
	}
}

func TestAddEdge_CreatesVertices(t *testing.T) {
	d := New()
	require.NoError(t, d.AddEdge("a", "b"))

	assert.Equal(t, []string{"a", "b"}, d.Labels())
	assert.True(t, d.HasEdge("a", "b"))
	assert.False(t, d.HasEdge("b", "a"))
	assert.Equal(t, []string{"b"}, d.Vertex("a").ChildLabels())
	assert.Equal(t, []string{"a"}, d.Vertex("b").ParentLabels())
	assert.True(t, d.Vertex("a").IsRoot())
	assert.True(t, d.Vertex("b").IsLeaf())
}

func TestAddEdge_RejectsCycle(t *testing.T) {
	d := New()
	require.NoError(t, d.AddEdge("a", "b"))
	require.NoError(t, d.AddEdge("b", "c"))

	err := d.AddEdge("c", "a")
	var cycleErr *CycleDetectedError
	require.True(t, errors.As(err, &cycleErr), "expected CycleDetectedError, got %v", err)
	assert.Equal(t, []string{"c", "a", "b", "c"}, cycleErr.Cycle)
	assert.Contains(t, err.Error(), "c --> a --> b --> c")

	// The graph is unchanged after the rejected edge
	assert.False(t, d.HasEdge("c", "a"))
	assert.Empty(t, d.Vertex("c").ChildLabels())
	assert.Empty(t, d.Vertex("a").ParentLabels())
}

func TestAddEdge_SelfEdge(t *testing.T) {
	d := New()
	err := d.AddEdge("a", "a")
	var cycleErr *CycleDetectedError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Expected CycleDetectedError for self edge, got %v", err)
	}
	assert.Equal(t, []string{"a", "a"}, cycleErr.Cycle)
}

func TestAddEdge_Duplicate(t *testing.T) {
	d := New()
	require.NoError(t, d.AddEdge("a", "b"))
	require.NoError(t, d.AddEdge("a", "b"))
	assert.Equal(t, []string{"b"}, d.Vertex("a").ChildLabels())
}

func TestRemoveEdge(t *testing.T) {
	d := New()
	require.NoError(t, d.AddEdge("a", "b"))
	d.RemoveEdge("a", "b")
	d.RemoveEdge("a", "missing")

	assert.False(t, d.HasEdge("a", "b"))
	assert.False(t, d.Vertex("a").IsConnected())

	// Reversing the edge is now allowed
	require.NoError(t, d.AddEdge("b", "a"))
}

func TestVisitAll_PostOrder(t *testing.T) {
	d := New()
	d.AddVertex("app")
	d.AddVertex("lib")
	d.AddVertex("util")
	d.AddVertex("standalone")
	require.NoError(t, d.AddEdge("app", "lib"))
	require.NoError(t, d.AddEdge("app", "util"))
	require.NoError(t, d.AddEdge("lib", "util"))

	order := d.VisitAll()
	assert.Equal(t, []string{"util", "lib", "app", "standalone"}, order)
}

func TestVisitAll_TopologicalAndDeterministic(t *testing.T) {
	build := func() *DAG {
		d := New()
		edges := [][2]string{{"e", "d"}, {"d", "c"}, {"c", "a"}, {"b", "a"}, {"e", "b"}, {"f", "c"}}
		for _, e := range edges {
			require.NoError(t, d.AddEdge(e[0], e[1]))
		}
		return d
	}

	first := build().VisitAll()
	second := build().VisitAll()
	assert.Equal(t, first, second)

	d := build()
	for _, v := range d.Vertices() {
		for _, child := range v.ChildLabels() {
			if slices.Index(first, child) > slices.Index(first, v.Label()) {
				t.Errorf("Expected %s before %s in %v", child, v.Label(), first)
			}
		}
	}
}

func TestGraph_ExposesNodes(t *testing.T) {
	d := New()
	require.NoError(t, d.AddEdge("a", "b"))

	g := d.Graph()
	a := d.Vertex("a")
	b := d.Vertex("b")
	if !g.HasEdgeFromTo(a.ID(), b.ID()) {
		t.Error("Expected underlying graph to contain a -> b")
	}
	if d.VertexByID(b.ID()) != b {
		t.Error("Expected VertexByID to return b")
	}
}
