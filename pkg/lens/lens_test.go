package lens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/pomreactor/pkg/model"
)

// chain builds g:root:1 <- g:core:1 <- g:lib:1 <- g:app:1 plus a separate
// g:tool:1 whose parent is g:root:1
func chain() *model.Graph {
	g := model.NewGraph()
	for i, id := range []string{"g:root:1", "g:core:1", "g:lib:1", "g:app:1", "g:tool:1"} {
		g.AddNode(&model.Node{ID: id, Label: id, Type: "jar", Order: i})
	}
	g.Nodes["g:root:1"].Type = "pom"
	g.Nodes["g:tool:1"].Parent = "g:root:1"
	g.AddEdge(&model.Edge{Source: "g:core:1", Target: "g:root:1", Type: model.EdgeParent})
	g.AddEdge(&model.Edge{Source: "g:lib:1", Target: "g:core:1", Type: model.EdgeDependency})
	g.AddEdge(&model.Edge{Source: "g:app:1", Target: "g:lib:1", Type: model.EdgeDependency})
	g.AddEdge(&model.Edge{Source: "g:core:1", Target: "g:app:1", Type: model.EdgePlugin, Dropped: true})
	return g
}

func TestComputeDistances(t *testing.T) {
	g := chain()
	cfg := &Config{MaxDistance: Infinite, HideDropped: true}

	d := ComputeDistances(g, cfg, []string{"g:app:1"})
	assert.Equal(t, 0, d["g:app:1"])
	assert.Equal(t, 1, d["g:lib:1"])
	assert.Equal(t, 2, d["g:core:1"])
	assert.Equal(t, 3, d["g:root:1"])
	if d["g:tool:1"] != 3 {
		t.Errorf("Expected g:tool:1 to inherit its parent's distance 3, got %d", d["g:tool:1"])
	}

	cfg.HideDropped = false
	d = ComputeDistances(g, cfg, []string{"g:app:1"})
	assert.Equal(t, 1, d["g:core:1"], "the dropped edge is followed when shown")

	d = ComputeDistances(g, &Config{EdgeTypes: []model.EdgeType{model.EdgeDependency}}, []string{"g:app"})
	assert.Equal(t, 0, d["g:app:1"])
	assert.Equal(t, Infinite, d["g:root:1"])
}

func TestRender(t *testing.T) {
	g := chain()

	out := Render(g, &Config{MaxDistance: 1, HideDropped: true}, []string{"g:lib:1"})
	assert.ElementsMatch(t, []string{"g:core:1", "g:lib:1", "g:app:1"}, keys(out))
	require.Len(t, out.Edges, 2)
	assert.Equal(t, 0, out.Nodes["g:lib:1"].Metadata["distance"])
	assert.Nil(t, g.Nodes["g:lib:1"].Metadata["distance"], "the input graph is not modified")

	out = Render(g, &Config{MaxDistance: Infinite, Packagings: []string{"pom"}}, nil)
	assert.Equal(t, []string{"g:root:1"}, keys(out))
	assert.Empty(t, out.Edges)

	out = Render(g, nil, nil)
	assert.Len(t, out.Nodes, 5)
	assert.Len(t, out.Edges, 4)
	assert.Equal(t, "g:root:1", out.Nodes["g:tool:1"].Parent)
}

func keys(g *model.Graph) []string {
	var out []string
	for id := range g.Nodes {
		out = append(out, id)
	}
	return out
}

func TestComputeDiff(t *testing.T) {
	cfg := DefaultConfig()
	before := Render(chain(), cfg, nil)

	full := ComputeDiff(nil, before)
	assert.True(t, full.FullGraph)
	assert.Len(t, full.AddedNodes, 5)

	g := chain()
	delete(g.Nodes, "g:tool:1")
	g.Nodes["g:app:1"].Type = "war"
	g.AddNode(&model.Node{ID: "g:web:1", Label: "web", Type: "war", Order: 5})
	g.AddEdge(&model.Edge{Source: "g:web:1", Target: "g:app:1", Type: model.EdgeDependency})
	after := Render(g, cfg, nil)

	diff := ComputeDiff(CreateSnapshot(before), after)
	assert.False(t, diff.FullGraph)
	require.Len(t, diff.AddedNodes, 1)
	assert.Equal(t, "g:web:1", diff.AddedNodes[0].ID)
	assert.Equal(t, []string{"g:tool:1"}, diff.RemovedNodes)
	require.Len(t, diff.ModifiedNodes, 1)
	assert.Equal(t, "g:app:1", diff.ModifiedNodes[0].ID)
	require.Len(t, diff.AddedEdges, 1)
	assert.Empty(t, diff.RemovedEdges)
}

func TestComputeHash(t *testing.T) {
	cfg := DefaultConfig()
	a := ComputeHash(cfg, []string{"g:a:1", "g:b:1"})
	b := ComputeHash(cfg, []string{"g:b:1", "g:a:1"})
	if a != b {
		t.Errorf("Expected selection order not to matter, got %s and %s", a, b)
	}
	assert.NotEqual(t, a, ComputeHash(&Config{MaxDistance: 2}, []string{"g:a:1"}))
}
