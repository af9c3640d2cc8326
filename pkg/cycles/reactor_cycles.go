// Package cycles reports groups of projects that reference each other,
// including references the sorter ignored to keep the build order acyclic.
package cycles

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/ritzau/pomreactor/pkg/model"
)

// Cycle is a strongly connected group of projects
type Cycle struct {
	Projects []string      `json:"projects" yaml:"projects"`
	Edges    []*model.Edge `json:"edges" yaml:"edges"`
}

// DroppedEdges returns the edges of the cycle the sorter ignored
func (c Cycle) DroppedEdges() []*model.Edge {
	var out []*model.Edge
	for _, e := range c.Edges {
		if e.Dropped {
			out = append(out, e)
		}
	}
	return out
}

// FindReactorCycles finds the cycles among the edges of a reactor graph.
// Module edges describe aggregation, not ordering, and are ignored.
func FindReactorCycles(g *model.Graph) []Cycle {
	nodes := make([]*model.Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *model.Node) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.ID, b.ID))
	})

	dg := simple.NewDirectedGraph()
	ids := make(map[string]int64, len(nodes))
	labels := make(map[int64]string, len(nodes))
	for i, n := range nodes {
		id := int64(i)
		ids[n.ID] = id
		labels[id] = n.ID
		dg.AddNode(simple.Node(id))
	}

	var edges []*model.Edge
	for _, e := range g.Edges {
		if e.Type == model.EdgeModule {
			continue
		}
		from, ok1 := ids[e.Source]
		to, ok2 := ids[e.Target]
		if !ok1 || !ok2 || from == to {
			continue
		}
		edges = append(edges, e)
		if !dg.HasEdgeFromTo(from, to) {
			dg.SetEdge(dg.NewEdge(dg.Node(from), dg.Node(to)))
		}
	}

	var cycles []Cycle
	for _, scc := range NewTarjanSCC(dg).FindSCCs() {
		members := make(map[string]bool, len(scc))
		var c Cycle
		for _, id := range scc {
			members[labels[id]] = true
			c.Projects = append(c.Projects, labels[id])
		}
		for _, e := range edges {
			if members[e.Source] && members[e.Target] {
				c.Edges = append(c.Edges, e)
			}
		}
		cycles = append(cycles, c)
	}
	return cycles
}
