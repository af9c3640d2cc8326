package lens

import (
	"maps"

	"github.com/ritzau/pomreactor/pkg/model"
)

// Render returns the part of g that cfg shows around the selected projects.
// Without a selection every project has distance 0. Each kept node carries
// its distance in the "distance" metadata key.
func Render(g *model.Graph, cfg *Config, selected []string) *model.Graph {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var distances map[string]int
	if len(selected) > 0 {
		distances = ComputeDistances(g, cfg, selected)
	}

	out := model.NewGraph()
	for id, n := range g.Nodes {
		d := 0
		if distances != nil {
			d = distances[id]
		}
		if !cfg.withinDistance(d) || !cfg.showsPackaging(n.Type) {
			continue
		}
		node := *n
		node.Metadata = maps.Clone(n.Metadata)
		if node.Metadata == nil {
			node.Metadata = make(map[string]interface{})
		}
		node.Metadata["distance"] = d
		if _, ok := g.Nodes[node.Parent]; !ok {
			node.Parent = ""
		}
		out.AddNode(&node)
	}

	for _, e := range g.Edges {
		if !cfg.followsEdge(e) {
			continue
		}
		_, src := out.Nodes[e.Source]
		_, dst := out.Nodes[e.Target]
		if src && dst {
			out.AddEdge(e)
		}
	}
	return out
}
