package lens

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/ritzau/pomreactor/pkg/model"
)

// GraphDiff represents the difference between two rendered graphs
type GraphDiff struct {
	AddedNodes    []*model.Node `json:"addedNodes"`
	RemovedNodes  []string      `json:"removedNodes"`
	ModifiedNodes []*model.Node `json:"modifiedNodes"`
	AddedEdges    []*model.Edge `json:"addedEdges"`
	RemovedEdges  []string      `json:"removedEdges"` // source|target|type
	FullGraph     bool          `json:"fullGraph"`    // True if this is a full graph, not a diff
}

// GraphSnapshot is a rendered graph kept for diffing
type GraphSnapshot struct {
	Hash  string
	Nodes map[string]*model.Node
	Edges map[string]*model.Edge
}

// ComputeHash identifies a render request
func ComputeHash(cfg *Config, selected []string) string {
	data, err := json.Marshal(struct {
		Lens     *Config
		Selected []string
	}{cfg, slices.Sorted(slices.Values(selected))})
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// CreateSnapshot indexes a rendered graph
func CreateSnapshot(g *model.Graph) *GraphSnapshot {
	s := &GraphSnapshot{
		Nodes: make(map[string]*model.Node, len(g.Nodes)),
		Edges: make(map[string]*model.Edge, len(g.Edges)),
	}
	for id, n := range g.Nodes {
		s.Nodes[id] = n
	}
	for _, e := range g.Edges {
		s.Edges[edgeKey(e)] = e
	}
	data, _ := json.Marshal(g)
	s.Hash = fmt.Sprintf("%x", sha256.Sum256(data))
	return s
}

// ComputeDiff computes what changed from old to g, in id order. Without a
// previous snapshot the whole graph is returned.
func ComputeDiff(old *GraphSnapshot, g *model.Graph) *GraphDiff {
	ids := slices.Sorted(maps.Keys(g.Nodes))
	if old == nil {
		diff := &GraphDiff{FullGraph: true, AddedEdges: slices.Clone(g.Edges)}
		for _, id := range ids {
			diff.AddedNodes = append(diff.AddedNodes, g.Nodes[id])
		}
		return diff
	}

	diff := &GraphDiff{
		AddedNodes:    []*model.Node{},
		RemovedNodes:  []string{},
		ModifiedNodes: []*model.Node{},
		AddedEdges:    []*model.Edge{},
		RemovedEdges:  []string{},
	}

	for _, id := range ids {
		n := g.Nodes[id]
		if prev, ok := old.Nodes[id]; !ok {
			diff.AddedNodes = append(diff.AddedNodes, n)
		} else if !nodesEqual(prev, n) {
			diff.ModifiedNodes = append(diff.ModifiedNodes, n)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(old.Nodes)) {
		if _, ok := g.Nodes[id]; !ok {
			diff.RemovedNodes = append(diff.RemovedNodes, id)
		}
	}

	current := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		key := edgeKey(e)
		current[key] = true
		if _, ok := old.Edges[key]; !ok {
			diff.AddedEdges = append(diff.AddedEdges, e)
		}
	}
	for _, key := range slices.Sorted(maps.Keys(old.Edges)) {
		if !current[key] {
			diff.RemovedEdges = append(diff.RemovedEdges, key)
		}
	}
	return diff
}

func edgeKey(e *model.Edge) string {
	return fmt.Sprintf("%s|%s|%s", e.Source, e.Target, e.Type)
}

// nodesEqual compares the fields that affect the rendered structure
func nodesEqual(a, b *model.Node) bool {
	return a.ID == b.ID &&
		a.Label == b.Label &&
		a.Type == b.Type &&
		a.Parent == b.Parent &&
		a.Order == b.Order &&
		a.Metadata["distance"] == b.Metadata["distance"]
}
