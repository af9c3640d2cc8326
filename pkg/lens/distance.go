package lens

import (
	"strings"

	"github.com/ritzau/pomreactor/pkg/model"
)

type distanceQueueNode struct {
	nodeID   string
	distance int
}

// expandSelection resolves selected ids to project ids. A full id selects
// itself; a groupId or groupId:artifactId prefix selects every matching
// project.
func expandSelection(selected []string, g *model.Graph) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range selected {
		if _, ok := g.Nodes[id]; ok {
			add(id)
			continue
		}
		for nodeID := range g.Nodes {
			if strings.HasPrefix(nodeID, id+":") {
				add(nodeID)
			}
		}
	}
	return out
}

// ComputeDistances calculates the shortest undirected distance from each
// project to the nearest selected project, over the edges cfg follows.
// Projects not reached take the distance of their parent project.
func ComputeDistances(g *model.Graph, cfg *Config, selected []string) map[string]int {
	distances := make(map[string]int, len(g.Nodes))

	adjacency := make(map[string][]string)
	for _, e := range g.Edges {
		if !cfg.followsEdge(e) {
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		adjacency[e.Target] = append(adjacency[e.Target], e.Source)
	}

	var queue []distanceQueueNode
	for _, id := range expandSelection(selected, g) {
		distances[id] = 0
		queue = append(queue, distanceQueueNode{nodeID: id})
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, neighbor := range adjacency[current.nodeID] {
			if _, ok := distances[neighbor]; !ok {
				distances[neighbor] = current.distance + 1
				queue = append(queue, distanceQueueNode{nodeID: neighbor, distance: current.distance + 1})
			}
		}
	}

	for id := range g.Nodes {
		if _, ok := distances[id]; !ok {
			distances[id] = inheritedDistance(g, id, distances, make(map[string]bool))
		}
	}
	return distances
}

func inheritedDistance(g *model.Graph, id string, distances map[string]int, visiting map[string]bool) int {
	node := g.Nodes[id]
	if node == nil || node.Parent == "" || visiting[id] {
		return Infinite
	}
	visiting[id] = true
	if d, ok := distances[node.Parent]; ok {
		return d
	}
	return inheritedDistance(g, node.Parent, distances, visiting)
}
