package model

// Graph is an exportable view of a reactor: one node per project and one edge
// per relationship the sorter recorded. It backs the JSON/YAML output and the web API.
type Graph struct {
	Nodes map[string]*Node `json:"nodes" yaml:"nodes"`
	Edges []*Edge          `json:"edges" yaml:"edges"`
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
		Edges: make([]*Edge, 0),
	}
}

// EdgeType classifies why one project depends on another
type EdgeType string

const (
	EdgeDependency EdgeType = "dependency"
	EdgeParent     EdgeType = "parent"
	EdgePlugin     EdgeType = "plugin"
	EdgeExtension  EdgeType = "extension"
	EdgeModule     EdgeType = "module"
)

// Node represents a project in the reactor graph.
type Node struct {
	ID       string                 `json:"id" yaml:"id"`
	Label    string                 `json:"label" yaml:"label"`
	Type     string                 `json:"type" yaml:"type"`                         // packaging, e.g. "jar", "pom"
	Parent   string                 `json:"parent,omitempty" yaml:"parent,omitempty"` // ID of the parent project
	Order    int                    `json:"order" yaml:"order"`                       // position in the build order
	Metadata map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Edge represents a directed "depends on" connection between two projects.
type Edge struct {
	Source   string                 `json:"source" yaml:"source"`
	Target   string                 `json:"target" yaml:"target"`
	Type     EdgeType               `json:"type" yaml:"type"`
	Dropped  bool                   `json:"dropped,omitempty" yaml:"dropped,omitempty"` // closed a cycle and was ignored
	Metadata map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// AddNode adds a node to the graph. If a node with the same ID exists, it updates it.
func (g *Graph) AddNode(node *Node) {
	if node.Metadata == nil {
		node.Metadata = make(map[string]interface{})
	}
	g.Nodes[node.ID] = node
}

// AddEdge adds an edge to the graph.
func (g *Graph) AddEdge(edge *Edge) {
	if edge.Metadata == nil {
		edge.Metadata = make(map[string]interface{})
	}
	g.Edges = append(g.Edges, edge)
}

// EdgesFrom returns the edges leaving the given node
func (g *Graph) EdgesFrom(id string) []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}
