package graph

import (
	"fmt"
	"slices"
	"strings"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// Vertex is a labelled node in a DAG. Children are the vertices this one
// depends on, parents are the vertices that depend on this one. Both lists
// keep insertion order.
type Vertex struct {
	label    string
	id       int64
	children []*Vertex
	parents  []*Vertex
}

// Label returns the vertex label
func (v *Vertex) Label() string {
	return v.label
}

// ID returns the vertex id in the underlying gonum graph
func (v *Vertex) ID() int64 {
	return v.id
}

// Children returns the vertices this vertex has edges to
func (v *Vertex) Children() []*Vertex {
	return slices.Clone(v.children)
}

// Parents returns the vertices with edges to this vertex
func (v *Vertex) Parents() []*Vertex {
	return slices.Clone(v.parents)
}

// ChildLabels returns the labels of Children
func (v *Vertex) ChildLabels() []string {
	return labels(v.children)
}

// ParentLabels returns the labels of Parents
func (v *Vertex) ParentLabels() []string {
	return labels(v.parents)
}

// IsLeaf reports whether the vertex has no children
func (v *Vertex) IsLeaf() bool {
	return len(v.children) == 0
}

// IsRoot reports whether the vertex has no parents
func (v *Vertex) IsRoot() bool {
	return len(v.parents) == 0
}

// IsConnected reports whether the vertex has any edge
func (v *Vertex) IsConnected() bool {
	return !v.IsLeaf() || !v.IsRoot()
}

func labels(vs []*Vertex) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.label
	}
	return out
}

// CycleDetectedError is returned when an edge would close a cycle. Cycle
// starts and ends with the label of the edge source.
type CycleDetectedError struct {
	From  string
	To    string
	Cycle []string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("edge between '%s' and '%s' introduces a cycle in the graph: %s",
		e.From, e.To, strings.Join(e.Cycle, " --> "))
}

// DAG is a directed acyclic graph of labelled vertices. Reachability queries
// run on a gonum graph; vertex and edge order is kept alongside so traversal
// is deterministic.
type DAG struct {
	graph    *simple.DirectedGraph
	vertices []*Vertex
	byLabel  map[string]*Vertex
	byID     map[int64]*Vertex
	nextID   int64
}

// New creates an empty DAG
func New() *DAG {
	return &DAG{
		graph:   simple.NewDirectedGraph(),
		byLabel: make(map[string]*Vertex),
		byID:    make(map[int64]*Vertex),
	}
}

// AddVertex returns the vertex with the label, creating it if needed
func (d *DAG) AddVertex(label string) *Vertex {
	if v, ok := d.byLabel[label]; ok {
		return v
	}

	v := &Vertex{label: label, id: d.nextID}
	d.nextID++

	d.graph.AddNode(simple.Node(v.id))
	d.vertices = append(d.vertices, v)
	d.byLabel[label] = v
	d.byID[v.id] = v
	return v
}

// Vertex returns the vertex with the label, or nil
func (d *DAG) Vertex(label string) *Vertex {
	return d.byLabel[label]
}

// VertexByID returns the vertex with the gonum node id, or nil
func (d *DAG) VertexByID(id int64) *Vertex {
	return d.byID[id]
}

// Vertices returns all vertices in insertion order
func (d *DAG) Vertices() []*Vertex {
	return slices.Clone(d.vertices)
}

// Labels returns all vertex labels in insertion order
func (d *DAG) Labels() []string {
	return labels(d.vertices)
}

// HasEdge reports whether from has an edge to to
func (d *DAG) HasEdge(from, to string) bool {
	f, t := d.byLabel[from], d.byLabel[to]
	if f == nil || t == nil {
		return false
	}
	return d.graph.HasEdgeFromTo(f.id, t.id)
}

// AddEdge records that from depends on to. Missing vertices are created. If
// the edge would close a cycle the graph is left unchanged and a
// *CycleDetectedError is returned.
func (d *DAG) AddEdge(from, to string) error {
	f := d.AddVertex(from)
	t := d.AddVertex(to)

	if f == t {
		return &CycleDetectedError{From: from, To: to, Cycle: []string{from, from}}
	}
	if d.graph.HasEdgeFromTo(f.id, t.id) {
		return nil
	}

	if back, _ := path.DijkstraFromTo(d.graph.Node(t.id), d.graph.Node(f.id), d.graph); len(back) > 0 {
		cycle := []string{from}
		for _, n := range back {
			cycle = append(cycle, d.byID[n.ID()].label)
		}
		return &CycleDetectedError{From: from, To: to, Cycle: cycle}
	}

	d.graph.SetEdge(d.graph.NewEdge(d.graph.Node(f.id), d.graph.Node(t.id)))
	f.children = append(f.children, t)
	t.parents = append(t.parents, f)
	return nil
}

// RemoveEdge deletes the edge from -> to if present
func (d *DAG) RemoveEdge(from, to string) {
	f, t := d.byLabel[from], d.byLabel[to]
	if f == nil || t == nil || !d.graph.HasEdgeFromTo(f.id, t.id) {
		return
	}
	d.graph.RemoveEdge(f.id, t.id)
	f.children = slices.DeleteFunc(f.children, func(v *Vertex) bool { return v == t })
	t.parents = slices.DeleteFunc(t.parents, func(v *Vertex) bool { return v == f })
}

// VisitAll returns every label in depth-first post-order: each vertex appears
// after all vertices it depends on. Roots are taken in insertion order and
// children in edge insertion order, so the result is deterministic.
func (d *DAG) VisitAll() []string {
	visited := make(map[*Vertex]bool, len(d.vertices))
	out := make([]string, 0, len(d.vertices))

	var visit func(v *Vertex)
	visit = func(v *Vertex) {
		visited[v] = true
		for _, c := range v.children {
			if !visited[c] {
				visit(c)
			}
		}
		out = append(out, v.label)
	}

	for _, v := range d.vertices {
		if !visited[v] {
			visit(v)
		}
	}
	return out
}

// Graph returns the underlying directed graph for read-only algorithms
func (d *DAG) Graph() gonum.Directed {
	return d.graph
}
