package orchestrator

import "fmt"

// Materialization is how a node's statement is realized in the warehouse.
type Materialization string

const (
	MaterializationTable Materialization = "table"
	MaterializationView  Materialization = "view"
)

// Node is one compiled model in the onboarding run's DAG: a named SQL
// artifact, its materialization kind, and the node ids it depends on.
type Node struct {
	ID              string
	Name            string
	Statement       string
	Materialization Materialization
	Tags            []string
	DependsOn       []string

	// StagingView names the staging view the push circuit should merge
	// from once this node materializes successfully. Only meaningful when
	// Tags includes "merge_target"; Name is the master model id in that case.
	StagingView string
}

// Graph is a DAG of Nodes, compiled from a flat list by reference relation.
type Graph struct {
	nodes map[string]*Node
	order []string
}

// Compile builds a Graph from nodes, validating that every DependsOn
// reference exists and that the graph is acyclic.
func Compile(nodes []Node) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*Node, len(nodes))}
	for i := range nodes {
		n := nodes[i]
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		g.nodes[n.ID] = &n
		g.order = append(g.order, n.ID)
	}
	for _, n := range g.nodes {
		for _, dep := range n.DependsOn {
			if _, ok := g.nodes[dep]; !ok {
				return nil, fmt.Errorf("node %q depends on unknown node %q", n.ID, dep)
			}
		}
	}

	sorted, err := g.topoSort()
	if err != nil {
		return nil, err
	}
	g.order = sorted
	return g, nil
}

// TopologicalOrder returns node ids in an order where every node appears
// after everything it depends on.
func (g *Graph) TopologicalOrder() []string {
	return g.order
}

// Node returns the node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

const (
	stateUnvisited = 0
	stateVisiting  = 1
	stateDone      = 2
)

// topoSort runs a recursive depth-first topological sort, failing with an
// error naming the cycle if one is found.
func (g *Graph) topoSort() ([]string, error) {
	state := make(map[string]int, len(g.nodes))
	var sorted []string
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case stateDone:
			return nil
		case stateVisiting:
			return fmt.Errorf("dependency cycle detected involving node %q (path: %v)", id, append(stack, id))
		}
		state[id] = stateVisiting
		stack = append(stack, id)
		for _, dep := range g.nodes[id].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = stateDone
		sorted = append(sorted, id)
		return nil
	}

	for _, id := range g.order {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}
