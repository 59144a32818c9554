// Package depgraph implements the bipartite dependency graph (C6 in
// SPEC_FULL.md): typed artifact and action nodes, insertion, and
// post-batch cycle validation.
//
// Grounded on _examples/bufbuild-buf/private/pkg/dag/dag_test.go and
// toposort/toposort_test.go (generic Graph[T]/AddEdge/TopoSort API shape
// and the "a -> b -> c -> a" cycle-chain error text), adapted from a
// generic string-keyed graph to the typed artifact/action bipartite
// graph spec.md §3 describes.
package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/artifact"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
)

// ArtifactNode is one artifact in the graph: its description, the action
// that builds it (nil for Local/Known artifacts, which have no builder),
// and the actions that consume it as an input.
type ArtifactNode struct {
	ID          string
	Description *artifact.Description
	Builder     *ActionNode
	consumers   map[string]*ActionNode // keyed by consumer action id
}

// ActionNode is one action in the graph: its description plus resolved
// output and input artifact nodes.
type ActionNode struct {
	ID          string
	Description *artifact.ActionDescription
	Outputs     []*ArtifactNode
	Inputs      map[string]*ArtifactNode // path -> input artifact node
}

// Graph is the bipartite dependency graph. Nodes are added monotonically;
// a Graph is never mutated or pruned once a node is inserted.
type Graph struct {
	artifacts map[string]*ArtifactNode
	actions   map[string]*ActionNode
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		artifacts: make(map[string]*ArtifactNode),
		actions:   make(map[string]*ActionNode),
	}
}

// ArtifactNode returns the node for id, or nil if absent.
func (g *Graph) ArtifactNode(id string) *ArtifactNode { return g.artifacts[id] }

// ActionNode returns the node for id, or nil if absent.
func (g *Graph) ActionNode(id string) *ActionNode { return g.actions[id] }

// NumArtifacts returns the number of distinct artifact nodes.
func (g *Graph) NumArtifacts() int { return len(g.artifacts) }

// NumActions returns the number of distinct action nodes.
func (g *Graph) NumActions() int { return len(g.actions) }

// AddAction inserts one action node, its output artifact nodes, and edges
// to its input artifact nodes (creating source artifact nodes as needed).
// It rejects: a duplicate action id, an empty command/outputs, output
// paths shared between output_files and output_dirs, and an output whose
// artifact id already has a different builder.
func (g *Graph) AddAction(desc *artifact.ActionDescription) (*ActionNode, error) {
	actionID := desc.Act.ID()
	if _, ok := g.actions[actionID]; ok {
		return nil, errs.Newf(errs.KindInvariant, "depgraph: duplicate action id %q", actionID)
	}
	if len(desc.Act.Command()) == 0 {
		return nil, errs.New(errs.KindInvariant, "depgraph: action command must be non-empty")
	}
	outputPaths := append(append([]string(nil), desc.OutputFiles...), desc.OutputDirs...)
	if len(outputPaths) == 0 {
		return nil, errs.New(errs.KindInvariant, "depgraph: action must have at least one output")
	}
	if err := checkUnique(outputPaths); err != nil {
		return nil, err
	}

	outputDescs := make([]*artifact.Description, len(outputPaths))
	outputIDs := make([]string, len(outputPaths))
	for i, path := range outputPaths {
		d := artifact.NewAction(actionID, path)
		id, err := d.ID()
		if err != nil {
			return nil, err
		}
		if existing, ok := g.artifacts[id]; ok && existing.Builder != nil {
			return nil, errs.Newf(errs.KindInvariant, "depgraph: output %q of action %s conflicts with an existing builder", path, actionID)
		}
		outputDescs[i] = d
		outputIDs[i] = id
	}

	inputNodes := make(map[string]*ArtifactNode, len(desc.Inputs))
	for path, inputID := range desc.Inputs {
		inputNodes[path] = g.getOrCreateSourceNode(inputID)
	}

	actionNode := &ActionNode{ID: actionID, Description: desc, Inputs: inputNodes}
	outputs := make([]*ArtifactNode, len(outputDescs))
	for i, d := range outputDescs {
		node := &ArtifactNode{ID: outputIDs[i], Description: d, Builder: actionNode, consumers: make(map[string]*ActionNode)}
		g.artifacts[outputIDs[i]] = node
		outputs[i] = node
	}
	actionNode.Outputs = outputs
	g.actions[actionID] = actionNode

	for _, inputNode := range inputNodes {
		inputNode.consumers[actionID] = actionNode
	}

	return actionNode, nil
}

// getOrCreateSourceNode returns the artifact node for id, creating a
// builder-less (source) node if one doesn't already exist. The node's
// Description is left nil for a newly created node whose content is not
// otherwise known to the graph; callers that need the description should
// populate it via BindArtifact before relying on it.
func (g *Graph) getOrCreateSourceNode(id string) *ArtifactNode {
	if node, ok := g.artifacts[id]; ok {
		return node
	}
	node := &ArtifactNode{ID: id, consumers: make(map[string]*ActionNode)}
	g.artifacts[id] = node
	return node
}

// BindArtifact attaches a full Description to an artifact node that was
// created as a bare input reference, so later consumers (execution, e.g.)
// can inspect what kind of artifact it names.
func (g *Graph) BindArtifact(id string, desc *artifact.Description) {
	node := g.getOrCreateSourceNode(id)
	if node.Description == nil {
		node.Description = desc
	}
}

func checkUnique(paths []string) error {
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			return errs.Newf(errs.KindInvariant, "depgraph: duplicate output path %q", p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

type color int

const (
	white color = iota
	gray
	black
)

// CycleError reports a directed cycle through action -> output ->
// consumer-action edges, naming every action on the cycle.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return "depgraph: cycle detected: " + strings.Join(e.Chain, " -> ")
}

// Validate checks that the graph has no directed cycle through
// action -> output -> consumer-action edges. It is O(V+E) via DFS with
// gray/black marking and is meant to run once after a batch of AddAction
// calls, not per-insert.
func (g *Graph) Validate() error {
	colors := make(map[string]color, len(g.actions))
	var stack []string

	var visit func(actionID string) error
	visit = func(actionID string) error {
		switch colors[actionID] {
		case black:
			return nil
		case gray:
			chain := append(append([]string(nil), stack...), actionID)
			return &CycleError{Chain: chain}
		}
		colors[actionID] = gray
		stack = append(stack, actionID)

		node := g.actions[actionID]
		for _, out := range node.Outputs {
			for consumerID := range out.consumers {
				if err := visit(consumerID); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[actionID] = black
		return nil
	}

	// Sorted iteration keeps error messages deterministic across runs.
	ids := make([]string, 0, len(g.actions))
	for id := range g.actions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if colors[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// String renders a Graph summary for diagnostics.
func (g *Graph) String() string {
	return fmt.Sprintf("depgraph{artifacts=%d, actions=%d}", len(g.artifacts), len(g.actions))
}
