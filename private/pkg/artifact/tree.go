package artifact

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/digest"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
)

// Tree describes a materialised directory as a path→Description map, plus
// the zero-input "tree action" and KindTree artifact that expose it to the
// rest of the engine (grounded on
// original_source/src/buildtool/common/tree.hpp).
type Tree struct {
	id     string
	inputs map[string]*Description
}

// NewTreeFromInputs builds a Tree from its inputs, computing its id.
func NewTreeFromInputs(inputs map[string]*Description) (*Tree, error) {
	id, err := treeID(inputs)
	if err != nil {
		return nil, err
	}
	return &Tree{id: id, inputs: copyDescMap(inputs)}, nil
}

// ID returns the tree's identifier.
func (t *Tree) ID() string { return t.id }

// Inputs returns a copy of the tree's path→Description map.
func (t *Tree) Inputs() map[string]*Description { return copyDescMap(t.inputs) }

// ToJSON returns the tree's canonical description: a JSON object mapping
// each path to its artifact's canonical JSON.
func (t *Tree) ToJSON() ([]byte, error) {
	return treeDescriptionJSON(t.inputs)
}

// TreeFromJSON parses a Tree description whose id is already known
// (trees, like actions, carry an externally supplied id rather than
// recomputing it from the wire form).
func TreeFromJSON(hashType digest.Type, id string, data []byte) (*Tree, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Newf(errs.KindParse, "tree: malformed description: %v", err)
	}
	inputs := make(map[string]*Description, len(raw))
	for path, entry := range raw {
		desc, err := FromJSON(hashType, entry)
		if err != nil {
			return nil, err
		}
		inputs[path] = desc
	}
	return &Tree{id: id, inputs: inputs}, nil
}

// Action returns the zero-input tree action whose identity *is* the tree's
// id: evaluating it produces the materialised directory described by
// Inputs.
func (t *Tree) Action() (*ActionDescription, error) {
	inputIDs, err := inputIDMap(t.inputs)
	if err != nil {
		return nil, err
	}
	return &ActionDescription{
		Act:    Action{id: t.id, isTreeAction: true},
		Inputs: inputIDs,
	}, nil
}

// Output returns the KindTree Description naming this tree.
func (t *Tree) Output() *Description {
	return NewTree(t.id)
}

// treeID computes the canonical tree id: the compatible hash of
// "TREE:" followed by the tree's canonical description JSON.
func treeID(inputs map[string]*Description) (string, error) {
	data, err := treeDescriptionJSON(inputs)
	if err != nil {
		return "", err
	}
	dig, err := digest.HashCompatible([]byte(fmt.Sprintf("TREE:%s", data)))
	if err != nil {
		return "", err
	}
	return dig.Hex(), nil
}

func treeDescriptionJSON(inputs map[string]*Description) ([]byte, error) {
	raw := make(map[string]json.RawMessage, len(inputs))
	for path, desc := range inputs {
		data, err := desc.ToJSON()
		if err != nil {
			return nil, err
		}
		raw[path] = data
	}
	return json.Marshal(raw)
}

func inputIDMap(inputs map[string]*Description) (map[string]string, error) {
	out := make(map[string]string, len(inputs))
	for path, desc := range inputs {
		id, err := desc.ID()
		if err != nil {
			return nil, err
		}
		out[path] = id
	}
	return out, nil
}

func copyDescMap(m map[string]*Description) map[string]*Description {
	out := make(map[string]*Description, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// TreeOverlay composes an ordered list of trees into one, optionally
// asserting disjointness of their paths (grounded on
// original_source/src/buildtool/common/tree_overlay.hpp).
type TreeOverlay struct {
	id       string
	trees    []*Description
	disjoint bool
}

// NewTreeOverlay builds a TreeOverlay from an ordered list of tree/known
// Descriptions.
func NewTreeOverlay(trees []*Description, disjoint bool) (*TreeOverlay, error) {
	id, err := treeOverlayID(trees, disjoint)
	if err != nil {
		return nil, err
	}
	cp := append([]*Description(nil), trees...)
	return &TreeOverlay{id: id, trees: cp, disjoint: disjoint}, nil
}

// ID returns the overlay's identifier.
func (o *TreeOverlay) ID() string { return o.id }

// Disjoint reports whether overlaying must fail on any path collision
// between the overlaid trees, rather than letting the rightmost tree win.
func (o *TreeOverlay) Disjoint() bool { return o.disjoint }

// ToJSON returns the overlay's canonical description:
// {"trees": [...], "disjoint": bool}.
func (o *TreeOverlay) ToJSON() ([]byte, error) {
	return treeOverlayDescriptionJSON(o.trees, o.disjoint)
}

// Inputs returns the overlay's trees as positional action inputs, keyed by
// ten-digit zero-padded index so lexicographic order equals positional
// order (spec.md §4.2's tie-break rule).
func (o *TreeOverlay) Inputs() map[string]*Description {
	return treesAsInputs(o.trees)
}

// Action returns the zero-input tree-overlay action whose identity is the
// overlay's id.
func (o *TreeOverlay) Action() *ActionDescription {
	inputs := o.Inputs()
	inputIDs := make(map[string]string, len(inputs))
	for path, desc := range inputs {
		// Descriptions placed here are always already-identified trees or
		// known artifacts, so ID() cannot fail.
		id, _ := desc.ID()
		inputIDs[path] = id
	}
	return &ActionDescription{
		Act:    Action{id: o.id, isTreeAction: true},
		Inputs: inputIDs,
	}
}

// Output returns the KindTree Description naming this overlay's result.
func (o *TreeOverlay) Output() *Description {
	return NewTree(o.id)
}

func treesAsInputs(trees []*Description) map[string]*Description {
	out := make(map[string]*Description, len(trees))
	for i, t := range trees {
		out[fmt.Sprintf("%010d", i)] = t
	}
	return out
}

func treeOverlayID(trees []*Description, disjoint bool) (string, error) {
	data, err := treeOverlayDescriptionJSON(trees, disjoint)
	if err != nil {
		return "", err
	}
	dig, err := digest.HashCompatible(data)
	if err != nil {
		return "", err
	}
	return dig.Hex(), nil
}

type treeOverlayWire struct {
	Trees    []json.RawMessage `json:"trees"`
	Disjoint bool              `json:"disjoint"`
}

func treeOverlayDescriptionJSON(trees []*Description, disjoint bool) ([]byte, error) {
	rawTrees := make([]json.RawMessage, len(trees))
	for i, t := range trees {
		data, err := t.ToJSON()
		if err != nil {
			return nil, err
		}
		rawTrees[i] = data
	}
	return json.Marshal(treeOverlayWire{Trees: rawTrees, Disjoint: disjoint})
}

// TreeOverlayFromJSON parses a TreeOverlay description whose id is already
// known.
func TreeOverlayFromJSON(hashType digest.Type, id string, data []byte) (*TreeOverlay, error) {
	var w treeOverlayWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errs.Newf(errs.KindParse, "tree_overlay: malformed description: %v", err)
	}
	trees := make([]*Description, len(w.Trees))
	for i, raw := range w.Trees {
		desc, err := FromJSON(hashType, raw)
		if err != nil {
			return nil, err
		}
		trees[i] = desc
	}
	return &TreeOverlay{id: id, trees: trees, disjoint: w.Disjoint}, nil
}

// sortedPaths returns m's keys in lexical order, for deterministic
// iteration over a path→Description map. Nothing in the package calls it.
func sortedPaths(m map[string]*Description) []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
