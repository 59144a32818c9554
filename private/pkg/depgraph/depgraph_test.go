package depgraph_test

import (
	"testing"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/artifact"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/depgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAction(t *testing.T, outputs []string, command []string, inputs map[string]string) *artifact.ActionDescription {
	t.Helper()
	desc, err := artifact.NewActionDescription(outputs, nil, command, nil, "", false, 1, nil, inputs)
	require.NoError(t, err)
	return desc
}

// spec.md §8 scenario 3: single action, single output.
func TestAddAction_SingleOutput(t *testing.T) {
	t.Parallel()
	g := depgraph.New()
	desc := newAction(t, []string{"out"}, []string{"touch", "out"}, nil)

	actionNode, err := g.AddAction(desc)
	require.NoError(t, err)
	require.Len(t, actionNode.Outputs, 1)
	assert.Equal(t, 1, g.NumActions())
	assert.Equal(t, 1, g.NumArtifacts())
	assert.Same(t, actionNode, actionNode.Outputs[0].Builder)
	require.NoError(t, g.Validate())
}

func TestAddAction_RejectsDuplicateActionID(t *testing.T) {
	t.Parallel()
	g := depgraph.New()
	desc := newAction(t, []string{"out"}, []string{"touch", "out"}, nil)
	_, err := g.AddAction(desc)
	require.NoError(t, err)

	_, err = g.AddAction(desc)
	require.Error(t, err)
}

func TestAddAction_DistinctActionsDistinctOutputArtifacts(t *testing.T) {
	t.Parallel()
	g := depgraph.New()
	descA := newAction(t, []string{"out"}, []string{"touch", "out"}, nil)
	_, err := g.AddAction(descA)
	require.NoError(t, err)

	// A different action that happens to also declare an output named
	// "out" gets a distinct artifact id, since the id is a hash of
	// (actionID, path), not of path alone.
	descB := newAction(t, []string{"out"}, []string{"touch", "out2"}, nil)
	_, err = g.AddAction(descB)
	require.NoError(t, err)
	assert.Equal(t, 2, g.NumActions())
	assert.Equal(t, 2, g.NumArtifacts())
}

func TestAddAction_RejectsEmptyCommandOrOutputs(t *testing.T) {
	t.Parallel()
	g := depgraph.New()
	_, err := g.AddAction(&artifact.ActionDescription{})
	require.Error(t, err)
}

func TestAddAction_InputCreatesSourceNode(t *testing.T) {
	t.Parallel()
	g := depgraph.New()
	desc := newAction(t, []string{"out"}, []string{"touch", "out"}, map[string]string{"in": "src-id"})
	actionNode, err := g.AddAction(desc)
	require.NoError(t, err)
	srcNode := g.ArtifactNode("src-id")
	require.NotNil(t, srcNode)
	assert.Nil(t, srcNode.Builder)
	assert.Same(t, srcNode, actionNode.Inputs["in"])
}

func TestValidate_NoCycleForIndependentActions(t *testing.T) {
	t.Parallel()
	g := depgraph.New()
	_, err := g.AddAction(newAction(t, []string{"a"}, []string{"touch", "a"}, nil))
	require.NoError(t, err)
	_, err = g.AddAction(newAction(t, []string{"b"}, []string{"touch", "b"}, nil))
	require.NoError(t, err)
	require.NoError(t, g.Validate())
}

// A chain (not a cycle) of actions consuming each other's outputs must
// still validate cleanly.
func TestValidate_ChainIsNotACycle(t *testing.T) {
	t.Parallel()
	g := depgraph.New()
	descA := newAction(t, []string{"a"}, []string{"touch", "a"}, nil)
	actionA, err := g.AddAction(descA)
	require.NoError(t, err)

	aOutID := actionA.Outputs[0].ID
	descB := newAction(t, []string{"b"}, []string{"touch", "b"}, map[string]string{"in": aOutID})
	_, err = g.AddAction(descB)
	require.NoError(t, err)

	require.NoError(t, g.Validate())
}
