package depgraph

import (
	"testing"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A genuine action->output->consumer cycle can never arise from two
// actions built through NewActionDescription (an action's id is a hash
// of its own inputs, so two actions cannot each hash in the other's real
// output id without a fixed point). spec.md §8 scenario 4 describes the
// resulting graph shape directly, so this test wires two ActionNodes by
// hand the way a rule evaluator bug (or a deliberately adversarial rule)
// could still produce at the graph-node level, and checks Validate()
// catches it.
func TestValidate_DetectsCycleBetweenTwoActions(t *testing.T) {
	t.Parallel()
	g := New()

	descA, err := artifact.NewActionDescription([]string{"out1"}, nil, []string{"build", "out1"}, nil, "", false, 1, nil, map[string]string{"in": "placeholder"})
	require.NoError(t, err)
	descB, err := artifact.NewActionDescription([]string{"out2"}, nil, []string{"build", "out2"}, nil, "", false, 1, nil, map[string]string{"in": "placeholder"})
	require.NoError(t, err)

	actionA := &ActionNode{ID: descA.Act.ID(), Description: descA, Inputs: map[string]*ArtifactNode{}}
	actionB := &ActionNode{ID: descB.Act.ID(), Description: descB, Inputs: map[string]*ArtifactNode{}}

	out1 := &ArtifactNode{ID: "out1-artifact", Builder: actionA, consumers: map[string]*ActionNode{}}
	out2 := &ArtifactNode{ID: "out2-artifact", Builder: actionB, consumers: map[string]*ActionNode{}}
	actionA.Outputs = []*ArtifactNode{out1}
	actionB.Outputs = []*ArtifactNode{out2}

	// A consumes B's output; B consumes A's output: out1 -> B, out2 -> A.
	out1.consumers[actionB.ID] = actionB
	out2.consumers[actionA.ID] = actionA
	actionA.Inputs["in"] = out2
	actionB.Inputs["in"] = out1

	g.actions[actionA.ID] = actionA
	g.actions[actionB.ID] = actionB
	g.artifacts[out1.ID] = out1
	g.artifacts[out2.ID] = out2

	err = g.Validate()
	require.Error(t, err)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, cycleErr.Chain, actionA.ID)
	assert.Contains(t, cycleErr.Chain, actionB.ID)
}
