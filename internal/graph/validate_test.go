package graph_test

import (
	"testing"

	"github.com/specialistvlad/mudyla/internal/graph"
	"github.com/stretchr/testify/require"
)

func validateGraph(t *testing.T, content string, goals ...string) error {
	t.Helper()
	doc := parseDoc(t, content)
	specs := make([]graph.GoalSpec, len(goals))
	for i, goal := range goals {
		specs[i] = graph.GoalSpec{Action: goal}
	}
	g := build(t, doc, specs, nil)
	return graph.Validate(doc, g)
}

func TestValidateDetectsCycle(t *testing.T) {
	err := validateGraph(t,
		"# action: a\n\n```bash\ndep action.b\nret ok:int=1\n```\n\n"+
			"# action: b\n\n```bash\ndep action.a\nret ok:int=1\n```\n",
		"a")
	require.Error(t, err)
	require.Contains(t, err.Error(), "dependency cycle")
	require.Contains(t, err.Error(), "->")
}

func TestValidateMissingArgumentAndFlag(t *testing.T) {
	err := validateGraph(t,
		"# arguments\n\n- `args.needed`: string; required input\n\n"+
			"# action: a\n\n```bash\necho ${args.needed} ${args.undefined} ${flags.nope}\nret ok:int=1\n```\n",
		"a")
	require.Error(t, err)
	require.Contains(t, err.Error(), `missing argument "needed"`)
	require.Contains(t, err.Error(), `undefined argument "undefined"`)
	require.Contains(t, err.Error(), `undefined flag "nope"`)
}

func TestValidateMissingEnv(t *testing.T) {
	err := validateGraph(t,
		"# action: a\n\n```bash\ndep env.MDL_TEST_SURELY_UNSET_VAR\nret ok:int=1\n```\n",
		"a")
	require.Error(t, err)
	require.Contains(t, err.Error(), "MDL_TEST_SURELY_UNSET_VAR")
}

func TestValidateDeclaredEnvironmentSatisfiesEnv(t *testing.T) {
	err := validateGraph(t,
		"# environment\n\n- `MDL_TEST_DECLARED_VAR`: hello\n\n"+
			"# action: a\n\n```bash\necho ${env.MDL_TEST_DECLARED_VAR}\nret ok:int=1\n```\n",
		"a")
	require.NoError(t, err)
}

func TestValidateMissingOutput(t *testing.T) {
	err := validateGraph(t,
		"# action: provider\n\n```bash\nret real:int=1\n```\n\n"+
			"# action: consumer\n\n```bash\necho ${action.provider.phantom}\nret ok:int=1\n```\n",
		"consumer")
	require.Error(t, err)
	require.Contains(t, err.Error(), `output "phantom"`)
}

func TestValidateMissingRequiredAxis(t *testing.T) {
	err := validateGraph(t,
		"# axis\n\n- `mode`=`{a|b}`\n\n"+
			"# action: build\n\n"+
			"## definition when `mode: a`\n\n```bash\nret ok:int=1\n```\n\n"+
			"## definition when `mode: b`\n\n```bash\nret ok:int=1\n```\n",
		"build")
	require.Error(t, err)
	require.Contains(t, err.Error(), `requires axis "mode"`)
}

func TestValidateRetainerWithWeakDepsRejected(t *testing.T) {
	err := validateGraph(t,
		"# action: other\n\n```bash\nret ok:int=1\n```\n\n"+
			"# action: feature\n\n```bash\nret ok:int=1\n```\n\n"+
			"# action: gate\n\n```bash\nweak action.other\nretain\nret ok:int=1\n```\n\n"+
			"# action: consumer\n\n```bash\nsoft action.feature retain.action.gate\nret ok:int=1\n```\n",
		"consumer")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not declare weak or soft dependencies")
}

func TestValidateWeakTargetsMayDangle(t *testing.T) {
	// The weak provider's own problems are irrelevant while it is pruned.
	err := validateGraph(t,
		"# action: provider\n\n```bash\necho ${args.undefined-anywhere}\nret v:int=1\n```\n\n"+
			"# action: consumer\n\n```bash\nweak action.provider\necho ${action.weak.provider.v}\nret ok:int=1\n```\n",
		"consumer")
	require.NoError(t, err)
}

func TestValidateCleanDocumentPasses(t *testing.T) {
	err := validateGraph(t,
		"# action: a\n\n```bash\nret d:string=x\n```\n\n"+
			"# action: b\n\n```bash\necho ${action.a.d}\nret ok:int=1\n```\n",
		"b")
	require.NoError(t, err)
}
