package engine_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/mudyla/internal/logger"
	"github.com/stretchr/testify/require"
)

const chainDefs = "# action: prepare\n\n```bash\n" +
	"mkdir -p test-output\n" +
	"ret d:directory=test-output\n" +
	"```\n\n" +
	"# action: write-message\n\n```bash\n" +
	"mkdir -p ${action.prepare.d}/msgs\n" +
	"echo hello > ${action.prepare.d}/msgs/msg.txt\n" +
	"ret f:file=${action.prepare.d}/msgs/msg.txt\n" +
	"```\n"

func TestSimpleChain(t *testing.T) {
	p := newProject(t, chainDefs)

	outputs := p.mustSucceed(":write-message")
	require.Contains(t, outputs, "write-message")
	require.Equal(t, "test-output/msgs/msg.txt", outputs["write-message"]["f"])

	content, err := os.ReadFile(filepath.Join(p.root, "test-output", "msgs", "msg.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(content))
}

func TestRunDirRemovedOnSuccessAndKept(t *testing.T) {
	p := newProject(t, chainDefs)

	result, _, err := p.run(":prepare")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NoDirExists(t, result.RunDir)

	result, _, err = p.run("--keep-run-dir", ":prepare")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.DirExists(t, result.RunDir)
	require.FileExists(t, filepath.Join(result.RunDir, "prepare", "meta.json"))
	require.FileExists(t, filepath.Join(result.RunDir, "prepare", "stdout.log"))
	require.FileExists(t, filepath.Join(result.RunDir, "prepare", "script.sh"))
}

const axisDefs = "# axis\n\n- `build-mode`=`{development*|release}`\n\n" +
	"# action: build\n\n" +
	"## definition when `build-mode: development`\n\n" +
	"```bash\nret mode:string=development\n```\n\n" +
	"## definition when `build-mode: release`\n\n" +
	"```bash\nret mode:string=release\n```\n"

func TestAxisVariantsExecuteSeparately(t *testing.T) {
	p := newProject(t, axisDefs)

	outputs := p.mustSucceed(":build", ":build", "--axis", "build-mode:release")
	require.Len(t, outputs, 2)
	require.Equal(t, "development", outputs["build@build-mode:development"]["mode"])
	require.Equal(t, "release", outputs["build@build-mode:release"]["mode"])
}

func TestUnifiedInvocationsExecuteOnce(t *testing.T) {
	p := newProject(t, axisDefs)

	result, eng, err := p.run(":build", "--axis", "build-mode:release", ":build", "--axis", "build-mode:release")
	require.NoError(t, err)
	require.True(t, result.Success)

	executed := 0
	for _, node := range result.Nodes {
		if node.Status == logger.StatusDone {
			executed++
		}
	}
	require.Equal(t, 1, executed)

	outputs := eng.GoalOutputs(result)
	require.Len(t, outputs, 1)
	require.Equal(t, "release", outputs["build"]["mode"])
}

const weakDefs = "# action: provider\n\n```bash\nret v:string=from-provider\n```\n\n" +
	"# action: consumer\n\n```bash\n" +
	"weak action.provider\n" +
	"ret saw:string=[${action.weak.provider.v}]\n" +
	"ret present:string=${retained.weak.provider}\n" +
	"```\n\n" +
	"# action: user\n\n```bash\necho ${action.provider.v}\nret ok:int=1\n```\n"

func TestWeakPruningAndRetention(t *testing.T) {
	p := newProject(t, weakDefs)

	// Alone: provider is pruned, the weak expansion renders empty.
	outputs := p.mustSucceed(":consumer")
	require.Equal(t, "[]", outputs["consumer"]["saw"])
	require.Equal(t, "0", outputs["consumer"]["present"])

	// With a strong path: provider runs once and the consumer sees it.
	outputs = p.mustSucceed(":consumer", ":user")
	require.Equal(t, "[from-provider]", outputs["consumer"]["saw"])
	require.Equal(t, "1", outputs["consumer"]["present"])
}

const softDefs = "# flags\n\n- `flags.enable`: turn the feature on\n\n" +
	"# action: feature\n\n```bash\nret v:string=feature-ran\n```\n\n" +
	"# action: decider\n\n```bash\n" +
	"if [ \"${flags.enable}\" = \"1\" ]; then\n" +
	"  retain\n" +
	"fi\n" +
	"ret ok:int=1\n" +
	"```\n\n" +
	"# action: wants-feature\n\n```bash\n" +
	"soft action.feature retain.action.decider\n" +
	"ret got:string=${retained.soft.feature}\n" +
	"```\n"

func TestSoftRetention(t *testing.T) {
	p := newProject(t, softDefs)

	// Without the flag the retainer runs but the target stays out.
	result, eng, err := p.run(":wants-feature")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, logger.StatusDone, result.Nodes["decider"].Status)
	require.Equal(t, logger.StatusSkipped, result.Nodes["feature"].Status)
	require.Equal(t, "0", eng.GoalOutputs(result)["wants-feature"]["got"])

	// With the flag: decider, then feature, then the consumer.
	result, eng, err = p.run(":wants-feature", "--enable")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, logger.StatusDone, result.Nodes["feature"].Status)
	require.Equal(t, "1", eng.GoalOutputs(result)["wants-feature"]["got"])

	featureEnd, err := time.Parse(time.RFC3339Nano, result.Nodes["feature"].Meta.EndTime)
	require.NoError(t, err)
	consumerStart, err := time.Parse(time.RFC3339Nano, result.Nodes["wants-feature"].Meta.StartTime)
	require.NoError(t, err)
	require.False(t, featureEnd.After(consumerStart), "promoted target must finish before its consumer starts")
}

func TestFailureAbortsDependents(t *testing.T) {
	p := newProject(t, "# action: boom\n\n```bash\nexit 3\n```\n\n"+
		"# action: late\n\n```bash\ndep action.boom\nret ok:int=1\n```\n")

	result, _, err := p.run(":late")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.DirExists(t, result.RunDir, "run directory is retained on failure")

	boom := result.Nodes["boom"]
	require.Equal(t, logger.StatusFailed, boom.Status)
	require.Equal(t, 3, boom.Meta.ExitCode)
	require.Contains(t, boom.Meta.ErrorMessage, "exited with code 3")
	require.Equal(t, logger.StatusSkipped, result.Nodes["late"].Status)

	meta, err := os.ReadFile(filepath.Join(result.RunDir, "boom", "meta.json"))
	require.NoError(t, err)
	require.Contains(t, string(meta), `"success": false`)
}

func TestMissingFileOutputFails(t *testing.T) {
	p := newProject(t, "# action: liar\n\n```bash\nret f:file=does/not/exist.txt\n```\n")

	result, _, err := p.run(":liar")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.Nodes["liar"].Meta.ErrorMessage, "does not exist")
}

func TestContinueRestoresSuccessfulNodes(t *testing.T) {
	p := newProject(t, "# action: base\n\n```bash\nret v:int=7\n```\n\n"+
		"# action: flaky\n\n```bash\necho ${action.base.v}\nexit 1\n```\n")

	result, _, err := p.run("--keep-run-dir", ":flaky")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, logger.StatusDone, result.Nodes["base"].Status)

	// Fix the failing action, then continue: base restores, flaky runs.
	p.rewrite("# action: base\n\n```bash\nret v:int=7\n```\n\n" +
		"# action: flaky\n\n```bash\nret got:int=${action.base.v}\n```\n")

	result, eng, err := p.run("--continue", ":flaky")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, logger.StatusRestored, result.Nodes["base"].Status)
	require.Equal(t, logger.StatusDone, result.Nodes["flaky"].Status)
	require.Equal(t, int64(7), eng.GoalOutputs(result)["flaky"]["got"])
}

func TestContinueTwiceRestoresEverything(t *testing.T) {
	p := newProject(t, chainDefs)

	first := p.mustSucceed("--keep-run-dir", ":write-message")

	result, eng, err := p.run("--continue", "--keep-run-dir", ":write-message")
	require.NoError(t, err)
	require.True(t, result.Success)
	for _, key := range []string{"prepare", "write-message"} {
		require.Equal(t, logger.StatusRestored, result.Nodes[key].Status, key)
	}
	require.Equal(t, first, eng.GoalOutputs(result))
}

func TestPythonAction(t *testing.T) {
	p := newProject(t, "# action: base\n\n```bash\nret v:int=5\n```\n\n"+
		"# action: calc\n\n```python\n"+
		"mdl.dep(\"action.base\")\n"+
		"doubled = int(mdl.actions[\"base\"][\"v\"]) * 2\n"+
		"mdl.ret(\"doubled\", doubled, \"int\")\n"+
		"mdl.ret(\"mode\", \"py\", \"string\")\n"+
		"```\n")

	outputs := p.mustSucceed(":calc")
	require.Equal(t, int64(10), outputs["calc"]["doubled"])
	require.Equal(t, "py", outputs["calc"]["mode"])
}

func TestSequentialMode(t *testing.T) {
	p := newProject(t, chainDefs)
	outputs := p.mustSucceed("--seq", ":write-message")
	require.Contains(t, outputs, "write-message")
}

func TestDeclaredEnvironmentReachesChildren(t *testing.T) {
	p := newProject(t, "# environment\n\n- `MDL_STAGE`: integration\n\n"+
		"# action: probe\n\n```bash\nret stage:string=${env.MDL_STAGE}\n```\n")

	outputs := p.mustSucceed(":probe")
	require.Equal(t, "integration", outputs["probe"]["stage"])
}
