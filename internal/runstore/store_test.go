package runstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/mudyla/internal/model"
	"github.com/stretchr/testify/require"
)

func TestNewRunAndLatest(t *testing.T) {
	root := t.TempDir()
	store := &Store{ProjectRoot: root}

	base := time.Date(2026, 8, 5, 10, 30, 0, 123456789, time.UTC)
	first, err := store.NewRun(base)
	require.NoError(t, err)
	second, err := store.NewRun(base.Add(time.Second))
	require.NoError(t, err)

	require.Equal(t, "20260805-103000-123456789", first.ID)
	require.DirExists(t, first.Dir)

	latest, ok := store.LatestRun()
	require.True(t, ok)
	require.Equal(t, second.ID, latest.ID)
}

func TestLatestRunWithoutRuns(t *testing.T) {
	store := &Store{ProjectRoot: t.TempDir()}
	_, ok := store.LatestRun()
	require.False(t, ok)
}

func TestMetaRoundTrip(t *testing.T) {
	dir := t.TempDir()
	meta := Meta{
		ActionName:      "build",
		Success:         true,
		StartTime:       "2026-08-05T10:30:00Z",
		EndTime:         "2026-08-05T10:30:02Z",
		DurationSeconds: 2.0,
		ExitCode:        0,
		StdoutSize:      10,
	}
	require.NoError(t, WriteMeta(dir, meta))

	got, err := ReadMeta(dir)
	require.NoError(t, err)
	require.Equal(t, meta, got)
}

func writeOutputs(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output.json"), []byte(body), 0o644))
}

func TestParseOutputsCoercesTypes(t *testing.T) {
	root := t.TempDir()
	nodeDir := filepath.Join(root, "node")
	require.NoError(t, os.MkdirAll(nodeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "artifact.txt"), []byte("x"), 0o644))

	writeOutputs(t, nodeDir, `{
		"count": {"type": "int", "value": 3},
		"enabled": {"type": "bool", "value": true},
		"name": {"type": "string", "value": "app"},
		"artifact": {"type": "file", "value": "artifact.txt"}
	}`)

	decls := []model.ReturnDeclaration{
		{Name: "count", Type: model.TypeInt},
		{Name: "enabled", Type: model.TypeBool},
		{Name: "name", Type: model.TypeString},
		{Name: "artifact", Type: model.TypeFile},
	}
	outputs, err := ParseOutputs(nodeDir, root, decls)
	require.NoError(t, err)
	require.Equal(t, int64(3), model.ValueToJSON(outputs["count"]))
	require.Equal(t, true, model.ValueToJSON(outputs["enabled"]))
	require.Equal(t, "app", model.ValueToJSON(outputs["name"]))
	require.Equal(t, "artifact.txt", model.ValueToJSON(outputs["artifact"]))
}

func TestParseOutputsTypeMismatch(t *testing.T) {
	root := t.TempDir()
	nodeDir := filepath.Join(root, "node")
	require.NoError(t, os.MkdirAll(nodeDir, 0o755))
	writeOutputs(t, nodeDir, `{"count": {"type": "int", "value": "many"}}`)

	_, err := ParseOutputs(nodeDir, root, []model.ReturnDeclaration{{Name: "count", Type: model.TypeInt}})
	require.Error(t, err)
	require.Contains(t, err.Error(), `output "count"`)
}

func TestParseOutputsMissingFile(t *testing.T) {
	root := t.TempDir()
	nodeDir := filepath.Join(root, "node")
	require.NoError(t, os.MkdirAll(nodeDir, 0o755))
	writeOutputs(t, nodeDir, `{"artifact": {"type": "file", "value": "nope.txt"}}`)

	_, err := ParseOutputs(nodeDir, root, []model.ReturnDeclaration{{Name: "artifact", Type: model.TypeFile}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestParseOutputsDirectoryChecks(t *testing.T) {
	root := t.TempDir()
	nodeDir := filepath.Join(root, "node")
	require.NoError(t, os.MkdirAll(nodeDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "out"), 0o755))
	writeOutputs(t, nodeDir, `{"d": {"type": "directory", "value": "out"}}`)

	outputs, err := ParseOutputs(nodeDir, root, []model.ReturnDeclaration{{Name: "d", Type: model.TypeDirectory}})
	require.NoError(t, err)
	require.Equal(t, "out", model.ValueToJSON(outputs["d"]))

	writeOutputs(t, nodeDir, `{"d": {"type": "directory", "value": "node/output.json"}}`)
	_, err = ParseOutputs(nodeDir, root, []model.ReturnDeclaration{{Name: "d", Type: model.TypeDirectory}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a directory")
}

func TestParseOutputsAbsentIsError(t *testing.T) {
	root := t.TempDir()
	nodeDir := filepath.Join(root, "node")
	require.NoError(t, os.MkdirAll(nodeDir, 0o755))

	_, err := ParseOutputs(nodeDir, root, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no output.json")
}

func TestRestoreNode(t *testing.T) {
	root := t.TempDir()
	store := &Store{ProjectRoot: root}

	prev, err := store.NewRun(time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	nodeDir, err := prev.NodeDir("build")
	require.NoError(t, err)
	require.NoError(t, WriteMeta(nodeDir, Meta{ActionName: "build", Success: true}))
	writeOutputs(t, nodeDir, `{"ok": {"type": "int", "value": 1}}`)

	current, err := store.NewRun(time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.True(t, Restorable(prev, "build"))
	require.False(t, Restorable(prev, "other"))

	meta, err := RestoreNode(prev, current, "build")
	require.NoError(t, err)
	require.True(t, meta.Restored)
	require.FileExists(t, filepath.Join(current.Dir, "build", "output.json"))

	outputs, err := ParseOutputs(filepath.Join(current.Dir, "build"), root,
		[]model.ReturnDeclaration{{Name: "ok", Type: model.TypeInt}})
	require.NoError(t, err)
	require.Equal(t, int64(1), model.ValueToJSON(outputs["ok"]))
}

func TestRestoreFailedNodeRefused(t *testing.T) {
	root := t.TempDir()
	store := &Store{ProjectRoot: root}

	prev, err := store.NewRun(time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	nodeDir, err := prev.NodeDir("build")
	require.NoError(t, err)
	require.NoError(t, WriteMeta(nodeDir, Meta{ActionName: "build", Success: false}))

	current, err := store.NewRun(time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.False(t, Restorable(prev, "build"))
	_, err = RestoreNode(prev, current, "build")
	require.Error(t, err)
}
