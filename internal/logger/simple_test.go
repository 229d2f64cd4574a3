package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestSimpleLoggerLines(t *testing.T) {
	var buf bytes.Buffer
	l := newSimpleLogger(&buf, Options{Simple: true, NoColor: true})

	l.RunStarted("20260805-103000-000000001", []NodeInfo{
		{Key: "build-abc123", Label: "build (mode:release)"},
		{Key: "prepare", Label: "prepare"},
	})
	l.NodeStarted("prepare")
	l.NodeFinished("prepare", StatusDone, 1.25)
	l.NodeStarted("build-abc123")
	l.NodeFinished("build-abc123", StatusRestored, 0)
	l.NodeFinished("unknown-node", StatusSkipped, 0)
	l.Close()

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(out, "run 20260805-103000-000000001") {
		t.Fatalf("missing run line:\n%s", out)
	}
	if !strings.Contains(out, "prepare (1.2s)") {
		t.Fatalf("missing done line with duration:\n%s", out)
	}
	if !strings.Contains(out, "build (mode:release) restored from previous run") {
		t.Fatalf("restored nodes must report the restoration:\n%s", out)
	}
	if !strings.Contains(out, "skipped unknown-node") {
		t.Fatalf("unknown keys fall back to the key itself:\n%s", out)
	}
}

func TestNewPicksRawBackendForPlainWriters(t *testing.T) {
	var buf bytes.Buffer
	if _, ok := New(&buf, Options{}).(*simpleLogger); !ok {
		t.Fatal("non-file writers must get the line logger")
	}
	if _, ok := New(&buf, Options{GithubActions: true}).(*simpleLogger); !ok {
		t.Fatal("CI mode must get the line logger")
	}
}

func TestStatusStrings(t *testing.T) {
	cases := map[Status]string{
		StatusDone:      "done",
		StatusFailed:    "failed",
		StatusRestored:  "restored",
		StatusSkipped:   "skipped",
		StatusCancelled: "cancelled",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}
