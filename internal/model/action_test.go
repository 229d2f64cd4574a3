package model

import (
	"strings"
	"testing"
)

func version(conds ...Condition) *ActionVersion {
	return &ActionVersion{Script: "true", Language: LangBash, Conditions: conds}
}

func TestSelectVersion_SingleVersionAlwaysMatches(t *testing.T) {
	action := &ActionDefinition{Name: "build", Versions: []*ActionVersion{version()}}

	v, err := action.SelectVersion(Context{}, "linux")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != action.Versions[0] {
		t.Fatal("expected the only version to be selected")
	}
}

func TestSelectVersion_MostSpecificWins(t *testing.T) {
	base := version()
	release := version(AxisCondition{Name: "build-mode", Value: "release"})
	releaseLinux := version(
		AxisCondition{Name: "build-mode", Value: "release"},
		PlatformCondition{Platform: "linux"},
	)
	action := &ActionDefinition{Name: "build", Versions: []*ActionVersion{base, release, releaseLinux}}

	v, err := action.SelectVersion(Context{"build-mode": "release"}, "linux")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != releaseLinux {
		t.Fatal("expected the version with the most satisfied conditions")
	}

	v, err = action.SelectVersion(Context{"build-mode": "release"}, "macos")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != release {
		t.Fatal("expected the release version when the platform does not match")
	}
}

func TestSelectVersion_TieIsAnError(t *testing.T) {
	a := version(AxisCondition{Name: "build-mode", Value: "release"})
	b := version(PlatformCondition{Platform: "linux"})
	action := &ActionDefinition{Name: "build", Versions: []*ActionVersion{a, b}}

	_, err := action.SelectVersion(Context{"build-mode": "release"}, "linux")
	if err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Fatalf("expected ambiguity error, got %v", err)
	}
}

func TestSelectVersion_NoMatchIsAnError(t *testing.T) {
	action := &ActionDefinition{
		Name:     "build",
		Versions: []*ActionVersion{version(AxisCondition{Name: "build-mode", Value: "release"})},
	}

	_, err := action.SelectVersion(Context{"build-mode": "development"}, "linux")
	if err == nil || !strings.Contains(err.Error(), "no version") {
		t.Fatalf("expected no-version error, got %v", err)
	}
}

func TestContextReduceAndLabel(t *testing.T) {
	ctx := Context{"build-mode": "release", "scala": "3.3.0", "os": "linux"}

	reduced := ctx.Reduce(map[string]struct{}{"scala": {}, "build-mode": {}})
	if len(reduced) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(reduced))
	}
	if got := reduced.Label(); got != "build-mode:release+scala:3.3.0" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := (Context{}).Label(); got != GlobalLabel {
		t.Fatalf("empty context should label as global, got %q", got)
	}
}

func TestContextHashStable(t *testing.T) {
	a := Context{"x": "1", "y": "2"}
	b := Context{"y": "2", "x": "1"}
	if a.Hash() != b.Hash() {
		t.Fatal("hash must not depend on insertion order")
	}
	if a.Hash() == (Context{"x": "1"}).Hash() {
		t.Fatal("different contexts must hash differently")
	}
	if len(a.Hash()) != 10 {
		t.Fatalf("hash should be 10 chars, got %d", len(a.Hash()))
	}
}

func TestDocumentRejectsDuplicateActions(t *testing.T) {
	doc := NewDocument()
	if err := doc.AddAction(&ActionDefinition{Name: "build"}); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if err := doc.AddAction(&ActionDefinition{Name: "build"}); err == nil {
		t.Fatal("expected duplicate action error")
	}
}

func TestDefaultContext(t *testing.T) {
	doc := NewDocument()
	doc.Axes["build-mode"] = &AxisDefinition{
		Name: "build-mode",
		Values: []AxisValue{
			{Value: "development", IsDefault: true},
			{Value: "release"},
		},
	}
	doc.Axes["arch"] = &AxisDefinition{
		Name:   "arch",
		Values: []AxisValue{{Value: "amd64"}, {Value: "arm64"}},
	}

	ctx := doc.DefaultContext()
	if ctx["build-mode"] != "development" {
		t.Fatalf("expected development default, got %q", ctx["build-mode"])
	}
	if _, ok := ctx["arch"]; ok {
		t.Fatal("axis without default must not be bound")
	}
}
