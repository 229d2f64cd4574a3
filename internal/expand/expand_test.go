package expand

import (
	"strings"
	"testing"

	"github.com/specialistvlad/mudyla/internal/model"
	"github.com/zclconf/go-cty/cty"
)

func TestScanRecognizesAllKinds(t *testing.T) {
	script := `
echo ${sys.project-root}
echo ${env.HOME}
echo ${args.out-dir}
echo ${flags.fast}
echo ${action.build.artifact}
echo ${action.weak.provider.value}
echo ${retained.weak.provider}
echo ${retained.soft.feature}
echo "$HOME and ${PLAIN_BASH_VAR} stay untouched"
`
	expansions, err := Scan(script)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kinds := make(map[model.ExpansionKind]model.Expansion)
	for _, e := range expansions {
		kinds[e.Kind] = e
	}
	if len(kinds) != 8 {
		t.Fatalf("expected 8 kinds, got %d", len(kinds))
	}
	if e := kinds[model.ExpandActionStrong]; e.Target != "build" || e.Output != "artifact" {
		t.Fatalf("bad strong action ref: %+v", e)
	}
	if e := kinds[model.ExpandActionWeak]; e.Target != "provider" || e.Output != "value" {
		t.Fatalf("bad weak action ref: %+v", e)
	}
	if e := kinds[model.ExpandRetainedSoft]; e.Target != "feature" {
		t.Fatalf("bad retained ref: %+v", e)
	}
}

func TestScanRejectsMalformedActionRef(t *testing.T) {
	_, err := Scan("echo ${action.build}")
	if err == nil || !strings.Contains(err.Error(), "invalid action reference") {
		t.Fatalf("expected action ref error, got %v", err)
	}
}

func TestRenderSubstitution(t *testing.T) {
	script := "out=${args.out-dir} fast=${flags.fast} from=${action.build.artifact} weak=${action.weak.p.v} r=${retained.weak.p}"
	expansions, err := Scan(script)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	b := Bindings{
		Args:  map[string]string{"out-dir": "dist"},
		Flags: map[string]bool{"fast": true},
		Actions: map[string]map[string]cty.Value{
			"build": {"artifact": cty.StringVal("bin/app")},
		},
		Retained: map[string]bool{"p": false},
	}

	rendered, err := Render(script, expansions, b)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "out=dist fast=1 from=bin/app weak= r=0"
	if rendered != want {
		t.Fatalf("got %q, want %q", rendered, want)
	}
}

func TestRenderMissingStrongOutputFails(t *testing.T) {
	script := "echo ${action.build.missing}"
	expansions, _ := Scan(script)

	_, err := Render(script, expansions, Bindings{
		Actions: map[string]map[string]cty.Value{"build": {}},
	})
	if err == nil || !strings.Contains(err.Error(), "no output") {
		t.Fatalf("expected missing output error, got %v", err)
	}
}

func TestRenderUnboundArgFails(t *testing.T) {
	script := "echo ${args.missing}"
	expansions, _ := Scan(script)

	_, err := Render(script, expansions, Bindings{Args: map[string]string{}})
	if err == nil || !strings.Contains(err.Error(), "not bound") {
		t.Fatalf("expected unbound arg error, got %v", err)
	}
}
