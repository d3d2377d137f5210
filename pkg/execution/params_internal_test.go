package execution

import (
	"testing"

	"github.com/getstubd/stubd/pkg/scenario"
)

func TestMergeParams(t *testing.T) {
	declared := []scenario.Param{
		{Name: "region", Value: "eu"},
		{Name: "target", Value: ""},
	}
	provided := []scenario.Param{
		{Name: "target", Value: "dev"},
		{Name: "extra", Value: "1"},
	}

	got := mergeParams(declared, provided)
	want := map[string]string{"region": "eu", "target": "dev", "extra": "1"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for _, p := range got {
		if want[p.Name] != p.Value {
			t.Errorf("param %s = %q, want %q", p.Name, p.Value, want[p.Name])
		}
	}
	// Declared order is preserved.
	if got[0].Name != "region" || got[1].Name != "target" {
		t.Errorf("declared order not preserved: %+v", got)
	}
}
