package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"lumen/vmath/vec3"
)

func TestVecFlagSet(t *testing.T) {
	f := &vecFlag{}
	if err := f.Set("1, -2.5,3"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(f.v, vec3.T{1, -2.5, 3}); diff != "" {
		t.Errorf("Bad vector; diff (-got +want)\n%s", diff)
	}
	if !f.set {
		t.Errorf("Flag not marked as set")
	}
	if got := f.String(); got != "1,-2.5,3" {
		t.Errorf("Bad string form; got %q", got)
	}
}

func TestVecFlagRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "1,2", "1,2,3,4", "1,two,3"} {
		f := &vecFlag{}
		if err := f.Set(in); err == nil {
			t.Errorf("Set(%q) succeeded, want error", in)
		}
	}
}
