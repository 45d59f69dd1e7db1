package ray

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"lumen/vmath/vec3"
)

func TestEval(t *testing.T) {
	r := Ray{Point: vec3.T{1, 2, 3}, Slope: vec3.T{0, 0, -2}}
	got := r.Eval(1.5)
	want := vec3.T{1, 2, 0}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad point; diff (-got +want)\n%s", diff)
	}
}

func TestForwardSpanExcludesEndpoints(t *testing.T) {
	s := ForwardSpan()
	if s.Contains(0.001) {
		t.Errorf("Span contains its lower bound")
	}
	if s.Contains(0) {
		t.Errorf("Span contains 0")
	}
	if !s.Contains(0.0011) {
		t.Errorf("Span doesn't contain a point just past its lower bound")
	}
	if !s.Contains(1e30) {
		t.Errorf("Span doesn't contain a distant point")
	}
}
