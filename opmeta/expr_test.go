package opmeta

import "testing"

func TestEvalExpr(t *testing.T) {
	cases := []struct {
		src  string
		v    int64
		want int64
	}{
		{"arg", 30, 30},
		{"arg + 1", 30, 31},
		{"arg - 2 * 3", 30, 24},
		{"(arg - 2) * 3", 30, 84},
		{"arg / 4", 30, 7},
		{"-arg / 4", 30, -7},
		{"--arg", 5, 5},
		{" 2*(arg+1) ", 1, 4},
		{"10 - 3 - 2", 0, 5},
	}
	for _, tc := range cases {
		got, err := EvalExpr(tc.src, "arg", tc.v)
		if err != nil {
			t.Fatalf("EvalExpr(%q): %v", tc.src, err)
		}
		if got != tc.want {
			t.Fatalf("EvalExpr(%q) = %d, want %d", tc.src, got, tc.want)
		}
	}
}

func TestEvalExpr_Errors(t *testing.T) {
	for _, src := range []string{
		"",
		"arg +",
		"(arg",
		"arg)",
		"bits",
		"arg / 0",
		"arg / (arg - arg)",
		"2 ^ 3",
		"99999999999999999999",
	} {
		if _, err := EvalExpr(src, "arg", 1); err == nil {
			t.Fatalf("EvalExpr(%q): expected error", src)
		}
	}
}

func TestParseExpr_DepthLimit(t *testing.T) {
	deep := ""
	for i := 0; i < 200; i++ {
		deep += "("
	}
	if _, err := ParseExpr(deep+"1", "arg"); err == nil {
		t.Fatalf("expected depth error")
	}
}

func TestParseExpr_Reuse(t *testing.T) {
	e, err := ParseExpr("bits * 2", "bits")
	if err != nil {
		t.Fatalf("ParseExpr: %v", err)
	}
	for v := int64(0); v < 4; v++ {
		got, err := e.Eval(v)
		if err != nil || got != v*2 {
			t.Fatalf("Eval(%d) = %d, %v", v, got, err)
		}
	}
	if e.String() != "bits * 2" {
		t.Fatalf("String() = %q", e.String())
	}
}
