package formula

import "testing"

func TestEvalArithmeticPrecedence(t *testing.T) {
	got, err := Eval("2 + 3 * 4", nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != 14 {
		t.Fatalf("got %v, want 14", got)
	}
}

func TestEvalParensAndUnaryMinus(t *testing.T) {
	got, err := Eval("-(2 + 3) * 4", nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != -20 {
		t.Fatalf("got %v, want -20", got)
	}
}

func TestEvalVariables(t *testing.T) {
	got, err := Eval("WIDTH / 2 + OFFSET", map[string]float64{"WIDTH": 1920, "OFFSET": 8})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != 968 {
		t.Fatalf("got %v, want 968", got)
	}
}

func TestEvalUnknownVariable(t *testing.T) {
	if _, err := Eval("UNKNOWN + 1", nil); err == nil {
		t.Fatal("expected error for unresolved variable")
	}
}

func TestEvalHexLiteral(t *testing.T) {
	got, err := Eval("0xFF + 1", nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != 256 {
		t.Fatalf("got %v, want 256", got)
	}
}

func TestEvalComparisonAndLogic(t *testing.T) {
	got, err := Eval("(3 > 2) && (1 == 1)", nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != 1 {
		t.Fatalf("got %v, want 1 (true)", got)
	}
}

func TestEvalFunctionCalls(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"ABS(-5)", 5},
		{"MIN(3, 1, 2)", 1},
		{"MAX(3, 1, 2)", 3},
		{"POW(2, 8)", 256},
		{"SQRT(16)", 4},
		{"FLOOR(3.7)", 3},
		{"CEIL(3.2)", 4},
	}
	for _, c := range cases {
		got, err := Eval(c.expr, nil)
		if err != nil {
			t.Fatalf("Eval(%q): %v", c.expr, err)
		}
		if got != c.want {
			t.Fatalf("Eval(%q) = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	if _, err := Eval("1 / 0", nil); err == nil {
		t.Fatal("expected division-by-zero error")
	}
}

func TestEvalTrailingTokensRejected(t *testing.T) {
	if _, err := Eval("1 + 1 2", nil); err == nil {
		t.Fatal("expected trailing-token error")
	}
}

func TestEvalModulo(t *testing.T) {
	got, err := Eval("10 % 3", nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != 1 {
		t.Fatalf("got %v, want 1", got)
	}
}
