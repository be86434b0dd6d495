package rules

import (
	"strings"
	"testing"
)

func TestCompileAndEval(t *testing.T) {
	tests := []struct {
		condition string
		value     float64
		want      bool
	}{
		{"value > 100", 105, true},
		{"value > 100", 100, false},
		{"value > 100 or value < 50", 85, false},
		{"value > 100 or value < 50", 105, true},
		{"value > 100 or value < 50", 42, true},
		{"value >= 36.5 and value <= 37.5", 37, true},
		{"value >= 36.5 and value <= 37.5", 38, false},
		{"not (value == 0)", 0, false},
		{"not (value == 0)", 1, true},
		{"(value - 70) / 10 > 2", 95, true},
		{"(value - 70) / 10 > 2", 85, false},
		{"value * 2 + 1 == 141", 70, true},
		{"-value < -100", 105, true},
		{"-value < -100", 95, false},
		{"value>100||value<50", 105, true},
		{"value > 100 && value < 200", 150, true},
		{"VALUE > 100 OR value < 50", 105, true},
		{"!(value > 10)", 5, true},
		{"value != 0", 0, false},
		{"value == 98.6", 98.6, true},
		// Short-circuit: the divide-by-zero branch never runs.
		{"value > 0 or value / 0 > 1", 5, true},
		{"value < 0 and value / 0 > 1", 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.condition, func(t *testing.T) {
			prog, err := Compile(tt.condition)
			if err != nil {
				t.Fatalf("Compile(%q) failed: %v", tt.condition, err)
			}
			got, err := prog.Eval(tt.value)
			if err != nil {
				t.Fatalf("Eval(%v) failed: %v", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestCompileRejects(t *testing.T) {
	tests := []struct {
		condition string
		wantIn    string // substring expected in the error
	}{
		{"", "ended unexpectedly"},
		{"heart_rate > 100", "unknown name"},
		{"value >", "ended unexpectedly"},
		{"value > 1 > 2", "unexpected"},
		{"value + 5", "boolean expression"},
		{"42", "boolean expression"},
		{"value > 1 and 5", "combines booleans"},
		{"not value", "needs a boolean"},
		{"value = 100", "use '=='"},
		{"value & 1", "use '&&'"},
		{"value | 1", "use '||'"},
		{"1.2.3 > value", "malformed number"},
		{"(value > 1", "expected ')'"},
		{"value > 1)", "unexpected"},
		{"value > (1 + true)", "unknown name"},
		{"(value > 1) + 2 > 0", "needs numbers"},
	}

	for _, tt := range tests {
		t.Run(tt.condition, func(t *testing.T) {
			_, err := Compile(tt.condition)
			if err == nil {
				t.Fatalf("Compile(%q) should have failed", tt.condition)
			}
			if !strings.Contains(err.Error(), tt.wantIn) {
				t.Errorf("Compile(%q) error = %q, want substring %q", tt.condition, err, tt.wantIn)
			}
		})
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	prog, err := Compile("100 / value > 1")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if _, err := prog.Eval(0); err == nil {
		t.Fatal("division by zero should fail at evaluation")
	}
	got, err := prog.Eval(50)
	if err != nil {
		t.Fatalf("Eval(50) failed: %v", err)
	}
	if !got {
		t.Error("100/50 > 1 should be true")
	}
}

func TestProgramSource(t *testing.T) {
	const cond = "value > 100"
	prog, err := Compile(cond)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if prog.Source() != cond {
		t.Errorf("Source() = %q, want %q", prog.Source(), cond)
	}
}

func TestValidateCondition(t *testing.T) {
	if err := ValidateCondition("value > 100"); err != nil {
		t.Errorf("valid condition rejected: %v", err)
	}
	if err := ValidateCondition("   "); err == nil {
		t.Error("blank condition should be rejected")
	}
	if err := ValidateCondition("bogus > 1"); err == nil {
		t.Error("unknown name should be rejected")
	}
}
