package conditional

import (
	"errors"
	"testing"

	"github.com/trungdtbk/pss1830/pkg/util"
)

func TestParseExpression(t *testing.T) {
	tests := []struct {
		raw     string
		index   int
		op      Operator
		negate  bool
		operand string
	}{
		{"result[0] contains Completed", 0, OpContains, false, "Completed"},
		{`result[1] contains "In Progress"`, 1, OpContains, false, "In Progress"},
		{"result[2] == 'R11.0.1'", 2, OpEquals, false, "R11.0.1"},
		{"result[0] equals up", 0, OpEquals, false, "up"},
		{"result[0] != down", 0, OpNotEquals, false, "down"},
		{"result[0] not_equals down", 0, OpNotEquals, false, "down"},
		{"result[3] >= 50", 3, OpGreaterOrEq, false, "50"},
		{"result[3]<10", 3, OpLess, false, "10"},
		{"result [ 0 ] not contains Error", 0, OpContains, true, "Error"},
		{"result[0] matches ^R11\\.", 0, OpMatches, false, "^R11\\."},
		{"  result[0] EQ x  ", 0, OpEquals, false, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			e, err := ParseExpression(tt.raw)
			if err != nil {
				t.Fatalf("ParseExpression() error: %v", err)
			}
			if e.Index() != tt.index {
				t.Errorf("index = %d, want %d", e.Index(), tt.index)
			}
			if e.Operator() != tt.op {
				t.Errorf("op = %s, want %s", e.Operator(), tt.op)
			}
			if e.Negated() != tt.negate {
				t.Errorf("negate = %v, want %v", e.Negated(), tt.negate)
			}
			if e.Operand() != tt.operand {
				t.Errorf("operand = %q, want %q", e.Operand(), tt.operand)
			}
			if e.Raw() != tt.raw {
				t.Errorf("Raw() = %q", e.Raw())
			}
		})
	}
}

func TestParseExpression_Malformed(t *testing.T) {
	tests := []string{
		"",
		"output contains x",
		"result contains x",
		"result[a] contains x",
		"result[0 contains x",
		"result[0]",
		"result[0] contains",
		"result[0] resembles x",
		"result[0] > many",
		"result[0] matches (",
	}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseExpression(raw)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, util.ErrMalformedConditional) {
				t.Errorf("error %v should wrap ErrMalformedConditional", err)
			}
		})
	}
}

func TestExpression_Evaluate(t *testing.T) {
	responses := []string{
		"Operation          : Load\nOperation Status   : Completed",
		"  R11.0.1  ",
		"45",
		"not a number",
	}
	tests := []struct {
		raw  string
		want bool
	}{
		{"result[0] contains Completed", true},
		{"result[0] contains Failure", false},
		{"result[0] not contains Failure", true},
		{"result[1] eq R11.0.1", true},
		{"result[1] neq R11.0.1", false},
		{"result[1] != R11.0.2", true},
		{"result[2] > 40", true},
		{"result[2] >= 45", true},
		{"result[2] < 45", false},
		{"result[2] le 45.0", true},
		{"result[3] > 1", false},
		{"result[3] not > 1", false},
		{"result[0] matches Status\\s+: Comp", true},
		{"result[9] contains x", false},
		{"result[9] not contains x", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			e, err := ParseExpression(tt.raw)
			if err != nil {
				t.Fatalf("ParseExpression() error: %v", err)
			}
			if got := e.Evaluate(responses); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpression_RawIsDeterministic(t *testing.T) {
	responses := []string{"System Name : PSS-AKL-01", "1830PSS"}
	raws := []string{
		"result[0] contains PSS-AKL",
		"result[1] not equals 1830PSS",
		"result[5] contains x",
	}
	for _, raw := range raws {
		first, err := ParseExpression(raw)
		if err != nil {
			t.Fatal(err)
		}
		again, err := ParseExpression(first.Raw())
		if err != nil {
			t.Fatal(err)
		}
		if first.Evaluate(responses) != again.Evaluate(responses) {
			t.Errorf("%q evaluated differently after re-parse", raw)
		}
	}
}

func TestParseExpressions(t *testing.T) {
	exprs, err := ParseExpressions([]string{"result[0] contains a", "result[1] eq b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(exprs) != 2 {
		t.Fatalf("got %d expressions", len(exprs))
	}
	if _, err := ParseExpressions([]string{"result[0] contains a", "bogus"}); err == nil {
		t.Error("expected error for second entry")
	}
}

func TestExpression_String(t *testing.T) {
	e, err := ParseExpression("result[1] not == x")
	if err != nil {
		t.Fatal(err)
	}
	if got := e.String(); got != `result[1] not eq "x"` {
		t.Errorf("String() = %s", got)
	}
}
