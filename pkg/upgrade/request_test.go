package upgrade

import (
	"testing"
)

func TestParseOperation(t *testing.T) {
	for _, op := range Operations {
		got, err := ParseOperation(string(op))
		if err != nil || got != op {
			t.Errorf("ParseOperation(%q) = %q, %v", op, got, err)
		}
	}
	if got, err := ParseOperation(" Auto "); err != nil || got != OpAuto {
		t.Errorf("ParseOperation(\" Auto \") = %q, %v", got, err)
	}
	if _, err := ParseOperation("upgrade"); err == nil {
		t.Error("expected error for unknown operation")
	}
}

func TestRequest_String(t *testing.T) {
	tests := []struct {
		req  Request
		want string
	}{
		{Request{Operation: OpStatus}, "status"},
		{Request{Operation: OpManual, Manual: ManualAudit, Release: "R11.0.2", AuditOption: AuditForce}, "manual audit R11.0.2 force"},
		{Request{Operation: OpManual, Manual: ManualLoad, Release: "R11.0.2"}, "manual load"},
		{Request{Operation: OpAuto, Release: "R11.0.2"}, "auto R11.0.2"},
	}
	for _, tt := range tests {
		if got := tt.req.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestRequest_Defaults(t *testing.T) {
	r := Request{Operation: OpCommit}
	d := r.withDefaults()
	if d.WaitTimeout != DefaultWaitTimeout || d.CheckInterval != DefaultCheckInterval {
		t.Errorf("defaults = %s / %s", d.WaitTimeout, d.CheckInterval)
	}
	if r.WaitTimeout != 0 {
		t.Error("withDefaults should not modify the receiver")
	}
}
