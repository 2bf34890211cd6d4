package cli

import (
	"strings"
	"testing"
)

func TestDotPad(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{"normal case", "operation", 20, "operation " + strings.Repeat(".", 10)},
		{"name equals width minus one", "abcde", 6, "abcde"},
		{"name longer than width", "working_release_dir", 5, "working_release_dir"},
		{"empty string", "", 10, " " + strings.Repeat(".", 9)},
		{"zero width", "x", 0, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DotPad(tt.input, tt.width); got != tt.expected {
				t.Errorf("DotPad(%q, %d) = %q, want %q", tt.input, tt.width, got, tt.expected)
			}
		})
	}

	if got := DotPad("test", 20); len(got) != 20 {
		t.Errorf("DotPad(%q, 20) len = %d, want 20", "test", len(got))
	}
}

func TestColorFunctions(t *testing.T) {
	SetColor(true)
	t.Cleanup(func() { SetColor(true) })

	tests := []struct {
		name   string
		fn     func(string) string
		prefix string
	}{
		{"Green", Green, "\033[32m"},
		{"Yellow", Yellow, "\033[33m"},
		{"Red", Red, "\033[31m"},
		{"Bold", Bold, "\033[1m"},
		{"Dim", Dim, "\033[2m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn("hello")
			if !strings.HasPrefix(got, tt.prefix) || !strings.HasSuffix(got, "\033[0m") {
				t.Errorf("%s(hello) = %q", tt.name, got)
			}
			if !strings.Contains(got, "hello") {
				t.Errorf("%s should contain the input string", tt.name)
			}
		})
	}
}

func TestSetColor_Disabled(t *testing.T) {
	SetColor(false)
	t.Cleanup(func() { SetColor(true) })

	if got := Red("x"); got != "x" {
		t.Errorf("Red with color disabled = %q", got)
	}
	if got := OperationStatus(""); got != "-" {
		t.Errorf("OperationStatus(\"\") = %q", got)
	}
	if got := Changed(true); got != "changed" {
		t.Errorf("Changed(true) = %q", got)
	}
	if got := Changed(false); got != "ok" {
		t.Errorf("Changed(false) = %q", got)
	}
}

func TestOperationStatus(t *testing.T) {
	SetColor(true)

	tests := []struct {
		status string
		prefix string
	}{
		{"Completed", "\033[32m"},
		{"In Progress", "\033[33m"},
		{"Failure", "\033[31m"},
		{"", "\033[2m"},
	}
	for _, tt := range tests {
		if got := OperationStatus(tt.status); !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("OperationStatus(%q) = %q", tt.status, got)
		}
	}
	if got := OperationStatus("Unknown"); got != "Unknown" {
		t.Errorf("unrecognized status should pass through, got %q", got)
	}
}
