// Package cli provides shared formatting helpers for the pssctl CLI.
package cli

import (
	"os"
	"strings"
)

// colorEnabled is false when NO_COLOR env var is set (per no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

// SetColor forces color on or off, e.g. for --json output or tests.
func SetColor(enabled bool) {
	colorEnabled = enabled
}

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return code + s + "\033[0m"
}

// Green wraps s in ANSI green.
func Green(s string) string { return paint("\033[32m", s) }

// Yellow wraps s in ANSI yellow.
func Yellow(s string) string { return paint("\033[33m", s) }

// Red wraps s in ANSI red.
func Red(s string) string { return paint("\033[31m", s) }

// Bold wraps s in ANSI bold.
func Bold(s string) string { return paint("\033[1m", s) }

// Dim wraps s in ANSI dim.
func Dim(s string) string { return paint("\033[2m", s) }

// OperationStatus colors an upgrade operation status: Completed green,
// In Progress yellow, Failure red. Anything else is returned as-is, and an
// empty value renders as a dimmed "-".
func OperationStatus(s string) string {
	switch s {
	case "Completed":
		return Green(s)
	case "In Progress":
		return Yellow(s)
	case "Failure":
		return Red(s)
	case "":
		return Dim("-")
	}
	return s
}

// Changed renders the changed flag of an operation result.
func Changed(changed bool) string {
	if changed {
		return Yellow("changed")
	}
	return Green("ok")
}

// DotPad pads name with dots to the given width.
// Example: DotPad("working_release", 24) → "working_release ........"
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	return name + " " + strings.Repeat(".", width-len(name)-1)
}
