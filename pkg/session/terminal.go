package session

import (
	"bytes"
	"regexp"
	"strings"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

// Terminal holds the prompt and error patterns of the 1830PSS CLI.
type Terminal struct {
	Prompts []*regexp.Regexp
	Errors  []*regexp.Regexp
}

// DefaultTerminal returns the patterns used by 1830PSS shelves.
func DefaultTerminal() *Terminal {
	return &Terminal{
		Prompts: []*regexp.Regexp{
			regexp.MustCompile(`[\r\n]?[\w-]+(?:[#]) ?$`),
			regexp.MustCompile(`Username:`),
			regexp.MustCompile(`Password:`),
			regexp.MustCompile(`Do you.*\(Y/N\)\?`),
		},
		Errors: []*regexp.Regexp{
			regexp.MustCompile(`Command aborted`),
			regexp.MustCompile(`(?i)Error:`),
			regexp.MustCompile(`(?i)(?:incomplete|ambiguous) command`),
			regexp.MustCompile(`(?i)connection timed out`),
			regexp.MustCompile(`[^\r\n]+ not found`),
			regexp.MustCompile(`(?i)[%\S] ?Error: ?[\s]+`),
		},
	}
}

// lastLine returns the text after the final newline with escape sequences
// and carriage returns removed.
func lastLine(data []byte) []byte {
	if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
		data = data[i+1:]
	}
	data = ansiRe.ReplaceAll(data, nil)
	return bytes.ReplaceAll(data, []byte("\r"), nil)
}

// MatchPrompt reports whether the last line of data is a terminal prompt.
func (t *Terminal) MatchPrompt(data []byte) bool {
	line := lastLine(data)
	for _, re := range t.Prompts {
		if re.Match(line) {
			return true
		}
	}
	return false
}

// MatchError returns the first error pattern found in output.
func (t *Terminal) MatchError(output string) (string, bool) {
	for _, re := range t.Errors {
		if re.MatchString(output) {
			return re.String(), true
		}
	}
	return "", false
}

// Sanitize strips escape sequences, the echoed command and the trailing
// prompt from raw, and normalizes line endings.
func (t *Terminal) Sanitize(command, raw string) string {
	raw = ansiRe.ReplaceAllString(raw, "")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "")

	lines := strings.Split(raw, "\n")
	if n := len(lines); n > 0 && t.MatchPrompt([]byte(lines[n-1])) {
		lines = lines[:n-1]
	}
	out := lines[:0]
	echoed := false
	for _, line := range lines {
		if !echoed && command != "" && strings.TrimSpace(line) == strings.TrimSpace(command) {
			echoed = true
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
