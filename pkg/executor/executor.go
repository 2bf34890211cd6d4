// Package executor sends command batches through a CLI session.
package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/trungdtbk/pss1830/pkg/session"
	"github.com/trungdtbk/pss1830/pkg/util"
)

// ReadOnlyPrefix marks the commands that may run in check mode.
const ReadOnlyPrefix = "show"

// Runner executes a batch and returns one response per command.
type Runner interface {
	Run(ctx context.Context, cmds []session.Command) ([]string, error)
}

// Executor runs commands over one session.
type Executor struct {
	device  string
	session session.Session
}

// New returns an Executor that owns no connection of its own; the caller
// keeps ownership of sess.
func New(device string, sess session.Session) *Executor {
	return &Executor{device: device, session: sess}
}

// Device returns the name of the element the executor talks to.
func (e *Executor) Device() string { return e.device }

// Run sends every command in order. Any failure aborts the whole batch and
// no partial responses are returned.
func (e *Executor) Run(ctx context.Context, cmds []session.Command) ([]string, error) {
	responses := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		util.WithCommand(e.device, cmd.Command).Debug("executing")
		out, err := e.session.Send(ctx, cmd)
		if err != nil {
			if util.KindOf(err) == util.KindUnknown {
				err = util.NewTransportError(e.device, cmd.Command, err)
			}
			return nil, fmt.Errorf("executing %q: %w", cmd.Command, err)
		}
		responses = append(responses, out)
	}
	return responses, nil
}

// Filter drops commands that are not read-only when checkMode is set and
// returns a warning for each one dropped.
func Filter(cmds []session.Command, checkMode bool) ([]session.Command, []string) {
	if !checkMode {
		return cmds, nil
	}
	var kept []session.Command
	var warnings []string
	for _, c := range cmds {
		if strings.HasPrefix(c.Command, ReadOnlyPrefix) {
			kept = append(kept, c)
			continue
		}
		warnings = append(warnings, fmt.Sprintf(
			"Only show commands are supported when using check mode, not executing %s", c.Command))
	}
	return kept, warnings
}
