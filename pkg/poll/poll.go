// Package poll re-runs command batches until a set of conditionals holds.
//
// A run moves through three states:
//
//	running ──satisfy──▶ satisfied
//	   │
//	   └────exhaust────▶ exhausted
//
// Exhaustion is a normal outcome; Result.Err converts it into an
// unsatisfied-condition error for callers that treat it as a failure.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"github.com/trungdtbk/pss1830/pkg/conditional"
	"github.com/trungdtbk/pss1830/pkg/executor"
	"github.com/trungdtbk/pss1830/pkg/parser"
	"github.com/trungdtbk/pss1830/pkg/session"
	"github.com/trungdtbk/pss1830/pkg/util"
)

// Engine states
const (
	StateRunning   = "running"
	StateSatisfied = "satisfied"
	StateExhausted = "exhausted"
)

const (
	eventSatisfy = "satisfy"
	eventExhaust = "exhaust"
)

// Defaults for generic command execution
const (
	DefaultRetries  = 10
	DefaultInterval = time.Second
)

// UnsatisfiedMessage is reported when retries run out.
const UnsatisfiedMessage = "One or more conditional statements have not been satisfied"

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options controls a polling run.
type Options struct {
	Match    conditional.MatchPolicy
	Retries  int
	Interval time.Duration
	Sleep    SleepFunc
}

// Validate checks the retry bounds.
func (o Options) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(o.Retries >= 1, "retries must be at least 1")
	v.Add(o.Interval >= 0, "interval must not be negative")
	if o.Match != "" && o.Match != conditional.MatchAll && o.Match != conditional.MatchAny {
		v.AddErrorf("unknown match policy %q", o.Match)
	}
	return v.Build()
}

// Result is the outcome of a polling run.
type Result struct {
	State     string
	Attempts  int
	Responses []string
	Remaining []*conditional.Expression
}

// Satisfied reports whether every required conditional matched.
func (r *Result) Satisfied() bool { return r.State == StateSatisfied }

// Lines splits each response into lines.
func (r *Result) Lines() [][]string { return parser.ToLines(r.Responses) }

// FailedConditions returns the text of the conditionals still outstanding.
func (r *Result) FailedConditions() []string {
	failed := make([]string, len(r.Remaining))
	for i, c := range r.Remaining {
		failed[i] = c.Raw()
	}
	return failed
}

// Err returns an unsatisfied-condition error when the run was exhausted.
func (r *Result) Err() error {
	if r.State != StateExhausted {
		return nil
	}
	return util.NewUnsatisfiedError(UnsatisfiedMessage, r.FailedConditions()...)
}

// tracker holds the progress the machine's guards decide on.
type tracker struct {
	retries     int
	attempts    int
	outstanding []*conditional.Expression
}

// guardSatisfy holds the run in running while conditionals are outstanding.
func (t *tracker) guardSatisfy(_ context.Context, e *fsm.Event) {
	if len(t.outstanding) > 0 {
		e.Cancel()
	}
}

// guardExhaust holds the run in running while attempts remain.
func (t *tracker) guardExhaust(_ context.Context, e *fsm.Event) {
	if t.attempts < t.retries {
		e.Cancel()
	}
}

func newMachine(device string, t *tracker) *fsm.FSM {
	log := util.WithDevice(device)
	return fsm.NewFSM(
		StateRunning,
		fsm.Events{
			{Name: eventSatisfy, Src: []string{StateRunning}, Dst: StateSatisfied},
			{Name: eventExhaust, Src: []string{StateRunning}, Dst: StateExhausted},
		},
		fsm.Callbacks{
			"before_" + eventSatisfy: t.guardSatisfy,
			"before_" + eventExhaust: t.guardExhaust,
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debugf("poll %s -> %s after %d attempt(s)", e.Src, e.Dst, t.attempts)
			},
		},
	)
}

// fire reports whether the event moved the machine. A guard that holds
// the run in running is not an error.
func fire(ctx context.Context, m *fsm.FSM, event string) (bool, error) {
	err := m.Event(ctx, event)
	var canceled fsm.CanceledError
	if errors.As(err, &canceled) {
		return false, nil
	}
	return err == nil, err
}

// Run executes cmds up to opts.Retries times. After each attempt every
// outstanding conditional is evaluated against the latest responses: under
// MatchAll a match retires that conditional for good, under MatchAny one
// match clears them all. The run stops as soon as nothing is outstanding and
// never sleeps after the final attempt. Responses always come from the last
// attempt. Only transport failures and cancellation return an error.
//
// With no commands there is nothing to re-run: the conditionals are checked
// once against an empty response list and runner is not used.
func Run(ctx context.Context, device string, runner executor.Runner, cmds []session.Command, conds []*conditional.Expression, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	t := &tracker{
		retries:     opts.Retries,
		outstanding: append([]*conditional.Expression(nil), conds...),
	}
	if len(cmds) == 0 {
		t.retries = 1
	}
	machine := newMachine(device, t)
	res := &Result{}

	for machine.Current() == StateRunning {
		var responses []string
		if len(cmds) > 0 {
			r, err := runner.Run(ctx, cmds)
			if err != nil {
				return nil, err
			}
			responses = r
		}
		t.attempts++
		res.Attempts = t.attempts
		res.Responses = responses

		t.outstanding = evaluate(t.outstanding, responses, opts.Match)
		util.WithDevice(device).Debugf("attempt %d/%d: %d conditional(s) outstanding",
			t.attempts, t.retries, len(t.outstanding))

		moved, err := fire(ctx, machine, eventSatisfy)
		if err == nil && !moved {
			moved, err = fire(ctx, machine, eventExhaust)
		}
		if err != nil {
			return nil, err
		}
		if moved {
			break
		}
		if err := sleep(ctx, opts.Interval); err != nil {
			return nil, fmt.Errorf("polling interrupted: %w", err)
		}
	}

	res.State = machine.Current()
	res.Remaining = t.outstanding
	return res, nil
}

func evaluate(outstanding []*conditional.Expression, responses []string, match conditional.MatchPolicy) []*conditional.Expression {
	var remaining []*conditional.Expression
	for _, c := range outstanding {
		if c.Evaluate(responses) {
			if match == conditional.MatchAny {
				return nil
			}
			continue
		}
		remaining = append(remaining, c)
	}
	return remaining
}
