// Package upgrade drives the 1830PSS software upgrade workflow.
//
// Every request starts from a fresh "config soft upgrade status" read. The
// controller checks the requested step against that status, issues at most
// one device command per step and, when asked, polls the status until a
// wait condition holds or the wait timeout runs out. An "auto" request runs
// audit, load, activate and commit in order; each step is checked against
// the most recent status and waits for its own phase to complete before the
// next step starts.
package upgrade

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/trungdtbk/pss1830/pkg/conditional"
	"github.com/trungdtbk/pss1830/pkg/executor"
	"github.com/trungdtbk/pss1830/pkg/parser"
	"github.com/trungdtbk/pss1830/pkg/poll"
	"github.com/trungdtbk/pss1830/pkg/session"
	"github.com/trungdtbk/pss1830/pkg/util"
)

// Device command lines
const (
	StatusCommand   = "config soft upgrade status"
	CommitCommand   = "config soft upgrade commit"
	AbortCommand    = "config soft upgrade abort"
	BackoutCommand  = "config soft upgrade backout yes"
	ActivateCommand = "config soft upgrade manual activate yes"
	LoadCommand     = "config soft upgrade manual load"
	auditCommandFmt = "config soft upgrade manual audit %s %s"
)

// Values reported in the Operation and Operation Status fields
const (
	PhaseAudit    = "Audit"
	PhaseLoad     = "Load"
	PhaseActivate = "Activate"
	PhaseCommit   = "Commit"

	StatusCompleted  = "Completed"
	StatusInProgress = "In Progress"
	StatusFailure    = "Failure"
)

type step string

const (
	stepAudit    step = "audit"
	stepLoad     step = "load"
	stepActivate step = "activate"
	stepCommit   step = "commit"
	stepAbort    step = "abort"
	stepBackout  step = "backout"
)

var autoSteps = []step{stepAudit, stepLoad, stepActivate, stepCommit}

var stepPhase = map[step]string{
	stepAudit:    PhaseAudit,
	stepLoad:     PhaseLoad,
	stepActivate: PhaseActivate,
	stepCommit:   PhaseCommit,
}

// StatusRecorder receives every status read, e.g. to keep a snapshot store
// current. Recording failures are logged and otherwise ignored.
type StatusRecorder interface {
	Record(ctx context.Context, device string, status *parser.UpgradeStatus) error
}

// Options configures a Controller.
type Options struct {
	Sleep    poll.SleepFunc
	Recorder StatusRecorder
}

// Controller runs upgrade requests against one device.
type Controller struct {
	device   string
	runner   executor.Runner
	sleep    poll.SleepFunc
	recorder StatusRecorder
}

// NewController returns a controller that sends commands through runner.
func NewController(device string, runner executor.Runner, opts Options) *Controller {
	if opts.Sleep == nil {
		opts.Sleep = poll.Sleep
	}
	return &Controller{
		device:   device,
		runner:   runner,
		sleep:    opts.Sleep,
		recorder: opts.Recorder,
	}
}

// Result is the outcome of an upgrade request. It is returned alongside an
// error too, carrying whatever ran before the failure.
type Result struct {
	Operation Operation             `json:"operation"`
	Commands  []string              `json:"commands"`
	Stdout    []string              `json:"stdout"`
	Warnings  []string              `json:"warnings,omitempty"`
	Status    *parser.UpgradeStatus `json:"upgrade_status,omitempty"`
	Changed   bool                  `json:"changed"`
}

// Lines splits each stdout entry into lines.
func (r *Result) Lines() [][]string { return parser.ToLines(r.Stdout) }

func (r *Result) warn(log *logrus.Entry, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Warn(msg)
	r.Warnings = append(r.Warnings, msg)
}

// plan is the decision for one step against one status.
type plan struct {
	command string
	// wait is set when the step was skipped because its phase is running
	wait bool
}

// Status reads and parses the current upgrade status.
func (c *Controller) Status(ctx context.Context) (*parser.UpgradeStatus, error) {
	status, _, err := c.readStatus(ctx)
	return status, err
}

func (c *Controller) readStatus(ctx context.Context) (*parser.UpgradeStatus, string, error) {
	out, err := c.runner.Run(ctx, []session.Command{{Command: StatusCommand}})
	if err != nil {
		return nil, "", err
	}
	status := parser.ParseUpgradeStatus(out[0])
	util.WithDevice(c.device).Debugf("upgrade status %s", status)

	if c.recorder != nil {
		if err := c.recorder.Record(ctx, c.device, status); err != nil {
			util.WithDevice(c.device).Warnf("recording upgrade status: %v", err)
		}
	}
	return status, out[0], nil
}

// Execute validates req, reads the current status and carries out the
// request.
func (c *Controller) Execute(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.withDefaults()
	log := util.WithOperation(c.device, req.String())
	res := &Result{Operation: req.Operation}

	status, raw, err := c.readStatus(ctx)
	if err != nil {
		return res, err
	}
	res.Status = status

	if req.Operation == OpStatus {
		res.Stdout = []string{raw, "executed: " + StatusCommand}
		return res, nil
	}

	var steps []step
	switch req.Operation {
	case OpAuto:
		steps = autoSteps
	case OpManual:
		steps = []step{step(req.Manual)}
	default:
		steps = []step{step(req.Operation)}
	}

	for _, s := range steps {
		p, err := c.decide(s, res.Status, req, res, log)
		if err != nil {
			return res, err
		}

		if p.command != "" {
			log.Debugf("issuing %s", p.command)
			out, err := c.runner.Run(ctx, []session.Command{{Command: p.command}})
			if err != nil {
				return res, err
			}
			res.Commands = append(res.Commands, p.command)
			res.Stdout = append(res.Stdout, "executed command: "+p.command, out[0])
			res.Changed = true
		}

		// auto waits for each step's phase before moving on
		if req.Operation == OpAuto && (p.command != "" || p.wait) {
			phase := stepPhase[s]
			cond := &conditional.StatusCondition{Operation: phase, OperationStatus: StatusCompleted}
			if err := c.wait(ctx, req, cond, phase, res); err != nil {
				return res, err
			}
		}
	}

	if req.WaitFor != nil && (res.Changed || req.Operation == OpAuto) {
		if err := c.wait(ctx, req, req.WaitFor, "", res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// decide checks step s against status. An empty plan command means the
// step is skipped.
func (c *Controller) decide(s step, status *parser.UpgradeStatus, req Request, res *Result, log *logrus.Entry) (plan, error) {
	op, opStatus := status.Operation(), status.OperationStatus()

	if opStatus == StatusFailure && s != stepBackout {
		return plan{}, c.precondition(s, fmt.Sprintf("upgrade operation %s is %s", op, opStatus))
	}

	switch s {
	case stepCommit:
		switch op {
		case PhaseCommit:
			res.warn(log, "software (%s) has already been committed", status.CommittedRelease())
			return plan{wait: opStatus != StatusCompleted}, nil
		case PhaseActivate:
			return plan{command: CommitCommand}, nil
		}
		return plan{}, c.precondition(s, fmt.Sprintf("cannot execute commit when in state %s", status))

	case stepAudit:
		switch req.Release {
		case status.WorkingRelease():
			res.warn(log, "release %s is already the working release, audit not required", req.Release)
			return plan{}, nil
		case status.ActiveRelease():
			res.warn(log, "release %s is already the active release, audit not required", req.Release)
			return plan{}, nil
		}
		cmd := strings.TrimSpace(fmt.Sprintf(auditCommandFmt, req.Release, req.AuditOption))
		return plan{command: cmd}, nil

	case stepLoad:
		if op == PhaseLoad {
			res.warn(log, "load operation has already executed, current status: %s", opStatus)
			return plan{wait: opStatus != StatusCompleted}, nil
		}
		if op == PhaseAudit && opStatus == StatusCompleted {
			return plan{command: LoadCommand}, nil
		}
		return plan{}, c.precondition(s, fmt.Sprintf("cannot execute load when in state %s", status))

	case stepActivate:
		if op == PhaseActivate {
			res.warn(log, "activate operation has already executed, current status: %s", opStatus)
			return plan{wait: opStatus != StatusCompleted}, nil
		}
		if op == PhaseLoad && opStatus == StatusCompleted {
			return plan{command: ActivateCommand}, nil
		}
		return plan{}, c.precondition(s, fmt.Sprintf("cannot execute activate when in state %s", status))

	case stepAbort:
		return plan{command: AbortCommand}, nil

	case stepBackout:
		return plan{command: BackoutCommand}, nil
	}
	return plan{}, util.NewValidationError(fmt.Sprintf("unknown step %q", s))
}

func (c *Controller) precondition(s step, msg string) error {
	return util.NewPreconditionError(string(s), c.device, msg, "")
}

// wait polls the status until cond holds. When phase is set, a Failure
// reported for that phase ends the wait early.
func (c *Controller) wait(ctx context.Context, req Request, cond *conditional.StatusCondition, phase string, res *Result) error {
	log := util.WithOperation(c.device, req.String())
	opts := poll.WaitOptions{Timeout: req.WaitTimeout, Interval: req.CheckInterval, Sleep: c.sleep}
	log.Debugf("waiting for %s, up to %d check(s) every %s", cond, opts.Iterations(), opts.Interval)

	done, n, err := poll.Until(ctx, opts, func(ctx context.Context) (bool, error) {
		status, _, err := c.readStatus(ctx)
		if err != nil {
			return false, err
		}
		res.Status = status
		if phase != "" && status.Operation() == phase && status.OperationStatus() == StatusFailure {
			return false, util.NewPreconditionError(strings.ToLower(phase), c.device,
				fmt.Sprintf("upgrade operation %s is %s", phase, StatusFailure), "")
		}
		return cond.Evaluate(status), nil
	})
	if err != nil {
		return err
	}
	if !done {
		return util.NewUnsatisfiedError(
			fmt.Sprintf("The condition (%s) has not been satisfied after %d check(s)", cond, n),
			cond.String())
	}
	log.Debugf("%s satisfied after %d check(s)", cond, n)
	return nil
}
