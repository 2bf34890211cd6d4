package upgrade

import (
	"fmt"
	"strings"
	"time"

	"github.com/trungdtbk/pss1830/pkg/conditional"
	"github.com/trungdtbk/pss1830/pkg/util"
)

// Operation is the high-level action requested from the controller.
type Operation string

const (
	OpStatus  Operation = "status"
	OpAbort   Operation = "abort"
	OpCommit  Operation = "commit"
	OpManual  Operation = "manual"
	OpBackout Operation = "backout"
	OpAuto    Operation = "auto"
)

// Operations lists every accepted operation.
var Operations = []Operation{OpStatus, OpAbort, OpCommit, OpManual, OpBackout, OpAuto}

// ManualOption selects the single step run by OpManual.
type ManualOption string

const (
	ManualAudit    ManualOption = "audit"
	ManualLoad     ManualOption = "load"
	ManualActivate ManualOption = "activate"
)

// AuditOption is appended to the audit command line.
type AuditOption string

const (
	AuditNone          AuditOption = ""
	AuditForce         AuditOption = "force"
	AuditNoBackup      AuditOption = "nobackup"
	AuditNoBackupForce AuditOption = "nobackupforce"
)

const (
	DefaultWaitTimeout   = 18000 * time.Second
	DefaultCheckInterval = 10 * time.Second
)

// Request describes one upgrade control invocation.
type Request struct {
	Operation   Operation
	Manual      ManualOption
	Release     string
	AuditOption AuditOption

	// WaitFor, when set, is polled after the last command is issued.
	WaitFor       *conditional.StatusCondition
	WaitTimeout   time.Duration
	CheckInterval time.Duration
}

// ParseOperation accepts an operation name in any case.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	for _, o := range Operations {
		if o == op {
			return op, nil
		}
	}
	return "", util.NewValidationError(fmt.Sprintf("unknown operation %q", s))
}

func (r *Request) withDefaults() Request {
	c := *r
	if c.WaitTimeout == 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	return c
}

// Validate checks the request before any device interaction. A malformed
// wait condition is reported as such rather than as a validation error.
func (r *Request) Validate() error {
	if r.WaitFor != nil {
		if err := r.WaitFor.Validate(); err != nil {
			return err
		}
	}

	v := &util.ValidationBuilder{}
	switch r.Operation {
	case OpStatus, OpAbort, OpCommit, OpBackout:
	case OpManual:
		switch r.Manual {
		case ManualAudit:
			v.Add(r.Release != "", "audit operation requires release option")
		case ManualLoad, ManualActivate:
		case "":
			v.AddErrorf("manual operation requires one of audit, load, activate")
		default:
			v.AddErrorf("unknown manual option %q", r.Manual)
		}
	case OpAuto:
		v.Add(r.Release != "", "auto operation requires release option")
	default:
		v.AddErrorf("unknown operation %q", r.Operation)
	}

	switch r.AuditOption {
	case AuditNone, AuditForce, AuditNoBackup, AuditNoBackupForce:
	default:
		v.AddErrorf("audit option must be one of force, nobackup, nobackupforce")
	}
	v.Add(r.WaitTimeout >= 0, "wait timeout must not be negative")
	v.Add(r.CheckInterval >= 0, "check interval must not be negative")
	return v.Build()
}

// String renders the request as it would be typed, e.g. "manual audit R11.0.2".
func (r *Request) String() string {
	parts := []string{string(r.Operation)}
	if r.Operation == OpManual && r.Manual != "" {
		parts = append(parts, string(r.Manual))
	}
	if r.Release != "" && (r.Operation == OpAuto || r.Manual == ManualAudit) {
		parts = append(parts, r.Release)
	}
	if r.AuditOption != AuditNone {
		parts = append(parts, string(r.AuditOption))
	}
	return strings.Join(parts, " ")
}
