// Package audit records every operation pssctl drives against a device.
package audit

import (
	"fmt"
	"time"

	"github.com/trungdtbk/pss1830/pkg/util"
)

// Operation names recorded in the audit log
const (
	OperationCommand = "command"
	OperationUpgrade = "upgrade"
	OperationFacts   = "facts"
)

// Event is one audited operation.
type Event struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Device    string        `json:"device"`
	Operation string        `json:"operation"`
	Request   string        `json:"request,omitempty"`
	Commands  []string      `json:"commands"`
	Warnings  []string      `json:"warnings,omitempty"`
	Changed   bool          `json:"changed"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	CheckMode bool          `json:"check_mode"`
	Duration  time.Duration `json:"duration"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	User        string
	Operation   string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	ChangedOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, device, operation string) *Event {
	return &Event{
		ID:        generateID(),
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: operation,
	}
}

// WithRequest records a one-line description of what was asked for
func (e *Event) WithRequest(request string) *Event {
	e.Request = request
	return e
}

// WithCommands sets the commands sent to the device
func (e *Event) WithCommands(commands []string) *Event {
	e.Commands = commands
	e.Changed = len(commands) > 0
	return e
}

// WithWarnings sets the operator warnings
func (e *Event) WithWarnings(warnings []string) *Event {
	e.Warnings = warnings
	return e
}

// WithChanged overrides the changed flag
func (e *Event) WithChanged(changed bool) *Event {
	e.Changed = changed
	return e
}

// WithResult marks the event as successful, or failed with err's message
// and kind when err is non-nil
func (e *Event) WithResult(err error) *Event {
	if err == nil {
		e.Success = true
		e.Error = ""
		e.ErrorKind = ""
		return e
	}
	e.Success = false
	e.Error = err.Error()
	e.ErrorKind = string(util.KindOf(err))
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithCheckMode marks a run that only sent read-only commands
func (e *Event) WithCheckMode(check bool) *Event {
	e.CheckMode = check
	return e
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
