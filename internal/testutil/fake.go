package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/trungdtbk/pss1830/pkg/session"
	"github.com/trungdtbk/pss1830/pkg/util"
)

type reply struct {
	output string
	err    error
}

// FakeSession is a scripted session.Session. Replies queued for a command
// are consumed in order; the last one repeats once the queue is drained.
type FakeSession struct {
	mu      sync.Mutex
	replies map[string][]reply
	sent    []session.Command
	closed  bool
}

// NewFakeSession returns an empty scripted session.
func NewFakeSession() *FakeSession {
	return &FakeSession{replies: make(map[string][]reply)}
}

// On queues one reply per output for command.
func (f *FakeSession) On(command string, outputs ...string) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range outputs {
		f.replies[command] = append(f.replies[command], reply{output: o})
	}
	return f
}

// Fail queues an error reply for command.
func (f *FakeSession) Fail(command string, err error) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[command] = append(f.replies[command], reply{err: err})
	return f
}

// Send implements session.Session.
func (f *FakeSession) Send(ctx context.Context, cmd session.Command) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", util.NewTransportError("fake", cmd.Command, err)
	}
	if f.closed {
		return "", util.NewTransportError("fake", cmd.Command, fmt.Errorf("session closed"))
	}
	f.sent = append(f.sent, cmd)

	queue := f.replies[cmd.Command]
	if len(queue) == 0 {
		return "", util.NewTransportError("fake", cmd.Command, fmt.Errorf("no reply scripted"))
	}
	r := queue[0]
	if len(queue) > 1 {
		f.replies[cmd.Command] = queue[1:]
	}
	return r.output, r.err
}

// Close implements session.Session.
func (f *FakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Sent returns every command received, in order.
func (f *FakeSession) Sent() []session.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.Command(nil), f.sent...)
}

// Commands returns the text of every command received, in order.
func (f *FakeSession) Commands() []string {
	sent := f.Sent()
	out := make([]string, len(sent))
	for i, c := range sent {
		out[i] = c.Command
	}
	return out
}

// Count returns how many times command was received.
func (f *FakeSession) Count(command string) int {
	n := 0
	for _, c := range f.Commands() {
		if c == command {
			n++
		}
	}
	return n
}

// SleepRecorder records requested sleeps without waiting.
type SleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

// Sleep records d and returns the context error, if any.
func (r *SleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.calls = append(r.calls, d)
	r.mu.Unlock()
	return ctx.Err()
}

// Calls returns the recorded sleep durations.
func (r *SleepRecorder) Calls() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.calls...)
}

// UpgradeStatusText renders "config soft upgrade status" output. Empty
// values are left out so the label is absent.
func UpgradeStatusText(operation, operationStatus, working, active, committed string) string {
	var b strings.Builder
	b.WriteString("Software Server IP              : 10.10.1.5\n")
	b.WriteString("Software Server Root Directory  : /pss/images\n")
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%-32s: %s\n", label, value)
		}
	}
	line("Committed Release", committed)
	line("Working Release", working)
	line("Active Release", active)
	line("Operation", operation)
	line("Operation Status", operationStatus)
	b.WriteString("Upgrade Path Available          : Yes\n")
	return b.String()
}
