package upgrade

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/trungdtbk/pss1830/internal/testutil"
	"github.com/trungdtbk/pss1830/pkg/conditional"
	"github.com/trungdtbk/pss1830/pkg/executor"
	"github.com/trungdtbk/pss1830/pkg/parser"
	"github.com/trungdtbk/pss1830/pkg/util"
)

const device = "pss-akl-1"

func status(op, opStatus, working, active, committed string) string {
	return testutil.UpgradeStatusText(op, opStatus, working, active, committed)
}

func newController(fake *testutil.FakeSession) (*Controller, *testutil.SleepRecorder) {
	sleeper := &testutil.SleepRecorder{}
	c := NewController(device, executor.New(device, fake), Options{Sleep: sleeper.Sleep})
	return c, sleeper
}

// issued returns the non-status commands sent to the device.
func issued(fake *testutil.FakeSession) []string {
	var cmds []string
	for _, c := range fake.Commands() {
		if c != StatusCommand {
			cmds = append(cmds, c)
		}
	}
	return cmds
}

func TestExecute_Status(t *testing.T) {
	raw := status("Load", "In Progress", "R11.0.2", "R11.0.1", "R11.0.1")
	fake := testutil.NewFakeSession().On(StatusCommand, raw)
	c, _ := newController(fake)

	res, err := c.Execute(context.Background(), Request{Operation: OpStatus})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if res.Changed || len(res.Commands) != 0 {
		t.Errorf("status should issue nothing, got %v", res.Commands)
	}
	if len(res.Stdout) != 2 || res.Stdout[0] != raw || res.Stdout[1] != "executed: "+StatusCommand {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if res.Status.Operation() != "Load" || res.Status.OperationStatus() != "In Progress" {
		t.Errorf("status = %s", res.Status)
	}
	if res.Status.Value(parser.FieldWorkingRelease) != "R11.0.2" {
		t.Errorf("working release = %q", res.Status.WorkingRelease())
	}
}

func TestExecute_CommitAlreadyCommitted(t *testing.T) {
	fake := testutil.NewFakeSession().On(StatusCommand, status("Commit", "Completed", "R11.0.2", "R11.0.2", "R11.0.2"))
	c, _ := newController(fake)

	res, err := c.Execute(context.Background(), Request{Operation: OpCommit})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(issued(fake)) != 0 || res.Changed {
		t.Errorf("issued %v, want nothing", issued(fake))
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != "software (R11.0.2) has already been committed" {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestExecute_Commit(t *testing.T) {
	fake := testutil.NewFakeSession().
		On(StatusCommand, status("Activate", "Completed", "R11.0.2", "R11.0.2", "R11.0.1")).
		On(CommitCommand, "commit started")
	c, _ := newController(fake)

	res, err := c.Execute(context.Background(), Request{Operation: OpCommit})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"executed command: " + CommitCommand, "commit started"}
	if strings.Join(res.Stdout, "|") != strings.Join(want, "|") {
		t.Errorf("stdout = %q, want %q", res.Stdout, want)
	}
	if !res.Changed || len(res.Commands) != 1 {
		t.Errorf("commands = %v", res.Commands)
	}
}

func TestExecute_Preconditions(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		now  string
	}{
		{"commit during audit", Request{Operation: OpCommit}, status("Audit", "Completed", "", "R11.0.1", "R11.0.1")},
		{"activate during audit", Request{Operation: OpManual, Manual: ManualActivate}, status("Audit", "Completed", "", "R11.0.1", "R11.0.1")},
		{"activate while load running", Request{Operation: OpManual, Manual: ManualActivate}, status("Load", "In Progress", "", "R11.0.1", "R11.0.1")},
		{"load before audit", Request{Operation: OpManual, Manual: ManualLoad}, status("Commit", "Completed", "", "R11.0.1", "R11.0.1")},
		{"load while audit running", Request{Operation: OpManual, Manual: ManualLoad}, status("Audit", "In Progress", "", "R11.0.1", "R11.0.1")},
		{"commit after failure", Request{Operation: OpCommit}, status("Activate", "Failure", "", "R11.0.1", "R11.0.1")},
		{"abort after failure", Request{Operation: OpAbort}, status("Load", "Failure", "", "R11.0.1", "R11.0.1")},
		{"audit after failure", Request{Operation: OpManual, Manual: ManualAudit, Release: "R11.0.2"}, status("Audit", "Failure", "", "R11.0.1", "R11.0.1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeSession().On(StatusCommand, tt.now)
			c, _ := newController(fake)

			_, err := c.Execute(context.Background(), tt.req)
			if util.KindOf(err) != util.KindPrecondition {
				t.Fatalf("expected precondition error, got %v", err)
			}
			if got := issued(fake); len(got) != 0 {
				t.Errorf("issued %v, want nothing", got)
			}
			p := parser.ParseUpgradeStatus(tt.now)
			if !strings.Contains(err.Error(), p.Operation()) || !strings.Contains(err.Error(), p.OperationStatus()) {
				t.Errorf("error %q should report the current state %s", err, p)
			}
		})
	}
}

func TestExecute_BackoutAllowedAfterFailure(t *testing.T) {
	fake := testutil.NewFakeSession().
		On(StatusCommand, status("Activate", "Failure", "R11.0.2", "R11.0.1", "R11.0.1")).
		On(BackoutCommand, "backout started")
	c, _ := newController(fake)

	if _, err := c.Execute(context.Background(), Request{Operation: OpBackout}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got := issued(fake); len(got) != 1 || got[0] != BackoutCommand {
		t.Errorf("issued %v", got)
	}
}

func TestExecute_Abort(t *testing.T) {
	fake := testutil.NewFakeSession().
		On(StatusCommand, status("Load", "In Progress", "R11.0.2", "R11.0.1", "R11.0.1")).
		On(AbortCommand, "")
	c, _ := newController(fake)

	if _, err := c.Execute(context.Background(), Request{Operation: OpAbort}); err != nil {
		t.Fatal(err)
	}
	if got := issued(fake); len(got) != 1 || got[0] != AbortCommand {
		t.Errorf("issued %v", got)
	}
}

func TestExecute_ManualAudit(t *testing.T) {
	tests := []struct {
		name        string
		now         string
		option      AuditOption
		wantCommand string
		wantWarning bool
	}{
		{"issues audit", status("Commit", "Completed", "R11.0.1", "R11.0.1", "R11.0.1"), AuditNone,
			"config soft upgrade manual audit R11.0.2", false},
		{"issues audit with option", status("Commit", "Completed", "R11.0.1", "R11.0.1", "R11.0.1"), AuditNoBackupForce,
			"config soft upgrade manual audit R11.0.2 nobackupforce", false},
		{"working release already set", status("Audit", "Completed", "R11.0.2", "R11.0.1", "R11.0.1"), AuditForce,
			"", true},
		{"already active", status("Commit", "Completed", "R11.0.3", "R11.0.2", "R11.0.2"), AuditNone,
			"", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeSession().On(StatusCommand, tt.now)
			if tt.wantCommand != "" {
				fake.On(tt.wantCommand, "audit started")
			}
			c, _ := newController(fake)

			res, err := c.Execute(context.Background(), Request{
				Operation: OpManual, Manual: ManualAudit, Release: "R11.0.2", AuditOption: tt.option,
			})
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			got := issued(fake)
			if tt.wantCommand == "" {
				if len(got) != 0 {
					t.Errorf("issued %v, want nothing", got)
				}
			} else if len(got) != 1 || got[0] != tt.wantCommand {
				t.Errorf("issued %v, want %q", got, tt.wantCommand)
			}
			if (len(res.Warnings) > 0) != tt.wantWarning {
				t.Errorf("warnings = %v", res.Warnings)
			}
		})
	}
}

func TestExecute_ManualLoad(t *testing.T) {
	fake := testutil.NewFakeSession().
		On(StatusCommand, status("Audit", "Completed", "R11.0.2", "R11.0.1", "R11.0.1")).
		On(LoadCommand, "load started")
	c, _ := newController(fake)
	if _, err := c.Execute(context.Background(), Request{Operation: OpManual, Manual: ManualLoad}); err != nil {
		t.Fatal(err)
	}
	if got := issued(fake); len(got) != 1 || got[0] != LoadCommand {
		t.Errorf("issued %v", got)
	}

	fake = testutil.NewFakeSession().On(StatusCommand, status("Load", "In Progress", "R11.0.2", "R11.0.1", "R11.0.1"))
	c, _ = newController(fake)
	res, err := c.Execute(context.Background(), Request{Operation: OpManual, Manual: ManualLoad})
	if err != nil {
		t.Fatal(err)
	}
	if len(issued(fake)) != 0 {
		t.Errorf("issued %v", issued(fake))
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "In Progress") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestExecute_ManualActivate(t *testing.T) {
	fake := testutil.NewFakeSession().
		On(StatusCommand, status("Load", "Completed", "R11.0.2", "R11.0.1", "R11.0.1")).
		On(ActivateCommand, "activating")
	c, _ := newController(fake)
	if _, err := c.Execute(context.Background(), Request{Operation: OpManual, Manual: ManualActivate}); err != nil {
		t.Fatal(err)
	}
	if got := issued(fake); len(got) != 1 || got[0] != ActivateCommand {
		t.Errorf("issued %v", got)
	}

	fake = testutil.NewFakeSession().On(StatusCommand, status("Activate", "In Progress", "R11.0.2", "R11.0.1", "R11.0.1"))
	c, _ = newController(fake)
	res, err := c.Execute(context.Background(), Request{Operation: OpManual, Manual: ManualActivate})
	if err != nil {
		t.Fatal(err)
	}
	if len(issued(fake)) != 0 || len(res.Warnings) != 1 {
		t.Errorf("issued %v, warnings %v", issued(fake), res.Warnings)
	}
}

func TestExecute_WaitFor(t *testing.T) {
	fake := testutil.NewFakeSession().
		On(StatusCommand,
			status("Activate", "Completed", "R11.0.2", "R11.0.2", "R11.0.1"),
			status("Commit", "In Progress", "R11.0.2", "R11.0.2", "R11.0.1"),
			status("Commit", "Completed", "R11.0.2", "R11.0.2", "R11.0.2")).
		On(CommitCommand, "")
	c, sleeper := newController(fake)

	res, err := c.Execute(context.Background(), Request{
		Operation:     OpCommit,
		WaitFor:       &conditional.StatusCondition{Operation: "Commit", OperationStatus: "Completed"},
		CheckInterval: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if fake.Count(StatusCommand) != 3 {
		t.Errorf("status read %d times, want 3", fake.Count(StatusCommand))
	}
	if calls := sleeper.Calls(); len(calls) != 1 || calls[0] != 5*time.Second {
		t.Errorf("sleeps = %v", calls)
	}
	if res.Status.CommittedRelease() != "R11.0.2" {
		t.Errorf("final status = %s", res.Status)
	}
}

func TestExecute_WaitForTimeout(t *testing.T) {
	fake := testutil.NewFakeSession().
		On(StatusCommand, status("Audit", "Completed", "R11.0.2", "R11.0.1", "R11.0.1"),
			status("Load", "In Progress", "R11.0.2", "R11.0.1", "R11.0.1")).
		On(LoadCommand, "")
	c, sleeper := newController(fake)

	_, err := c.Execute(context.Background(), Request{
		Operation:     OpManual,
		Manual:        ManualLoad,
		WaitFor:       &conditional.StatusCondition{Operation: "Load", OperationStatus: "Completed"},
		WaitTimeout:   30 * time.Second,
		CheckInterval: 10 * time.Second,
	})
	if util.KindOf(err) != util.KindUnsatisfied {
		t.Fatalf("expected unsatisfied error, got %v", err)
	}
	var unsat *util.UnsatisfiedError
	if !errors.As(err, &unsat) || len(unsat.Conditions) != 1 {
		t.Fatalf("error = %v", err)
	}
	if unsat.Conditions[0] != "{operation: Load, operation_status: Completed}" {
		t.Errorf("condition = %q", unsat.Conditions[0])
	}
	// one initial read plus three checks, no sleep after the last check
	if fake.Count(StatusCommand) != 4 {
		t.Errorf("status read %d times, want 4", fake.Count(StatusCommand))
	}
	if len(sleeper.Calls()) != 2 {
		t.Errorf("slept %d times, want 2", len(sleeper.Calls()))
	}
}

func TestExecute_WaitForSkippedWhenNothingIssued(t *testing.T) {
	fake := testutil.NewFakeSession().On(StatusCommand, status("Commit", "Completed", "", "R11.0.2", "R11.0.2"))
	c, _ := newController(fake)

	_, err := c.Execute(context.Background(), Request{
		Operation: OpCommit,
		WaitFor:   &conditional.StatusCondition{Operation: "Abort"},
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if fake.Count(StatusCommand) != 1 {
		t.Errorf("status read %d times, want 1", fake.Count(StatusCommand))
	}
}

func TestExecute_Auto(t *testing.T) {
	fake := testutil.NewFakeSession().
		On(StatusCommand,
			status("Commit", "Completed", "R11.0.1", "R11.0.1", "R11.0.1"),
			status("Audit", "Completed", "R11.0.2", "R11.0.1", "R11.0.1"),
			status("Load", "In Progress", "R11.0.2", "R11.0.1", "R11.0.1"),
			status("Load", "Completed", "R11.0.2", "R11.0.1", "R11.0.1"),
			status("Activate", "Completed", "R11.0.2", "R11.0.2", "R11.0.1"),
			status("Commit", "Completed", "R11.0.2", "R11.0.2", "R11.0.2")).
		On("config soft upgrade manual audit R11.0.2", "").
		On(LoadCommand, "").
		On(ActivateCommand, "").
		On(CommitCommand, "")
	c, _ := newController(fake)

	res, err := c.Execute(context.Background(), Request{Operation: OpAuto, Release: "R11.0.2"})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	want := []string{"config soft upgrade manual audit R11.0.2", LoadCommand, ActivateCommand, CommitCommand}
	if got := issued(fake); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("issued %v, want %v", got, want)
	}
	if len(res.Stdout) != 8 {
		t.Errorf("stdout has %d entries, want 8", len(res.Stdout))
	}
	if res.Status.CommittedRelease() != "R11.0.2" {
		t.Errorf("final status = %s", res.Status)
	}
}

func TestExecute_AutoResumesInProgressLoad(t *testing.T) {
	fake := testutil.NewFakeSession().
		On(StatusCommand,
			status("Load", "In Progress", "R11.0.2", "R11.0.1", "R11.0.1"),
			status("Load", "Completed", "R11.0.2", "R11.0.1", "R11.0.1"),
			status("Activate", "Completed", "R11.0.2", "R11.0.2", "R11.0.1"),
			status("Commit", "Completed", "R11.0.2", "R11.0.2", "R11.0.2")).
		On(ActivateCommand, "").
		On(CommitCommand, "")
	c, _ := newController(fake)

	res, err := c.Execute(context.Background(), Request{Operation: OpAuto, Release: "R11.0.2"})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	want := []string{ActivateCommand, CommitCommand}
	if got := issued(fake); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("issued %v, want %v", got, want)
	}
	if len(res.Warnings) != 2 {
		t.Errorf("warnings = %v, want audit and load notices", res.Warnings)
	}
}

func TestExecute_AutoTimeoutStopsSequence(t *testing.T) {
	fake := testutil.NewFakeSession().
		On(StatusCommand,
			status("Audit", "Completed", "R11.0.2", "R11.0.1", "R11.0.1"),
			status("Load", "In Progress", "R11.0.2", "R11.0.1", "R11.0.1")).
		On(LoadCommand, "")
	c, _ := newController(fake)

	_, err := c.Execute(context.Background(), Request{
		Operation: OpAuto, Release: "R11.0.2",
		WaitTimeout: 20 * time.Second, CheckInterval: 10 * time.Second,
	})
	if util.KindOf(err) != util.KindUnsatisfied {
		t.Fatalf("expected unsatisfied error, got %v", err)
	}
	if got := issued(fake); len(got) != 1 || got[0] != LoadCommand {
		t.Errorf("issued %v, want only load", got)
	}
}

func TestExecute_AutoPhaseFailure(t *testing.T) {
	fake := testutil.NewFakeSession().
		On(StatusCommand,
			status("Audit", "Completed", "R11.0.2", "R11.0.1", "R11.0.1"),
			status("Load", "Failure", "R11.0.2", "R11.0.1", "R11.0.1")).
		On(LoadCommand, "")
	c, _ := newController(fake)

	_, err := c.Execute(context.Background(), Request{Operation: OpAuto, Release: "R11.0.2"})
	if util.KindOf(err) != util.KindPrecondition {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if fake.Count(ActivateCommand) != 0 {
		t.Error("activate should not run after a failed load")
	}
}

func TestExecute_ValidationBeforeDeviceAccess(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		kind util.ErrorKind
	}{
		{"auto without release", Request{Operation: OpAuto}, util.KindValidation},
		{"audit without release", Request{Operation: OpManual, Manual: ManualAudit}, util.KindValidation},
		{"manual without option", Request{Operation: OpManual}, util.KindValidation},
		{"bad audit option", Request{Operation: OpManual, Manual: ManualAudit, Release: "R1", AuditOption: "fast"}, util.KindValidation},
		{"unknown operation", Request{Operation: "upgrade"}, util.KindValidation},
		{"empty wait condition", Request{Operation: OpCommit, WaitFor: &conditional.StatusCondition{}}, util.KindMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeSession()
			c, _ := newController(fake)
			_, err := c.Execute(context.Background(), tt.req)
			if util.KindOf(err) != tt.kind {
				t.Errorf("KindOf(%v) = %s, want %s", err, util.KindOf(err), tt.kind)
			}
			if len(fake.Sent()) != 0 {
				t.Errorf("sent %v before validation", fake.Commands())
			}
		})
	}
}

type recorder struct {
	seen []string
}

func (r *recorder) Record(_ context.Context, dev string, s *parser.UpgradeStatus) error {
	r.seen = append(r.seen, dev+":"+s.Operation())
	return errors.New("store unavailable")
}

func TestExecute_RecordsEveryStatusRead(t *testing.T) {
	fake := testutil.NewFakeSession().
		On(StatusCommand,
			status("Activate", "Completed", "R11.0.2", "R11.0.2", "R11.0.1"),
			status("Commit", "Completed", "R11.0.2", "R11.0.2", "R11.0.2")).
		On(CommitCommand, "")
	rec := &recorder{}
	c := NewController(device, executor.New(device, fake), Options{
		Sleep:    (&testutil.SleepRecorder{}).Sleep,
		Recorder: rec,
	})

	_, err := c.Execute(context.Background(), Request{
		Operation: OpCommit,
		WaitFor:   &conditional.StatusCondition{Operation: "Commit"},
	})
	if err != nil {
		t.Fatalf("recording failures must not fail the request: %v", err)
	}
	want := []string{device + ":Activate", device + ":Commit"}
	if strings.Join(rec.seen, ",") != strings.Join(want, ",") {
		t.Errorf("recorded %v, want %v", rec.seen, want)
	}
}

func TestExecute_TransportErrorKeepsPartialResult(t *testing.T) {
	fake := testutil.NewFakeSession().
		On(StatusCommand, status("Activate", "Completed", "R11.0.2", "R11.0.2", "R11.0.1")).
		Fail(CommitCommand, errors.New("connection reset"))
	c, _ := newController(fake)

	res, err := c.Execute(context.Background(), Request{Operation: OpCommit})
	if util.KindOf(err) != util.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if res == nil || res.Status == nil {
		t.Fatal("result should carry the status read before the failure")
	}
}
