package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trungdtbk/pss1830/pkg/audit"
	"github.com/trungdtbk/pss1830/pkg/cli"
	"github.com/trungdtbk/pss1830/pkg/conditional"
	"github.com/trungdtbk/pss1830/pkg/executor"
	"github.com/trungdtbk/pss1830/pkg/parser"
	"github.com/trungdtbk/pss1830/pkg/statestore"
	"github.com/trungdtbk/pss1830/pkg/upgrade"
	"github.com/trungdtbk/pss1830/pkg/util"
)

// upgradeFlags holds the flag values of "pssctl upgrade".
type upgradeFlags struct {
	manual        string
	release       string
	auditOption   string
	waitOperation string
	waitStatus    string
	waitRelease   string
	waitStdout    string
	waitTimeout   time.Duration
	checkInterval time.Duration
}

var upgradeOpts upgradeFlags

var upgradeCmd = &cobra.Command{
	Use:   "upgrade <status|abort|commit|manual|backout|auto>",
	Short: "Control the software upgrade workflow",
	Long: `Read the software upgrade status or drive the upgrade workflow.

Operations:
  status   Show the current upgrade status
  manual   Run one step: --manual audit|load|activate
  commit   Commit an activated release
  abort    Abort the running operation
  backout  Back out to the committed release
  auto     Run audit, load, activate and commit in order (requires --release)

Every step is checked against the current status first; a step that cannot
run from that status fails without touching the device.

Examples:
  pssctl -d pss-akl-1 upgrade status
  pssctl -d pss-akl-1 upgrade manual --manual audit --release 11.0.2 --audit-option force
  pssctl -d pss-akl-1 upgrade manual --manual load --wait-operation Load --wait-status Completed
  pssctl -d pss-akl-1 upgrade auto --release 11.0.2 --wait-timeout 5h --check-interval 30s`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"status", "abort", "commit", "manual", "backout", "auto"},
	RunE:      runUpgrade,
}

func init() {
	f := upgradeCmd.Flags()
	f.StringVar(&upgradeOpts.manual, "manual", "", "Manual step: audit, load or activate")
	f.StringVar(&upgradeOpts.release, "release", "", "Target release, e.g. 11.0.2")
	f.StringVar(&upgradeOpts.auditOption, "audit-option", "", "Audit option: force, nobackup or nobackupforce")
	f.StringVar(&upgradeOpts.waitOperation, "wait-operation", "", "Wait until Operation equals this value")
	f.StringVar(&upgradeOpts.waitStatus, "wait-status", "", "Wait until Operation Status equals this value")
	f.StringVar(&upgradeOpts.waitRelease, "wait-release", "", "Wait until Committed Release equals this value")
	f.StringVar(&upgradeOpts.waitStdout, "wait-stdout", "", "Wait until the status output contains this text")
	f.DurationVar(&upgradeOpts.waitTimeout, "wait-timeout", upgrade.DefaultWaitTimeout, "Maximum time to wait")
	f.DurationVar(&upgradeOpts.checkInterval, "check-interval", upgrade.DefaultCheckInterval, "Time between status checks")
}

// buildUpgradeRequest converts the operation argument and flags into a
// validated request.
func buildUpgradeRequest(operation string, f upgradeFlags) (upgrade.Request, error) {
	op, err := upgrade.ParseOperation(operation)
	if err != nil {
		return upgrade.Request{}, err
	}
	req := upgrade.Request{
		Operation:     op,
		Manual:        upgrade.ManualOption(f.manual),
		Release:       f.release,
		AuditOption:   upgrade.AuditOption(f.auditOption),
		WaitTimeout:   f.waitTimeout,
		CheckInterval: f.checkInterval,
	}

	wait := map[string]string{}
	for key, v := range map[string]string{
		"operation":         f.waitOperation,
		"operation_status":  f.waitStatus,
		"committed_release": f.waitRelease,
		"stdout":            f.waitStdout,
	} {
		if v != "" {
			wait[key] = v
		}
	}
	if len(wait) > 0 {
		cond, err := conditional.ParseStatusCondition(wait)
		if err != nil {
			return upgrade.Request{}, err
		}
		req.WaitFor = cond
	}

	if err := req.Validate(); err != nil {
		return upgrade.Request{}, err
	}
	return req, nil
}

// upgradeOutput is the JSON shape of an upgrade run.
type upgradeOutput struct {
	*upgrade.Result
	StdoutLines [][]string `json:"stdout_lines"`
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	req, err := buildUpgradeRequest(args[0], upgradeOpts)
	if err != nil {
		return err
	}

	var opts upgrade.Options
	store := openStore(ctx)
	if store != nil {
		defer store.Close()
		opts.Recorder = store
	}

	event := audit.NewEvent(currentUser(), deviceName, audit.OperationUpgrade).WithRequest(req.String())

	var res *upgrade.Result
	runErr := func() error {
		dev, shell, err := connect(ctx)
		if err != nil {
			return err
		}
		defer shell.Close()

		if store != nil && req.Operation != upgrade.OpStatus {
			release, err := lockDevice(cmd, store, dev.Name, req)
			if err != nil {
				return err
			}
			defer release()
		}

		ctrl := upgrade.NewController(dev.Name, executor.New(dev.Name, shell), opts)
		res, err = ctrl.Execute(ctx, req)
		return err
	}()
	if res != nil {
		event.WithCommands(res.Commands).WithWarnings(res.Warnings)
	}
	record(event, start, runErr)

	if res != nil {
		if jsonOutput {
			if err := json.NewEncoder(os.Stdout).Encode(upgradeOutput{Result: res, StdoutLines: res.Lines()}); err != nil {
				return err
			}
		} else {
			printUpgradeResult(res)
		}
	}
	return runErr
}

// lockDevice takes the per-device upgrade lock for the duration of the run.
func lockDevice(cmd *cobra.Command, store *statestore.Store, device string, req upgrade.Request) (func(), error) {
	ctx := cmd.Context()
	holder := currentUser()
	if host, err := os.Hostname(); err == nil {
		holder += "@" + host
	}
	ttl := req.WaitTimeout
	if ttl <= 0 {
		ttl = upgrade.DefaultWaitTimeout
	}
	ttl += 10 * time.Minute

	if err := store.AcquireLock(ctx, device, holder, ttl); err != nil {
		if errors.Is(err, statestore.ErrDeviceLocked) {
			owner, since, _ := store.LockHolder(ctx, device)
			return nil, util.NewPreconditionError(string(req.Operation), device,
				fmt.Sprintf("device locked by %s since %s", owner, since.Format(time.RFC3339)), "")
		}
		util.Warnf("Could not lock %s: %v", device, err)
		return func() {}, nil
	}
	return func() {
		if err := store.ReleaseLock(cmd.Context(), device, holder); err != nil {
			util.Warnf("Could not release lock on %s: %v", device, err)
		}
	}, nil
}

func printUpgradeResult(res *upgrade.Result) {
	for _, w := range res.Warnings {
		fmt.Println(yellow("WARNING: ") + w)
	}
	for _, c := range res.Commands {
		fmt.Println(bold("executed: ") + c)
	}
	if res.Status != nil {
		printStatus(res.Status)
	}
	fmt.Printf("\nResult: %s\n", cli.Changed(res.Changed))
}

// printStatus renders every status field, absent ones as "-".
func printStatus(status *parser.UpgradeStatus) {
	t := cli.NewTable(os.Stdout, "FIELD", "VALUE")
	for _, f := range parser.AllFields() {
		v, ok := status.Get(f)
		switch {
		case f == parser.FieldOperationStatus:
			v = cli.OperationStatus(v)
		case !ok || v == "":
			v = "-"
		}
		t.Row(cli.DotPad(string(f), 24), v)
	}
	t.Flush()
}
