package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trungdtbk/pss1830/pkg/audit"
	"github.com/trungdtbk/pss1830/pkg/cli"
	"github.com/trungdtbk/pss1830/pkg/executor"
	"github.com/trungdtbk/pss1830/pkg/parser"
	"github.com/trungdtbk/pss1830/pkg/session"
	"github.com/trungdtbk/pss1830/pkg/util"
)

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Collect device identity and redundancy facts",
	Long: `Collect system name, software version, capacity and equipment
controller redundancy from the device.

Examples:
  pssctl -d pss-akl-1 facts
  pssctl -d pss-akl-1 facts --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		start := time.Now()
		event := audit.NewEvent(currentUser(), deviceName, audit.OperationFacts).
			WithRequest("facts").
			WithCheckMode(true)

		var facts *parser.Facts
		var warnings []string
		err := func() error {
			dev, shell, err := connect(ctx)
			if err != nil {
				return err
			}
			defer shell.Close()

			facts, warnings, err = collectFacts(ctx, executor.New(dev.Name, shell))
			return err
		}()
		event.WithWarnings(warnings)
		record(event, start, err)
		if err != nil {
			return err
		}

		if jsonOutput {
			for _, w := range warnings {
				util.Warnf("%s", w)
			}
			return json.NewEncoder(os.Stdout).Encode(facts)
		}
		for _, w := range warnings {
			fmt.Println(yellow("WARNING: ") + w)
		}
		printFacts(facts)
		return nil
	},
}

// collectFacts runs FactsCommands. Name and version are required; a shelf
// that rejects "show redundancy" (single controller) yields empty
// redundancy and a warning.
func collectFacts(ctx context.Context, runner executor.Runner) (*parser.Facts, []string, error) {
	required, optional := parser.FactsCommands[:2], parser.FactsCommands[2]

	out, err := runner.Run(ctx, session.Plain(required...))
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	redundancy := ""
	resp, err := runner.Run(ctx, session.Plain(optional))
	var devErr *util.DeviceError
	switch {
	case err == nil:
		redundancy = resp[0]
	case errors.As(err, &devErr):
		warnings = append(warnings, fmt.Sprintf("redundancy unavailable: %s", devErr))
	default:
		return nil, nil, err
	}
	return parser.ParseFacts(out[0], out[1], redundancy), warnings, nil
}

func printFacts(f *parser.Facts) {
	t := cli.NewTable(os.Stdout, "FACT", "VALUE")
	row := func(name, value string) {
		if value == "" {
			value = "-"
		}
		t.Row(name, value)
	}
	row("network_os", f.NetworkOS)
	row("network_os_version", f.NetworkOSVersion)
	row("system_name", f.SystemName)
	row("software_version", f.SoftwareVersion)
	row("capacity", f.Capacity)
	row("active_ec", joinSlot(f.Redundancy.ActiveSlot, f.Redundancy.ActiveType))
	row("standby_ec", joinSlot(f.Redundancy.StandbySlot, f.Redundancy.StandbyType))
	if f.Redundancy.StandbySlot != "" {
		ready := red("not ready")
		if f.Redundancy.StandbyReady {
			ready = green("ready")
		}
		row("standby_ec_state", fmt.Sprintf("%s (%s)", f.Redundancy.StandbyState, ready))
	}
	t.Flush()
}

func joinSlot(slot, typ string) string {
	if slot == "" {
		return ""
	}
	return slot + " " + typ
}
