package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trungdtbk/pss1830/pkg/audit"
	"github.com/trungdtbk/pss1830/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View the audit log",
	Long: `View the audit log of pssctl runs.

Every run is logged with the operator, device, request, commands sent,
warnings and outcome.

Examples:
  pssctl audit list --device pss-akl-1
  pssctl audit list --last 24h --operation upgrade
  pssctl audit list --failures`,
}

var (
	auditDevice    string
	auditUser      string
	auditOperation string
	auditLast      time.Duration
	auditLimit     int
	auditFailures  bool
	auditChanged   bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			Device:      auditDevice,
			User:        auditUser,
			Operation:   auditOperation,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
			ChangedOnly: auditChanged,
		}
		if auditLast > 0 {
			filter.StartTime = time.Now().Add(-auditLast)
		}

		events, err := audit.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(events)
		}
		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		t := cli.NewTable(os.Stdout, "TIMESTAMP", "USER", "DEVICE", "OPERATION", "REQUEST", "COMMANDS", "STATUS")
		for _, e := range events {
			status := green("ok")
			if !e.Success {
				status = red("failed")
				if e.ErrorKind != "" {
					status += " (" + e.ErrorKind + ")"
				}
			} else if e.Changed {
				status = yellow("changed")
			}
			t.Row(
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.User,
				e.Device,
				e.Operation,
				e.Request,
				fmt.Sprintf("%d", len(e.Commands)),
				status,
			)
		}
		t.Flush()
		return nil
	},
}

var auditShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one audit event in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := audit.Query(audit.Filter{})
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}
		for _, e := range events {
			if e.ID != args[0] {
				continue
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(e)
			}
			fmt.Printf("%s %s on %s by %s (%s)\n", bold(e.Operation), e.Request, e.Device, e.User, e.Duration.Round(time.Millisecond))
			fmt.Println(strings.Repeat("-", 40))
			for _, c := range e.Commands {
				fmt.Println("  " + c)
			}
			for _, w := range e.Warnings {
				fmt.Println(yellow("WARNING: ") + w)
			}
			if e.Error != "" {
				fmt.Println(red("Error: ") + e.Error)
			}
			return nil
		}
		return fmt.Errorf("audit event %s not found", args[0])
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditDevice, "device", "", "Filter by device")
	auditListCmd.Flags().StringVar(&auditUser, "user", "", "Filter by user")
	auditListCmd.Flags().StringVar(&auditOperation, "operation", "", "Filter by operation (command, upgrade, facts)")
	auditListCmd.Flags().DurationVar(&auditLast, "last", 0, "Show events from last duration (e.g., 24h)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed runs")
	auditListCmd.Flags().BoolVar(&auditChanged, "changed", false, "Show only runs that sent commands")

	auditCmd.AddCommand(auditListCmd, auditShowCmd)
}
