package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/trungdtbk/pss1830/pkg/cli"
	"github.com/trungdtbk/pss1830/pkg/statestore"
	"github.com/trungdtbk/pss1830/pkg/util"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show stored upgrade status snapshots",
	Long: `Show the last upgrade status recorded for each device without
connecting to it. Snapshots are written by "pssctl upgrade" when a Redis
store is configured (--redis or "pssctl settings set redis_addr").

Examples:
  pssctl state show
  pssctl -d pss-akl-1 state show`,
}

var stateShowCmd = &cobra.Command{
	Use:   "show [device]",
	Short: "Show the last recorded status",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := requireStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		var devices []string
		switch {
		case len(args) == 1:
			devices = args
		case deviceName != "":
			devices = []string{deviceName}
		default:
			if devices, err = store.Devices(ctx); err != nil {
				return err
			}
			sort.Strings(devices)
		}

		var snaps []*statestore.Snapshot
		for _, d := range devices {
			snap, err := store.Latest(ctx, d)
			if err != nil {
				return err
			}
			if snap == nil {
				util.Warnf("No status recorded for %s", d)
				continue
			}
			snaps = append(snaps, snap)
		}

		if jsonOutput {
			out := make(map[string]any, len(snaps))
			for _, s := range snaps {
				out[s.Device] = map[string]any{"updated": s.Updated, "upgrade_status": s.Status}
			}
			return json.NewEncoder(os.Stdout).Encode(out)
		}

		if len(snaps) == 1 {
			s := snaps[0]
			fmt.Printf("%s  %s\n\n", bold(s.Device), cli.Dim("recorded "+s.Updated.Local().Format(time.RFC3339)))
			printStatus(s.Status)
			printLock(cmd, store, s.Device)
			return nil
		}

		t := cli.NewTable(os.Stdout, "DEVICE", "OPERATION", "STATUS", "ACTIVE", "COMMITTED", "RECORDED")
		for _, s := range snaps {
			t.Row(s.Device,
				orDash(s.Status.Operation()),
				cli.OperationStatus(s.Status.OperationStatus()),
				orDash(s.Status.ActiveRelease()),
				orDash(s.Status.CommittedRelease()),
				s.Updated.Local().Format("2006-01-02 15:04:05"))
		}
		t.Flush()
		return nil
	},
}

func init() {
	stateCmd.AddCommand(stateShowCmd)
}

func requireStore(cmd *cobra.Command) (*statestore.Store, error) {
	if redisAddr == "" {
		return nil, util.NewValidationError("no status store configured: use --redis or 'pssctl settings set redis_addr <addr>'")
	}
	store := statestore.New(redisAddr, userSettings.RedisDB)
	if err := store.Ping(cmd.Context()); err != nil {
		store.Close()
		return nil, fmt.Errorf("connecting to status store %s: %w", redisAddr, err)
	}
	return store, nil
}

func printLock(cmd *cobra.Command, store *statestore.Store, device string) {
	holder, since, err := store.LockHolder(cmd.Context(), device)
	if err != nil || holder == "" {
		return
	}
	fmt.Printf("\n%s %s since %s\n", yellow("Locked by"), holder, since.Local().Format(time.RFC3339))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
