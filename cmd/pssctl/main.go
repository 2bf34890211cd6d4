// pssctl - Nokia 1830PSS CLI automation
//
// Drives 1830PSS network elements over their interactive CLI:
//   - run command batches and poll until conditionals hold
//   - control the software upgrade workflow (audit, load, activate, commit)
//   - collect device facts
//   - record every run in an audit log and, optionally, the last upgrade
//     status of each device in Redis
//
// Usage:
//
//	pssctl -d <device> command "show version" --wait-for "result[0] contains 1830PSS"
//	pssctl -d <device> upgrade status
//	pssctl -d <device> upgrade manual --manual audit --release 11.0.2
//	pssctl -d <device> upgrade auto --release 11.0.2 --wait-timeout 5h
//	pssctl -d <device> facts
//	pssctl state show
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trungdtbk/pss1830/pkg/audit"
	"github.com/trungdtbk/pss1830/pkg/cli"
	"github.com/trungdtbk/pss1830/pkg/inventory"
	"github.com/trungdtbk/pss1830/pkg/settings"
	"github.com/trungdtbk/pss1830/pkg/statestore"
	"github.com/trungdtbk/pss1830/pkg/util"
	"github.com/trungdtbk/pss1830/pkg/version"
)

var (
	// Global context flags
	deviceName    string // -d, --device
	inventoryPath string // -I, --inventory
	redisAddr     string // --redis

	// Global option flags
	verbose    bool
	jsonOutput bool

	// Global state
	userSettings *settings.Settings
	inv          *inventory.Inventory
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if cerr := audit.CloseDefault(); cerr != nil {
		util.Warnf("Could not close audit log: %v", cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, red("Error:"), err)
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:               "pssctl",
	Short:             "Nokia 1830PSS CLI automation",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `pssctl drives Nokia 1830PSS network elements through their CLI.

The device flag selects an entry from the inventory; commands act on it.

  pssctl -d <device> <command> [args]`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isSettingsOrHelp(cmd) {
			return nil
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		if deviceName == "" {
			deviceName = userSettings.DefaultDevice
		}
		if inventoryPath == "" {
			inventoryPath = userSettings.GetInventoryPath()
		}
		if redisAddr == "" {
			redisAddr = userSettings.RedisAddr
		}

		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		if jsonOutput {
			cli.SetColor(false)
			util.SetJSONFormat()
		}

		auditLogger, err := audit.NewFileLogger(userSettings.GetAuditLogPath(), audit.DefaultRotation)
		if err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&deviceName, "device", "d", "", "Device name from the inventory")
	rootCmd.PersistentFlags().StringVarP(&inventoryPath, "inventory", "I", "", "Inventory file (default ~/.pssctl/inventory.yaml)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address for the status snapshot store")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "JSON output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "device", Title: "Device Operations:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{commandCmd, upgradeCmd, factsCmd, stateCmd} {
		cmd.GroupID = "device"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, auditCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("pssctl dev build (stamp a version with -ldflags)")
		} else {
			fmt.Printf("pssctl %s\n", version.Info())
		}
	},
}

// isSettingsOrHelp checks whether cmd (or any ancestor) is a settings, help, or version command.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings":
			return true
		}
	}
	return false
}

// openStore returns the snapshot store, or nil when none is configured or
// the server cannot be reached.
func openStore(ctx context.Context) *statestore.Store {
	if redisAddr == "" {
		return nil
	}
	store := statestore.New(redisAddr, userSettings.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		util.Warnf("Status store at %s unavailable: %v", redisAddr, err)
		store.Close()
		return nil
	}
	return store
}

// currentUser names the operator in audit records and lock holders.
func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

// record writes an audit event; failures only warn.
func record(event *audit.Event, start time.Time, err error) {
	event.WithDuration(time.Since(start)).WithResult(err)
	if logErr := audit.Log(event); logErr != nil {
		util.Warnf("Could not write audit event: %v", logErr)
	}
}

// Color helpers, delegating to pkg/cli
func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
func bold(s string) string   { return cli.Bold(s) }
