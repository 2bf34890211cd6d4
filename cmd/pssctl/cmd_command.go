package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trungdtbk/pss1830/pkg/audit"
	"github.com/trungdtbk/pss1830/pkg/conditional"
	"github.com/trungdtbk/pss1830/pkg/executor"
	"github.com/trungdtbk/pss1830/pkg/poll"
	"github.com/trungdtbk/pss1830/pkg/session"
	"github.com/trungdtbk/pss1830/pkg/util"
)

var (
	commandFile     string
	commandWaitFor  []string
	commandMatch    string
	commandRetries  int
	commandInterval time.Duration
	commandCheck    bool
	commandPrompt   string
	commandAnswer   string
)

var commandCmd = &cobra.Command{
	Use:   "command [COMMAND...]",
	Short: "Run CLI commands, optionally until conditionals hold",
	Long: `Send one or more CLI commands and print each response.

With --wait-for, the whole batch is re-run until the conditionals hold or
--retries attempts have been made. A conditional has the form

  result[<n>] [not] <operator> <value>

where <n> indexes the responses and <operator> is one of eq, neq, gt, ge,
lt, le, contains or matches.

Commands can also come from a YAML file:

  commands:
    - show version
    - {command: "config admin nodename pss-1", prompt: "Enter 'yes'", answer: "yes"}
  wait_for:
    - result[0] contains 1830PSS

Examples:
  pssctl -d pss-akl-1 command "show version"
  pssctl -d pss-akl-1 command "show slot *" --wait-for "result[0] not contains Down" --retries 30 --interval 10s
  pssctl -d pss-akl-1 command -f batch.yaml --check`,
	RunE: runCommand,
}

func init() {
	f := commandCmd.Flags()
	f.StringVarP(&commandFile, "file", "f", "", "YAML command batch file")
	f.StringArrayVar(&commandWaitFor, "wait-for", nil, "Conditional to wait for (repeatable)")
	f.StringVar(&commandMatch, "match", string(conditional.MatchAll), "Match policy: all or any")
	f.IntVar(&commandRetries, "retries", poll.DefaultRetries, "Maximum attempts")
	f.DurationVar(&commandInterval, "interval", poll.DefaultInterval, "Wait between attempts")
	f.BoolVar(&commandCheck, "check", false, "Only run read-only (show) commands")
	f.StringVar(&commandPrompt, "prompt", "", "Confirmation prompt to answer for every command")
	f.StringVar(&commandAnswer, "answer", "", "Answer sent when --prompt is seen")
}

// commandRun is the assembled request of one "pssctl command" invocation.
type commandRun struct {
	commands   []session.Command
	conditions []*conditional.Expression
	opts       poll.Options
}

// buildCommandRun merges the batch file (if any) with the command line.
// Flags that were set explicitly override the file.
func buildCommandRun(cmd *cobra.Command, args []string, batch *executor.Batch) (*commandRun, error) {
	var cmds []session.Command
	waitFor := commandWaitFor
	match := commandMatch
	opts := poll.Options{Retries: commandRetries, Interval: commandInterval}

	if batch != nil {
		cmds = append(cmds, batch.Commands...)
		if !cmd.Flags().Changed("wait-for") && len(batch.WaitFor) > 0 {
			waitFor = batch.WaitFor
		}
		if !cmd.Flags().Changed("match") && batch.Match != "" {
			match = batch.Match
		}
		if !cmd.Flags().Changed("retries") && batch.Retries != 0 {
			opts.Retries = batch.Retries
		}
		if !cmd.Flags().Changed("interval") && batch.Interval != 0 {
			opts.Interval = batch.Interval
		}
	}
	for _, a := range args {
		cmds = append(cmds, session.Command{Command: a, Prompt: commandPrompt, Answer: commandAnswer})
	}
	if len(cmds) == 0 {
		return nil, util.NewValidationError("no commands given: pass them as arguments or with -f")
	}

	policy, err := conditional.ParseMatchPolicy(match)
	if err != nil {
		return nil, err
	}
	opts.Match = policy
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	conds, err := conditional.ParseExpressions(waitFor)
	if err != nil {
		return nil, err
	}
	return &commandRun{commands: cmds, conditions: conds, opts: opts}, nil
}

// commandOutput is the JSON shape of a command run.
type commandOutput struct {
	Stdout           []string   `json:"stdout"`
	StdoutLines      [][]string `json:"stdout_lines"`
	Warnings         []string   `json:"warnings,omitempty"`
	FailedConditions []string   `json:"failed_conditions,omitempty"`
	Attempts         int        `json:"attempts"`
	Changed          bool       `json:"changed"`
}

func runCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	var batch *executor.Batch
	if commandFile != "" {
		var err error
		if batch, err = executor.LoadBatch(commandFile); err != nil {
			return err
		}
	}
	run, err := buildCommandRun(cmd, args, batch)
	if err != nil {
		return err
	}

	cmds, warnings := executor.Filter(run.commands, commandCheck)
	out := &commandOutput{Stdout: []string{}, StdoutLines: [][]string{}, Warnings: warnings}
	for _, c := range cmds {
		if !strings.HasPrefix(c.Command, executor.ReadOnlyPrefix) {
			out.Changed = true
		}
	}

	event := audit.NewEvent(currentUser(), deviceName, audit.OperationCommand).
		WithRequest(strings.Join(commandTexts(run.commands), "; ")).
		WithCheckMode(commandCheck).
		WithWarnings(warnings)

	runErr := func() error {
		var runner executor.Runner
		device := deviceName
		if len(cmds) > 0 {
			dev, shell, err := connect(ctx)
			if err != nil {
				return err
			}
			defer shell.Close()
			device = dev.Name
			runner = executor.New(dev.Name, shell)
		}

		res, err := poll.Run(ctx, device, runner, cmds, run.conditions, run.opts)
		if err != nil {
			return err
		}
		out.Stdout = append(out.Stdout, res.Responses...)
		out.StdoutLines = append(out.StdoutLines, res.Lines()...)
		out.Attempts = res.Attempts
		if !res.Satisfied() {
			out.FailedConditions = res.FailedConditions()
		}
		if len(cmds) > 0 {
			event.WithCommands(commandTexts(cmds)).WithChanged(out.Changed)
		}
		return res.Err()
	}()
	record(event, start, runErr)

	if jsonOutput {
		if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
			return err
		}
	} else {
		printCommandOutput(cmds, out)
	}
	return runErr
}

func printCommandOutput(cmds []session.Command, out *commandOutput) {
	for _, w := range out.Warnings {
		fmt.Println(yellow("WARNING: ") + w)
	}
	for i, resp := range out.Stdout {
		fmt.Println(bold(cmds[i].Command))
		if resp != "" {
			fmt.Println(resp)
		}
		fmt.Println()
	}
	if len(out.FailedConditions) > 0 {
		fmt.Printf("%s after %d attempt(s):\n", red("Conditions not satisfied"), out.Attempts)
		for _, c := range out.FailedConditions {
			fmt.Println("  " + c)
		}
	}
}

func commandTexts(cmds []session.Command) []string {
	texts := make([]string, len(cmds))
	for i, c := range cmds {
		texts[i] = c.Command
	}
	return texts
}
