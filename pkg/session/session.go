// Package session provides the interactive CLI channel to a 1830PSS network
// element: an SSH-backed shell that recognizes the device prompts, answers
// confirmation questions and reports device-side errors as failures.
package session

import (
	"context"
	"fmt"
)

// Command is one CLI request. When Prompt is set and the device stops on a
// line matching it, Answer is sent before reading continues.
type Command struct {
	Command string `yaml:"command" json:"command"`
	Prompt  string `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Answer  string `yaml:"answer,omitempty" json:"answer,omitempty"`
}

// Plain wraps each command text in a Command with no prompt handling.
func Plain(commands ...string) []Command {
	cmds := make([]Command, len(commands))
	for i, c := range commands {
		cmds[i] = Command{Command: c}
	}
	return cmds
}

func (c Command) String() string { return c.Command }

// UnmarshalYAML accepts either a bare command string or a mapping with
// command, prompt and answer keys.
func (c *Command) UnmarshalYAML(unmarshal func(any) error) error {
	var text string
	if err := unmarshal(&text); err == nil {
		*c = Command{Command: text}
		return nil
	}
	type plain Command
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	if p.Command == "" {
		return fmt.Errorf("command entry has no command text")
	}
	*c = Command(p)
	return nil
}

// Session sends one command at a time and returns the sanitized response.
// Implementations are not safe for concurrent use; one logical command
// stream owns a session for its whole run.
type Session interface {
	Send(ctx context.Context, cmd Command) (string, error)
	Close() error
}
