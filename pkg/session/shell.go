package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/trungdtbk/pss1830/pkg/util"
)

// DefaultCommandTimeout bounds the wait for a prompt after each command.
const DefaultCommandTimeout = 180 * time.Second

// Login carries the credentials for the shell's own "Username:" challenge.
type Login struct {
	Username string
	Password string
}

// ShellOptions configures a Shell.
type ShellOptions struct {
	Device         string
	Terminal       *Terminal
	CommandTimeout time.Duration
}

type chunk struct {
	data []byte
	err  error
}

// Shell drives an interactive CLI over any byte stream. It implements Session.
type Shell struct {
	device   string
	terminal *Terminal
	timeout  time.Duration

	w       io.Writer
	chunks  chan chunk
	closers []io.Closer

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewShell starts reading from r. Commands are written to w. Every closer is
// closed, in order, by Close.
func NewShell(r io.Reader, w io.Writer, opts ShellOptions, closers ...io.Closer) *Shell {
	if opts.Terminal == nil {
		opts.Terminal = DefaultTerminal()
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	s := &Shell{
		device:   opts.Device,
		terminal: opts.Terminal,
		timeout:  opts.CommandTimeout,
		w:        w,
		chunks:   make(chan chunk, 64),
		closers:  closers,
		done:     make(chan struct{}),
	}
	go s.readLoop(r)
	return s
}

func (s *Shell) readLoop(r io.Reader) {
	defer close(s.chunks)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if !s.deliver(chunk{data: data}) {
				return
			}
		}
		if err != nil {
			s.deliver(chunk{err: err})
			return
		}
	}
}

func (s *Shell) deliver(c chunk) bool {
	select {
	case s.chunks <- c:
		return true
	case <-s.done:
		return false
	}
}

// Open waits for the first prompt, answers the login challenge when the
// shell asks for a username, and disables output paging.
func (s *Shell) Open(ctx context.Context, login Login) error {
	first, err := s.receive(ctx, "", nil, "")
	if err != nil {
		return fmt.Errorf("unable to establish a CLI session: %w", err)
	}

	if strings.HasPrefix(strings.TrimSpace(string(lastLine([]byte(first)))), "Username") {
		util.WithDevice(s.device).Debugf("logging in to CLI as %s", login.Username)
		for _, line := range []string{login.Username, login.Password, "Y"} {
			if _, err := s.exec(ctx, Command{Command: line}, false); err != nil {
				return fmt.Errorf("unable to establish a CLI session: %w", err)
			}
		}
	}

	if _, err := s.exec(ctx, Command{Command: "paging status disabled"}, true); err != nil {
		return fmt.Errorf("unable to establish a CLI session: %w", err)
	}
	return nil
}

// Send writes one command and returns its sanitized response. A device
// error pattern in the response is returned as a transport error.
func (s *Shell) Send(ctx context.Context, cmd Command) (string, error) {
	util.WithCommand(s.device, cmd.Command).Debug("sending command")
	return s.exec(ctx, cmd, true)
}

func (s *Shell) exec(ctx context.Context, cmd Command, checkErrors bool) (string, error) {
	var prompt *regexp.Regexp
	if cmd.Prompt != "" {
		re, err := regexp.Compile(cmd.Prompt)
		if err != nil {
			return "", util.NewValidationError(fmt.Sprintf("invalid prompt pattern %q: %v", cmd.Prompt, err))
		}
		prompt = re
	}

	if _, err := io.WriteString(s.w, cmd.Command+"\n"); err != nil {
		return "", util.NewTransportError(s.device, cmd.Command, err)
	}

	raw, err := s.receive(ctx, cmd.Command, prompt, cmd.Answer)
	if err != nil {
		return "", err
	}

	out := s.terminal.Sanitize(cmd.Command, raw)
	if checkErrors {
		if pattern, found := s.terminal.MatchError(out); found {
			return "", util.NewTransportError(s.device, cmd.Command,
				&util.DeviceError{Command: cmd.Command, Pattern: pattern, Output: out})
		}
	}
	return out, nil
}

// receive reads until a terminal prompt ends the response. If prompt matches
// first, answer is sent once and reading continues.
func (s *Shell) receive(ctx context.Context, command string, prompt *regexp.Regexp, answer string) (string, error) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	var resp bytes.Buffer
	answered, answeredAt := false, 0
	for {
		select {
		case <-ctx.Done():
			return "", util.NewTransportError(s.device, command, ctx.Err())
		case <-timer.C:
			return "", util.NewTransportError(s.device, command,
				fmt.Errorf("command timeout triggered, timeout value is %s", s.timeout))
		case c, ok := <-s.chunks:
			if !ok {
				return "", util.NewTransportError(s.device, command, io.ErrClosedPipe)
			}
			if c.err != nil {
				err := c.err
				if errors.Is(err, io.EOF) {
					err = fmt.Errorf("connection closed by device: %w", err)
				}
				return "", util.NewTransportError(s.device, command, err)
			}
			resp.Write(c.data)

			if prompt != nil && !answered && prompt.Match(lastLine(resp.Bytes())) {
				if _, err := io.WriteString(s.w, answer+"\n"); err != nil {
					return "", util.NewTransportError(s.device, command, err)
				}
				answered, answeredAt = true, resp.Len()
				continue
			}
			// the echoed answer shares a line with the question
			if answered && bytes.IndexByte(resp.Bytes()[answeredAt:], '\n') < 0 {
				continue
			}
			if s.terminal.MatchPrompt(resp.Bytes()) {
				return resp.String(), nil
			}
		}
	}
}

// Close releases the underlying stream.
func (s *Shell) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		for _, c := range s.closers {
			if err := c.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}
