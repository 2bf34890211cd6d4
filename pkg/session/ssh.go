package session

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/trungdtbk/pss1830/pkg/util"
)

// SSHConfig describes how to reach one network element.
type SSHConfig struct {
	Device string
	Host   string
	Port   int

	// SSH account; on 1830PSS this is the CLI account (cli/cli by default).
	User           string
	Password       string
	PrivateKeyFile string

	// Answer to the shell's own Username: challenge.
	Login Login

	// KnownHostsFile enables host key verification when set.
	KnownHostsFile string

	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

func (c *SSHConfig) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if c.PrivateKeyFile != "" {
		key, err := os.ReadFile(c.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing private key %s: %w", c.PrivateKeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	password := c.Password
	auth = append(auth,
		ssh.Password(password),
		ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = password
			}
			return answers, nil
		}),
	)

	hostKey := ssh.InsecureIgnoreHostKey()
	if c.KnownHostsFile != "" {
		cb, err := knownhosts.New(c.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts: %w", err)
		}
		hostKey = cb
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         c.ConnectTimeout,
	}, nil
}

// DialSSH connects to the element, starts an interactive shell on a PTY and
// completes the CLI login. The returned Shell owns the SSH connection.
func DialSSH(ctx context.Context, cfg SSHConfig) (*Shell, error) {
	config, err := cfg.clientConfig()
	if err != nil {
		return nil, err
	}
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	dialCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, util.NewTransportError(cfg.Device, "", fmt.Errorf("SSH dial %s: %w", addr, err))
	}
	if deadline, ok := dialCtx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, util.NewTransportError(cfg.Device, "", fmt.Errorf("SSH handshake %s: %w", addr, err))
	}
	conn.SetDeadline(time.Time{})
	client := ssh.NewClient(c, chans, reqs)

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, util.NewTransportError(cfg.Device, "", fmt.Errorf("SSH session: %w", err))
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 38400,
		ssh.TTY_OP_OSPEED: 38400,
	}
	if err := sess.RequestPty("vt100", 200, 512, modes); err != nil {
		sess.Close()
		client.Close()
		return nil, util.NewTransportError(cfg.Device, "", fmt.Errorf("requesting pty: %w", err))
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, util.NewTransportError(cfg.Device, "", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, util.NewTransportError(cfg.Device, "", err)
	}
	if err := sess.Shell(); err != nil {
		sess.Close()
		client.Close()
		return nil, util.NewTransportError(cfg.Device, "", fmt.Errorf("starting shell: %w", err))
	}

	shell := NewShell(stdout, stdin, ShellOptions{
		Device:         cfg.Device,
		CommandTimeout: cfg.CommandTimeout,
	}, sess, client)

	util.WithDevice(cfg.Device).Debugf("SSH connection to %s established, opening CLI", addr)
	if err := shell.Open(ctx, cfg.Login); err != nil {
		shell.Close()
		return nil, err
	}
	return shell, nil
}
