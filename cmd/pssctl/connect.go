package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/trungdtbk/pss1830/pkg/inventory"
	"github.com/trungdtbk/pss1830/pkg/session"
	"github.com/trungdtbk/pss1830/pkg/util"
)

// requireDevice resolves -d against the inventory.
func requireDevice() (*inventory.Device, error) {
	if deviceName == "" {
		return nil, util.NewValidationError("device required: use -d <device> flag")
	}
	if inv == nil {
		loaded, err := inventory.Load(inventoryPath)
		if err != nil {
			return nil, err
		}
		inv = loaded
	}
	return inv.Device(deviceName)
}

// connect opens a CLI session to the selected device, prompting for the
// operator password when the inventory does not supply one.
func connect(ctx context.Context) (*inventory.Device, *session.Shell, error) {
	dev, err := requireDevice()
	if err != nil {
		return nil, nil, err
	}
	if dev.Username != "" && !dev.ResolvePassword(os.Getenv) {
		pw, err := promptPassword(dev)
		if err != nil {
			return nil, nil, err
		}
		dev.Password = pw
	}

	util.WithDevice(dev.Name).Debugf("connecting to %s:%d", dev.Host, dev.Port)
	shell, err := session.DialSSH(ctx, dev.SSHConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", dev.Name, err)
	}
	return dev, shell, nil
}

func promptPassword(dev *inventory.Device) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", util.NewValidationError(fmt.Sprintf(
			"no password for %s: set password or password_env in the inventory", dev.Name))
	}
	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", dev.Username, dev.Name)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}
