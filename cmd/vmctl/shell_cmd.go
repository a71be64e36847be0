package main

import (
	"context"
	"fmt"
	"net"

	"github.com/aurora-os/guestcore/console"
)

// ShellCmd attaches an interactive debug console session to a running
// guest, over the unix socket the daemon opens for it on start.
type ShellCmd struct {
	ID string `arg:"" help:"ID of the guest to attach to"`
}

func (c *ShellCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := cctx.Client(ctx)
	if err != nil {
		return err
	}
	info, err := client.ConsoleConnect(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}

	conn, err := net.Dial("unix", info.SocketPath)
	if err != nil {
		return fmt.Errorf("shell: dial %s: %w", info.SocketPath, err)
	}
	defer conn.Close()

	sshClient, err := console.Dial(conn, info.UserCert, info.UserKey, info.HostCAPub)
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	defer sshClient.Close()

	return console.AttachInteractive(sshClient)
}
