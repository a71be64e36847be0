package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/aurora-os/guestcore/daemon"
)

type DaemonCmd struct {
	Action string `arg:"" optional:"" default:"status" enum:"start,stop,restart,status" help:"action to perform: start, stop, restart, or status (default)"`
}

func (c *DaemonCmd) Run(cctx *Context) error {
	ctx := context.Background()
	server := daemon.NewServer(cctx.AppBaseDir, nil)

	switch c.Action {
	case "start":
		return c.startDaemon(ctx, server)
	case "stop":
		return c.stopDaemon(ctx, server)
	case "restart":
		return c.restartDaemon(ctx, server, cctx)
	case "status":
		fallthrough
	default:
		return c.checkStatus(ctx, server)
	}
}

func (c *DaemonCmd) checkStatus(ctx context.Context, server *daemon.Server) error {
	client, err := server.NewClient(ctx)
	if err != nil {
		fmt.Println("Daemon is not running")
		return nil
	}
	if err := client.Ping(ctx); err != nil {
		fmt.Println("Daemon is not running")
		return nil
	}
	fmt.Println("Daemon is running")
	return nil
}

func (c *DaemonCmd) startDaemon(ctx context.Context, server *daemon.Server) error {
	client, err := server.NewClient(ctx)
	if err == nil {
		if err := client.Ping(ctx); err == nil {
			fmt.Println("Daemon is already running")
			return nil
		}
	}
	return server.ServeUnix(ctx)
}

func (c *DaemonCmd) stopDaemon(ctx context.Context, server *daemon.Server) error {
	client, err := server.NewClient(ctx)
	if err != nil {
		fmt.Println("Daemon is not running")
		return nil
	}
	if err := client.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	fmt.Println("Daemon stopped")
	return nil
}

func (c *DaemonCmd) restartDaemon(ctx context.Context, server *daemon.Server, cctx *Context) error {
	if client, err := server.NewClient(ctx); err == nil {
		if err := client.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
		fmt.Println("Daemon stopped")
	}

	cmd := exec.CommandContext(ctx, os.Args[0], "daemon", "start", "--log-file", cctx.LogFile, "--app-base-dir", cctx.AppBaseDir)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	for i := 0; i < 20; i++ {
		time.Sleep(100 * time.Millisecond)
		conn, err := net.DialTimeout("unix", server.SocketPath, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			fmt.Println("Daemon restarted successfully")
			return nil
		}
	}
	return fmt.Errorf("daemon failed to start")
}
