package main

import (
	"context"
	"fmt"
	"strconv"
)

// SyscallCmd dispatches one syscall against a running guest, for poking
// at the emulation table interactively without writing a test.
type SyscallCmd struct {
	ID   string   `arg:"" help:"ID of the guest"`
	Num  int      `arg:"" help:"syscall number"`
	Args []string `arg:"" optional:"" help:"up to six uint64 arguments, decimal or 0x-prefixed hex"`
}

func (c *SyscallCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(c.Args) > 6 {
		return fmt.Errorf("syscall: at most 6 arguments, got %d", len(c.Args))
	}
	var args [6]uint64
	for i, s := range c.Args {
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return fmt.Errorf("syscall: argument %d (%q): %w", i, s, err)
		}
		args[i] = v
	}

	client, err := cctx.Client(ctx)
	if err != nil {
		return err
	}
	ret, err := client.Syscall(ctx, c.ID, c.Num, args)
	if err != nil {
		return fmt.Errorf("syscall: %w", err)
	}
	fmt.Println(ret)
	return nil
}

type PropertyCmd struct {
	Get PropertyGetCmd `cmd:"" help:"read an Android property"`
	Set PropertySetCmd `cmd:"" help:"write an Android property"`
}

type PropertyGetCmd struct {
	Name string `arg:"" help:"property name"`
}

func (c *PropertyGetCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := cctx.Client(ctx)
	if err != nil {
		return err
	}
	v, err := client.GetProperty(ctx, c.Name)
	if err != nil {
		return fmt.Errorf("property get: %w", err)
	}
	fmt.Println(v)
	return nil
}

type PropertySetCmd struct {
	Name  string `arg:"" help:"property name"`
	Value string `arg:"" help:"property value"`
}

func (c *PropertySetCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := cctx.Client(ctx)
	if err != nil {
		return err
	}
	if err := client.SetProperty(ctx, c.Name, c.Value); err != nil {
		return fmt.Errorf("property set: %w", err)
	}
	return nil
}
