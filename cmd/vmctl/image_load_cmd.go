package main

import (
	"context"
	"fmt"
	"os"
)

type LoadKernelCmd struct {
	ID   string `arg:"" help:"ID of the guest to load the image into"`
	Path string `arg:"" help:"path to the boot image file (bzImage for linux, boot.img for android)"`
}

func (c *LoadKernelCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("load-kernel: %w", err)
	}

	client, err := cctx.Client(ctx)
	if err != nil {
		return err
	}
	view, err := client.LoadKernel(ctx, c.ID, data)
	if err != nil {
		return fmt.Errorf("load-kernel: %w", err)
	}
	fmt.Printf("%s: %s\n", view.ID, view.State)
	return nil
}

type LoadRamdiskCmd struct {
	ID   string `arg:"" help:"ID of the guest to load the ramdisk into"`
	Path string `arg:"" help:"path to the ramdisk image file"`
}

func (c *LoadRamdiskCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("load-ramdisk: %w", err)
	}

	client, err := cctx.Client(ctx)
	if err != nil {
		return err
	}
	view, err := client.LoadRamdisk(ctx, c.ID, data)
	if err != nil {
		return fmt.Errorf("load-ramdisk: %w", err)
	}
	fmt.Printf("%s: %s\n", view.ID, view.State)
	return nil
}

type SetCmdlineCmd struct {
	ID      string `arg:"" help:"ID of the guest"`
	Cmdline string `arg:"" help:"new kernel command line"`
}

func (c *SetCmdlineCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := cctx.Client(ctx)
	if err != nil {
		return err
	}
	view, err := client.SetCmdline(ctx, c.ID, c.Cmdline)
	if err != nil {
		return fmt.Errorf("set-cmdline: %w", err)
	}
	fmt.Println(view.Cmdline)
	return nil
}
