package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

type LsCmd struct{}

func (c *LsCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := cctx.Client(ctx)
	if err != nil {
		return err
	}
	list, err := client.List(ctx)
	if err != nil {
		return fmt.Errorf("ls: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tARCH\tSTATE\tCMDLINE")
	for _, v := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID, v.Arch, v.State, v.Cmdline)
	}
	return w.Flush()
}

type DestroyCmd struct {
	ID string `arg:"" help:"ID of the guest to destroy"`
}

func (c *DestroyCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := cctx.Client(ctx)
	if err != nil {
		return err
	}
	if err := client.Destroy(ctx, c.ID); err != nil {
		return fmt.Errorf("destroy: %w", err)
	}
	fmt.Println(c.ID)
	return nil
}
