package main

import (
	"context"
	"fmt"
)

type CreateCmd struct {
	ID   string `arg:"" optional:"" help:"ID to give the new guest. Leave unset for an auto-generated name."`
	Arch string `short:"a" default:"linux" enum:"android,linux" help:"guest architecture: android or linux"`
}

func (c *CreateCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := cctx.Client(ctx)
	if err != nil {
		return err
	}
	view, err := client.Create(ctx, c.ID, c.Arch)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	fmt.Println(view.ID)
	return nil
}
