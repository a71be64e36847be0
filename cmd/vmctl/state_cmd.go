package main

import (
	"context"
	"fmt"
)

type StartCmd struct {
	ID string `arg:"" help:"ID of the guest to start"`
}

func (c *StartCmd) Run(cctx *Context) error { return runTransition(cctx, c.ID, "start") }

type PauseCmd struct {
	ID string `arg:"" help:"ID of the guest to pause"`
}

func (c *PauseCmd) Run(cctx *Context) error { return runTransition(cctx, c.ID, "pause") }

type ResumeCmd struct {
	ID string `arg:"" help:"ID of the guest to resume"`
}

func (c *ResumeCmd) Run(cctx *Context) error { return runTransition(cctx, c.ID, "resume") }

type StopCmd struct {
	ID string `arg:"" help:"ID of the guest to stop"`
}

func (c *StopCmd) Run(cctx *Context) error { return runTransition(cctx, c.ID, "stop") }

type StateCmd struct {
	ID string `arg:"" help:"ID of the guest to query"`
}

func (c *StateCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := cctx.Client(ctx)
	if err != nil {
		return err
	}
	view, err := client.State(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	fmt.Println(view.State)
	return nil
}

func runTransition(cctx *Context, id, action string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := cctx.Client(ctx)
	if err != nil {
		return err
	}

	switch action {
	case "start":
		v, err := client.Start(ctx, id)
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		fmt.Printf("%s: %s\n", v.ID, v.State)
	case "pause":
		v, err := client.Pause(ctx, id)
		if err != nil {
			return fmt.Errorf("pause: %w", err)
		}
		fmt.Printf("%s: %s\n", v.ID, v.State)
	case "resume":
		v, err := client.Resume(ctx, id)
		if err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		fmt.Printf("%s: %s\n", v.ID, v.State)
	case "stop":
		v, err := client.Stop(ctx, id)
		if err != nil {
			return fmt.Errorf("stop: %w", err)
		}
		fmt.Printf("%s: %s\n", v.ID, v.State)
	}
	return nil
}
