package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aurora-os/guestcore/bootimage"
)

type ImagesCmd struct {
	Pull ImagesPullCmd `cmd:"" help:"pull a boot image from an OCI registry into a local file"`
	Push ImagesPushCmd `cmd:"" help:"push a local boot image file to an OCI registry"`
}

type ImagesPullCmd struct {
	Ref  string `arg:"" help:"OCI reference, e.g. registry.example.com/guestcore/linux-bzimage:stable"`
	Out  string `arg:"" help:"path to write the pulled boot image bytes to"`
}

func (c *ImagesPullCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := bootimage.NewStore(filepath.Join(cctx.AppBaseDir, "image-cache"))
	if err != nil {
		return fmt.Errorf("images pull: %w", err)
	}
	data, err := store.Pull(ctx, c.Ref)
	if err != nil {
		return fmt.Errorf("images pull: %w", err)
	}
	if err := os.WriteFile(c.Out, data, 0o644); err != nil {
		return fmt.Errorf("images pull: write %s: %w", c.Out, err)
	}
	fmt.Printf("%s (%d bytes) -> %s\n", c.Ref, len(data), c.Out)
	return nil
}

type ImagesPushCmd struct {
	Path string `arg:"" help:"path to the boot image file to push"`
	Ref  string `arg:"" help:"OCI reference to push to"`
}

func (c *ImagesPushCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("images push: %w", err)
	}
	store, err := bootimage.NewStore(filepath.Join(cctx.AppBaseDir, "image-cache"))
	if err != nil {
		return fmt.Errorf("images push: %w", err)
	}
	digest, err := store.Push(ctx, c.Ref, data)
	if err != nil {
		return fmt.Errorf("images push: %w", err)
	}
	fmt.Printf("%s -> %s@%s\n", c.Path, c.Ref, digest.String())
	return nil
}
