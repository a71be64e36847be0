// Package bootimage is a small OCI-backed store for boot-image bytes
// (spec.md §9 "Boot-image distribution" supplemented feature): spec.md's
// load_kernel/load_system/load_data operations (§4.7) assume the bytes
// simply arrive; this package is where they come from, letting a boot
// image be pulled from (or pushed to) any OCI-compatible registry the
// same way a container image is, using google/go-containerregistry's
// crane-style API.
package bootimage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/go-containerregistry/pkg/crane"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/static"
	"github.com/google/go-containerregistry/pkg/v1/types"
)

// bootImageLayerType is a made-up media type identifying a single raw
// boot-image blob layer, so a puller can tell this apart from an
// ordinary container image layer.
const bootImageLayerType types.MediaType = "application/vnd.aurora-os.guestcore.bootimage.v1+binary"

// Store caches pulled boot images on disk, keyed by image digest, so a
// repeated Pull of the same reference resolves the manifest from the
// registry but doesn't re-download the layer.
type Store struct {
	cacheDir string
}

// NewStore opens (creating if necessary) a boot image cache under
// cacheDir.
func NewStore(cacheDir string) (*Store, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("bootimage: create cache dir: %w", err)
	}
	return &Store{cacheDir: cacheDir}, nil
}

// Pull fetches the single-layer OCI artifact at ref and returns its raw
// bytes, serving from the local cache when the digest is already present.
func (s *Store) Pull(ctx context.Context, ref string) ([]byte, error) {
	img, err := crane.Pull(ref, crane.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("bootimage: pull %s: %w", ref, err)
	}

	digest, err := img.Digest()
	if err != nil {
		return nil, fmt.Errorf("bootimage: digest %s: %w", ref, err)
	}
	cachePath := s.pathFor(digest)
	if data, err := os.ReadFile(cachePath); err == nil {
		return data, nil
	}

	layers, err := img.Layers()
	if err != nil {
		return nil, fmt.Errorf("bootimage: layers %s: %w", ref, err)
	}
	if len(layers) != 1 {
		return nil, fmt.Errorf("bootimage: %s has %d layers, want exactly 1", ref, len(layers))
	}

	rc, err := layers[0].Uncompressed()
	if err != nil {
		return nil, fmt.Errorf("bootimage: read layer %s: %w", ref, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("bootimage: read layer %s: %w", ref, err)
	}

	if err := os.WriteFile(cachePath, data, 0o644); err != nil {
		return nil, fmt.Errorf("bootimage: cache write %s: %w", ref, err)
	}
	return data, nil
}

// Push wraps data as a single-layer OCI artifact and pushes it to ref.
func (s *Store) Push(ctx context.Context, ref string, data []byte) (v1.Hash, error) {
	layer := static.NewLayer(data, bootImageLayerType)
	img, err := mutate.AppendLayers(empty.Image, layer)
	if err != nil {
		return v1.Hash{}, fmt.Errorf("bootimage: build image: %w", err)
	}
	if err := crane.Push(img, ref, crane.WithContext(ctx)); err != nil {
		return v1.Hash{}, fmt.Errorf("bootimage: push %s: %w", ref, err)
	}
	return img.Digest()
}

// LocalPath reports where data with the given digest would be cached,
// without requiring it to already be present.
func (s *Store) LocalPath(digest v1.Hash) string {
	return s.pathFor(digest)
}

func (s *Store) pathFor(digest v1.Hash) string {
	return filepath.Join(s.cacheDir, digest.Algorithm+"-"+digest.Hex)
}

// ContentDigest computes the sha256 digest of data as a raw blob, which is
// the digest of the single layer Push builds from it. It is not the image
// digest Push returns, nor the key the local cache is stored under.
func ContentDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
