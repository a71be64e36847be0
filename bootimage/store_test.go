package bootimage

import (
	"testing"

	v1 "github.com/google/go-containerregistry/pkg/v1"
)

func TestContentDigestIsDeterministic(t *testing.T) {
	a := ContentDigest([]byte("boot.img contents"))
	b := ContentDigest([]byte("boot.img contents"))
	if a != b {
		t.Fatalf("ContentDigest not deterministic: %s != %s", a, b)
	}
	c := ContentDigest([]byte("different contents"))
	if a == c {
		t.Fatalf("ContentDigest collided for different inputs")
	}
}

func TestStorePathForIsStableAcrossCalls(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	h := v1.Hash{Algorithm: "sha256", Hex: "deadbeef"}
	p1 := s.LocalPath(h)
	p2 := s.LocalPath(h)
	if p1 != p2 {
		t.Fatalf("LocalPath not stable: %s != %s", p1, p2)
	}
}
