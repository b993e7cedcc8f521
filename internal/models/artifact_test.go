package models

import "testing"

func TestNewArtifact(t *testing.T) {
	a := NewArtifact("split_1.png", "image/png", []byte("hello"))
	if a.Size != 5 {
		t.Fatalf("size = %d", a.Size)
	}
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if a.Checksum != want {
		t.Fatalf("checksum = %s", a.Checksum)
	}
}
