// Package models defines the artifact types shared by export, storage and
// the outer surfaces.
package models

import (
	"crypto/sha256"
	"encoding/hex"
)

// Artifact is one encoded output file.
type Artifact struct {
	Name     string `json:"name"`
	MIME     string `json:"mime"`
	Data     []byte `json:"-"`
	Size     int    `json:"size"`
	Checksum string `json:"checksum"`
	// Region is the region name for split pieces, empty for merge output.
	Region string `json:"region,omitempty"`
}

// NewArtifact builds an artifact and fills in its size and checksum.
func NewArtifact(name, mime string, data []byte) Artifact {
	return Artifact{Name: name, MIME: mime, Data: data, Size: len(data), Checksum: Checksum(data)}
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
