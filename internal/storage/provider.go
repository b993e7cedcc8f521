// Package storage writes exported artifacts to an output directory.
package storage

import "github.com/starford/gridsplit/internal/models"

// Provider is the interface for output directory operations.
type Provider interface {
	// List returns metadata for every file under dir (relative to the root).
	List(dir string) ([]models.Artifact, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the root).
	Delete(path string) error
	// Save writes every artifact under dir and returns the written paths.
	Save(dir string, artifacts []models.Artifact) ([]string, error)
	// Root returns the absolute root directory.
	Root() string
}
