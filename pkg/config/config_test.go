package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name    string `yaml:"name"`
	Workers int    `yaml:"workers"`
}

func (s *sample) Validate() error {
	if s.Workers < 1 {
		return errors.New("workers must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("GRIDSPLIT_TEST_NAME", "tiles")
	p := writeFile(t, "name: ${GRIDSPLIT_TEST_NAME}\nworkers: 3\n")

	var cfg sample
	if err := Load(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "tiles" || cfg.Workers != 3 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadValidates(t *testing.T) {
	p := writeFile(t, "workers: 0\n")
	var cfg sample
	err := Load(p, &cfg)
	if err == nil || !strings.Contains(err.Error(), "workers must be positive") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadOptionalKeepsDefaults(t *testing.T) {
	cfg := sample{Name: "default", Workers: 2}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "default" || cfg.Workers != 2 {
		t.Fatalf("cfg = %+v", cfg)
	}

	bad := sample{}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &bad); err == nil {
		t.Fatal("defaults should still be validated")
	}
}

func TestLoadOptionalOverrides(t *testing.T) {
	cfg := sample{Name: "default", Workers: 2}
	p := writeFile(t, "workers: 5\n")
	if err := LoadOptional(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "default" || cfg.Workers != 5 {
		t.Fatalf("cfg = %+v", cfg)
	}
}
