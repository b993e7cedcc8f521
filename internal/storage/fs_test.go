package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/gridsplit/internal/models"
)

func tempOut(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempOut(t)
	content := []byte{0x89, 'P', 'N', 'G'}
	if err := s.Write("split_1.png", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("split_1.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempOut(t)
	if err := s.Write("a/b/c.jpg", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.jpg")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempOut(t)
	_ = s.Write("del.png", []byte("bye"))
	if err := s.Delete("del.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.png"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestSaveAndList(t *testing.T) {
	s := tempOut(t)
	arts := []models.Artifact{
		models.NewArtifact("split_1.jpg", "image/jpeg", []byte("a")),
		models.NewArtifact("split_2.jpg", "image/jpeg", []byte("bb")),
	}
	paths, err := s.Save("job", arts)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(paths) != 2 || paths[1] != filepath.Join(s.Root(), "job", "split_2.jpg") {
		t.Fatalf("paths = %v", paths)
	}

	list, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 files, got %d", len(list))
	}
	for _, a := range list {
		if a.Name == "job/split_2.jpg" && (a.Size != 2 || a.Checksum != arts[1].Checksum || a.MIME != "image/jpeg") {
			t.Errorf("metadata = %+v", a)
		}
	}
}

func TestPathTraversal(t *testing.T) {
	s := tempOut(t)
	if err := s.Write("../escape.png", []byte("bad")); err == nil {
		t.Error("expected error for path traversal")
	}
	if _, err := s.Read("/etc/passwd"); err == nil {
		t.Error("expected error for absolute path")
	}
}

func TestNewFSRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFS(f); err == nil {
		t.Error("expected error for non-directory root")
	}
}
