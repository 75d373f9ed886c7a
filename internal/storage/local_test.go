package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestSaveAndOpen(t *testing.T) {
	store, err := NewStore(t.TempDir(), "http://localhost:3210/files/")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	companyID := uuid.New()
	inspectionID := uuid.New()

	rel, publicURL, err := store.Save(companyID, inspectionID, "photo.jpg", strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Objects are namespaced by company and inspection
	want := filepath.Join(companyID.String(), inspectionID.String(), "photo.jpg")
	if rel != want {
		t.Errorf("Expected path %s, got %s", want, rel)
	}
	if publicURL != "http://localhost:3210/files/"+companyID.String()+"/"+inspectionID.String()+"/photo.jpg" {
		t.Errorf("Unexpected public URL: %s", publicURL)
	}

	f, err := store.Open(rel)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	content, _ := io.ReadAll(f)
	if string(content) != "jpeg-bytes" {
		t.Errorf("Round trip mismatch: %q", content)
	}
}

func TestSaveStripsDirectoryComponents(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(root, "http://test/files")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	// A hostile filename cannot escape the object directory
	rel, _, err := store.Save(uuid.New(), uuid.New(), "../../etc/passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if strings.Contains(rel, "..") {
		t.Errorf("Path traversal leaked into storage path: %s", rel)
	}
	if filepath.Base(rel) != "passwd" {
		t.Errorf("Expected base name only, got %s", rel)
	}
}

func TestDeleteAndList(t *testing.T) {
	store, err := NewStore(t.TempDir(), "http://test/files")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	companyID := uuid.New()
	inspectionID := uuid.New()
	rel, _, err := store.Save(companyID, inspectionID, "a.jpg", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, _, err := store.Save(companyID, inspectionID, "b.jpg", strings.NewReader("y")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	files, err := store.List(companyID, inspectionID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 objects, got %d", len(files))
	}

	if err := store.Delete(rel); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), rel)); !os.IsNotExist(err) {
		t.Error("Deleted object should be gone")
	}
}
