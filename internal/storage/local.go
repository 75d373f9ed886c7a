package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store is a filesystem-backed blob store. Objects live under
// {company_id}/{inspection_id}/{name} and are served through the public
// base URL.
type Store struct {
	root    string
	baseURL string
}

// NewStore creates the root directory if needed
func NewStore(root, baseURL string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Store{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save writes the object and returns its storage path and public URL
func (s *Store) Save(companyID, inspectionID uuid.UUID, name string, r io.Reader) (string, string, error) {
	rel := filepath.Join(companyID.String(), inspectionID.String(), filepath.Base(name))
	abs := filepath.Join(s.root, rel)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create object directory: %w", err)
	}

	f, err := os.Create(abs)
	if err != nil {
		return "", "", fmt.Errorf("failed to create object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(abs)
		return "", "", fmt.Errorf("failed to write object: %w", err)
	}

	return rel, s.PublicURL(rel), nil
}

// Open returns a reader for the stored object
func (s *Store) Open(path string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.root, filepath.Clean(path)))
}

// Delete removes a stored object
func (s *Store) Delete(path string) error {
	return os.Remove(filepath.Join(s.root, filepath.Clean(path)))
}

// List returns the object paths stored for one inspection
func (s *Store) List(companyID, inspectionID uuid.UUID) ([]string, error) {
	dir := filepath.Join(s.root, companyID.String(), inspectionID.String())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			paths = append(paths, filepath.Join(companyID.String(), inspectionID.String(), e.Name()))
		}
	}
	return paths, nil
}

// PublicURL returns the public URL for a storage path
func (s *Store) PublicURL(path string) string {
	return s.baseURL + "/" + filepath.ToSlash(path)
}

// Root returns the storage root directory, used to mount the file server
func (s *Store) Root() string {
	return s.root
}
