package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore keeps PDFs on the local filesystem, for development and
// single-host deployments.
type DiskStore struct {
	dir       string
	publicURL string
}

var _ ObjectStore = (*DiskStore)(nil)

// NewDiskStore creates a DiskStore rooted at dir. Stored files are
// served from publicURL by the host's static file server.
func NewDiskStore(dir, publicURL string) *DiskStore {
	return &DiskStore{dir: dir, publicURL: strings.TrimSuffix(publicURL, "/")}
}

func (s *DiskStore) Put(_ context.Context, key string, contents []byte) (string, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("object store: %w", err)
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		return "", fmt.Errorf("object store: %w", err)
	}
	return s.publicURL + "/" + key, nil
}
