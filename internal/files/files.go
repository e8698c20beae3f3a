// Package files stores uploaded message attachments on disk under
// generated, collision-resistant names.
package files

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrBadDataURI is returned when an attachment payload is not a base64 data URI.
var ErrBadDataURI = errors.New("malformed data URI")

// Store writes and reads attachment files in a single directory.
type Store struct {
	dir string
}

// NewStore creates the directory if needed and returns a Store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create files dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store writes into, for static serving.
func (s *Store) Dir() string { return s.dir }

// Save writes data under name. name must come from GeneratedName; raw client
// filenames are never used as paths.
func (s *Store) Save(name string, data []byte) error {
	return os.WriteFile(filepath.Join(s.dir, name), data, 0o644)
}

// Read returns the stored bytes for name.
func (s *Store) Read(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, name))
}

// GeneratedName derives a stored filename from the original's extension and
// the current time, with a random suffix so concurrent uploads in the same
// millisecond cannot collide.
func GeneratedName(original string, now time.Time) string {
	ext := filepath.Ext(filepath.Base(original))
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), uuid.NewString()[:8], ext)
}

// DecodeDataURI decodes the base64 payload of a "data:...;base64,...." URI.
// Everything before the first comma is treated as the header, matching how
// browsers produce FileReader.readAsDataURL output.
func DecodeDataURI(s string) ([]byte, error) {
	_, payload, ok := strings.Cut(s, ",")
	if !ok {
		return nil, ErrBadDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDataURI, err)
	}
	return data, nil
}
