package files

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSaveAndReadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	content := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01, 0x02}
	name := GeneratedName("photo.png", time.Now())

	if err := store.Save(name, content); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Read(name)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("stored content differs: got %v, want %v", got, content)
	}
}

func TestGeneratedName(t *testing.T) {
	now := time.Now()

	name := GeneratedName("holiday.photo.JPG", now)
	if !strings.HasSuffix(name, ".JPG") {
		t.Fatalf("expected original extension to be kept, got %q", name)
	}

	// a path-like original must not produce directory components
	name = GeneratedName("../../etc/passwd", now)
	if strings.ContainsAny(name, "/\\") {
		t.Fatalf("generated name contains path separators: %q", name)
	}

	// two names generated at the same instant must differ
	if GeneratedName("a.txt", now) == GeneratedName("a.txt", now) {
		t.Fatal("expected distinct names for same-instant generation")
	}
}

func TestDecodeDataURI(t *testing.T) {
	content := []byte("hello attachment")
	uri := "data:text/plain;base64," + base64.StdEncoding.EncodeToString(content)

	got, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("DecodeDataURI failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("decoded content differs: got %q", got)
	}

	if _, err := DecodeDataURI("no comma here"); !errors.Is(err, ErrBadDataURI) {
		t.Fatalf("expected ErrBadDataURI for missing comma, got %v", err)
	}
	if _, err := DecodeDataURI("data:text/plain;base64,!!!"); !errors.Is(err, ErrBadDataURI) {
		t.Fatalf("expected ErrBadDataURI for invalid base64, got %v", err)
	}
}
