package localfs

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
)

func TestSaveThenOpenRoundTripsBytes(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	payload := []byte{0x00, 0x01, 'D', 'I', 'C', 'M', 0xff}
	if err := store.Save(context.Background(), "sop-1.dcm", bytes.NewReader(payload)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := store.Open(context.Background(), "sop-1.dcm")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("stored bytes differ: %v != %v", got, payload)
	}
}

func TestOpenMissingKeyIsNotFound(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = store.Open(context.Background(), "missing.dcm")
	if !domain.IsKind(err, domain.ErrInstanceNotFound) {
		t.Fatalf("expected ErrInstanceNotFound, got %v", err)
	}
}

func TestSaveCreatesNestedKeyDirectories(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	payload := []byte("nested")
	if err := store.Save(context.Background(), "study-1/series-1/sop-1.dcm", bytes.NewReader(payload)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := store.Open(context.Background(), "study-1/series-1/sop-1.dcm")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("stored bytes differ: %v != %v", got, payload)
	}
}
