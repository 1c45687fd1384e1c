package usecase

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
)

type retrieveRepoFake struct {
	browseRepoFake

	keys map[string]string
}

func (f *retrieveRepoFake) GetInstanceObjectKey(_ context.Context, sopUID string) (string, error) {
	key, ok := f.keys[sopUID]
	if !ok {
		return "", domain.WrapError(domain.ErrInstanceNotFound, "get object key", errors.New(sopUID))
	}
	return key, nil
}

func TestOpenInstanceStreamsStoredBytes(t *testing.T) {
	store := &objectStoreFake{data: map[string][]byte{"sop-1.dcm": {0x44, 0x49, 0x43, 0x4d}}}
	repo := &retrieveRepoFake{keys: map[string]string{"sop-1": "sop-1.dcm"}}
	uc := NewRetrieveUseCase(repo, store)

	rc, err := uc.OpenInstance(context.Background(), "sop-1")
	if err != nil {
		t.Fatalf("OpenInstance() error = %v", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if string(raw) != "DICM" {
		t.Fatalf("bytes were transformed in transit: %q", raw)
	}
}

func TestOpenInstanceUnknownSOPIsNotFound(t *testing.T) {
	uc := NewRetrieveUseCase(&retrieveRepoFake{}, &objectStoreFake{})

	_, err := uc.OpenInstance(context.Background(), "no-such-sop")
	if !domain.IsKind(err, domain.ErrInstanceNotFound) {
		t.Fatalf("expected ErrInstanceNotFound, got %v", err)
	}
}
