package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
	"github.com/anakena-lab/study-viewer/internal/core/ports"
)

// RetrieveUseCase maps a SOP UID to its stored byte stream. The bytes are
// passed through untouched; interpreting them is the viewer's job.
type RetrieveUseCase struct {
	repo    ports.StudyRepository
	objects ports.ObjectStore
}

func NewRetrieveUseCase(repo ports.StudyRepository, objects ports.ObjectStore) *RetrieveUseCase {
	return &RetrieveUseCase{
		repo:    repo,
		objects: objects,
	}
}

func (uc *RetrieveUseCase) OpenInstance(ctx context.Context, sopUID string) (io.ReadCloser, error) {
	key, err := uc.repo.GetInstanceObjectKey(ctx, sopUID)
	if err != nil {
		return nil, fmt.Errorf("resolve instance object: %w", err)
	}

	rc, err := uc.objects.Open(ctx, key)
	if err != nil {
		if domain.IsKind(err, domain.ErrInstanceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("open instance object %s: %w", key, err)
	}
	return rc, nil
}
