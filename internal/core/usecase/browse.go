package usecase

import (
	"context"
	"fmt"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
	"github.com/anakena-lab/study-viewer/internal/core/ports"
)

const maxPageSize = 200

// BrowseUseCase enforces the pagination and filter contract above the store.
// Pages are 1-indexed; a page past the end yields an empty slice, and the
// count is always computed with the same filter as the listing so that
// ceil(count/pageSize) is the last valid page.
type BrowseUseCase struct {
	repo            ports.StudyRepository
	defaultPageSize int
}

func NewBrowseUseCase(repo ports.StudyRepository, defaultPageSize int) *BrowseUseCase {
	if defaultPageSize <= 0 {
		defaultPageSize = 50
	}
	return &BrowseUseCase{
		repo:            repo,
		defaultPageSize: defaultPageSize,
	}
}

func (uc *BrowseUseCase) ListFindingNames(ctx context.Context) ([]string, error) {
	names, err := uc.repo.ListFindingNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list finding names: %w", err)
	}
	return names, nil
}

func (uc *BrowseUseCase) ListStudies(ctx context.Context, filter domain.StudyFilter, page, pageSize int) ([]domain.Study, error) {
	page, pageSize = uc.normalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	studies, err := uc.repo.ListStudies(ctx, filter, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	if studies == nil {
		studies = []domain.Study{}
	}
	return studies, nil
}

func (uc *BrowseUseCase) CountStudies(ctx context.Context, filter domain.StudyFilter) (int, error) {
	count, err := uc.repo.CountStudies(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count studies: %w", err)
	}
	return count, nil
}

// ListInstances returns a study's instances with their series metadata in
// acquisition order. An unknown study is a valid study with zero imaging,
// so the result is an empty slice, not an error.
func (uc *BrowseUseCase) ListInstances(ctx context.Context, studyUID string) ([]domain.Instance, error) {
	instances, err := uc.repo.ListInstances(ctx, studyUID)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	if instances == nil {
		instances = []domain.Instance{}
	}
	return instances, nil
}

// normalizePage keeps the browsing contract forgiving: out-of-range paging
// inputs are coerced instead of rejected.
func (uc *BrowseUseCase) normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = uc.defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
