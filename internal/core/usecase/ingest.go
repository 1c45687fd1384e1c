package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
	"github.com/anakena-lab/study-viewer/internal/core/ports"
)

// IngestInstanceUseCase indexes one stored DICOM object: it parses the
// header and upserts the series and instance rows so the browsing layer can
// see them. Studies themselves are created by the report loader; an instance
// whose study row is missing still gets indexed so that imaging and reports
// can be loaded in either order.
type IngestInstanceUseCase struct {
	repo    ports.StudyRepository
	objects ports.ObjectStore
	parser  ports.HeaderParser
}

func NewIngestInstanceUseCase(
	repo ports.StudyRepository,
	objects ports.ObjectStore,
	parser ports.HeaderParser,
) *IngestInstanceUseCase {
	return &IngestInstanceUseCase{
		repo:    repo,
		objects: objects,
		parser:  parser,
	}
}

func (uc *IngestInstanceUseCase) IngestByKey(ctx context.Context, objectKey string) error {
	instance, err := uc.parseObject(ctx, objectKey)
	if err != nil {
		return err
	}
	instance.ObjectKey = objectKey

	series := &domain.Series{
		SeriesUID:        instance.SeriesUID,
		StudyUID:         instance.StudyUID,
		Modality:         instance.Modality,
		BodyPartExamined: instance.BodyPartExamined,
	}
	if err := uc.repo.UpsertSeries(ctx, series); err != nil {
		return fmt.Errorf("upsert series %s: %w", series.SeriesUID, err)
	}

	if err := uc.repo.UpsertInstance(ctx, instance); err != nil {
		return fmt.Errorf("upsert instance %s: %w", instance.SOPUID, err)
	}
	return nil
}

func (uc *IngestInstanceUseCase) parseObject(ctx context.Context, objectKey string) (*domain.Instance, error) {
	rc, err := uc.objects.Open(ctx, objectKey)
	if err != nil {
		return nil, fmt.Errorf("open stored object %s: %w", objectKey, err)
	}
	defer rc.Close()

	instance, err := uc.parser.ParseHeader(ctx, rc)
	if err != nil {
		return nil, domain.WrapError(domain.ErrMalformedObject, "parse dicom header", err)
	}
	if instance.SOPUID == "" || instance.SeriesUID == "" || instance.StudyUID == "" {
		return nil, domain.WrapError(
			domain.ErrMalformedObject,
			"parse dicom header",
			errors.New("object is missing study/series/sop identifiers"),
		)
	}
	return instance, nil
}
