package ports

import (
	"context"
	"io"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
)

// StudyRepository reads and (on the loader/worker path) populates study state.
type StudyRepository interface {
	ListFindingNames(ctx context.Context) ([]string, error)
	ListStudies(ctx context.Context, filter domain.StudyFilter, limit, offset int) ([]domain.Study, error)
	CountStudies(ctx context.Context, filter domain.StudyFilter) (int, error)
	ListInstances(ctx context.Context, studyUID string) ([]domain.Instance, error)
	GetInstanceObjectKey(ctx context.Context, sopUID string) (string, error)

	UpsertStudy(ctx context.Context, study *domain.Study) error
	ReplaceFindings(ctx context.Context, studyUID string, findings []domain.Finding) error
	UpsertSeries(ctx context.Context, series *domain.Series) error
	UpsertInstance(ctx context.Context, instance *domain.Instance) error
}

// ObjectStore stores raw DICOM objects.
type ObjectStore interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes instance-ingest events.
type MessageQueue interface {
	PublishInstanceStored(ctx context.Context, objectKey string) error
	SubscribeInstanceStored(ctx context.Context, handler func(context.Context, string) error) error
}

// HeaderParser extracts indexable metadata from a stored DICOM object.
type HeaderParser interface {
	ParseHeader(ctx context.Context, r io.Reader) (*domain.Instance, error)
}
