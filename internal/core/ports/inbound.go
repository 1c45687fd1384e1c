package ports

import (
	"context"
	"io"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
)

// StudyBrowser is the inbound contract for filtered study browsing.
type StudyBrowser interface {
	ListFindingNames(ctx context.Context) ([]string, error)
	ListStudies(ctx context.Context, filter domain.StudyFilter, page, pageSize int) ([]domain.Study, error)
	CountStudies(ctx context.Context, filter domain.StudyFilter) (int, error)
	ListInstances(ctx context.Context, studyUID string) ([]domain.Instance, error)
}

// InstanceSource is the inbound contract for raw DICOM object retrieval.
type InstanceSource interface {
	OpenInstance(ctx context.Context, sopUID string) (io.ReadCloser, error)
}

// InstanceIngestor is the inbound contract for asynchronous instance indexing.
type InstanceIngestor interface {
	IngestByKey(ctx context.Context, objectKey string) error
}
