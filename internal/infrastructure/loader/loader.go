package loader

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
	"github.com/anakena-lab/study-viewer/internal/core/ports"
)

// Loader runs the two offline population passes: labels into the store and
// imaging into the object store plus the ingest queue.
type Loader struct {
	repo    ports.StudyRepository
	objects ports.ObjectStore
	queue   ports.MessageQueue
	logger  *slog.Logger
}

func New(repo ports.StudyRepository, objects ports.ObjectStore, queue ports.MessageQueue, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		repo:    repo,
		objects: objects,
		queue:   queue,
		logger:  logger,
	}
}

// LoadLabels reads a label sheet and upserts one study per row, replacing
// its findings wholesale. When reportsDir is set, a <studyUID>.pdf there
// overrides any inline report column.
func (l *Loader) LoadLabels(ctx context.Context, sheetPath, dictPath, reportsDir string) (int, error) {
	dict, err := LoadDictionary(dictPath)
	if err != nil {
		return 0, err
	}
	labels, err := ReadLabelSheet(sheetPath, dict)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, entry := range labels {
		reportText := entry.ReportText
		if reportsDir != "" {
			reportPath := filepath.Join(reportsDir, entry.StudyUID+".pdf")
			if _, statErr := os.Stat(reportPath); statErr == nil {
				text, extractErr := ExtractReportText(reportPath)
				if extractErr != nil {
					l.logger.Warn("report_extraction_failed",
						"study_uid", entry.StudyUID, "path", reportPath, "error", extractErr)
				} else {
					reportText = text
				}
			}
		}

		study := domain.Study{StudyUID: entry.StudyUID, CleanReportText: reportText}
		if err := l.repo.UpsertStudy(ctx, &study); err != nil {
			return loaded, fmt.Errorf("upsert study %s: %w", entry.StudyUID, err)
		}
		if err := l.repo.ReplaceFindings(ctx, entry.StudyUID, entry.Findings); err != nil {
			return loaded, fmt.Errorf("replace findings for %s: %w", entry.StudyUID, err)
		}
		loaded++
	}

	l.logger.Info("labels_loaded", "studies", loaded, "sheet", sheetPath)
	return loaded, nil
}

// LoadImaging walks a directory of DICOM files, copies each into the object
// store, and publishes one ingest event per object. Keys are the slash-form
// path relative to dicomDir so files sharing a base name in different
// subdirectories stay distinct. Metadata extraction is the worker's job;
// the loader never parses datasets.
func (l *Loader) LoadImaging(ctx context.Context, dicomDir string) (int, error) {
	stored := 0
	err := filepath.WalkDir(dicomDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, err := filepath.Rel(dicomDir, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		key := filepath.ToSlash(rel)
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		saveErr := l.objects.Save(ctx, key, f)
		f.Close()
		if saveErr != nil {
			return fmt.Errorf("store %s: %w", key, saveErr)
		}

		if err := l.queue.PublishInstanceStored(ctx, key); err != nil {
			return fmt.Errorf("publish ingest event for %s: %w", key, err)
		}
		stored++
		return nil
	})
	if err != nil {
		return stored, err
	}

	l.logger.Info("imaging_loaded", "objects", stored, "dir", dicomDir)
	return stored, nil
}
