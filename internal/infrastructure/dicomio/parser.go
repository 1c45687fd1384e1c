// Package dicomio extracts indexable metadata from stored DICOM objects.
package dicomio

import (
	"context"
	"fmt"
	"io"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
)

type HeaderParser struct{}

func NewHeaderParser() *HeaderParser {
	return &HeaderParser{}
}

// ParseHeader reads the identifying tags the index needs. Pixel data is
// skipped; the worker never decodes images.
func (p *HeaderParser) ParseHeader(_ context.Context, r io.Reader) (*domain.Instance, error) {
	ds, err := dicom.ParseUntilEOF(r, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}

	instance := &domain.Instance{
		StudyUID:        firstString(&ds, tag.StudyInstanceUID),
		SeriesUID:       firstString(&ds, tag.SeriesInstanceUID),
		SOPUID:          firstString(&ds, tag.SOPInstanceUID),
		Modality:        firstString(&ds, tag.Modality),
		AcquisitionDate: firstString(&ds, tag.AcquisitionDate),
		AcquisitionTime: firstString(&ds, tag.AcquisitionTime),
	}
	if bodyPart := firstString(&ds, tag.BodyPartExamined); bodyPart != "" {
		instance.BodyPartExamined = &bodyPart
	}
	return instance, nil
}

func firstString(ds *dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return ""
	}
	values, ok := el.Value.GetValue().([]string)
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0]
}
