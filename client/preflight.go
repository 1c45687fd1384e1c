package client

import (
	"bytes"
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// headerSummary is what pre-flight validation looks at before any pixel
// bytes are handed to a renderer.
type headerSummary struct {
	TransferSyntaxUID string
	SOPClassUID       string
	SOPInstanceUID    string
	Rows              int
	Columns           int
	HasPixelData      bool
}

// parseHeaderSummary decodes just enough of the dataset to decide whether
// the object is displayable. Pixel data is located but not decoded.
func parseHeaderSummary(data []byte) (*headerSummary, error) {
	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}

	summary := &headerSummary{
		TransferSyntaxUID: datasetString(&ds, tag.TransferSyntaxUID),
		SOPClassUID:       datasetString(&ds, tag.SOPClassUID),
		SOPInstanceUID:    datasetString(&ds, tag.SOPInstanceUID),
		Rows:              datasetInt(&ds, tag.Rows),
		Columns:           datasetInt(&ds, tag.Columns),
	}
	if el, err := ds.FindElementByTag(tag.PixelData); err == nil && el != nil {
		summary.HasPixelData = true
	}
	return summary, nil
}

func datasetString(ds *dicom.Dataset, t tag.Tag) string {
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

func datasetInt(ds *dicom.Dataset, t tag.Tag) int {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return 0
	}
	values, ok := el.Value.GetValue().([]int)
	if !ok || len(values) == 0 {
		return 0
	}
	return values[0]
}
