package loader

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
)

// StudyLabels is one sheet row resolved against the dictionary.
type StudyLabels struct {
	StudyUID   string
	ReportText string
	Findings   []domain.Finding
}

// ReadLabelSheet loads a CSV or XLSX label sheet. The first row is the
// header; columns the dictionary does not name are ignored.
func ReadLabelSheet(path string, dict *LabelDictionary) ([]StudyLabels, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSVRows(path)
	case ".xlsx":
		rows, err = readXLSXRows(path)
	default:
		return nil, fmt.Errorf("unsupported sheet format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return rowsToLabels(path, rows, dict)
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sheet: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func readXLSXRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func rowsToLabels(path string, rows [][]string, dict *LabelDictionary) ([]StudyLabels, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", path)
	}

	columns := map[string]int{}
	for i, name := range rows[0] {
		columns[strings.TrimSpace(name)] = i
	}
	studyCol, ok := columns[dict.StudyColumn]
	if !ok {
		return nil, fmt.Errorf("sheet %s has no %q column", path, dict.StudyColumn)
	}
	reportCol := -1
	if dict.ReportColumn != "" {
		if col, ok := columns[dict.ReportColumn]; ok {
			reportCol = col
		}
	}

	labels := make([]StudyLabels, 0, len(rows)-1)
	for rowIdx, row := range rows[1:] {
		studyUID := cellAt(row, studyCol)
		if studyUID == "" {
			continue
		}

		entry := StudyLabels{StudyUID: studyUID}
		if reportCol >= 0 {
			entry.ReportText = cellAt(row, reportCol)
		}
		for _, finding := range dict.FindingColumns {
			col, ok := columns[finding]
			if !ok {
				continue
			}
			raw := cellAt(row, col)
			if strings.TrimSpace(raw) == "" {
				continue
			}
			value, ok := dict.NormalizeValue(raw)
			if !ok {
				return nil, fmt.Errorf("sheet %s row %d: %q is not a certainty value for %s",
					path, rowIdx+2, raw, finding)
			}
			entry.Findings = append(entry.Findings, domain.Finding{
				StudyUID: studyUID,
				Name:     finding,
				Value:    value,
			})
		}
		labels = append(labels, entry)
	}
	return labels, nil
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
