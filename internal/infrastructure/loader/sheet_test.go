package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
)

func testDictionary() *LabelDictionary {
	return &LabelDictionary{
		StudyColumn:    "StudyInstanceUID",
		ReportColumn:   "Report",
		FindingColumns: []string{"Consolidation", "Atelectasis"},
		CertaintyAliases: map[string]string{
			"1":  "Certainly True",
			"-1": "Certainly False",
		},
	}
}

func TestReadLabelSheetCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.csv")
	content := "StudyInstanceUID,Report,Consolidation,Atelectasis\n" +
		"study-1,clear lungs,1,\n" +
		"study-2,,Maybe True,-1\n" +
		",ignored row,,\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	labels, err := ReadLabelSheet(path, testDictionary())
	if err != nil {
		t.Fatalf("ReadLabelSheet() error = %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("expected 2 labeled studies, got %d", len(labels))
	}

	first := labels[0]
	if first.StudyUID != "study-1" || first.ReportText != "clear lungs" {
		t.Fatalf("unexpected first row: %+v", first)
	}
	if len(first.Findings) != 1 || first.Findings[0].Value != domain.CertainlyTrue {
		t.Fatalf("unexpected findings: %+v", first.Findings)
	}

	second := labels[1]
	if len(second.Findings) != 2 {
		t.Fatalf("expected 2 findings on study-2, got %+v", second.Findings)
	}
	if second.Findings[0].Value != domain.MaybeTrue || second.Findings[1].Value != domain.CertainlyFalse {
		t.Fatalf("unexpected values: %+v", second.Findings)
	}
}

func TestReadLabelSheetXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.xlsx")
	workbook := excelize.NewFile()
	sheet := workbook.GetSheetName(0)
	rows := [][]any{
		{"StudyInstanceUID", "Consolidation", "Atelectasis"},
		{"study-1", "1", "Unknown"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := workbook.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	if err := workbook.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	_ = workbook.Close()

	labels, err := ReadLabelSheet(path, testDictionary())
	if err != nil {
		t.Fatalf("ReadLabelSheet() error = %v", err)
	}
	if len(labels) != 1 || labels[0].StudyUID != "study-1" {
		t.Fatalf("unexpected labels: %+v", labels)
	}
	if len(labels[0].Findings) != 2 {
		t.Fatalf("expected 2 findings, got %+v", labels[0].Findings)
	}
}

func TestReadLabelSheetRejectsUnknownValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.csv")
	content := "StudyInstanceUID,Consolidation\nstudy-1,probably\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	if _, err := ReadLabelSheet(path, testDictionary()); err == nil {
		t.Fatalf("expected error for unlabelable value")
	}
}

func TestReadLabelSheetRejectsUnknownFormat(t *testing.T) {
	if _, err := ReadLabelSheet("labels.parquet", testDictionary()); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
