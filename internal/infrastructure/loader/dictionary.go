// Package loader implements the offline population path: finding-label
// sheets, report text extraction, and bulk imaging intake.
package loader

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
)

// LabelDictionary declares how a label sheet maps onto the domain: which
// column holds the study UID, which columns are findings, and how raw cell
// values spell the certainty scale.
type LabelDictionary struct {
	StudyColumn      string            `yaml:"study_column"`
	ReportColumn     string            `yaml:"report_column"`
	FindingColumns   []string          `yaml:"finding_columns"`
	CertaintyAliases map[string]string `yaml:"certainty_aliases"`
}

func LoadDictionary(path string) (*LabelDictionary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}

	var dict LabelDictionary
	if err := yaml.Unmarshal(raw, &dict); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	if dict.StudyColumn == "" {
		return nil, fmt.Errorf("dictionary %s: study_column is required", path)
	}
	if len(dict.FindingColumns) == 0 {
		return nil, fmt.Errorf("dictionary %s: finding_columns is empty", path)
	}
	return &dict, nil
}

// NormalizeValue maps a raw cell value onto the certainty scale, applying
// the dictionary's aliases first. An empty cell means "not labeled" and is
// reported as not ok without being an error.
func (d *LabelDictionary) NormalizeValue(raw string) (domain.Certainty, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if alias, found := d.CertaintyAliases[raw]; found {
		raw = alias
	}
	value := domain.Certainty(raw)
	if !value.Valid() {
		return "", false
	}
	return value, true
}
