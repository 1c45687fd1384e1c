package loader

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractReportText pulls the plain text out of a PDF report and collapses
// its layout whitespace so the stored text is a single clean paragraph.
func ExtractReportText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract report text: %w", err)
	}
	raw, err := io.ReadAll(textReader)
	if err != nil {
		return "", fmt.Errorf("read report text: %w", err)
	}
	return strings.Join(strings.Fields(string(raw)), " "), nil
}
