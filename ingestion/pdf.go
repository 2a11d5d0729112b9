package ingestion

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPages pulls per-page plain text from the PDF at path. Pages with no
// extractable text are dropped; remaining pages keep their original numbers.
func ExtractPages(path string) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var pages []Page
	total := reader.NumPage()
	for num := 1; num <= total; num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract text from page %d: %w", num, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		pages = append(pages, Page{Number: num, Text: text})
	}

	return pages, nil
}

// PageCount reports the total page count of the PDF at path.
func PageCount(path string) (int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	return reader.NumPage(), nil
}
