package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPDF reads the text layer page by page. Confidence is the fraction of
// pages that yielded text; scanned pages without a text layer lower it.
func extractPDF(content []byte) (*Result, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()

	pages := make([]string, 0, numPages)
	withText := 0
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text != "" {
			withText++
		}
		pages = append(pages, text)
	}

	if n := pdfPageCount(content); n > 0 {
		numPages = n
	}
	res := &Result{Content: strings.Join(pages, "\n"), Pages: numPages}
	if numPages > 0 {
		res.Confidence = float64(withText) / float64(numPages)
	}
	return res, nil
}

// pdfPageCount asks pdfcpu for the page count from the page tree. It returns 0
// when pdfcpu cannot parse the file, in which case the reader's count is kept.
func pdfPageCount(content []byte) int {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(content), conf)
	if err != nil {
		return 0
	}
	return n
}
