package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	contentTypesPart = "[Content_Types].xml"
	docxDefaultPart  = "word/document.xml"
	docxMainType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePrefix  = "ppt/slides/slide"
	openDocumentPart = "content.xml"
)

// Text runs are matched with attributes allowed on the opening tag, since real
// documents carry rsid and xml:space attributes.
var (
	docxRun = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	pptxRun = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

	odfParagraph = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odfSpan      = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odfHeading   = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
	odpPage      = regexp.MustCompile(`<draw:page[\s>]`)

	overrideTag  = regexp.MustCompile(`<Override[^>]*>`)
	partNameAttr = regexp.MustCompile(`PartName="([^"]+)"`)
	slideNumber  = regexp.MustCompile(`slide(\d+)\.xml$`)
)

func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

// readPart returns the bytes of the named zip entry, or nil if absent.
func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, nil
}

// joinRuns appends the first capture group of every match of each pattern, space separated.
func joinRuns(b *strings.Builder, xml string, patterns ...*regexp.Regexp) {
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(xml, -1) {
			run := strings.TrimSpace(m[1])
			if run == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(run)
		}
	}
}

// docxMainPart resolves the main document part from [Content_Types].xml.
func docxMainPart(zr *zip.Reader) string {
	types, err := readPart(zr, contentTypesPart)
	if err != nil || types == nil {
		return docxDefaultPart
	}
	for _, tag := range overrideTag.FindAllString(string(types), -1) {
		if !strings.Contains(tag, `ContentType="`+docxMainType+`"`) {
			continue
		}
		if m := partNameAttr.FindStringSubmatch(tag); len(m) > 1 {
			return strings.TrimPrefix(m[1], "/")
		}
	}
	return docxDefaultPart
}

func extractDOCX(content []byte) (*Result, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return nil, err
	}
	part := docxMainPart(zr)
	xml, err := readPart(zr, part)
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: %w", err)
	}
	if xml == nil {
		return nil, fmt.Errorf("extract DOCX: %s not found", part)
	}
	var b strings.Builder
	joinRuns(&b, string(xml), docxRun)
	return textResult(b.String()), nil
}

// extractPPTX reads slides in slide-number order. Each slide counts as a page.
func extractPPTX(content []byte) (*Result, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return nil, err
	}
	type slide struct {
		n    int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePrefix) {
			continue
		}
		m := slideNumber.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var b strings.Builder
	for _, s := range slides {
		xml, err := readPart(zr, s.file.Name)
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: %w", err)
		}
		joinRuns(&b, string(xml), pptxRun)
	}
	pages := len(slides)
	if pages == 0 {
		pages = 1
	}
	return &Result{Content: strings.TrimSpace(b.String()), Pages: pages, Confidence: 1}, nil
}

func openDocumentXML(content []byte, format string) (string, error) {
	zr, err := openZip(content, format)
	if err != nil {
		return "", err
	}
	xml, err := readPart(zr, openDocumentPart)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", format, err)
	}
	if xml == nil {
		return "", fmt.Errorf("extract %s: %s not found", format, openDocumentPart)
	}
	return string(xml), nil
}

// extractODP counts draw:page elements as pages.
func extractODP(content []byte) (*Result, error) {
	xml, err := openDocumentXML(content, "ODP")
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	joinRuns(&b, xml, odfParagraph, odfSpan, odfHeading)
	pages := len(odpPage.FindAllStringIndex(xml, -1))
	if pages == 0 {
		pages = 1
	}
	return &Result{Content: strings.TrimSpace(b.String()), Pages: pages, Confidence: 1}, nil
}

func extractODS(content []byte) (*Result, error) {
	xml, err := openDocumentXML(content, "ODS")
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	joinRuns(&b, xml, odfParagraph, odfSpan)
	return textResult(b.String()), nil
}
