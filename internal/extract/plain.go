package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/lu4p/cat"
)

// extractPlain returns content as text. Invalid UTF-8 is replaced with U+FFFD.
func extractPlain(content []byte) *Result {
	s := string(content)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	return &Result{Content: s, Pages: 1, Confidence: 1}
}

func extractHTML(content []byte) (*Result, error) {
	text, _, err := docconv.ConvertHTML(bytes.NewReader(content), false)
	if err != nil {
		return nil, fmt.Errorf("extract HTML: %w", err)
	}
	return textResult(text), nil
}

// extractWithDocconv handles legacy binary formats. docconv shells out to
// wvText/antiword for .doc, so this fails when those tools are absent.
func extractWithDocconv(content []byte, fileName string) (*Result, error) {
	res, err := docconv.Convert(bytes.NewReader(content), docconv.MimeTypeByExtension(fileName), false)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", fileName, err)
	}
	return textResult(res.Body), nil
}

func extractWithCat(content []byte, ext string) (*Result, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", strings.TrimPrefix(ext, "."), err)
	}
	return textResult(text), nil
}
