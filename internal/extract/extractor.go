// Package extract turns uploaded file bytes into text with a page count and a
// confidence score.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/docflow/internal/config"
	"github.com/hyperjump/docflow/pkg/utils"
)

// ErrOCRRequired is returned by the local extractor for image formats.
var ErrOCRRequired = errors.New("image formats require the remote extraction provider")

// Result is the outcome of extracting one file.
type Result struct {
	Content    string
	Pages      int
	Confidence float64
}

// TextExtractor extracts text from file content. fileName selects the format.
type TextExtractor interface {
	Extract(ctx context.Context, content []byte, fileName string) (*Result, error)
}

// New returns the extractor selected by cfg.Provider.
func New(cfg *config.ExtractionConfig, logger *zap.Logger) (TextExtractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalExtractor(logger), nil
	case "remote":
		return NewRemoteExtractor(cfg.RemoteURL, cfg.Timeout, logger)
	default:
		return nil, fmt.Errorf("unknown extraction provider: %s (supported: local, remote)", cfg.Provider)
	}
}

// LocalExtractor reads the text layer of documents in-process.
type LocalExtractor struct {
	logger *zap.Logger
}

// NewLocalExtractor returns a LocalExtractor.
func NewLocalExtractor(logger *zap.Logger) *LocalExtractor {
	return &LocalExtractor{logger: utils.OrNop(logger)}
}

// Extract dispatches on the extension of fileName. Unknown extensions are read as plain text.
func (e *LocalExtractor) Extract(ctx context.Context, content []byte, fileName string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	var (
		res *Result
		err error
	)
	switch ext {
	case ".pdf":
		res, err = extractPDF(content)
	case ".docx":
		res, err = extractDOCX(content)
	case ".xlsx":
		res, err = extractExcel(content)
	case ".pptx":
		res, err = extractPPTX(content)
	case ".odp":
		res, err = extractODP(content)
	case ".ods":
		res, err = extractODS(content)
	case ".odt", ".rtf":
		res, err = extractWithCat(content, ext)
	case ".doc":
		res, err = extractWithDocconv(content, fileName)
	case ".html", ".htm":
		res, err = extractHTML(content)
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp":
		return nil, fmt.Errorf("%s: %w", fileName, ErrOCRRequired)
	default:
		res = extractPlain(content)
	}
	if err != nil {
		return nil, err
	}
	e.logger.Debug("extracted text",
		zap.String("file", fileName),
		zap.Int("chars", len(res.Content)),
		zap.Int("pages", res.Pages),
		zap.Float64("confidence", res.Confidence))
	return res, nil
}

// ExtractFile reads the file at path and extracts it.
func (e *LocalExtractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.Extract(ctx, content, filepath.Base(path))
}

// textResult is a single-page result for formats without page structure.
func textResult(text string) *Result {
	return &Result{Content: strings.TrimSpace(text), Pages: 1, Confidence: 1}
}
