package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docflow/pkg/utils"
)

// RemoteExtractor posts files to an OCR service as multipart/form-data and
// reads back {"content", "pages", "confidence"}.
type RemoteExtractor struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

type remoteResponse struct {
	Content    string  `json:"content"`
	Pages      int     `json:"pages"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// NewRemoteExtractor returns an extractor for the service at url.
func NewRemoteExtractor(url string, timeout time.Duration, logger *zap.Logger) (*RemoteExtractor, error) {
	if url == "" {
		return nil, fmt.Errorf("remote extraction url is required")
	}
	return &RemoteExtractor{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: utils.OrNop(logger),
	}, nil
}

func (e *RemoteExtractor) Extract(ctx context.Context, content []byte, fileName string) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, &body)
	if err != nil {
		return nil, fmt.Errorf("build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request: %w", err)
	}
	defer resp.Body.Close()

	var out remoteResponse
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(msg, &out) == nil && out.Error != "" {
			return nil, fmt.Errorf("extraction service returned %d: %s", resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("extraction service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}

	e.logger.Debug("remote extraction finished",
		zap.String("file", fileName),
		zap.Int("pages", out.Pages),
		zap.Duration("elapsed", time.Since(start)))
	return &Result{Content: out.Content, Pages: out.Pages, Confidence: utils.Clamp01(out.Confidence)}, nil
}
