// Package validator checks uploads against a size and extension policy before any store is written.
package validator

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyperjump/docflow/internal/models"
)

// Policy is one upload policy. The OCR-bound upload path and the inline chat
// path each have their own instance.
type Policy struct {
	Name              string
	MaxBytes          int64
	AllowedExtensions []string
}

// NewPolicy returns a policy. Extensions are normalized to lowercase with a leading dot.
func NewPolicy(name string, maxBytes int64, extensions []string) *Policy {
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return &Policy{Name: name, MaxBytes: maxBytes, AllowedExtensions: exts}
}

// Validate returns a *models.ValidationError when fileName or size violate the policy.
// The extension check runs first so each failure has its own message.
func (p *Policy) Validate(fileName string, size int64) error {
	if strings.TrimSpace(fileName) == "" {
		return &models.ValidationError{Code: models.CodeEmpty, Reason: "file name is required"}
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !extensionAllowed(ext, p.AllowedExtensions) {
		if ext == "" {
			ext = "(none)"
		}
		return &models.ValidationError{
			Code:   models.CodeExtension,
			Reason: fmt.Sprintf("file type %s is not allowed; supported types: %s", ext, strings.Join(p.AllowedExtensions, ", ")),
		}
	}
	if size <= 0 {
		return &models.ValidationError{Code: models.CodeEmpty, Reason: "file is empty"}
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return &models.ValidationError{
			Code:   models.CodeSize,
			Reason: fmt.Sprintf("file size %s exceeds the %s limit of %s", formatBytes(size), p.Name, formatBytes(p.MaxBytes)),
		}
	}
	return nil
}

// Allows reports whether fileName has an allowed extension.
func (p *Policy) Allows(fileName string) bool {
	return extensionAllowed(strings.ToLower(filepath.Ext(fileName)), p.AllowedExtensions)
}

func extensionAllowed(ext string, allowed []string) bool {
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(ext, a) {
			return true
		}
	}
	return false
}

func formatBytes(n int64) string {
	const mb = 1 << 20
	if n >= mb && n%mb == 0 {
		return fmt.Sprintf("%d MB", n/mb)
	}
	if n >= mb {
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
