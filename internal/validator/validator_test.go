package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/docflow/internal/models"
)

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".pdf", []string{".pdf", ".png"}, true},
		{".PDF", []string{".pdf"}, true},
		{".exe", []string{".pdf"}, false},
		{"", []string{".pdf"}, false},
	}
	for _, tt := range tests {
		if got := extensionAllowed(tt.ext, tt.allowed); got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

func TestPolicy_Validate(t *testing.T) {
	ocr := NewPolicy("ocr", 500<<20, []string{"pdf", ".PNG", " .docx "})
	chat := NewPolicy("chat", 20<<20, []string{".pdf"})

	tests := []struct {
		name     string
		policy   *Policy
		file     string
		size     int64
		wantCode string
	}{
		{"valid pdf", ocr, "report.pdf", 1024, ""},
		{"uppercase ext", ocr, "scan.PNG", 1024, ""},
		{"normalized ext", ocr, "memo.docx", 10, ""},
		{"bad ext", ocr, "virus.exe", 10, models.CodeExtension},
		{"no ext", ocr, "README", 10, models.CodeExtension},
		{"empty name", ocr, " ", 10, models.CodeEmpty},
		{"empty file", ocr, "a.pdf", 0, models.CodeEmpty},
		{"ocr at limit", ocr, "a.pdf", 500 << 20, ""},
		{"ocr over limit", ocr, "a.pdf", 500<<20 + 1, models.CodeSize},
		{"chat over limit", chat, "a.pdf", 21 << 20, models.CodeSize},
		{"chat within ocr limit", chat, "a.pdf", 20 << 20, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate(tt.file, tt.size)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", ve.Code, tt.wantCode)
			}
		})
	}
}

func TestPolicy_sizeAndExtensionMessagesDiffer(t *testing.T) {
	p := NewPolicy("chat", 20<<20, []string{".pdf"})
	sizeErr := p.Validate("big.pdf", 30<<20)
	extErr := p.Validate("notes.exe", 1)
	if sizeErr == nil || extErr == nil {
		t.Fatal("expected both to fail")
	}
	if sizeErr.Error() == extErr.Error() {
		t.Error("size and extension failures should have distinct messages")
	}
	if !strings.Contains(sizeErr.Error(), "20 MB") {
		t.Errorf("size message should name the limit: %s", sizeErr)
	}
	if !strings.Contains(extErr.Error(), ".exe") {
		t.Errorf("extension message should name the type: %s", extErr)
	}
}
