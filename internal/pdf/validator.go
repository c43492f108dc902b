package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/page-canvas/internal/domain"
)

const (
	// MinDPI and MaxDPI bound the render resolution.
	MinDPI = 36
	MaxDPI = 600

	// maxDocumentSize is the size above which a warning is logged.
	maxDocumentSize = 100 * 1024 * 1024
)

var pdfMagic = []byte("%PDF-")

// Validator checks rasterizer inputs before MuPDF sees them.
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateDocument rejects empty buffers and buffers that do not start with a
// PDF header. Leading whitespace before the header is tolerated.
func (v *Validator) ValidateDocument(document []byte) error {
	if len(document) == 0 {
		return domain.ValidationError("document buffer is empty", nil)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(document, " \t\r\n"), pdfMagic) {
		return domain.ValidationError("document is not a PDF (missing %PDF- header)", nil)
	}
	return nil
}

// ValidatePath checks that path names a readable .pdf file.
func (v *Validator) ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}
	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".pdf" {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %s)", ext), nil)
	}
	return nil
}

// ValidateDPI checks the render resolution.
func (v *Validator) ValidateDPI(dpi float64) error {
	if dpi < MinDPI || dpi > MaxDPI {
		return domain.ValidationError(fmt.Sprintf("dpi must be between %d and %d, got %g", MinDPI, MaxDPI, dpi), nil)
	}
	return nil
}

// Large reports whether a document is big enough to warrant a warning.
func (v *Validator) Large(document []byte) bool {
	return len(document) > maxDocumentSize
}
