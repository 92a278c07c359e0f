package documents

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Accepted upload extensions.
var acceptedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".pdf":  true,
	".webp": true,
}

// ValidateFileName returns ErrUnsupportedType unless the file extension
// is one of the accepted document formats.
func ValidateFileName(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !acceptedExtensions[ext] {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	return nil
}

// CountPages returns the page count for PDF uploads and nil for image
// formats, which are always single page.
func CountPages(name string, data []byte) (*int, error) {
	if strings.ToLower(filepath.Ext(name)) != ".pdf" {
		return nil, nil
	}

	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("count pdf pages: %w", err)
	}
	return &count, nil
}
