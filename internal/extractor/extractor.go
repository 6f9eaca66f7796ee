package extractor

import (
	"context"
	"path/filepath"
	"strings"
)

// Format is the file kind a version resolves to, decided once up front
// instead of re-checking suffixes at every branch.
type Format int

const (
	FormatText Format = iota
	FormatPDF
	FormatDOCX
	FormatImage
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatDOCX:
		return "docx"
	case FormatImage:
		return "image"
	default:
		return "text"
	}
}

// OCRBackend recognizes text in a single image file.
type OCRBackend interface {
	ImageToText(ctx context.Context, path string) (string, error)
}

// Extractor turns a local file into plain text. Implementations know
// nothing about versions, audit logs, or persistence.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Engine hands out one extractor per format, sharing the OCR backend.
type Engine struct {
	ocr OCRBackend
}

func NewEngine(ocr OCRBackend) *Engine {
	return &Engine{ocr: ocr}
}

func (e *Engine) For(format Format) Extractor {
	switch format {
	case FormatPDF:
		return &pdfExtractor{ocr: e.ocr}
	case FormatDOCX:
		return &docxExtractor{}
	case FormatImage:
		return &imageExtractor{ocr: e.ocr}
	default:
		return &textExtractor{ocr: e.ocr}
	}
}

// ResolveFormat decides the format from the declared content type, falling
// back to the storage key's suffix when the type is missing or generic.
func ResolveFormat(contentType, storageKey string) Format {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))

	switch {
	case clean == "application/pdf":
		return FormatPDF
	case isDOCXContentType(clean):
		return FormatDOCX
	case strings.HasPrefix(clean, "image/"):
		return FormatImage
	case strings.HasPrefix(clean, "text/"):
		return FormatText
	}

	switch strings.ToLower(filepath.Ext(storageKey)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".bmp", ".webp":
		return FormatImage
	}

	return FormatText
}

// isDOCXContentType checks if the content type is a DOCX file,
// handling the MIME type variations browsers send.
func isDOCXContentType(contentType string) bool {
	docxTypes := []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.wordprocessingml",
		"application/docx",
		"application/x-docx",
	}

	for _, docxType := range docxTypes {
		if contentType == docxType {
			return true
		}
	}

	return false
}
