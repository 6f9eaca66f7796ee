package extractor

import (
	"context"
	"strings"
)

type imageExtractor struct {
	ocr OCRBackend
}

func (e *imageExtractor) Extract(ctx context.Context, path string) (string, error) {
	text, err := e.ocr.ImageToText(ctx, path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
