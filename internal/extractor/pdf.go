package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// pdfExtractor reads per-page native text first. Scan-only PDFs carry no
// text layer at all, so an empty result falls back to extracting the page
// images and running OCR over them in page order.
type pdfExtractor struct {
	ocr OCRBackend
}

func (e *pdfExtractor) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}

	text, err := extractNativeText(data)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	return e.ocrPages(ctx, path)
}

func extractNativeText(data []byte) (string, error) {
	reader := bytes.NewReader(data)

	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	numPages := pdfReader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single broken page must not lose the rest.
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	return strings.TrimSpace(textBuilder.String()), nil
}

// ocrPages extracts the embedded page images and OCRs each one,
// concatenating the output in page order.
func (e *pdfExtractor) ocrPages(ctx context.Context, path string) (string, error) {
	imageDir, err := os.MkdirTemp(filepath.Dir(path), "pdf-pages-*")
	if err != nil {
		return "", fmt.Errorf("failed to create page image dir: %w", err)
	}
	defer os.RemoveAll(imageDir)

	if err := api.ExtractImagesFile(path, imageDir, nil, nil); err != nil {
		return "", fmt.Errorf("failed to extract page images: %w", err)
	}

	images, err := pageImagesInOrder(imageDir)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", fmt.Errorf("PDF has no text layer and no page images")
	}

	var textBuilder strings.Builder
	for _, img := range images {
		pageText, err := e.ocr.ImageToText(ctx, img)
		if err != nil {
			return textBuilder.String(), fmt.Errorf("OCR failed on %s: %w", filepath.Base(img), err)
		}
		textBuilder.WriteString(pageText)
		textBuilder.WriteString("\n")
	}

	return strings.TrimSpace(textBuilder.String()), nil
}

// pdfcpu names extracted images <base>_<page>_<resource>.<ext>.
var pageImageRe = regexp.MustCompile(`_(\d+)_[^_]+\.\w+$`)

func pageImagesInOrder(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list page images: %w", err)
	}

	type pageImage struct {
		page int
		path string
	}

	var images []pageImage
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := pageImageRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		page, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		images = append(images, pageImage{page: page, path: filepath.Join(dir, entry.Name())})
	}

	sort.Slice(images, func(i, j int) bool {
		if images[i].page != images[j].page {
			return images[i].page < images[j].page
		}
		return images[i].path < images[j].path
	})

	paths := make([]string, len(images))
	for i, img := range images {
		paths[i] = img.path
	}
	return paths, nil
}
