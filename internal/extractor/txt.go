package extractor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// textExtractor handles anything not recognized as PDF, DOCX, or image.
// It decodes the bytes as text when they look like text; otherwise the file
// may really be an image with a wrong or missing content type, so it is
// handed to OCR. Legacy single-byte encodings are the last resort.
type textExtractor struct {
	ocr OCRBackend
}

func (e *textExtractor) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return "", nil
	}

	if text, ok := decodeUnicode(data); ok {
		return cleanText(text), nil
	}

	ocrText, ocrErr := e.ocr.ImageToText(ctx, path)
	if ocrErr == nil && strings.TrimSpace(ocrText) != "" {
		return strings.TrimSpace(ocrText), nil
	}

	if text, err := decodeLegacy(data); err == nil {
		return cleanText(text), nil
	}

	if ocrErr != nil {
		return "", fmt.Errorf("not decodable as text and OCR failed: %w", ocrErr)
	}
	return "", fmt.Errorf("no text could be extracted from file")
}

// decodeUnicode handles UTF-8 (with or without BOM) and BOM-marked UTF-16.
func decodeUnicode(data []byte) (string, bool) {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return string(data[3:]), true
	}

	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE {
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		decoded, _, err := transform.Bytes(decoder, data)
		if err != nil {
			return "", false
		}
		return string(decoded), true
	}

	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		decoder := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		decoded, _, err := transform.Bytes(decoder, data)
		if err != nil {
			return "", false
		}
		return string(decoded), true
	}

	if utf8.Valid(data) {
		return string(data), true
	}

	return "", false
}

func decodeLegacy(data []byte) (string, error) {
	decoder := charmap.Windows1252.NewDecoder()
	decoded, _, err := transform.Bytes(decoder, data)
	if err == nil {
		return string(decoded), nil
	}

	decoder = charmap.ISO8859_1.NewDecoder()
	decoded, _, err = transform.Bytes(decoder, data)
	if err == nil {
		return string(decoded), nil
	}

	return "", err
}

func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = strings.ReplaceAll(text, "\x00", "")

	lines := strings.Split(text, "\n")

	var cleanedLines []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleanedLines = append(cleanedLines, line)
		}
	}

	return strings.Join(cleanedLines, "\n")
}
