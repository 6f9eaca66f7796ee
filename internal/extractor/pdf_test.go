package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTextPDF builds a minimal PDF with one text object per page, tracking
// byte offsets so the xref table is valid. Object layout: 1 catalog,
// 2 page tree, 3 font, then a page and content stream pair per page.
func writeTextPDF(t *testing.T, pageTexts ...string) string {
	t.Helper()

	var kids []string
	for i := range pageTexts {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+2*i))
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pageTexts)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	for i, text := range pageTexts {
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			5+2*i))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefOffset)

	path := filepath.Join(t.TempDir(), "text.pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write pdf: %v", err)
	}
	return path
}

func TestPDFExtractNativeText(t *testing.T) {
	path := writeTextPDF(t, "First page text", "Second page text")

	ocr := &fakeOCR{text: "must not appear"}
	e := &pdfExtractor{ocr: ocr}

	text, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	want := "First page text\nSecond page text"
	if text != want {
		t.Errorf("text = %q, want per-page text newline-joined in order", text)
	}
	if ocr.calls != 0 {
		t.Errorf("OCR invoked %d times for a PDF with a text layer, want 0", ocr.calls)
	}
}

func TestPDFExtractRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a.pdf")
	if err := os.WriteFile(path, []byte("plain text pretending to be a PDF"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	e := &pdfExtractor{ocr: &fakeOCR{}}
	if _, err := e.Extract(context.Background(), path); err == nil {
		t.Error("expected error for a non-PDF file")
	}
}

func TestPageImagesInOrder(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"sample_10_Im0.png",
		"sample_2_Im0.png",
		"sample_1_Im0.jpg",
		"sample_2_Im1.png",
		"notes.txt", // not a page image, must be skipped
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	images, err := pageImagesInOrder(dir)
	if err != nil {
		t.Fatalf("pageImagesInOrder returned error: %v", err)
	}

	want := []string{
		"sample_1_Im0.jpg",
		"sample_2_Im0.png",
		"sample_2_Im1.png",
		"sample_10_Im0.png",
	}
	if len(images) != len(want) {
		t.Fatalf("got %d images, want %d: %v", len(images), len(want), images)
	}
	for i, path := range images {
		if filepath.Base(path) != want[i] {
			t.Errorf("images[%d] = %s, want %s", i, filepath.Base(path), want[i])
		}
	}
}

func TestPageImagesInOrderEmptyDir(t *testing.T) {
	images, err := pageImagesInOrder(t.TempDir())
	if err != nil {
		t.Fatalf("pageImagesInOrder returned error: %v", err)
	}
	if len(images) != 0 {
		t.Errorf("got %d images from empty dir, want 0", len(images))
	}
}
