package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BerylCAtieno/doc-vault-api/internal/utils"
)

func testLogger() *utils.Logger {
	return utils.NewLogger("error")
}

func writeImage(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.png")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	return path
}

func TestImageToText(t *testing.T) {
	imageBytes := []byte("fake png bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			t.Errorf("image field is not base64: %v", err)
		}
		if string(decoded) != string(imageBytes) {
			t.Errorf("sidecar received %q, want %q", decoded, imageBytes)
		}

		json.NewEncoder(w).Encode(map[string]string{"text": "recognized text"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, testLogger())

	text, err := client.ImageToText(context.Background(), writeImage(t, imageBytes))
	if err != nil {
		t.Fatalf("ImageToText returned error: %v", err)
	}
	if text != "recognized text" {
		t.Errorf("text = %q, want %q", text, "recognized text")
	}
}

func TestImageToTextSidecarFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tesseract crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, testLogger())

	if _, err := client.ImageToText(context.Background(), writeImage(t, []byte("x"))); err == nil {
		t.Error("expected error on sidecar 500")
	}
}

func TestImageToTextSidecarError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "unsupported image"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, testLogger())

	if _, err := client.ImageToText(context.Background(), writeImage(t, []byte("x"))); err == nil {
		t.Error("expected error when sidecar reports one")
	}
}

func TestImageToTextMissingFile(t *testing.T) {
	client := NewClient("http://localhost:1", time.Second, testLogger())

	if _, err := client.ImageToText(context.Background(), filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("expected error for missing image file")
	}
}
