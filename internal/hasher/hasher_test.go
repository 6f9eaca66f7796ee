package hasher

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestSHA256FileKnownVectors(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    string
	}{
		{
			name:    "empty",
			content: nil,
			want:    "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:    "abc",
			content: []byte("abc"),
			want:    "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SHA256File(writeFile(t, tt.content))
			if err != nil {
				t.Fatalf("SHA256File returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("SHA256File = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSHA256FileDeterministic(t *testing.T) {
	path := writeFile(t, []byte("same content, same digest"))

	first, err := SHA256File(path)
	if err != nil {
		t.Fatalf("first hash failed: %v", err)
	}
	second, err := SHA256File(path)
	if err != nil {
		t.Fatalf("second hash failed: %v", err)
	}

	if first != second {
		t.Errorf("digest not deterministic: %s != %s", first, second)
	}
}

func TestSHA256FileMissing(t *testing.T) {
	if _, err := SHA256File(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing file")
	}
}
