package scanner

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeClamd accepts one INSTREAM session on a unix socket, drains the
// streamed chunks, and replies with the given line.
func fakeClamd(t *testing.T, response string) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "clamd.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("failed to listen on unix socket: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Command: zINSTREAM\0
		cmd := make([]byte, 10)
		if _, err := io.ReadFull(conn, cmd); err != nil {
			return
		}

		// Chunks: 4-byte big-endian length + data, zero length terminates.
		lenBuf := make([]byte, 4)
		for {
			if _, err := io.ReadFull(conn, lenBuf); err != nil {
				return
			}
			n := int(lenBuf[0])<<24 | int(lenBuf[1])<<16 | int(lenBuf[2])<<8 | int(lenBuf[3])
			if n == 0 {
				break
			}
			if _, err := io.CopyN(io.Discard, conn, int64(n)); err != nil {
				return
			}
		}

		conn.Write([]byte(response + "\x00"))
	}()

	return socketPath
}

func scanFile(t *testing.T, socketPath string) Verdict {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scan-me")
	if err := os.WriteFile(path, []byte("some file content"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	s := NewClamdScanner(socketPath, 5*time.Second)
	return s.Scan(context.Background(), path)
}

func TestScanClean(t *testing.T) {
	verdict := scanFile(t, fakeClamd(t, "stream: OK"))

	if verdict.Status != StatusClean {
		t.Errorf("status = %s, want %s (raw: %s)", verdict.Status, StatusClean, verdict.Raw)
	}
	if verdict.Infected() || verdict.Unavailable() {
		t.Error("clean verdict misclassified")
	}
}

func TestScanInfected(t *testing.T) {
	verdict := scanFile(t, fakeClamd(t, "stream: Eicar-Test-Signature FOUND"))

	if !verdict.Infected() {
		t.Fatalf("status = %s, want %s (raw: %s)", verdict.Status, StatusInfected, verdict.Raw)
	}
	if verdict.Threat != "Eicar-Test-Signature" {
		t.Errorf("threat = %q, want Eicar-Test-Signature", verdict.Threat)
	}
	if verdict.Raw != "stream: Eicar-Test-Signature FOUND" {
		t.Errorf("raw = %q, want original daemon line", verdict.Raw)
	}
}

func TestScanDaemonUnreachable(t *testing.T) {
	verdict := scanFile(t, filepath.Join(t.TempDir(), "no-such.sock"))

	if !verdict.Unavailable() {
		t.Errorf("status = %s, want %s", verdict.Status, StatusUnavailable)
	}
	if verdict.Raw == "" {
		t.Error("unavailable verdict should carry the transport error")
	}
}

func TestScanGarbageResponse(t *testing.T) {
	verdict := scanFile(t, fakeClamd(t, "wat"))

	if !verdict.Unavailable() {
		t.Errorf("status = %s, want %s for unexpected response", verdict.Status, StatusUnavailable)
	}
}

func TestParseThreat(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"stream: Eicar-Test-Signature FOUND", "Eicar-Test-Signature"},
		{"stream: Win.Test.EICAR_HDB-1 FOUND", "Win.Test.EICAR_HDB-1"},
		{"Some-Threat FOUND", "Some-Threat"},
	}

	for _, tt := range tests {
		if got := parseThreat(tt.line); got != tt.want {
			t.Errorf("parseThreat(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}
