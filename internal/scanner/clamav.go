package scanner

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// Verdict status values. Unavailable means the daemon could not be reached
// or answered garbage — callers must be able to tell that apart from an
// actual clean result.
const (
	StatusClean       = "CLEAN"
	StatusInfected    = "INFECTED"
	StatusUnavailable = "UNAVAILABLE"
)

// Verdict is the classified outcome of submitting a file to the scanning
// daemon. Raw keeps the daemon's unparsed response line (or the transport
// error) for the audit trail.
type Verdict struct {
	Status string
	Threat string
	Raw    string
}

func (v Verdict) Infected() bool    { return v.Status == StatusInfected }
func (v Verdict) Unavailable() bool { return v.Status == StatusUnavailable }

type Scanner interface {
	Scan(ctx context.Context, path string) Verdict
}

type clamdScanner struct {
	socketPath string
	timeout    time.Duration
}

// NewClamdScanner returns a Scanner backed by a clamd unix socket using the
// INSTREAM protocol, so no filesystem needs to be shared with the daemon.
func NewClamdScanner(socketPath string, timeout time.Duration) Scanner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &clamdScanner{socketPath: socketPath, timeout: timeout}
}

// Scan classifies errors into the Unavailable verdict rather than returning
// them: a broken daemon must never be mistaken for a clean file, and the
// caller decides whether an unavailable scanner blocks processing.
func (s *clamdScanner) Scan(ctx context.Context, path string) Verdict {
	line, err := s.scanInstream(ctx, path)
	if err != nil {
		return Verdict{Status: StatusUnavailable, Raw: err.Error()}
	}

	// Response format: "stream: OK" or "stream: <threat> FOUND"
	if strings.HasSuffix(line, "OK") {
		return Verdict{Status: StatusClean, Raw: line}
	}
	if strings.HasSuffix(line, "FOUND") {
		return Verdict{Status: StatusInfected, Threat: parseThreat(line), Raw: line}
	}
	return Verdict{Status: StatusUnavailable, Raw: fmt.Sprintf("unexpected clamd response: %s", line)}
}

// parseThreat pulls the threat name out of "stream: Some-Threat FOUND".
func parseThreat(line string) string {
	trimmed := strings.TrimSuffix(line, "FOUND")
	if i := strings.Index(trimmed, ":"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return strings.TrimSpace(trimmed)
}

// scanInstream sends file content to clamd via the INSTREAM protocol.
// Protocol: zINSTREAM\0 + [4-byte big-endian length + data]* + \0\0\0\0
func (s *clamdScanner) scanInstream(ctx context.Context, path string) (string, error) {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "unix", s.socketPath)
	if err != nil {
		return "", fmt.Errorf("connect clamd: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	if _, err := conn.Write([]byte("zINSTREAM\x00")); err != nil {
		return "", fmt.Errorf("send instream cmd: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	// Stream the file in 8 KiB chunks with a 4-byte big-endian length prefix.
	buf := make([]byte, 8192)
	lenBuf := make([]byte, 4)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			lenBuf[0] = byte(n >> 24)
			lenBuf[1] = byte(n >> 16)
			lenBuf[2] = byte(n >> 8)
			lenBuf[3] = byte(n)
			if _, err := conn.Write(lenBuf); err != nil {
				return "", fmt.Errorf("send chunk length: %w", err)
			}
			if _, err := conn.Write(buf[:n]); err != nil {
				return "", fmt.Errorf("send chunk data: %w", err)
			}
		}
		if readErr != nil {
			break
		}
	}

	// Terminate the stream with a zero-length chunk.
	if _, err := conn.Write([]byte{0, 0, 0, 0}); err != nil {
		return "", fmt.Errorf("send terminator: %w", err)
	}

	// clamd responses are a single short line.
	resp, err := io.ReadAll(io.LimitReader(conn, 4096))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	return strings.TrimSpace(strings.TrimSuffix(string(resp), "\x00")), nil
}
