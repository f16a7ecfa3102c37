package source

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, size int) (string, []byte) {
	t.Helper()
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i * 13)
	}
	path := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path, payload
}

func TestFileSourceReadsAllChunks(t *testing.T) {
	path, payload := writeTempFile(t, 1300)
	src := NewFileSource(path, Limits{ChunkSize: 512})
	if err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	var got []byte
	for {
		chunk, err := src.ReadChunk(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadChunk: %v", err)
		}
		if len(chunk) > 512 {
			t.Fatalf("chunk of %d bytes exceeds chunk size", len(chunk))
		}
		got = append(got, chunk...)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("reassembled %d bytes, want %d identical bytes", len(got), len(payload))
	}
}

func TestFileSourceSizeLimit(t *testing.T) {
	path, _ := writeTempFile(t, 4096)
	src := NewFileSource(path, Limits{MaxBytes: 1024, ChunkSize: 512})
	err := src.Open(context.Background())
	if err == nil {
		src.Close()
		t.Fatalf("expected size limit error at open")
	}
	if !IsSizeLimit(err) {
		t.Fatalf("expected LimitError, got %v", err)
	}
	if IsTimeout(err) || IsTransport(err) {
		t.Fatalf("size limit misclassified: %v", err)
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "absent"), Limits{})
	err := src.Open(context.Background())
	if !IsTransport(err) {
		t.Fatalf("expected TransportError for missing file, got %v", err)
	}
}

func TestFileSourceCloseIdempotent(t *testing.T) {
	path, _ := writeTempFile(t, 10)
	src := NewFileSource(path, Limits{})
	if err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
