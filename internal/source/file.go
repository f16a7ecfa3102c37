package source

import (
	"context"
	"errors"
	"io"
	"os"
)

// FileSource streams an uploaded or local file chunk by chunk.
type FileSource struct {
	path   string
	limits Limits

	file *os.File
	read int64
}

func NewFileSource(path string, limits Limits) *FileSource {
	return &FileSource{path: path, limits: limits}
}

func (s *FileSource) Kind() string       { return KindFile }
func (s *FileSource) Identifier() string { return s.path }

func (s *FileSource) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := os.Open(s.path)
	if err != nil {
		return &TransportError{Op: "open", Err: err}
	}
	if s.limits.MaxBytes > 0 {
		info, statErr := file.Stat()
		if statErr == nil && info.Size() > s.limits.MaxBytes {
			file.Close()
			return &LimitError{Limit: s.limits.MaxBytes, Read: info.Size()}
		}
	}
	s.file = file
	return nil
}

func (s *FileSource) ReadChunk(ctx context.Context) ([]byte, error) {
	if s.file == nil {
		return nil, &TransportError{Op: "read", Err: errors.New("source not open")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, s.limits.chunkSize())
	n, err := s.file.Read(buf)
	if n > 0 {
		s.read += int64(n)
		if s.limits.MaxBytes > 0 && s.read > s.limits.MaxBytes {
			return buf[:n], &LimitError{Limit: s.limits.MaxBytes, Read: s.read}
		}
	}
	if err != nil {
		if err == io.EOF {
			if n > 0 {
				return buf[:n], nil
			}
			return nil, io.EOF
		}
		return nil, &TransportError{Op: "read", Err: err}
	}
	return buf[:n], nil
}

func (s *FileSource) Close() error {
	if s.file == nil {
		return nil
	}
	file := s.file
	s.file = nil
	return file.Close()
}
