package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kinds of scan sources accepted by the engine.
const (
	KindURL  = "url"
	KindFile = "file"
)

const DefaultChunkSize = 512

// Limits caps how much a source may deliver and how long it may take.
type Limits struct {
	MaxBytes  int64
	Timeout   time.Duration
	ChunkSize int
}

func (l Limits) chunkSize() int {
	if l.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return l.ChunkSize
}

// ByteSource supplies sequential chunks from an untrusted payload. ReadChunk
// returns io.EOF once the payload is exhausted. Close must be safe to call on
// every exit path, including after a failed Open.
type ByteSource interface {
	Open(ctx context.Context) error
	ReadChunk(ctx context.Context) ([]byte, error)
	Close() error
	Kind() string
	Identifier() string
}

// LimitError reports that a source exceeded its configured byte ceiling.
type LimitError struct {
	Limit int64
	Read  int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("size limit exceeded: read %d of at most %d bytes", e.Read, e.Limit)
}

// TimeoutError reports that a source exceeded its configured time ceiling.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("source timeout after %s: %v", e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// TransportError reports a network or filesystem failure that is neither a
// size-limit nor a timeout condition.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("source transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func IsSizeLimit(err error) bool {
	var limitErr *LimitError
	return errors.As(err, &limitErr)
}

func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
