package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// URLSource streams the body of an HTTP(S) download chunk by chunk. The
// response body is never buffered whole; the byte ceiling is enforced as
// chunks arrive.
type URLSource struct {
	url    string
	limits Limits
	client *http.Client

	body io.ReadCloser
	read int64
}

func NewURLSource(rawURL string, limits Limits) *URLSource {
	timeout := limits.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
		limits.Timeout = timeout
	}
	return &URLSource{
		url:    rawURL,
		limits: limits,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (s *URLSource) Kind() string       { return KindURL }
func (s *URLSource) Identifier() string { return s.url }

func (s *URLSource) Open(ctx context.Context) error {
	if strings.TrimSpace(s.url) == "" {
		return &TransportError{Op: "open", Err: errors.New("empty URL")}
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return &TransportError{Op: "open", Err: err}
	}
	response, err := s.client.Do(request)
	if err != nil {
		return s.wrapReadError("open", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		response.Body.Close()
		return &TransportError{Op: "open", Err: fmt.Errorf("http status %d", response.StatusCode)}
	}
	if s.limits.MaxBytes > 0 && response.ContentLength > s.limits.MaxBytes {
		response.Body.Close()
		return &LimitError{Limit: s.limits.MaxBytes, Read: response.ContentLength}
	}
	s.body = response.Body
	return nil
}

func (s *URLSource) ReadChunk(ctx context.Context) ([]byte, error) {
	if s.body == nil {
		return nil, &TransportError{Op: "read", Err: errors.New("source not open")}
	}
	if err := ctx.Err(); err != nil {
		return nil, s.wrapReadError("read", err)
	}
	buf := make([]byte, s.limits.chunkSize())
	n, err := s.body.Read(buf)
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
		return nil, s.wrapReadError("read", err)
	}
	return buf[:n], nil
}

func (s *URLSource) Close() error {
	if s.body == nil {
		return nil
	}
	body := s.body
	s.body = nil
	return body.Close()
}

func (s *URLSource) wrapReadError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &TimeoutError{Timeout: s.limits.Timeout, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}
