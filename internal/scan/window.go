package scan

// DefaultWindowBytes is the default rolling-window capacity. It doubles as
// the fixed token length fed to the scorer.
const DefaultWindowBytes = 1500

// Window is a bounded trailing buffer over the most recently ingested bytes.
// Appending past capacity drops the oldest bytes; content that has scrolled
// out of the window is unreachable. That is the fixed-memory approximation
// this engine is built around, not something to restore.
type Window struct {
	capacity int
	buf      []byte
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowBytes
	}
	return &Window{
		capacity: capacity,
		buf:      make([]byte, 0, capacity),
	}
}

func (w *Window) Capacity() int { return w.capacity }

func (w *Window) Len() int { return len(w.buf) }

// Ingest appends chunk and trims from the front so the window never exceeds
// capacity. It returns a snapshot of the current window; the snapshot does
// not alias internal storage.
func (w *Window) Ingest(chunk []byte) []byte {
	if len(chunk) >= w.capacity {
		w.buf = w.buf[:0]
		w.buf = append(w.buf, chunk[len(chunk)-w.capacity:]...)
		return w.Bytes()
	}
	overflow := len(w.buf) + len(chunk) - w.capacity
	if overflow > 0 {
		w.buf = append(w.buf[:0], w.buf[overflow:]...)
	}
	w.buf = append(w.buf, chunk...)
	return w.Bytes()
}

// Bytes returns a copy of the current window contents.
func (w *Window) Bytes() []byte {
	out := make([]byte, len(w.buf))
	copy(out, w.buf)
	return out
}
