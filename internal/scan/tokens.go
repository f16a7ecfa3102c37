package scan

// Token vocabulary: every byte value maps to its own id, plus a small set of
// reserved ids for padding and sequence markers.
const (
	PadToken   = 256
	StartToken = 257
	EndToken   = 258
	VocabSize  = 259
)

// Tokenize maps a window to a fixed-length token sequence: left-padded with
// PadToken when the window is short, truncated on the right when it is long.
func Tokenize(window []byte, length int) []int {
	if length <= 0 {
		length = DefaultWindowBytes
	}
	tokens := make([]int, length)
	if len(window) > length {
		window = window[:length]
	}
	pad := length - len(window)
	for i := 0; i < pad; i++ {
		tokens[i] = PadToken
	}
	for i, b := range window {
		tokens[pad+i] = int(b)
	}
	return tokens
}
