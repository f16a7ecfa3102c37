package scan

import "testing"

func TestTokenizeLeftPads(t *testing.T) {
	tokens := Tokenize([]byte{0x41, 0x42}, 5)
	want := []int{PadToken, PadToken, PadToken, 0x41, 0x42}
	if len(tokens) != 5 {
		t.Fatalf("expected 5 tokens, got %d", len(tokens))
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token %d = %d, want %d", i, tokens[i], want[i])
		}
	}
}

func TestTokenizeTruncatesRight(t *testing.T) {
	window := []byte{1, 2, 3, 4, 5, 6}
	tokens := Tokenize(window, 4)
	if len(tokens) != 4 {
		t.Fatalf("expected 4 tokens, got %d", len(tokens))
	}
	for i := 0; i < 4; i++ {
		if tokens[i] != int(window[i]) {
			t.Fatalf("token %d = %d, want %d", i, tokens[i], window[i])
		}
	}
}

func TestTokenizeFixedLength(t *testing.T) {
	tokens := Tokenize(nil, 0)
	if len(tokens) != DefaultWindowBytes {
		t.Fatalf("expected default length %d, got %d", DefaultWindowBytes, len(tokens))
	}
	for _, token := range tokens {
		if token != PadToken {
			t.Fatalf("empty window should be all padding, saw %d", token)
		}
	}
}

func TestVocabularyLayout(t *testing.T) {
	if PadToken != 256 || StartToken != 257 || EndToken != 258 {
		t.Fatalf("reserved token ids moved: pad=%d start=%d end=%d", PadToken, StartToken, EndToken)
	}
	if VocabSize != 259 {
		t.Fatalf("vocab size = %d, want 259", VocabSize)
	}
}
