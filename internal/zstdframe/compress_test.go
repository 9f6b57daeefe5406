package zstdframe

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestCompressDecompress_RoundTrip(t *testing.T) {
	m := New(0, 0, 0)
	inputs := [][]byte{
		nil,
		[]byte("x"),
		bytes.Repeat([]byte("the quick brown fox "), 1000),
	}
	for _, in := range inputs {
		framed := m.Compress(in)
		out, err := m.Decompress(framed)
		if err != nil {
			t.Fatalf("decompress failed: %v", err)
		}
		if !bytes.Equal(out, in) {
			t.Fatalf("round trip mismatch: got %d bytes, want %d", len(out), len(in))
		}
	}
}

func TestCompress_SkipsSmallInputs(t *testing.T) {
	m := New(64, 0, 0)
	in := bytes.Repeat([]byte{0}, 63)
	framed := m.Compress(in)
	if framed[0] != TagUncompressed {
		t.Fatalf("expected uncompressed tag, got %d", framed[0])
	}
}

func TestCompress_FallsBackOnIncompressibleData(t *testing.T) {
	m := New(64, 0, 0)
	in := make([]byte, 640)
	if _, err := rand.Read(in); err != nil {
		t.Fatal(err)
	}
	framed := m.Compress(in)
	if framed[0] != TagUncompressed {
		t.Fatalf("expected uncompressed fallback for random data, got tag %d", framed[0])
	}
}

func TestChunked_RoundTrip(t *testing.T) {
	m := New(16, 128, 0)
	in := bytes.Repeat([]byte("abcdefgh"), 100) // 800 bytes, > 128 chunk size
	frames := m.CompressChunked(in)
	if len(frames) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(frames))
	}
	out, err := m.DecompressChunked(frames)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Fatal("chunked round trip mismatch")
	}
}

func TestSnapshot_RatioDefaultsToOne(t *testing.T) {
	m := New(0, 0, 0)
	if got := m.Snapshot().Ratio; got != 1.0 {
		t.Fatalf("expected default ratio 1.0, got %f", got)
	}
}
