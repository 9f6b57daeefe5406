// Package zstdframe implements the transport compressor: a one-byte
// framing header in front of a zstd payload, with a skip-when-useless
// policy and process-global statistics.
package zstdframe

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"

	"github.com/VacuolePaoo/gatewaygui/internal/gwerrors"
)

// Frame tags, the single header byte preceding every payload.
const (
	TagUncompressed byte = 0
	TagZstd         byte = 1
)

// DefaultMinCompressSize is the smallest input that is ever attempted with
// zstd; anything shorter is emitted uncompressed.
const DefaultMinCompressSize = 64

// DefaultMaxChunkSize bounds both chunked-frame splitting and decompression
// output, guarding against decompression bombs.
const DefaultMaxChunkSize = 4 << 20 // 4 MiB

// Manager compresses and decompresses frames and accumulates statistics.
// It is safe for concurrent use; encoders/decoders are pooled internally.
type Manager struct {
	MinCompressSize int
	MaxChunkSize    int
	Level           zstd.EncoderLevel

	encoderPool sync.Pool
	decoderPool sync.Pool

	stats Stats
}

// New builds a Manager with the given thresholds. Zero values fall back to
// the package defaults.
func New(minCompressSize, maxChunkSize int, level zstd.EncoderLevel) *Manager {
	if minCompressSize <= 0 {
		minCompressSize = DefaultMinCompressSize
	}
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if level == 0 {
		level = zstd.SpeedDefault
	}
	m := &Manager{MinCompressSize: minCompressSize, MaxChunkSize: maxChunkSize, Level: level}
	m.encoderPool.New = func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(m.Level))
		return enc
	}
	m.decoderPool.New = func() any {
		dec, _ := zstd.NewReader(nil)
		return dec
	}
	return m
}

// Stats holds process-global compression counters. Callers read them
// through Snapshot, which loads each counter atomically but not as one
// consistent set; fields are updated with atomics so compress and
// decompress can run concurrently without locking.
type Stats struct {
	compressCount   atomic.Uint64
	decompressCount atomic.Uint64
	rawBytes        atomic.Uint64
	compressedBytes atomic.Uint64
	errorCount      atomic.Uint64
}

// StatsSnapshot is an immutable view of Stats.
type StatsSnapshot struct {
	CompressCount   uint64
	DecompressCount uint64
	RawBytes        uint64
	CompressedBytes uint64
	ErrorCount      uint64
	Ratio           float64
}

// Snapshot returns the current statistics. Ratio is
// total_compressed/total_raw, or 1.0 when no data has been processed.
func (m *Manager) Snapshot() StatsSnapshot {
	raw := m.stats.rawBytes.Load()
	compressed := m.stats.compressedBytes.Load()
	ratio := 1.0
	if raw > 0 {
		ratio = float64(compressed) / float64(raw)
	}
	return StatsSnapshot{
		CompressCount:   m.stats.compressCount.Load(),
		DecompressCount: m.stats.decompressCount.Load(),
		RawBytes:        raw,
		CompressedBytes: compressed,
		ErrorCount:      m.stats.errorCount.Load(),
		Ratio:           ratio,
	}
}

func (m *Manager) getEncoder() *zstd.Encoder {
	return m.encoderPool.Get().(*zstd.Encoder)
}

func (m *Manager) putEncoder(enc *zstd.Encoder) {
	m.encoderPool.Put(enc)
}

func (m *Manager) getDecoder() *zstd.Decoder {
	return m.decoderPool.Get().(*zstd.Decoder)
}

func (m *Manager) putDecoder(dec *zstd.Decoder) {
	m.decoderPool.Put(dec)
}

// Compress frames data: inputs shorter than MinCompressSize are emitted
// uncompressed; otherwise zstd is attempted and the compressed form is
// kept only if strictly shorter than the raw input. A zstd failure falls
// through to the uncompressed frame rather than propagating an error.
func (m *Manager) Compress(data []byte) []byte {
	m.stats.compressCount.Add(1)
	m.stats.rawBytes.Add(uint64(len(data)))

	if len(data) < m.MinCompressSize {
		m.stats.compressedBytes.Add(uint64(len(data) + 1))
		return frame(TagUncompressed, data)
	}

	enc := m.getEncoder()
	compressed := enc.EncodeAll(data, nil)
	m.putEncoder(enc)

	if len(compressed) < len(data) {
		m.stats.compressedBytes.Add(uint64(len(compressed) + 1))
		return frame(TagZstd, compressed)
	}

	m.stats.compressedBytes.Add(uint64(len(data) + 1))
	return frame(TagUncompressed, data)
}

// Decompress reads the frame header and reverses Compress. Decompression
// errors increment the error counter and are reported to the caller; the
// affected artifact should be discarded by callers (integrity failure).
func (m *Manager) Decompress(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		m.stats.errorCount.Add(1)
		return nil, gwerrors.New(gwerrors.KindIntegrity, "empty frame")
	}

	tag, body := framed[0], framed[1:]
	m.stats.decompressCount.Add(1)

	switch tag {
	case TagUncompressed:
		return body, nil
	case TagZstd:
		dec := m.getDecoder()
		out, err := dec.DecodeAll(body, make([]byte, 0, min(len(body)*4, m.MaxChunkSize)))
		m.putDecoder(dec)
		if err != nil {
			m.stats.errorCount.Add(1)
			return nil, gwerrors.New(gwerrors.KindIntegrity, fmt.Sprintf("zstd decode failed: %v", err))
		}
		if len(out) > m.MaxChunkSize {
			m.stats.errorCount.Add(1)
			return nil, gwerrors.New(gwerrors.KindIntegrity, "decompressed output exceeds max chunk size")
		}
		return out, nil
	default:
		m.stats.errorCount.Add(1)
		return nil, gwerrors.New(gwerrors.KindIntegrity, "unknown frame tag")
	}
}

// CompressChunked splits data larger than MaxChunkSize into independently
// framed chunks.
func (m *Manager) CompressChunked(data []byte) [][]byte {
	if len(data) <= m.MaxChunkSize {
		return [][]byte{m.Compress(data)}
	}

	var frames [][]byte
	for offset := 0; offset < len(data); offset += m.MaxChunkSize {
		end := min(offset+m.MaxChunkSize, len(data))
		frames = append(frames, m.Compress(data[offset:end]))
	}
	return frames
}

// DecompressChunked reverses CompressChunked, concatenating each frame's
// decompressed body in order.
func (m *Manager) DecompressChunked(frames [][]byte) ([]byte, error) {
	var out []byte
	for _, f := range frames {
		chunk, err := m.Decompress(f)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func frame(tag byte, body []byte) []byte {
	out := make([]byte, 0, len(body)+1)
	out = append(out, tag)
	out = append(out, body...)
	return out
}
