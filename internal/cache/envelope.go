// Package cache implements the content-addressed on-disk cache (C6):
// files are stored compressed under a fixed-size metadata envelope and
// evicted by TTL first, then LRU against a byte budget.
package cache

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"

	"github.com/VacuolePaoo/gatewaygui/internal/gwerrors"
	"github.com/VacuolePaoo/gatewaygui/internal/wire"
)

// printableLow and printableRange bound the padding bytes written after
// the JSON metadata, matching the original cache format's "printable
// ASCII" filler (byte%94 + 33).
const (
	printableLow   = 33
	printableRange = 94
)

// encodeEnvelope serializes meta into a fixed wire.CacheMetadataSize
// buffer: the JSON document, then random printable padding, then the
// JSON length as a little-endian uint16 in the last two bytes.
func encodeEnvelope(meta wire.CacheMetadata) ([]byte, error) {
	body, err := json.Marshal(meta)
	if err != nil {
		return nil, gwerrors.New(gwerrors.KindIntegrity, "marshal cache metadata: "+err.Error())
	}
	if len(body) > wire.CacheMetadataSize-2 {
		return nil, gwerrors.New(gwerrors.KindIntegrity, "cache metadata too large for fixed envelope")
	}

	buf := make([]byte, wire.CacheMetadataSize)
	copy(buf, body)

	padding := buf[len(body) : wire.CacheMetadataSize-2]
	if len(padding) > 0 {
		random := make([]byte, len(padding))
		if _, err := rand.Read(random); err != nil {
			return nil, gwerrors.New(gwerrors.KindIntegrity, "fill envelope padding: "+err.Error())
		}
		for i, b := range random {
			padding[i] = printableLow + b%printableRange
		}
	}

	binary.LittleEndian.PutUint16(buf[wire.CacheMetadataSize-2:], uint16(len(body)))
	return buf, nil
}

// decodeEnvelope reverses encodeEnvelope, trusting only the length field
// to delimit the JSON document within the fixed-size buffer.
func decodeEnvelope(buf []byte) (wire.CacheMetadata, error) {
	var meta wire.CacheMetadata
	if len(buf) != wire.CacheMetadataSize {
		return meta, gwerrors.New(gwerrors.KindIntegrity, "cache envelope has wrong size")
	}

	jsonLen := int(binary.LittleEndian.Uint16(buf[wire.CacheMetadataSize-2:]))
	if jsonLen > wire.CacheMetadataSize-2 {
		return meta, gwerrors.New(gwerrors.KindIntegrity, "cache envelope length field out of range")
	}

	if err := json.Unmarshal(buf[:jsonLen], &meta); err != nil {
		return meta, gwerrors.New(gwerrors.KindIntegrity, "unmarshal cache metadata: "+err.Error())
	}
	return meta, nil
}

// randomSuffix returns wire.CacheSuffixSize random bytes appended after
// the compressed body, matching the original format's anti-fingerprinting
// trailer.
func randomSuffix() ([]byte, error) {
	suffix := make([]byte, wire.CacheSuffixSize)
	if _, err := rand.Read(suffix); err != nil {
		return nil, gwerrors.New(gwerrors.KindIntegrity, "generate cache suffix: "+err.Error())
	}
	return suffix, nil
}
