package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/VacuolePaoo/gatewaygui/internal/gwerrors"
	"github.com/VacuolePaoo/gatewaygui/internal/wire"
)

// DefaultTTL is used when Put is called with ttl <= 0.
const DefaultTTL = time.Hour

type index struct {
	meta         wire.CacheMetadata
	path         string
	accessCount  uint64
	lastAccessed time.Time
}

// Store is a content-addressed, on-disk cache directory. Every entry is
// named by the sha256 of its original name; lookups by content hash and
// by name are both O(1). Store is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	dir        string
	maxBytes   uint64
	defaultTTL time.Duration

	byHash      map[string]*index
	nameToHash  map[string]string
	currentSize uint64
}

// Open prepares (creating if necessary) a cache directory of up to
// maxBytes, and loads any cache files already present, discarding
// anything expired or unreadable.
func Open(dir string, defaultTTL time.Duration, maxBytes uint64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, gwerrors.WithPath(gwerrors.KindResource, "create cache directory", dir)
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	s := &Store{
		dir:        dir,
		maxBytes:   maxBytes,
		defaultTTL: defaultTTL,
		byHash:     make(map[string]*index),
		nameToHash: make(map[string]string),
	}
	if err := s.loadExisting(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadExisting() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return gwerrors.WithPath(gwerrors.KindResource, "read cache directory", s.dir)
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".cach" {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		meta, err := s.readMetadata(path)
		if err != nil {
			_ = os.Remove(path)
			continue
		}
		if time.Now().After(meta.ExpiresAt) {
			_ = os.Remove(path)
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		nameHash := hashName(meta.OriginalName)
		s.byHash[meta.ContentHash] = &index{meta: meta, path: path, lastAccessed: time.Now()}
		s.nameToHash[nameHash] = meta.ContentHash
		s.currentSize += uint64(info.Size())
	}
	return nil
}

func (s *Store) readMetadata(path string) (wire.CacheMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return wire.CacheMetadata{}, err
	}
	defer f.Close()

	buf := make([]byte, wire.CacheMetadataSize)
	if _, err := readFull(f, buf); err != nil {
		return wire.CacheMetadata{}, err
	}
	return decodeEnvelope(buf)
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func hashName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])
}

func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Put compresses data, writes it as a content-addressed cache file, and
// returns its content hash. ttl <= 0 uses the store's default.
func (s *Store) Put(name string, data []byte, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	contentHash := hashContent(data)

	// Reserve worst-case pre-compression space (data could fail to shrink
	// at all, plus its own size again for the outgoing evictee accounting)
	// before doing the CPU work of compressing it.
	if err := s.ensureSpace(uint64(2 * len(data))); err != nil {
		return "", err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", gwerrors.New(gwerrors.KindIntegrity, "build zstd encoder: "+err.Error())
	}
	compressed := enc.EncodeAll(data, nil)
	enc.Close()

	ratio := 1.0
	if len(data) > 0 {
		ratio = float64(len(compressed)) / float64(len(data))
	}

	now := time.Now()
	meta := wire.CacheMetadata{
		OriginalName:     name,
		OriginalSize:     uint64(len(data)),
		CompressedSize:   uint64(len(compressed)),
		ContentHash:      contentHash,
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
		MimeType:         detectMimeType(name),
		CompressionRatio: ratio,
		Version:          1,
	}

	envelope, err := encodeEnvelope(meta)
	if err != nil {
		return "", err
	}
	suffix, err := randomSuffix()
	if err != nil {
		return "", err
	}

	fileSize := uint64(len(envelope) + len(compressed) + len(suffix))

	// The envelope and suffix overhead aren't known until after
	// compression, so re-check against the real on-disk size: this is
	// what actually keeps current_bytes <= max_bytes an invariant rather
	// than a best-effort heuristic.
	if err := s.ensureSpace(fileSize); err != nil {
		return "", err
	}

	filename := hashName(name) + ".cach"
	path := filepath.Join(s.dir, filename)

	if err := writeCacheFile(path, envelope, compressed, suffix); err != nil {
		return "", gwerrors.WithPath(gwerrors.KindResource, "write cache file: "+err.Error(), path)
	}

	s.mu.Lock()
	s.byHash[contentHash] = &index{meta: meta, path: path, lastAccessed: now}
	s.nameToHash[hashName(name)] = contentHash
	s.currentSize += fileSize
	s.mu.Unlock()

	return contentHash, nil
}

func writeCacheFile(path string, parts ...[]byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, p := range parts {
		if _, err := f.Write(p); err != nil {
			return err
		}
	}
	return nil
}

// GetByHash returns the decompressed body and metadata for contentHash,
// evicting and reporting a miss if the entry has expired.
func (s *Store) GetByHash(contentHash string) ([]byte, wire.CacheMetadata, error) {
	s.mu.RLock()
	entry, ok := s.byHash[contentHash]
	s.mu.RUnlock()
	if !ok {
		return nil, wire.CacheMetadata{}, gwerrors.New(gwerrors.KindNotFound, "cache entry not found")
	}

	if time.Now().After(entry.meta.ExpiresAt) {
		s.removeEntry(contentHash)
		return nil, wire.CacheMetadata{}, gwerrors.New(gwerrors.KindNotFound, "cache entry expired")
	}

	data, err := s.readBody(entry)
	if err != nil {
		return nil, wire.CacheMetadata{}, err
	}

	s.mu.Lock()
	entry.accessCount++
	entry.lastAccessed = time.Now()
	s.mu.Unlock()

	return data, entry.meta, nil
}

// GetByName looks up the most recently cached entry for name.
func (s *Store) GetByName(name string) ([]byte, wire.CacheMetadata, error) {
	s.mu.RLock()
	contentHash, ok := s.nameToHash[hashName(name)]
	s.mu.RUnlock()
	if !ok {
		return nil, wire.CacheMetadata{}, gwerrors.New(gwerrors.KindNotFound, "cache entry not found")
	}
	return s.GetByHash(contentHash)
}

func (s *Store) readBody(entry *index) ([]byte, error) {
	f, err := os.Open(entry.path)
	if err != nil {
		return nil, gwerrors.WithPath(gwerrors.KindIntegrity, "open cache file", entry.path)
	}
	defer f.Close()

	if _, err := f.Seek(wire.CacheMetadataSize, 0); err != nil {
		return nil, gwerrors.WithPath(gwerrors.KindIntegrity, "seek past envelope", entry.path)
	}

	compressed := make([]byte, entry.meta.CompressedSize)
	if _, err := readFull(f, compressed); err != nil {
		return nil, gwerrors.WithPath(gwerrors.KindIntegrity, "read compressed body", entry.path)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, gwerrors.New(gwerrors.KindIntegrity, "build zstd decoder: "+err.Error())
	}
	defer dec.Close()

	data, err := dec.DecodeAll(compressed, make([]byte, 0, entry.meta.OriginalSize))
	if err != nil {
		return nil, gwerrors.WithPath(gwerrors.KindIntegrity, "decompress cache body: "+err.Error(), entry.path)
	}
	return data, nil
}

// ListNameHashes returns every name-hash currently indexed.
func (s *Store) ListNameHashes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.nameToHash))
	for h := range s.nameToHash {
		out = append(out, h)
	}
	return out
}

// CurrentSize reports the total on-disk byte usage of every tracked
// cache entry.
func (s *Store) CurrentSize() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSize
}

// CleanupExpired removes every entry past its expiry and returns the
// number removed.
func (s *Store) CleanupExpired() int {
	now := time.Now()
	s.mu.RLock()
	var expired []string
	for hash, entry := range s.byHash {
		if now.After(entry.meta.ExpiresAt) {
			expired = append(expired, hash)
		}
	}
	s.mu.RUnlock()

	for _, hash := range expired {
		s.removeEntry(hash)
	}
	return len(expired)
}

func (s *Store) removeEntry(contentHash string) {
	s.mu.Lock()
	entry, ok := s.byHash[contentHash]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.byHash, contentHash)
	delete(s.nameToHash, hashName(entry.meta.OriginalName))
	s.mu.Unlock()

	if info, err := os.Stat(entry.path); err == nil {
		s.mu.Lock()
		s.currentSize -= min(uint64(info.Size()), s.currentSize)
		s.mu.Unlock()
	}
	_ = os.Remove(entry.path)
}

// ensureSpace evicts expired entries first, then the least-recently-used
// entries, until required additional bytes fit within maxBytes.
func (s *Store) ensureSpace(required uint64) error {
	if s.maxBytes == 0 {
		return nil
	}

	s.mu.RLock()
	fits := s.currentSize+required <= s.maxBytes
	s.mu.RUnlock()
	if fits {
		return nil
	}

	s.CleanupExpired()

	s.mu.RLock()
	fits = s.currentSize+required <= s.maxBytes
	s.mu.RUnlock()
	if fits {
		return nil
	}

	s.mu.RLock()
	type candidate struct {
		hash         string
		lastAccessed time.Time
	}
	candidates := make([]candidate, 0, len(s.byHash))
	for hash, entry := range s.byHash {
		candidates = append(candidates, candidate{hash, entry.lastAccessed})
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccessed.Before(candidates[j].lastAccessed)
	})

	for _, c := range candidates {
		s.removeEntry(c.hash)

		s.mu.RLock()
		fits = s.currentSize+required <= s.maxBytes
		s.mu.RUnlock()
		if fits {
			return nil
		}
	}

	if required > s.maxBytes {
		return gwerrors.New(gwerrors.KindResource, fmt.Sprintf("entry of %d bytes exceeds cache budget of %d bytes", required, s.maxBytes))
	}
	return nil
}

var mimeByExt = map[string]string{
	".txt": "text/plain", ".html": "text/html", ".htm": "text/html",
	".css": "text/css", ".js": "application/javascript", ".json": "application/json",
	".xml": "application/xml", ".pdf": "application/pdf", ".zip": "application/zip",
	".tar": "application/x-tar", ".gz": "application/gzip",
	".jpg": "image/jpeg", ".jpeg": "image/jpeg", ".png": "image/png", ".gif": "image/gif",
	".svg": "image/svg+xml", ".mp3": "audio/mpeg", ".mp4": "video/mp4",
	".avi": "video/x-msvideo", ".mov": "video/quicktime",
}

func detectMimeType(name string) string {
	if mime, ok := mimeByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return mime
	}
	return "application/octet-stream"
}
