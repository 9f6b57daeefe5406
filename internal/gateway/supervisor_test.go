package gateway

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VacuolePaoo/gatewaygui/internal/access"
	"github.com/VacuolePaoo/gatewaygui/internal/tlsmanager"
	"github.com/VacuolePaoo/gatewaygui/internal/wire"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	mountRoot := filepath.Join(dir, "share")
	require.NoError(t, os.MkdirAll(mountRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mountRoot, "notes.txt"), []byte("hello world"), 0o644))

	return Options{
		LocalName:                 "test-gateway",
		QUICBindAddr:              "127.0.0.1:0",
		UDPBindAddr:               "127.0.0.1:0",
		MountSideDir:              filepath.Join(dir, "sidecar"),
		TLSBundleDir:              filepath.Join(dir, "tls"),
		TLSVerifyMode:             tlsmanager.VerifyNone,
		CacheDir:                  filepath.Join(dir, "cache"),
		CacheDefaultTTL:           time.Hour,
		CacheMaxBytes:             1 << 20,
		CacheCleanupInterval:      time.Minute,
		CompressionMinSize:        64,
		CompressionMaxChunk:       1 << 20,
		CompressionLevel:          3,
		SecureFileMaxSize:         1 << 20,
		RegistryConnectionTimeout: 90 * time.Second,
		RegistryCleanupInterval:   30 * time.Second,
		BroadcastInterval:         30 * time.Second,
		Mounts: []MountSpec{
			{Root: mountRoot, Name: "share", DisplayName: "Share"},
		},
	}
}

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	s, err := New(testOptions(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.quic.Shutdown()
		_ = s.udp.Stop()
	})
	return s
}

func TestNew_BuildsEveryOwnedComponent(t *testing.T) {
	s := newTestSupervisor(t)

	require.False(t, s.LocalID().IsZero())
	require.Equal(t, "test-gateway", s.LocalDescriptor().Name)
	require.Len(t, s.Mounts().ListMounts(), 1)
	require.NotNil(t, s.Cache())
	require.NotNil(t, s.Access())
	require.NotNil(t, s.Sessions())
	require.NotNil(t, s.Perf())
}

func TestAddrAllowed_DenyRuleBlocksMatchingCIDR(t *testing.T) {
	s := newTestSupervisor(t)
	_, err := s.access.Add("10.0.0.0/8", access.ActionDeny, "blocklisted range")
	require.NoError(t, err)

	denied := &net.UDPAddr{IP: net.ParseIP("10.1.2.3"), Port: 9000}
	allowed := &net.UDPAddr{IP: net.ParseIP("192.168.1.1"), Port: 9000}

	require.False(t, s.addrAllowed(denied))
	require.True(t, s.addrAllowed(allowed))
}

func TestAddrAllowed_TextAddrAdaptsQUICEventAddresses(t *testing.T) {
	s := newTestSupervisor(t)
	_, err := s.access.Add("203.0.113.0/24", access.ActionDeny, "example blocklist")
	require.NoError(t, err)

	require.False(t, s.addrAllowed(textAddr("203.0.113.7:5000")))
	require.True(t, s.addrAllowed(textAddr("198.51.100.7:5000")))
}

func TestDispatchToken_DirectorySearchSendsReply(t *testing.T) {
	s := newTestSupervisor(t)

	tok := wire.DirectorySearch{SearcherID: wire.NewPeerID(), Keywords: []string{"notes"}, SearchID: "search-1"}
	// Sending to an address nobody listens on still succeeds at the UDP
	// socket layer; this exercises the dispatch path end to end.
	s.dispatchToken(tok, "127.0.0.1:1")
}

func TestDispatchToken_FileRequestServesMountedFile(t *testing.T) {
	s := newTestSupervisor(t)

	// A FileRequest only ever carries the path a DirectorySearchResponse
	// already handed the peer, which is the entry's own (absolute) index
	// path, not a name relative to the mount.
	entries := s.udp.SearchFiles([]string{"notes"})
	require.Len(t, entries, 1)

	tok := wire.FileRequest{RequesterID: wire.NewPeerID(), FilePath: entries[0].Path, RequestID: "req-1"}
	data, err := s.readFile(tok.FilePath)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))

	s.dispatchToken(tok, "127.0.0.1:1")

	// A second request should now be served from cache.
	s.dispatchToken(tok, "127.0.0.1:1")
}

func TestControlKind_NilAndTyped(t *testing.T) {
	require.Equal(t, "unknown", controlKind(nil))
	require.Equal(t, wire.ControlTypeBroadcast, controlKind(wire.Broadcast{}))
}

func TestShutdown_NoopWhenNotRunning(t *testing.T) {
	s := newTestSupervisor(t)
	require.NoError(t, s.Shutdown())
}
