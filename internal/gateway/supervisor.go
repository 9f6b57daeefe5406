// Package gateway implements the Gateway Supervisor (C11): it owns every
// other component, drives the three periodic tasks plus the session
// sweep, and dispatches incoming QUIC/UDP events.
package gateway

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/VacuolePaoo/gatewaygui/internal/access"
	"github.com/VacuolePaoo/gatewaygui/internal/cache"
	"github.com/VacuolePaoo/gatewaygui/internal/gwerrors"
	"github.com/VacuolePaoo/gatewaygui/internal/logger"
	"github.com/VacuolePaoo/gatewaygui/internal/mount"
	"github.com/VacuolePaoo/gatewaygui/internal/perfmon"
	"github.com/VacuolePaoo/gatewaygui/internal/quicnet"
	"github.com/VacuolePaoo/gatewaygui/internal/registry"
	"github.com/VacuolePaoo/gatewaygui/internal/securefile"
	"github.com/VacuolePaoo/gatewaygui/internal/tlsmanager"
	"github.com/VacuolePaoo/gatewaygui/internal/udpnet"
	"github.com/VacuolePaoo/gatewaygui/internal/wire"
	"github.com/VacuolePaoo/gatewaygui/internal/zstdframe"
	"github.com/VacuolePaoo/gatewaygui/pkg/metrics"
)

// MountSpec describes one directory to mount at startup.
type MountSpec struct {
	Root        string
	Name        string
	DisplayName string
	ReadOnly    bool
}

// AccessRuleSpec describes one CIDR admission rule to install at startup.
type AccessRuleSpec struct {
	CIDR   string
	Action string // "allow" or "deny"
	Note   string
}

// Options configures a Supervisor. New fills in AdvertiseAddr and Metrics
// when they are empty; other zero values are passed through unchanged, so
// each component applies its own defaults (not always pkg/config's
// ApplyDefaults values), and the three task intervals must be positive.
type Options struct {
	LocalName     string
	AdvertiseAddr string // defaults to QUICBindAddr when empty

	QUICBindAddr string
	UDPBindAddr  string
	MountSideDir string

	TLSBundleDir  string
	TLSVerifyMode tlsmanager.VerifyMode

	CacheDir             string
	CacheDefaultTTL      time.Duration
	CacheMaxBytes        uint64
	CacheCleanupInterval time.Duration

	CompressionMinSize  int
	CompressionMaxChunk int
	CompressionLevel    int

	SecureFileMaxSize int64

	RegistryConnectionTimeout time.Duration
	RegistryCleanupInterval   time.Duration

	BroadcastInterval time.Duration

	Mounts      []MountSpec
	AccessRules []AccessRuleSpec

	Metrics metrics.GatewayMetrics
}

// Supervisor owns the Registry, Mount Manager, Cache, TLS Manager, QUIC
// and UDP network managers, the Performance Monitor, and the access/
// session layer, and drives their lifecycle as a single unit.
type Supervisor struct {
	opts     Options
	localID  wire.PeerID
	localPID string

	registry *registry.Registry
	mounts   *mount.Manager
	cache    *cache.Store
	tls      *tlsmanager.Manager
	quic     *quicnet.Manager
	udp      *udpnet.Manager
	perf     *perfmon.Monitor
	compress *zstdframe.Manager
	reader   *securefile.Reader
	access   *access.List
	sessions *access.SessionTable
	metrics  metrics.GatewayMetrics

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New constructs a Supervisor and every component it owns: it opens the
// TLS bundle (generating one on first run), binds the QUIC and UDP
// sockets, mounts every configured directory, and opens the cache.
func New(opts Options) (*Supervisor, error) {
	if opts.LocalName == "" {
		return nil, gwerrors.New(gwerrors.KindValidation, "local name is required")
	}
	if opts.AdvertiseAddr == "" {
		opts.AdvertiseAddr = opts.QUICBindAddr
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOp{}
	}

	localID := wire.NewPeerID()

	tlsMgr, err := tlsmanager.Open(tlsmanager.DefaultBundlePaths(opts.TLSBundleDir), opts.TLSVerifyMode)
	if err != nil {
		return nil, fmt.Errorf("open tls bundle: %w", err)
	}

	reg := registry.New(localID)

	mounts := mount.New()
	roots := make([]string, 0, len(opts.Mounts))
	for _, spec := range opts.Mounts {
		if _, err := mounts.Mount(spec.Root, spec.DisplayName, spec.ReadOnly); err != nil {
			return nil, fmt.Errorf("mount %s: %w", spec.Root, err)
		}
		roots = append(roots, spec.Root)
	}

	reader := securefile.New(opts.SecureFileMaxSize, roots...)

	quicMgr, err := quicnet.New(opts.QUICBindAddr, tlsMgr, localID, opts.LocalName)
	if err != nil {
		return nil, fmt.Errorf("start quic manager: %w", err)
	}

	udpMgr, err := udpnet.New(opts.UDPBindAddr, mounts, reader, opts.MountSideDir)
	if err != nil {
		_ = quicMgr.Shutdown()
		return nil, fmt.Errorf("start udp manager: %w", err)
	}

	cacheStore, err := cache.Open(opts.CacheDir, opts.CacheDefaultTTL, opts.CacheMaxBytes)
	if err != nil {
		_ = quicMgr.Shutdown()
		_ = udpMgr.Stop()
		return nil, fmt.Errorf("open cache: %w", err)
	}

	accessList := access.NewList()
	for _, rule := range opts.AccessRules {
		action := access.ActionAllow
		if rule.Action == "deny" {
			action = access.ActionDeny
		}
		if _, err := accessList.Add(rule.CIDR, action, rule.Note); err != nil {
			_ = quicMgr.Shutdown()
			_ = udpMgr.Stop()
			return nil, fmt.Errorf("install access rule %s: %w", rule.CIDR, err)
		}
	}

	s := &Supervisor{
		opts:     opts,
		localID:  localID,
		localPID: localID.String(),
		registry: reg,
		mounts:   mounts,
		cache:    cacheStore,
		tls:      tlsMgr,
		quic:     quicMgr,
		udp:      udpMgr,
		perf:     perfmon.New(),
		compress: zstdframe.New(opts.CompressionMinSize, opts.CompressionMaxChunk, zstd.EncoderLevel(opts.CompressionLevel)),
		reader:   reader,
		access:   accessList,
		sessions: access.NewSessionTable(),
		metrics:  opts.Metrics,
	}
	return s, nil
}

// LocalID reports the supervisor's own peer identifier.
func (s *Supervisor) LocalID() wire.PeerID { return s.localID }

// LocalDescriptor builds a PeerDescriptor advertising this gateway.
func (s *Supervisor) LocalDescriptor() wire.PeerDescriptor {
	return wire.PeerDescriptor{
		ID:       s.localID,
		Name:     s.opts.LocalName,
		Address:  s.opts.AdvertiseAddr,
		LastSeen: time.Now(),
	}
}

// Registry, Mounts, Cache, Access, Sessions, and Perf expose the owned
// components for the CLI's read/admin surface (§6).
func (s *Supervisor) Registry() *registry.Registry   { return s.registry }
func (s *Supervisor) Mounts() *mount.Manager         { return s.mounts }
func (s *Supervisor) Cache() *cache.Store            { return s.cache }
func (s *Supervisor) Access() *access.List           { return s.access }
func (s *Supervisor) Sessions() *access.SessionTable { return s.sessions }
func (s *Supervisor) Perf() *perfmon.Monitor         { return s.perf }

// Run starts the QUIC/UDP managers, sends the initial broadcast, spawns
// the periodic tasks, and enters the event-dispatch loop until ctx is
// cancelled or Shutdown is called. It returns nil on a clean Shutdown and
// ctx.Err() when cancelled externally.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return gwerrors.New(gwerrors.KindValidation, "supervisor already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.quic.Start()
	s.udp.Start()
	quicEvents := s.quic.Events()
	udpEvents := s.udp.Events()

	s.announce()

	s.wg.Add(4)
	go s.broadcastTask()
	go s.registryCleanupTask()
	go s.cacheCleanupTask()
	go s.sessionSweepTask()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	logger.Info("gateway supervisor started", "peer_id", s.localPID, "quic_addr", s.opts.QUICBindAddr, "udp_addr", s.opts.UDPBindAddr)

	for {
		select {
		case <-ctx.Done():
			if s.stop() {
				s.teardown()
			}
			return ctx.Err()
		case <-s.done:
			return nil
		case ev, ok := <-quicEvents:
			if !ok {
				continue
			}
			s.handleQUICEvent(ctx, ev)
		case ev, ok := <-udpEvents:
			if !ok {
				continue
			}
			s.handleUDPEvent(ev)
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) announce() {
	if _, err := s.quic.Broadcast(wire.Broadcast{Peer: s.LocalDescriptor()}); err != nil {
		logger.Warn("initial broadcast failed", "error", err.Error())
	}
}

// stop clears the running flag and waits for every periodic task to
// exit. It is safe to call concurrently with Run's own ctx.Done() path;
// only the first caller performs the stop.
func (s *Supervisor) stop() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	s.running = false
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	return true
}

// Shutdown clears the running flag, stops every periodic task, announces
// departure to known peers, and tears down the network managers.
func (s *Supervisor) Shutdown() error {
	if !s.stop() {
		return nil
	}
	s.teardown()
	return nil
}

func (s *Supervisor) teardown() {
	if _, err := s.quic.Broadcast(wire.UnregisterRequest{GatewayID: s.localID}); err != nil {
		logger.Warn("unregister broadcast failed", "error", err.Error())
	}
	if err := s.quic.Shutdown(); err != nil {
		logger.Warn("quic shutdown failed", "error", err.Error())
	}
	if err := s.udp.Stop(); err != nil {
		logger.Warn("udp shutdown failed", "error", err.Error())
	}
	logger.Info("gateway supervisor stopped", "peer_id", s.localPID)
}

// addrAllowed consults the access rule list before a message is admitted
// for dispatch.
func (s *Supervisor) addrAllowed(addr net.Addr) bool {
	return s.access.Validate(addr)
}

// textAddr adapts a bare "host:port" string to net.Addr so quicnet's
// string-keyed events can be checked against the same access list as
// udpnet's net.Addr-keyed ones.
type textAddr string

func (t textAddr) Network() string { return "tcp" }
func (t textAddr) String() string  { return string(t) }
