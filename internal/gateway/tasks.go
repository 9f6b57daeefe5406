package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/VacuolePaoo/gatewaygui/internal/logger"
	"github.com/VacuolePaoo/gatewaygui/internal/wire"
)

// broadcastTask periodically re-announces the local descriptor and
// advertises the cache's current name-hash set over UDP.
func (s *Supervisor) broadcastTask() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.announce()

			hashes := s.cache.ListNameHashes()
			if len(hashes) == 0 {
				if err := s.udp.SendInfoMessage(s.localID, "no cache"); err != nil {
					logger.Warn("broadcast task: info message failed", "error", err.Error())
				}
				continue
			}
			if err := s.udp.SendInfoMessage(s.localID, fmt.Sprintf("cache: %d entries", len(hashes))); err != nil {
				logger.Warn("broadcast task: info message failed", "error", err.Error())
			}
			if err := s.udp.SendInfoMessage(s.localID, "CACHE_HASHES:"+strings.Join(hashes, ",")); err != nil {
				logger.Warn("broadcast task: cache-hash advertisement failed", "error", err.Error())
			}
		}
	}
}

// registryCleanupTask drops registry entries whose peer has not been
// seen within the configured connection timeout.
func (s *Supervisor) registryCleanupTask() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.RegistryCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			removed := s.registry.CleanupExpired(int64(s.opts.RegistryConnectionTimeout.Seconds()))
			if removed > 0 {
				logger.Debug("registry cleanup", "removed", removed, "size", s.registry.Size())
			}
		}
	}
}

// cacheCleanupTask evicts expired cache entries and reports the
// resulting size against the configured budget.
func (s *Supervisor) cacheCleanupTask() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.CacheCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			removed := s.cache.CleanupExpired()
			hashes := s.cache.ListNameHashes()
			logger.Debug("cache cleanup", "removed", removed, "entries", len(hashes), "budget", s.opts.CacheMaxBytes)
			s.metrics.SetCacheBytes(s.cache.CurrentSize())
		}
	}
}

// sessionSweepTask prunes any open session whose peer is no longer
// present in the Registry. Period mirrors registry_cleanup_interval, as
// the Registry's TTL sweep is the event that makes a session stale.
func (s *Supervisor) sessionSweepTask() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.RegistryCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			live := make(map[wire.PeerID]struct{})
			for _, peer := range s.registry.All() {
				live[peer.ID] = struct{}{}
			}
			if removed := s.sessions.PruneMissing(live); removed > 0 {
				logger.Debug("session sweep", "removed", removed, "live_peers", len(live))
			}
		}
	}
}
