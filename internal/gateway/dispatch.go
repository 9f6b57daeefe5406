package gateway

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/VacuolePaoo/gatewaygui/internal/gwerrors"
	"github.com/VacuolePaoo/gatewaygui/internal/logger"
	"github.com/VacuolePaoo/gatewaygui/internal/quicnet"
	"github.com/VacuolePaoo/gatewaygui/internal/udpnet"
	"github.com/VacuolePaoo/gatewaygui/internal/wire"
)

// maxSearchResults bounds the number of matches returned from a
// DirectorySearch, per the resource ceiling on search results.
const maxSearchResults = 1000

func (s *Supervisor) handleQUICEvent(ctx context.Context, ev quicnet.Event) {
	switch ev.Kind {
	case quicnet.EventMessageReceived:
		if !s.addrAllowed(textAddr(ev.Addr)) {
			logger.Debug("dropped message from denied address", "addr", ev.Addr)
			return
		}
		s.dispatchControlMessage(ctx, ev.Message, ev.Addr)
	case quicnet.EventConnectionEstablished:
		logger.Debug("quic connection established", "addr", ev.Addr)
		s.perf.ConnectionEstablished()
		s.metrics.SetConnections(s.quic.ActiveConnections())
	case quicnet.EventConnectionLost:
		if peer, ok := s.registry.GetByAddress(ev.Addr); ok {
			s.sessions.Close(peer.ID)
		}
		s.registry.RemoveByAddress(ev.Addr)
		s.perf.ConnectionClosed()
		s.metrics.SetConnections(s.quic.ActiveConnections())
	case quicnet.EventConnectionFailed:
		logger.Warn("quic connection failed", "addr", ev.Addr, "reason", ev.Reason)
		s.perf.ConnectionFailed()
	case quicnet.EventBroadcastSent:
		logger.Debug("quic broadcast sent")
	case quicnet.EventNetworkError:
		logger.Warn("quic network error", "reason", ev.Reason)
	}
}

func (s *Supervisor) dispatchControlMessage(ctx context.Context, msg wire.ControlMessage, addr string) {
	outcome := "ok"
	defer func() { s.metrics.RecordMessage("quic", controlKind(msg), outcome) }()

	switch m := msg.(type) {
	case wire.Broadcast:
		s.registry.AddOrUpdate(m.Peer)
		s.sessions.Open(m.Peer.ID, addr)
		s.metrics.SetConnections(s.quic.ActiveConnections())
		reply := wire.BroadcastResponse{Peers: s.registry.AllExcept(m.Peer.ID)}
		if err := s.quic.Reply(ctx, reply, addr); err != nil {
			outcome = "error"
			logger.Warn("broadcast reply failed", "addr", addr, "error", err.Error())
		}

	case wire.BroadcastResponse:
		for _, peer := range m.Peers {
			if peer.ID == s.localID {
				continue
			}
			s.registry.AddOrUpdate(peer)
		}

	case wire.Heartbeat:
		if peer, ok := s.registry.Get(m.SenderID); ok {
			s.registry.AddOrUpdate(peer)
			s.sessions.Touch(m.SenderID, 0, 0)
		}
		reply := wire.HeartbeatResponse{ResponderID: s.localID, Timestamp: time.Now().UnixMilli()}
		if err := s.quic.Reply(ctx, reply, addr); err != nil {
			outcome = "error"
			logger.Warn("heartbeat reply failed", "addr", addr, "error", err.Error())
		}

	case wire.RegisterRequest:
		s.registry.AddOrUpdate(m.Peer)
		s.sessions.Open(m.Peer.ID, addr)
		reply := wire.RegisterResponse{Success: true, Peers: s.registry.AllExcept(m.Peer.ID)}
		if err := s.quic.Reply(ctx, reply, addr); err != nil {
			outcome = "error"
			logger.Warn("register reply failed", "addr", addr, "error", err.Error())
		}

	case wire.UnregisterRequest:
		s.registry.Remove(m.GatewayID)
		s.sessions.Close(m.GatewayID)

	case wire.QueryGateways:
		reply := wire.QueryResponse{Peers: s.registry.AllExcept(m.RequesterID)}
		if err := s.quic.Reply(ctx, reply, addr); err != nil {
			outcome = "error"
			logger.Warn("query-gateways reply failed", "addr", addr, "error", err.Error())
		}

	case wire.Discovery:
		s.quic.HandleDiscovery(m)

	case wire.Error:
		outcome = "error"
		logger.Warn("peer reported protocol error", "addr", addr, "code", m.Code, "message", m.Message)

	case wire.FileTransferRequest, wire.FileTransferResponse, wire.FileTransferDataChunk, wire.FileTransferError:
		logger.Debug("file-transfer control message received", "addr", addr, "type", msg.ControlType())

	default:
		logger.Debug("unhandled control message", "addr", addr, "type", msg.ControlType())
	}
}

func controlKind(msg wire.ControlMessage) string {
	if msg == nil {
		return "unknown"
	}
	return msg.ControlType()
}

func (s *Supervisor) handleUDPEvent(ev udpnet.Event) {
	switch ev.Kind {
	case udpnet.EventTokenReceived:
		if !s.addrAllowed(ev.Sender) {
			logger.Debug("dropped token from denied address", "addr", ev.Sender.String())
			return
		}
		s.dispatchToken(ev.Token, ev.Sender.String())
	case udpnet.EventNetworkError:
		logger.Warn("udp network error", "reason", ev.Message)
	}
}

func (s *Supervisor) dispatchToken(tok wire.Token, addr string) {
	outcome := "ok"
	defer func() { s.metrics.RecordMessage("udp", tok.TokenType(), outcome) }()

	switch t := tok.(type) {
	case wire.DirectorySearch:
		entries := s.udp.SearchFiles(t.Keywords)
		if len(entries) > maxSearchResults {
			entries = entries[:maxSearchResults]
		}
		matches := make([]string, len(entries))
		for i, e := range entries {
			matches[i] = e.Path
		}
		reply := wire.DirectorySearchResponse{ResponderID: s.localID, SearchID: t.SearchID, Matches: matches}
		if err := s.udp.SendTokenTo(reply, addr); err != nil {
			outcome = "error"
			logger.Warn("search response failed", "addr", addr, "error", err.Error())
		}

	case wire.FileRequest:
		data, err := s.readFile(t.FilePath)
		if err != nil {
			outcome = "error"
			msg := err.Error()
			_ = s.udp.SendTokenTo(wire.FileResponse{ResponderID: s.localID, RequestID: t.RequestID, Error: &msg}, addr)
			return
		}
		framed := s.compress.Compress(data)
		encoded := base64.StdEncoding.EncodeToString(framed)
		if err := s.udp.SendTokenTo(wire.FileResponse{ResponderID: s.localID, RequestID: t.RequestID, FileData: &encoded}, addr); err != nil {
			outcome = "error"
			logger.Warn("file response failed", "addr", addr, "error", err.Error())
		} else {
			s.metrics.RecordBytes("udp", "sent", uint64(len(framed)))
			s.perf.RecordSend(uint64(len(framed)))
		}

	case wire.DirectorySearchResponse, wire.FileResponse, wire.PerformanceTest:
		logger.Debug("informational token received", "addr", addr, "type", tok.TokenType())

	case wire.InfoMessage:
		if strings.HasPrefix(t.Content, "CACHE_HASHES:") {
			logger.Debug("peer cache advertisement received", "addr", addr, "content", t.Content)
		} else {
			logger.Debug("info message received", "addr", addr, "content", t.Content)
		}

	default:
		logger.Debug("unhandled token", "addr", addr, "type", tok.TokenType())
	}
}

// readFile consults the cache before reading from disk, then returns the
// raw (uncompressed) bytes; the caller frames them for the wire.
func (s *Supervisor) readFile(path string) ([]byte, error) {
	if data, _, err := s.cache.GetByName(path); err == nil {
		s.metrics.RecordCacheOp("get_hit", uint64(len(data)))
		return data, nil
	}

	if _, ok := s.mounts.ResolveUnderAnyMount(path); !ok {
		return nil, gwerrors.WithPath(gwerrors.KindAuthorization, "path not present in any mounted index", path)
	}

	data, err := s.reader.Read(path)
	if err != nil {
		s.metrics.RecordCacheOp("get_miss", 0)
		return nil, err
	}
	s.metrics.RecordCacheOp("get_miss", uint64(len(data)))

	if _, putErr := s.cache.Put(path, data, s.opts.CacheDefaultTTL); putErr != nil {
		logger.Debug("cache put failed", "path", path, "error", putErr.Error())
	} else {
		s.metrics.RecordCacheOp("put", uint64(len(data)))
	}

	return data, nil
}
