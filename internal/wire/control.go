package wire

import (
	"encoding/json"
	"fmt"
)

// ControlMessage is the QUIC payload union (§3, §6) for reliable
// peer-to-peer exchanges: registration, heartbeats, gateway queries, and
// file-transfer control.
type ControlMessage interface {
	ControlType() string
}

const (
	ControlTypeBroadcast           = "Broadcast"
	ControlTypeBroadcastResponse   = "BroadcastResponse"
	ControlTypeHeartbeat           = "Heartbeat"
	ControlTypeHeartbeatResponse   = "HeartbeatResponse"
	ControlTypeRegisterRequest     = "RegisterRequest"
	ControlTypeRegisterResponse    = "RegisterResponse"
	ControlTypeUnregisterRequest   = "UnregisterRequest"
	ControlTypeQueryGateways       = "QueryGateways"
	ControlTypeQueryResponse       = "QueryResponse"
	ControlTypeError               = "Error"
	ControlTypeDiscovery           = "Discovery"
	ControlTypeFileTransferRequest = "FileTransferRequest"
	ControlTypeFileTransferResp    = "FileTransferResponse"
	ControlTypeFileTransferChunk   = "FileTransferDataChunk"
	ControlTypeFileTransferError   = "FileTransferError"
)

// Broadcast announces the sender's own descriptor to a peer.
type Broadcast struct {
	Peer PeerDescriptor `json:"peer"`
}

func (Broadcast) ControlType() string { return ControlTypeBroadcast }

// BroadcastResponse returns all peers known to the responder, excluding
// the requester.
type BroadcastResponse struct {
	Peers []PeerDescriptor `json:"peers"`
}

func (BroadcastResponse) ControlType() string { return ControlTypeBroadcastResponse }

// Heartbeat carries a liveness ping.
type Heartbeat struct {
	SenderID  PeerID `json:"sender_id"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

func (Heartbeat) ControlType() string { return ControlTypeHeartbeat }

// HeartbeatResponse acknowledges a Heartbeat.
type HeartbeatResponse struct {
	ResponderID PeerID `json:"responder_id"`
	Timestamp   int64  `json:"timestamp"`
}

func (HeartbeatResponse) ControlType() string { return ControlTypeHeartbeatResponse }

// RegisterRequest asks the peer to add the sender to its registry.
type RegisterRequest struct {
	Peer PeerDescriptor `json:"peer"`
}

func (RegisterRequest) ControlType() string { return ControlTypeRegisterRequest }

// RegisterResponse reports success and returns the responder's peer list
// (excluding the requester).
type RegisterResponse struct {
	Success bool             `json:"success"`
	Peers   []PeerDescriptor `json:"peers"`
}

func (RegisterResponse) ControlType() string { return ControlTypeRegisterResponse }

// UnregisterRequest asks peers to drop the sender from their registries,
// sent on graceful shutdown.
type UnregisterRequest struct {
	GatewayID PeerID `json:"gateway_id"`
}

func (UnregisterRequest) ControlType() string { return ControlTypeUnregisterRequest }

// QueryGateways asks a peer to list the gateways it knows about.
type QueryGateways struct {
	RequesterID PeerID `json:"requester_id"`
}

func (QueryGateways) ControlType() string { return ControlTypeQueryGateways }

// QueryResponse answers QueryGateways, excluding the requester.
type QueryResponse struct {
	Peers []PeerDescriptor `json:"peers"`
}

func (QueryResponse) ControlType() string { return ControlTypeQueryResponse }

// Error reports a protocol-level failure to the peer that caused it.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (Error) ControlType() string { return ControlTypeError }

// Discovery is the periodic presence announcement exchanged by the
// P2P discovery sub-task (§4.8).
type Discovery struct {
	NodeID   PeerID `json:"node_id"`
	NodeName string `json:"node_name"`
	NodeAddr string `json:"node_addr"`
}

func (Discovery) ControlType() string { return ControlTypeDiscovery }

// FileTransferRequest opens the four-step file-transfer dance.
type FileTransferRequest struct {
	TaskID     string `json:"task_id"`
	SourcePath string `json:"source_path"`
	TotalSize  uint64 `json:"total_size"`
}

func (FileTransferRequest) ControlType() string { return ControlTypeFileTransferRequest }

// FileTransferResponse accepts or rejects a FileTransferRequest.
type FileTransferResponse struct {
	TaskID   string `json:"task_id"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

func (FileTransferResponse) ControlType() string { return ControlTypeFileTransferResp }

// FileTransferDataChunk carries one framed chunk of file data.
// IsFinal marks the last chunk of the transfer.
type FileTransferDataChunk struct {
	TaskID  string `json:"task_id"`
	Offset  uint64 `json:"offset"`
	Data    []byte `json:"data"`
	IsFinal bool   `json:"is_final"`
}

func (FileTransferDataChunk) ControlType() string { return ControlTypeFileTransferChunk }

// FileTransferError aborts an in-progress transfer.
type FileTransferError struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

func (FileTransferError) ControlType() string { return ControlTypeFileTransferError }

type controlEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeControlMessage serializes m to its wire JSON form.
func EncodeControlMessage(m ControlMessage) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(controlEnvelope{Type: m.ControlType(), Data: data})
}

// DecodeControlMessage parses the wire JSON form back into the concrete
// ControlMessage type.
func DecodeControlMessage(raw []byte) (ControlMessage, error) {
	var env controlEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case ControlTypeBroadcast:
		var m Broadcast
		return m, json.Unmarshal(env.Data, &m)
	case ControlTypeBroadcastResponse:
		var m BroadcastResponse
		return m, json.Unmarshal(env.Data, &m)
	case ControlTypeHeartbeat:
		var m Heartbeat
		return m, json.Unmarshal(env.Data, &m)
	case ControlTypeHeartbeatResponse:
		var m HeartbeatResponse
		return m, json.Unmarshal(env.Data, &m)
	case ControlTypeRegisterRequest:
		var m RegisterRequest
		return m, json.Unmarshal(env.Data, &m)
	case ControlTypeRegisterResponse:
		var m RegisterResponse
		return m, json.Unmarshal(env.Data, &m)
	case ControlTypeUnregisterRequest:
		var m UnregisterRequest
		return m, json.Unmarshal(env.Data, &m)
	case ControlTypeQueryGateways:
		var m QueryGateways
		return m, json.Unmarshal(env.Data, &m)
	case ControlTypeQueryResponse:
		var m QueryResponse
		return m, json.Unmarshal(env.Data, &m)
	case ControlTypeError:
		var m Error
		return m, json.Unmarshal(env.Data, &m)
	case ControlTypeDiscovery:
		var m Discovery
		return m, json.Unmarshal(env.Data, &m)
	case ControlTypeFileTransferRequest:
		var m FileTransferRequest
		return m, json.Unmarshal(env.Data, &m)
	case ControlTypeFileTransferResp:
		var m FileTransferResponse
		return m, json.Unmarshal(env.Data, &m)
	case ControlTypeFileTransferChunk:
		var m FileTransferDataChunk
		return m, json.Unmarshal(env.Data, &m)
	case ControlTypeFileTransferError:
		var m FileTransferError
		return m, json.Unmarshal(env.Data, &m)
	default:
		return nil, fmt.Errorf("wire: unknown control message type %q", env.Type)
	}
}
