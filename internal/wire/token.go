package wire

import (
	"encoding/json"
	"fmt"
)

// Token is the UDP payload union (§3, §6): broadcast-oriented search,
// file-transfer, informational, and performance-test messages.
//
// Each concrete type implements Token by reporting its own tag; the wire
// form is {"type": "<tag>", "data": <json of the concrete type>}.
type Token interface {
	TokenType() string
}

const (
	TokenTypeDirectorySearch         = "DirectorySearch"
	TokenTypeDirectorySearchResponse = "DirectorySearchResponse"
	TokenTypeFileRequest             = "FileRequest"
	TokenTypeFileResponse            = "FileResponse"
	TokenTypeInfoMessage             = "InfoMessage"
	TokenTypePerformanceTest         = "PerformanceTest"
)

// DirectorySearch asks peers whether any mounted path matches any keyword.
// Matching is disjunctive (any keyword) and case-insensitive.
type DirectorySearch struct {
	SearcherID PeerID   `json:"searcher_id"`
	Keywords   []string `json:"keywords"`
	SearchID   string   `json:"search_id"`
}

func (DirectorySearch) TokenType() string { return TokenTypeDirectorySearch }

// DirectorySearchResponse carries the set of matching absolute paths,
// each directly usable as a subsequent FileRequest.file_path.
type DirectorySearchResponse struct {
	ResponderID PeerID   `json:"responder_id"`
	SearchID    string   `json:"search_id"`
	Matches     []string `json:"matches"`
}

func (DirectorySearchResponse) TokenType() string { return TokenTypeDirectorySearchResponse }

// FileRequest asks a peer to send the bytes of one path it advertised.
type FileRequest struct {
	RequesterID PeerID `json:"requester_id"`
	FilePath    string `json:"file_path"`
	RequestID   string `json:"request_id"`
}

func (FileRequest) TokenType() string { return TokenTypeFileRequest }

// FileResponse carries either base64 file bytes or an error message.
// Exactly one of FileData/Error is present.
type FileResponse struct {
	ResponderID PeerID  `json:"responder_id"`
	RequestID   string  `json:"request_id"`
	FileData    *string `json:"file_data,omitempty"` // base64
	Error       *string `json:"error,omitempty"`
}

func (FileResponse) TokenType() string { return TokenTypeFileResponse }

// InfoMessage carries free-form advisory content (e.g. cache advertisement).
type InfoMessage struct {
	SenderID  PeerID `json:"sender_id"`
	Content   string `json:"content"`
	MessageID string `json:"message_id"`
}

func (InfoMessage) TokenType() string { return TokenTypeInfoMessage }

// PerformanceTest requests a synthetic throughput/latency measurement.
type PerformanceTest struct {
	TesterID  PeerID `json:"tester_id"`
	TestType  string `json:"test_type"`
	DataSize  uint64 `json:"data_size"`
	StartTime int64  `json:"start_time"` // unix millis
}

func (PerformanceTest) TokenType() string { return TokenTypePerformanceTest }

// tokenEnvelope is the wire shape for a Token: a type tag and the
// type-specific body.
type tokenEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeToken serializes t to its wire JSON form.
func EncodeToken(t Token) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tokenEnvelope{Type: t.TokenType(), Data: data})
}

// DecodeToken parses the wire JSON form back into the concrete Token type.
func DecodeToken(raw []byte) (Token, error) {
	var env tokenEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case TokenTypeDirectorySearch:
		var t DirectorySearch
		return t, json.Unmarshal(env.Data, &t)
	case TokenTypeDirectorySearchResponse:
		var t DirectorySearchResponse
		return t, json.Unmarshal(env.Data, &t)
	case TokenTypeFileRequest:
		var t FileRequest
		return t, json.Unmarshal(env.Data, &t)
	case TokenTypeFileResponse:
		var t FileResponse
		return t, json.Unmarshal(env.Data, &t)
	case TokenTypeInfoMessage:
		var t InfoMessage
		return t, json.Unmarshal(env.Data, &t)
	case TokenTypePerformanceTest:
		var t PerformanceTest
		return t, json.Unmarshal(env.Data, &t)
	default:
		return nil, fmt.Errorf("wire: unknown token type %q", env.Type)
	}
}
