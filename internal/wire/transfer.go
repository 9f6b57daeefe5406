package wire

import "time"

// TransferStatus is the TransferTask state machine:
// Pending -> Transferring -> {Completed, Cancelled, Error}. Terminal
// states are sticky; Cancel refuses once a task reaches one.
type TransferStatus int

const (
	TransferPending TransferStatus = iota
	TransferTransferring
	TransferCompleted
	TransferCancelled
	TransferError
)

func (s TransferStatus) String() string {
	switch s {
	case TransferPending:
		return "Pending"
	case TransferTransferring:
		return "Transferring"
	case TransferCompleted:
		return "Completed"
	case TransferCancelled:
		return "Cancelled"
	case TransferError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Terminal reports whether s is a sticky end-state.
func (s TransferStatus) Terminal() bool {
	return s == TransferCompleted || s == TransferCancelled || s == TransferError
}

// TransferTask snapshots one file transfer's progress.
//
// Invariant: Transferred <= Total at every observation point. The task
// may represent either a local copy (source and target on the same
// host) or a remote-to-peer transfer; both share this status type but
// have distinct progress semantics (§9 open question) and are modeled as
// separate operations by their callers.
type TransferTask struct {
	ID         string         `json:"id"`
	SourcePath string         `json:"source_path"`
	TargetPath string         `json:"target_path"`
	Status     TransferStatus `json:"status"`
	Transferred uint64        `json:"transferred"`
	Total       uint64        `json:"total"`
	SpeedBPS    uint64         `json:"speed_bps"`
	StartedAt   time.Time      `json:"started_at"`
	ETA         *time.Duration `json:"eta,omitempty"`
	Err         string         `json:"error,omitempty"`
}
