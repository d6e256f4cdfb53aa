package upload

// SessionStatus is the lifecycle state of a resumable upload session.
type SessionStatus int

const (
	// SessionActive means the session accepts further chunks.
	SessionActive SessionStatus = iota

	// SessionCompleted means the final chunk was accepted and the remote
	// item exists.
	SessionCompleted

	// SessionAborted means the session was cancelled and any partial
	// content released.
	SessionAborted
)

func (s SessionStatus) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionCompleted:
		return "completed"
	case SessionAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Session is the mutable state of one resumable transfer. It is owned
// exclusively by the Upload call that created it and is discarded when the
// transfer ends; it is never shared across goroutines.
type Session struct {
	// UploadURL is the session-scoped URL issued by the store.
	UploadURL string

	// TotalSize is the full size of the file being transferred.
	TotalSize int64

	// BytesConfirmed is the number of bytes the store has acknowledged.
	BytesConfirmed int64

	// NextOffset is where the next chunk starts. Updated from the store's
	// acknowledgment after every chunk, not from local accounting.
	NextOffset int64

	// Status is the session lifecycle state.
	Status SessionStatus
}
