// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into an audit trail.
package queue

// Audit actions carried in FileEvent.Action.
const (
	ActionUploaded = "file.uploaded"
	ActionDeleted  = "file.deleted"
)

// FileEvent is published after a file's lifecycle changes durably: a
// committed upload or a completed delete. It carries enough information for
// downstream consumers to log or alert without querying the primary
// database.
type FileEvent struct {
	Action     string `json:"action"`
	FileID     uint64 `json:"file_id"`
	UserID     uint64 `json:"user_id"`
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	OccurredAt string `json:"occurred_at"`
}
