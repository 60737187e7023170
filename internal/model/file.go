package model

import "time"

// FileRecord mirrors the 'files' table: the metadata half of an uploaded
// file. The blob half lives in the upload directory under StoredFilename and
// Path must reference it for as long as the row exists. Rows are inserted
// only after the blob is durably stored and has passed a malware scan.
type FileRecord struct {
	ID               uint64    `json:"id"`                // files.id
	OriginalFilename string    `json:"original_filename"` // name supplied by the uploader
	StoredFilename   string    `json:"stored_filename"`   // opaque, collision-resistant on-disk name
	Path             string    `json:"path"`              // relative blob path, e.g. "uploads/<stored>"
	UploadedBy       uint64    `json:"uploaded_by"`       // owner, FK to users.id
	Size             int64     `json:"size"`              // payload length in bytes
	Shared           bool      `json:"shared"`            // visible to non-owners when true
	UploadedAt       time.Time `json:"uploaded_at"`       // files.uploaded_at
}

// StorageSummary is the read-aggregate behind the dashboard: totals over the
// files a single user owns. All fields are zero (never null) for users with
// no uploads.
type StorageSummary struct {
	UploadedFiles int64 `json:"uploadedFiles"`
	StorageUsed   int64 `json:"storageUsed"`
	SharedFiles   int64 `json:"sharedFiles"`
}
