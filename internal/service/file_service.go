// Package service contains the file lifecycle manager: the one component
// that sequences validation, scanning and the two stores so that a failure
// at any step leaves no orphaned state behind.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/iliyamo/secure-file-vault/internal/auth"
	"github.com/iliyamo/secure-file-vault/internal/model"
	"github.com/iliyamo/secure-file-vault/internal/queue"
	"github.com/iliyamo/secure-file-vault/internal/repository"
	"github.com/iliyamo/secure-file-vault/internal/storage"
	"github.com/iliyamo/secure-file-vault/internal/validate"
)

// MetadataStore is the slice of the file repository the lifecycle needs.
type MetadataStore interface {
	Insert(ctx context.Context, rec model.FileRecord) (uint64, error)
	Get(ctx context.Context, id uint64) (model.FileRecord, error)
	ListFor(ctx context.Context, userID uint64, includeShared bool) ([]model.FileRecord, error)
	UpdateShared(ctx context.Context, id uint64, shared bool) error
	Delete(ctx context.Context, id uint64) error
	Summary(ctx context.Context, userID uint64) (model.StorageSummary, error)
}

// BlobStore is the slice of the blob store the lifecycle needs.
type BlobStore interface {
	Save(r io.Reader, originalName string) (storage.SaveResult, error)
	Open(relPath string) (*os.File, error)
	Remove(relPath string) error
	FullPath(relPath string) string
}

// Scanner submits a stored blob to malware detection. A nil return is the
// only clean verdict; scanner.ErrInfected and transport errors both reject.
type Scanner interface {
	Scan(ctx context.Context, filePath string) error
}

// Publisher emits audit events. May be nil to disable auditing.
type Publisher interface {
	Publish(ctx context.Context, ev queue.FileEvent) error
}

// FileService orchestrates uploads, downloads, sharing and deletion over
// explicitly injected stores. It holds no ambient globals; everything it
// touches arrives through the constructor.
type FileService struct {
	files        MetadataStore
	blobs        BlobStore
	scan         Scanner
	events       Publisher
	shareDefault bool
	maxBytes     int64
}

func NewFileService(files MetadataStore, blobs BlobStore, scan Scanner, events Publisher, shareDefault bool, maxBytes int64) *FileService {
	if maxBytes <= 0 {
		maxBytes = validate.MaxUploadBytes
	}
	return &FileService{
		files:        files,
		blobs:        blobs,
		scan:         scan,
		events:       events,
		shareDefault: shareDefault,
		maxBytes:     maxBytes,
	}
}

// UploadInput is one incoming payload. Size is the declared length from the
// multipart part; the stream itself is still capped independently.
type UploadInput struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// Upload runs the full intake sequence: validate -> persist blob -> scan ->
// commit metadata. Validation failures happen before any durable write;
// failures after the blob write trigger compensating deletion of the blob,
// so a rejected upload never leaves a blob or a row behind.
func (s *FileService) Upload(ctx context.Context, owner auth.Identity, in UploadInput) (model.FileRecord, error) {
	contentType, err := validate.CheckType(in.Filename)
	if err != nil {
		return model.FileRecord{}, err
	}
	if err := validate.CheckSize(in.Size, s.maxBytes); err != nil {
		return model.FileRecord{}, err
	}

	// Sniff the head before touching disk so a renamed binary is rejected
	// with zero bytes written.
	head := make([]byte, 512)
	n, err := io.ReadFull(in.Reader, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return model.FileRecord{}, fmt.Errorf("read payload: %w", err)
	}
	if err := validate.CheckContent(head[:n], contentType); err != nil {
		return model.FileRecord{}, err
	}

	// Cap the stream one byte past the limit; a lying declared size cannot
	// smuggle extra bytes past CheckSize.
	body := io.MultiReader(bytes.NewReader(head[:n]), in.Reader)
	res, err := s.blobs.Save(io.LimitReader(body, s.maxBytes+1), in.Filename)
	if err != nil {
		return model.FileRecord{}, fmt.Errorf("store blob: %w", err)
	}
	if res.Size > s.maxBytes {
		s.cleanupBlob(res.Path)
		return model.FileRecord{}, validate.ErrTooLarge
	}

	// Scan the durably stored bytes. Infected and unreachable both reject;
	// a scanner outage never falls open to clean.
	if err := s.scan.Scan(ctx, s.blobs.FullPath(res.Path)); err != nil {
		s.cleanupBlob(res.Path)
		return model.FileRecord{}, err
	}

	rec := model.FileRecord{
		OriginalFilename: in.Filename,
		StoredFilename:   res.StoredName,
		Path:             res.Path,
		UploadedBy:       owner.UserID,
		Size:             res.Size,
		Shared:           s.shareDefault,
		UploadedAt:       time.Now().UTC(),
	}
	id, err := s.files.Insert(ctx, rec)
	if err != nil {
		s.cleanupBlob(res.Path)
		return model.FileRecord{}, fmt.Errorf("save metadata: %w", err)
	}
	rec.ID = id

	s.publish(ctx, queue.FileEvent{
		Action: queue.ActionUploaded, FileID: id, UserID: owner.UserID,
		Filename: rec.OriginalFilename, Size: rec.Size,
	})
	return rec, nil
}

// DownloadResult bundles an authorized, re-scanned blob ready to stream.
// The caller closes File.
type DownloadResult struct {
	Record      model.FileRecord
	File        *os.File
	ContentType string
}

// Download fetches metadata, checks visibility, then re-runs the type check
// and the malware scan against the stored blob before handing it out. The
// re-scan defends against blobs written before a newer scanner rule existed.
func (s *FileService) Download(ctx context.Context, requester auth.Identity, fileID uint64) (DownloadResult, error) {
	rec, err := s.files.Get(ctx, fileID)
	if err != nil {
		return DownloadResult{}, err
	}
	if !auth.VisibleTo(requester, rec) {
		return DownloadResult{}, repository.ErrForbidden
	}
	contentType, err := validate.CheckType(rec.OriginalFilename)
	if err != nil {
		return DownloadResult{}, err
	}
	if err := s.scan.Scan(ctx, s.blobs.FullPath(rec.Path)); err != nil {
		return DownloadResult{}, err
	}
	f, err := s.blobs.Open(rec.Path)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return DownloadResult{}, repository.ErrNotFound
		}
		return DownloadResult{}, err
	}
	return DownloadResult{Record: rec, File: f, ContentType: contentType}, nil
}

// Delete removes the blob first and the row second. A row pointing at a
// dead blob is a correctness hazard for readers; an orphaned blob is merely
// garbage. An already-absent blob counts as removed, but any other blob
// error aborts before the row is touched.
func (s *FileService) Delete(ctx context.Context, requester auth.Identity, fileID uint64) error {
	if !auth.CanDelete(requester) {
		return repository.ErrForbidden
	}
	rec, err := s.files.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.blobs.Remove(rec.Path); err != nil && !errors.Is(err, storage.ErrNotExist) {
		return fmt.Errorf("remove blob: %w", err)
	}
	if err := s.files.Delete(ctx, fileID); err != nil {
		return err
	}
	s.publish(ctx, queue.FileEvent{
		Action: queue.ActionDeleted, FileID: fileID, UserID: requester.UserID,
		Filename: rec.OriginalFilename, Size: rec.Size,
	})
	return nil
}

// ToggleShare flips the shared flag; only the owner may do so.
func (s *FileService) ToggleShare(ctx context.Context, requester auth.Identity, fileID uint64, shared bool) error {
	rec, err := s.files.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if !auth.CanToggleShare(requester, rec) {
		return repository.ErrForbidden
	}
	return s.files.UpdateShared(ctx, fileID, shared)
}

// List returns the files visible to a listing of ownerID's space. Users may
// list only their own; admins may list anyone's.
func (s *FileService) List(ctx context.Context, requester auth.Identity, ownerID uint64, includeShared bool) ([]model.FileRecord, error) {
	if !auth.CanList(requester, ownerID) {
		return nil, repository.ErrForbidden
	}
	return s.files.ListFor(ctx, ownerID, includeShared)
}

// Summary aggregates the requester's own storage usage.
func (s *FileService) Summary(ctx context.Context, userID uint64) (model.StorageSummary, error) {
	return s.files.Summary(ctx, userID)
}

// cleanupBlob is the compensating action after a post-write failure. Its
// own failure is logged but never changes the already-determined response.
func (s *FileService) cleanupBlob(relPath string) {
	if err := s.blobs.Remove(relPath); err != nil && !errors.Is(err, storage.ErrNotExist) {
		log.Printf("file-service: cleanup of blob %s failed: %v", relPath, err)
	}
}

func (s *FileService) publish(ctx context.Context, ev queue.FileEvent) {
	if s.events == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	_ = s.events.Publish(ctx, ev)
}
