package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/secure-file-vault/internal/auth"
	"github.com/iliyamo/secure-file-vault/internal/model"
	"github.com/iliyamo/secure-file-vault/internal/queue"
	"github.com/iliyamo/secure-file-vault/internal/repository"
	"github.com/iliyamo/secure-file-vault/internal/scanner"
	"github.com/iliyamo/secure-file-vault/internal/storage"
	"github.com/iliyamo/secure-file-vault/internal/validate"
)

var (
	owner    = auth.Identity{UserID: 1, Role: model.RoleUser}
	stranger = auth.Identity{UserID: 2, Role: model.RoleUser}
	admin    = auth.Identity{UserID: 9, Role: model.RoleAdmin}
)

func pdfBytes(n int) []byte {
	head := []byte("%PDF-1.4\n")
	if n <= len(head) {
		return head
	}
	return append(head, bytes.Repeat([]byte{'x'}, n-len(head))...)
}

// fakeRepo is an in-memory MetadataStore.
type fakeRepo struct {
	mu        sync.Mutex
	nextID    uint64
	recs      map[uint64]model.FileRecord
	insertErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{recs: make(map[uint64]model.FileRecord)}
}

func (r *fakeRepo) Insert(_ context.Context, rec model.FileRecord) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return 0, r.insertErr
	}
	r.nextID++
	rec.ID = r.nextID
	r.recs[rec.ID] = rec
	return rec.ID, nil
}

func (r *fakeRepo) Get(_ context.Context, id uint64) (model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return model.FileRecord{}, repository.ErrNotFound
	}
	return rec, nil
}

func (r *fakeRepo) ListFor(_ context.Context, userID uint64, includeShared bool) ([]model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.FileRecord, 0)
	for _, rec := range r.recs {
		if rec.UploadedBy == userID || (includeShared && rec.Shared) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateShared(_ context.Context, id uint64, shared bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Shared = shared
	r.recs[id] = rec
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.recs, id)
	return nil
}

func (r *fakeRepo) Summary(_ context.Context, userID uint64) (model.StorageSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s model.StorageSummary
	for _, rec := range r.recs {
		if rec.UploadedBy != userID {
			continue
		}
		s.UploadedFiles++
		s.StorageUsed += rec.Size
		if rec.Shared {
			s.SharedFiles++
		}
	}
	return s, nil
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

// fakeScanner returns a fixed verdict and counts calls.
type fakeScanner struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeScanner) Scan(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

// failingBlobs wraps a real store so Remove can be forced to fail.
type failingBlobs struct {
	*storage.Store
	removeErr error
}

func (f *failingBlobs) Remove(p string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.Store.Remove(p)
}

// fakePublisher records audit events.
type fakePublisher struct {
	mu     sync.Mutex
	events []queue.FileEvent
}

func (p *fakePublisher) Publish(_ context.Context, ev queue.FileEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type fixture struct {
	svc    *FileService
	repo   *fakeRepo
	scan   *fakeScanner
	pub   *fakePublisher
	blobs *failingBlobs
	dir   string
}

func newFixture(t *testing.T, maxBytes int64) *fixture {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := storage.New(dir)
	require.NoError(t, err)

	fx := &fixture{
		repo:  newFakeRepo(),
		scan:  &fakeScanner{},
		pub:   &fakePublisher{},
		blobs: &failingBlobs{Store: store},
		dir:   dir,
	}
	fx.svc = NewFileService(fx.repo, fx.blobs, fx.scan, fx.pub, true, maxBytes)
	return fx
}

func (fx *fixture) blobCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(fx.dir)
	require.NoError(t, err)
	return len(entries)
}

func (fx *fixture) upload(t *testing.T, who auth.Identity, name string, payload []byte) (model.FileRecord, error) {
	t.Helper()
	return fx.svc.Upload(context.Background(), who, UploadInput{
		Filename: name,
		Size:     int64(len(payload)),
		Reader:   bytes.NewReader(payload),
	})
}

func TestUpload_Commits(t *testing.T) {
	fx := newFixture(t, 0)
	payload := pdfBytes(2_000_000)

	rec, err := fx.upload(t, owner, "report.pdf", payload)
	require.NoError(t, err)
	require.NotZero(t, rec.ID)
	require.Equal(t, int64(len(payload)), rec.Size)
	require.True(t, rec.Shared, "share-by-default enabled in fixture")

	// The recorded path resolves to a readable blob of exactly the uploaded
	// length.
	got, err := os.ReadFile(fx.blobs.FullPath(rec.Path))
	require.NoError(t, err)
	require.Equal(t, payload, got)

	// Summary reflects the commit.
	s, err := fx.svc.Summary(context.Background(), owner.UserID)
	require.NoError(t, err)
	require.Equal(t, int64(1), s.UploadedFiles)
	require.GreaterOrEqual(t, s.StorageUsed, int64(2_000_000))
	require.Equal(t, int64(1), s.SharedFiles)

	// Audit event emitted.
	require.Len(t, fx.pub.events, 1)
	require.Equal(t, queue.ActionUploaded, fx.pub.events[0].Action)
}

func TestUpload_ShareDefaultOff(t *testing.T) {
	fx := newFixture(t, 0)
	fx.svc = NewFileService(fx.repo, fx.blobs, fx.scan, nil, false, 0)

	rec, err := fx.upload(t, owner, "a.pdf", pdfBytes(100))
	require.NoError(t, err)
	require.False(t, rec.Shared)
}

func TestUpload_RejectsUnsupportedType(t *testing.T) {
	fx := newFixture(t, 0)
	_, err := fx.upload(t, owner, "tool.exe", []byte("MZ..."))
	require.ErrorIs(t, err, validate.ErrUnsupportedType)

	require.Zero(t, fx.blobCount(t), "no blob may survive a rejected upload")
	require.Zero(t, fx.repo.count(), "no row may survive a rejected upload")
	require.Zero(t, fx.scan.calls, "nothing to scan when validation fails")
}

func TestUpload_RejectsSpoofedContent(t *testing.T) {
	fx := newFixture(t, 0)
	elf := append([]byte("\x7fELF"), bytes.Repeat([]byte{0}, 600)...)
	_, err := fx.upload(t, owner, "innocent.pdf", elf)
	require.ErrorIs(t, err, validate.ErrUnsupportedType)
	require.Zero(t, fx.blobCount(t))
}

func TestUpload_RejectsDeclaredOversize(t *testing.T) {
	fx := newFixture(t, 1024)
	_, err := fx.svc.Upload(context.Background(), owner, UploadInput{
		Filename: "big.pdf",
		Size:     2048,
		Reader:   bytes.NewReader(pdfBytes(10)),
	})
	require.ErrorIs(t, err, validate.ErrTooLarge)
	require.Zero(t, fx.blobCount(t))
	require.Zero(t, fx.repo.count())
}

func TestUpload_RejectsUnderdeclaredStream(t *testing.T) {
	// The declared size lies; the actual stream exceeds the cap. The blob is
	// written, detected oversize, and cleaned up.
	fx := newFixture(t, 600)
	_, err := fx.svc.Upload(context.Background(), owner, UploadInput{
		Filename: "sneaky.pdf",
		Size:     100,
		Reader:   bytes.NewReader(pdfBytes(5000)),
	})
	require.ErrorIs(t, err, validate.ErrTooLarge)
	require.Zero(t, fx.blobCount(t))
	require.Zero(t, fx.repo.count())
}

func TestUpload_InfectedRemovesBlob(t *testing.T) {
	fx := newFixture(t, 0)
	fx.scan.err = scanner.ErrInfected

	_, err := fx.upload(t, owner, "virus.pdf", pdfBytes(200))
	require.ErrorIs(t, err, scanner.ErrInfected)
	require.Zero(t, fx.blobCount(t), "infected blob must be removed within the same request")
	require.Zero(t, fx.repo.count())
}

func TestUpload_ScanFailureRejects(t *testing.T) {
	// An unreachable scanner is a rejection, never a clean pass.
	fx := newFixture(t, 0)
	fx.scan.err = fmt.Errorf("%w: connection refused", scanner.ErrUnavailable)

	_, err := fx.upload(t, owner, "doc.pdf", pdfBytes(200))
	require.ErrorIs(t, err, scanner.ErrUnavailable)
	require.Zero(t, fx.blobCount(t))
	require.Zero(t, fx.repo.count())
}

func TestUpload_InsertFailureRemovesBlob(t *testing.T) {
	fx := newFixture(t, 0)
	fx.repo.insertErr = errors.New("connection lost")

	_, err := fx.upload(t, owner, "doc.pdf", pdfBytes(200))
	require.Error(t, err)
	require.Zero(t, fx.blobCount(t), "blob must not outlive a failed metadata insert")
}

func TestUpload_ConcurrentSameUser(t *testing.T) {
	fx := newFixture(t, 0)
	const n = 8

	var wg sync.WaitGroup
	paths := make([]string, n)
	errs := make([]error, n)
	payload := pdfBytes(64)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := fx.svc.Upload(context.Background(), owner, UploadInput{
				Filename: "same-name.pdf",
				Size:     int64(len(payload)),
				Reader:   bytes.NewReader(payload),
			})
			paths[i], errs[i] = rec.Path, err
		}(i)
	}
	wg.Wait()
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}

	seen := make(map[string]struct{}, n)
	for _, p := range paths {
		_, dup := seen[p]
		require.False(t, dup, "two uploads shared a stored path: %s", p)
		seen[p] = struct{}{}
	}
	require.Equal(t, n, fx.repo.count())
	require.Equal(t, n, fx.blobCount(t))
}

func TestDownload_OwnerAndVisibility(t *testing.T) {
	fx := newFixture(t, 0)
	rec, err := fx.upload(t, owner, "doc.pdf", pdfBytes(300))
	require.NoError(t, err)

	// Owner downloads their own file.
	res, err := fx.svc.Download(context.Background(), owner, rec.ID)
	require.NoError(t, err)
	res.File.Close()
	require.Equal(t, "application/pdf", res.ContentType)

	// Shared file is visible to strangers.
	res, err = fx.svc.Download(context.Background(), stranger, rec.ID)
	require.NoError(t, err)
	res.File.Close()

	// Unshared file is not.
	require.NoError(t, fx.svc.ToggleShare(context.Background(), owner, rec.ID, false))
	_, err = fx.svc.Download(context.Background(), stranger, rec.ID)
	require.ErrorIs(t, err, repository.ErrForbidden)
}

func TestDownload_RescansBeforeStreaming(t *testing.T) {
	fx := newFixture(t, 0)
	rec, err := fx.upload(t, owner, "doc.pdf", pdfBytes(300))
	require.NoError(t, err)

	// A rule added after upload now flags the stored blob.
	fx.scan.err = scanner.ErrInfected
	_, err = fx.svc.Download(context.Background(), owner, rec.ID)
	require.ErrorIs(t, err, scanner.ErrInfected)
}

func TestDownload_UnknownID(t *testing.T) {
	fx := newFixture(t, 0)
	_, err := fx.svc.Download(context.Background(), owner, 404)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDelete_AdminOnly(t *testing.T) {
	fx := newFixture(t, 0)
	rec, err := fx.upload(t, owner, "doc.pdf", pdfBytes(100))
	require.NoError(t, err)

	// The owner is not an admin; the record stays retrievable.
	err = fx.svc.Delete(context.Background(), owner, rec.ID)
	require.ErrorIs(t, err, repository.ErrForbidden)
	_, err = fx.repo.Get(context.Background(), rec.ID)
	require.NoError(t, err)

	// Admin deletes blob and row; a second delete is NotFound.
	require.NoError(t, fx.svc.Delete(context.Background(), admin, rec.ID))
	require.Zero(t, fx.blobCount(t))
	require.Zero(t, fx.repo.count())
	require.ErrorIs(t, fx.svc.Delete(context.Background(), admin, rec.ID), repository.ErrNotFound)
}

func TestDelete_BlobFailureKeepsRow(t *testing.T) {
	fx := newFixture(t, 0)
	rec, err := fx.upload(t, owner, "doc.pdf", pdfBytes(100))
	require.NoError(t, err)

	// A real I/O failure (not "already absent") must abort before the row is
	// touched; otherwise a row would claim a blob nobody can prove is gone.
	fx.blobs.removeErr = errors.New("device error")
	require.Error(t, fx.svc.Delete(context.Background(), admin, rec.ID))
	_, err = fx.repo.Get(context.Background(), rec.ID)
	require.NoError(t, err, "row must survive a failed blob delete")
}

func TestDelete_ToleratesAbsentBlob(t *testing.T) {
	fx := newFixture(t, 0)
	rec, err := fx.upload(t, owner, "doc.pdf", pdfBytes(100))
	require.NoError(t, err)

	// Blob vanished out of band; delete still converges by removing the row.
	require.NoError(t, fx.blobs.Store.Remove(rec.Path))
	require.NoError(t, fx.svc.Delete(context.Background(), admin, rec.ID))
	require.Zero(t, fx.repo.count())
}

func TestToggleShare_OwnerOnly(t *testing.T) {
	fx := newFixture(t, 0)
	rec, err := fx.upload(t, owner, "doc.pdf", pdfBytes(100))
	require.NoError(t, err)

	err = fx.svc.ToggleShare(context.Background(), stranger, rec.ID, false)
	require.ErrorIs(t, err, repository.ErrForbidden)
	got, _ := fx.repo.Get(context.Background(), rec.ID)
	require.True(t, got.Shared, "denied toggle must leave the record unchanged")

	require.NoError(t, fx.svc.ToggleShare(context.Background(), owner, rec.ID, false))
	got, _ = fx.repo.Get(context.Background(), rec.ID)
	require.False(t, got.Shared)
}

func TestList_Authorization(t *testing.T) {
	fx := newFixture(t, 0)
	_, err := fx.upload(t, owner, "doc.pdf", pdfBytes(100))
	require.NoError(t, err)

	_, err = fx.svc.List(context.Background(), stranger, owner.UserID, true)
	require.ErrorIs(t, err, repository.ErrForbidden)

	recs, err := fx.svc.List(context.Background(), owner, owner.UserID, false)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	recs, err = fx.svc.List(context.Background(), admin, owner.UserID, false)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}
