package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/secure-file-vault/internal/model"
)

// FileRepo persists file metadata rows. It is deliberately dumb storage:
// ordering of blob writes versus row writes is the lifecycle service's job.
type FileRepo struct{ DB *sql.DB }

func NewFileRepo(db *sql.DB) *FileRepo { return &FileRepo{DB: db} }

const fileColumns = "id,original_filename,stored_filename,path,uploaded_by,size,shared,uploaded_at"

// Insert stores a new record and returns its ID.
func (r *FileRepo) Insert(ctx context.Context, rec model.FileRecord) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO files (original_filename, stored_filename, path, uploaded_by, size, shared) VALUES (?,?,?,?,?,?)",
		rec.OriginalFilename, rec.StoredFilename, rec.Path, rec.UploadedBy, rec.Size, rec.Shared)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Get fetches a record by id.
func (r *FileRepo) Get(ctx context.Context, id uint64) (model.FileRecord, error) {
	var rec model.FileRecord
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE id=? LIMIT 1", id).
		Scan(&rec.ID, &rec.OriginalFilename, &rec.StoredFilename, &rec.Path,
			&rec.UploadedBy, &rec.Size, &rec.Shared, &rec.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FileRecord{}, ErrNotFound
	}
	return rec, err
}

// ListFor returns the user's files ordered by upload time. With
// includeShared it returns the union of owned files and files shared by
// others; a single WHERE clause keeps the result free of duplicates.
func (r *FileRepo) ListFor(ctx context.Context, userID uint64, includeShared bool) ([]model.FileRecord, error) {
	query := "SELECT " + fileColumns + " FROM files WHERE uploaded_by=? ORDER BY uploaded_at, id"
	args := []any{userID}
	if includeShared {
		query = "SELECT " + fileColumns + " FROM files WHERE uploaded_by=? OR (shared=TRUE AND uploaded_by<>?) ORDER BY uploaded_at, id"
		args = []any{userID, userID}
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.FileRecord, 0)
	for rows.Next() {
		var rec model.FileRecord
		if err := rows.Scan(&rec.ID, &rec.OriginalFilename, &rec.StoredFilename, &rec.Path,
			&rec.UploadedBy, &rec.Size, &rec.Shared, &rec.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateShared sets the shared flag. MySQL reports zero affected rows both
// for a missing id and for an unchanged value, so a follow-up existence
// check keeps the NotFound contract honest.
func (r *FileRepo) UpdateShared(ctx context.Context, id uint64, shared bool) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE files SET shared=? WHERE id=?", shared, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	var one int
	err = r.DB.QueryRowContext(ctx, "SELECT 1 FROM files WHERE id=? LIMIT 1", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete removes a record by id.
func (r *FileRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM files WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Summary aggregates count, total size and shared count for a user's files
// in one query. COALESCE keeps the fields zero-valued when the user owns
// nothing.
func (r *FileRepo) Summary(ctx context.Context, userID uint64) (model.StorageSummary, error) {
	var s model.StorageSummary
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size),0), COALESCE(SUM(IF(shared,1,0)),0) FROM files WHERE uploaded_by=?`,
		userID).Scan(&s.UploadedFiles, &s.StorageUsed, &s.SharedFiles)
	return s, err
}
