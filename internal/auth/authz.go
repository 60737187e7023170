package auth

import "github.com/iliyamo/secure-file-vault/internal/model"

// Permission decisions over already-fetched data. Pure functions, no I/O:
// callers load the record first and translate a false result into 403.

// CanToggleShare allows only the owner to flip a file's shared flag.
func CanToggleShare(id Identity, rec model.FileRecord) bool {
	return id.UserID == rec.UploadedBy
}

// CanDelete allows deletion for admins only.
func CanDelete(id Identity) bool {
	return id.IsAdmin()
}

// VisibleTo reports whether the caller may see a record: owners always,
// everyone else only when the file is shared.
func VisibleTo(id Identity, rec model.FileRecord) bool {
	if rec.UploadedBy == id.UserID {
		return true
	}
	return rec.Shared
}

// CanList allows a user to list their own files; admins may list anyone's.
func CanList(id Identity, ownerID uint64) bool {
	return id.UserID == ownerID || id.IsAdmin()
}
