package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/secure-file-vault/internal/middleware"
	"github.com/iliyamo/secure-file-vault/internal/repository"
	"github.com/iliyamo/secure-file-vault/internal/scanner"
	"github.com/iliyamo/secure-file-vault/internal/service"
	"github.com/iliyamo/secure-file-vault/internal/validate"
)

// FileHandler exposes the file lifecycle over HTTP. All decisions live in
// the service; this layer only binds requests and translates errors to
// status codes.
type FileHandler struct {
	Files *service.FileService
}

func NewFileHandler(svc *service.FileService) *FileHandler {
	return &FileHandler{Files: svc}
}

// scanTimeout bounds operations that include a malware scan round trip.
const scanTimeout = 60 * time.Second

// Upload accepts one multipart file, runs it through the lifecycle
// (validate, store, scan, commit) and acknowledges the committed record.
func (h *FileHandler) Upload(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no file uploaded"})
	}
	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "read upload failed"})
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(c.Request().Context(), scanTimeout)
	defer cancel()

	rec, err := h.Files.Upload(ctx, id, service.UploadInput{
		Filename: fh.Filename,
		Size:     fh.Size,
		Reader:   src,
	})
	if err != nil {
		return fileError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "file uploaded and scanned, no infection detected",
		"file_id": rec.ID,
	})
}

// List returns the files in a user's space, optionally including files
// shared by others (?shared=true).
func (h *FileHandler) List(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	includeShared := c.QueryParam("shared") == "true"

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	recs, err := h.Files.List(ctx, id, userID, includeShared)
	if err != nil {
		return fileError(c, err)
	}
	return c.JSON(http.StatusOK, recs)
}

// ToggleShare flips a file's shared flag; owner only.
func (h *FileHandler) ToggleShare(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	fileID, err := strconv.ParseUint(c.Param("fileId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid file id"})
	}
	var req struct {
		Shared *bool `json:"shared"`
	}
	if err := c.Bind(&req); err != nil || req.Shared == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "shared flag required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Files.ToggleShare(ctx, id, fileID, *req.Shared); err != nil {
		return fileError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "shared status updated successfully",
		"shared":  *req.Shared,
	})
}

// Download re-validates type and re-scans the stored blob before streaming
// it back as an attachment.
func (h *FileHandler) Download(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	fileID, err := strconv.ParseUint(c.Param("fileId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid file id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), scanTimeout)
	defer cancel()

	res, err := h.Files.Download(ctx, id, fileID)
	if err != nil {
		return fileError(c, err)
	}
	defer res.File.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, res.Record.OriginalFilename))
	return c.Stream(http.StatusOK, res.ContentType, res.File)
}

// Delete removes a file: blob first, then the metadata row. Admin only.
func (h *FileHandler) Delete(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	fileID, err := strconv.ParseUint(c.Param("fileId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid file id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Files.Delete(ctx, id, fileID); err != nil {
		return fileError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "file deleted successfully"})
}

// fileError translates lifecycle errors into stable statuses and
// machine-readable reasons. Internal store errors never leak their text.
func fileError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, validate.ErrUnsupportedType):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid file type, only JPEG, PNG and PDF files are allowed"})
	case errors.Is(err, validate.ErrTooLarge):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file exceeds the maximum allowed size"})
	case errors.Is(err, scanner.ErrInfected):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is infected and not allowed"})
	case errors.Is(err, scanner.ErrUnavailable):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file scan failed"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "file not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}
