package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/secure-file-vault/internal/middleware"
)

// Summary returns the caller's storage aggregate: file count, bytes used
// and shared count, all zero-valued for an empty account.
func (h *FileHandler) Summary(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Files.Summary(ctx, id.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "error fetching summary data"})
	}
	return c.JSON(http.StatusOK, s)
}
