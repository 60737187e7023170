package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/secure-file-vault/internal/config"
	"github.com/iliyamo/secure-file-vault/internal/handler"
	"github.com/iliyamo/secure-file-vault/internal/middleware"
	"github.com/iliyamo/secure-file-vault/internal/model"
)

// RegisterRoutes wires the whole HTTP surface. The credential endpoints sit
// behind the Redis rate limiter; everything touching files requires a valid
// bearer token, and deletion additionally requires the admin role.
func RegisterRoutes(e *echo.Echo, a *handler.AuthHandler, f *handler.FileHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	limited := middleware.NewTokenBucket(rlCfg, rdb)
	e.POST("/signup", a.Signup, limited)
	e.POST("/login", a.Login, limited)

	auth := e.Group("", middleware.JWTAuth(jwtSecret))
	auth.POST("/upload", f.Upload)
	auth.GET("/dashboard/summary", f.Summary)
	auth.GET("/userinfo", a.UserInfo)
	auth.GET("/files/:userId", f.List)
	auth.PUT("/files/toggleShare/:fileId", f.ToggleShare)
	auth.GET("/download/:fileId", f.Download)
	auth.DELETE("/files/:fileId", f.Delete, middleware.RequireRole(model.RoleAdmin))
}
