package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/service"
)

// Health returns a JSON health check response with the published version.
// Checks DB and Redis connectivity; never exposes credentials or internals.
func Health(db *gorm.DB, rdb *redis.Client, versions service.VersionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		resp := dto.HealthResponse{Status: "ok", DB: "connected", Redis: "connected"}

		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			resp.DB = "error"
		}
		if rdb == nil || rdb.Ping(ctx).Err() != nil {
			resp.Redis = "error"
		}
		if resp.DB == "connected" {
			if v, err := versions.Latest(ctx); err == nil {
				resp.LatestVersion = v.NumeroVersion
			}
		}

		status := http.StatusOK
		if resp.DB != "connected" || resp.Redis != "connected" {
			status = http.StatusServiceUnavailable
			resp.Status = "degraded"
		}
		c.JSON(status, resp)
	}
}
