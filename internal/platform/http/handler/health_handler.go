// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const checkTimeout = 2 * time.Second

// Check は依存先（ストアなど）の疎通を確認する関数です。
type Check func(ctx context.Context) error

// Health は /healthz エンドポイントのハンドラーを返します。
// 登録されたチェックがひとつでも失敗した場合は 503 を返します。キャッシュは常に防止します。
func Health(checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 明示的にキャッシュを防止
		c.Header("Cache-Control", "no-store")

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		results := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				slog.Warn("health check failed", "check", name, "error", err)
				results[name] = err.Error()
				status, code = "unavailable", http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		if c.Request.Method == http.MethodHead {
			c.Status(code)
			return
		}
		c.JSON(code, gin.H{"status": status, "checks": results})
	}
}
