// internal/adapter/probe/client.go
package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/GoArmGo/PhotoApp/internal/config"
	"github.com/GoArmGo/PhotoApp/internal/core/ports"
)

// HTTPProber проверяет доступность производных качеств по их публичному URL.
type HTTPProber struct {
	httpClient *http.Client // HTTP-клиент для выполнения запросов
	userAgent  string
	log        *slog.Logger
}

var _ ports.ReachabilityProber = (*HTTPProber)(nil)

// NewHTTPProber создает новый экземпляр HTTPProber.
func NewHTTPProber(cfg *config.Config, log *slog.Logger) *HTTPProber {
	return &HTTPProber{
		httpClient: &http.Client{Timeout: cfg.ProbeTimeout},
		userAgent:  cfg.ProbeUserAgent,
		log:        log,
	}
}

// Reachable выполняет GET по адресу и считает ресурс доступным при ответе 2xx.
// Любая ошибка запроса означает недоступность.
func (c *HTTPProber) Reachable(ctx context.Context, url string) bool {
	start := time.Now()
	status, err := c.fetchStatus(ctx, url)
	if err != nil {
		c.log.Debug("reachability probe failed", "url", url, "error", err)
		return false
	}

	c.log.Debug("reachability probe done", "url", url, "status", status, "duration_ms", time.Since(start).Milliseconds())
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

func (c *HTTPProber) fetchStatus(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания HTTP-запроса: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ошибка выполнения HTTP-запроса: %w", err)
	}
	defer resp.Body.Close() // Важно закрыть тело ответа

	// дочитываем немного тела, чтобы соединение вернулось в пул
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}
