package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"

	"github.com/adsight/adsight-api/internal/cache"
	apphttpx "github.com/adsight/adsight-api/internal/httpx"
)

// RateLimitHuma applies a fixed-window rate limit keyed by client IP and
// request path. Counters live behind the cache.Store abstraction so a
// multi-instance deployment can share them through Redis.
//
// The limiter is best-effort: a store failure lets the request through
// rather than turning cache outages into API outages.
func RateLimitHuma(store cache.Store, limit int64, window time.Duration, logger *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		r, _ := humachi.Unwrap(ctx)
		key := fmt.Sprintf("ratelimit:%s:%s", r.RemoteAddr, r.URL.Path)

		count, err := store.Incr(ctx.Context(), key, window)
		if err != nil {
			logger.Warn("rate limiter store unavailable, allowing request", "error", err)
			next(ctx)
			return
		}

		if count > limit {
			writeProblem(ctx, &apphttpx.Problem{
				Type:   "urn:problem:err-rate-limited",
				Title:  http.StatusText(http.StatusTooManyRequests),
				Status: http.StatusTooManyRequests,
				Detail: "too many requests, slow down",
				Code:   "ErrRateLimited",
			})
			return
		}
		next(ctx)
	}
}
