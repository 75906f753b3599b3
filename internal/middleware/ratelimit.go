package middleware

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskdeck/backend/api/transport"
	"github.com/taskdeck/backend/domain"
	"github.com/taskdeck/backend/ratelimit"
)

// UserRateLimit throttles mutating requests per authenticated user. Reads pass
// through untouched; the budget protects write paths only. Runs after JWTAuth
// so the X-User-ID header is trustworthy.
func UserRateLimit(limiter ratelimit.Limiter, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if limiter == nil || !isMutating(ctx) {
				next(ctx)
				return
			}

			userID := string(ctx.Request.Header.Peek("X-User-ID"))
			if userID == "" {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			result, err := limiter.Allow(ctx, userID)
			if err != nil {
				// The limiter store being down must not take writes down
				// with it; admit and log.
				logger.Warn("rate limiter unavailable, admitting request", zap.Error(err))
				next(ctx)
				return
			}

			ctx.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			ctx.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			if !result.Allowed {
				rlErr := domain.NewRateLimitError(result.RetryAfter)
				seconds := int(math.Ceil(rlErr.RetryAfter.Seconds()))
				ctx.Response.Header.Set("Retry-After", strconv.Itoa(seconds))
				ctx.Response.Header.SetContentType("application/json")
				ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
				body, _ := json.Marshal(transport.NewError(
					string(domain.ErrCodeRateLimited),
					rlErr.Message,
					transport.ErrorMeta{RetryAfterSeconds: seconds},
				))
				ctx.SetBody(body)
				return
			}

			next(ctx)
		}
	}
}

func isMutating(ctx *fasthttp.RequestCtx) bool {
	switch string(ctx.Method()) {
	case fasthttp.MethodPost, fasthttp.MethodPut, fasthttp.MethodPatch, fasthttp.MethodDelete:
		return true
	}
	return false
}
