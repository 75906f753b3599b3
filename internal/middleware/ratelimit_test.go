package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/taskdeck/backend/ratelimit"
)

func mutatingRequest(userID string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	ctx.Request.SetRequestURI("/api/v1/users/" + userID + "/tasks")
	if userID != "" {
		ctx.Request.Header.Set("X-User-ID", userID)
	}
	return ctx
}

func TestUserRateLimitBlocksOverBudget(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{Budget: 2, Window: time.Hour})
	var handled int
	wrapped := UserRateLimit(limiter, nil)(func(ctx *fasthttp.RequestCtx) {
		handled++
		ctx.SetStatusCode(fasthttp.StatusOK)
	})

	for i := 0; i < 2; i++ {
		ctx := mutatingRequest("user-1")
		wrapped(ctx)
		require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	}
	require.Equal(t, 2, handled)

	ctx := mutatingRequest("user-1")
	wrapped(ctx)
	require.Equal(t, fasthttp.StatusTooManyRequests, ctx.Response.StatusCode())
	require.Equal(t, 2, handled)
	require.NotEmpty(t, ctx.Response.Header.Peek("Retry-After"))
	require.Equal(t, "2", string(ctx.Response.Header.Peek("X-RateLimit-Limit")))
	require.Equal(t, "0", string(ctx.Response.Header.Peek("X-RateLimit-Remaining")))
}

func TestUserRateLimitIgnoresReads(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{Budget: 1, Window: time.Hour})
	var handled int
	wrapped := UserRateLimit(limiter, nil)(func(ctx *fasthttp.RequestCtx) {
		handled++
		ctx.SetStatusCode(fasthttp.StatusOK)
	})

	for i := 0; i < 5; i++ {
		ctx := &fasthttp.RequestCtx{}
		ctx.Request.Header.SetMethod(fasthttp.MethodGet)
		ctx.Request.Header.Set("X-User-ID", "user-1")
		wrapped(ctx)
		require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	}
	require.Equal(t, 5, handled)
}

func TestUserRateLimitRequiresIdentity(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{Budget: 1, Window: time.Hour})
	wrapped := UserRateLimit(limiter, nil)(func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
	})

	ctx := mutatingRequest("")
	wrapped(ctx)
	require.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
}

func TestUserRateLimitKeysPerUser(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{Budget: 1, Window: time.Hour})
	wrapped := UserRateLimit(limiter, nil)(func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
	})

	ctx := mutatingRequest("user-1")
	wrapped(ctx)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	ctx = mutatingRequest("user-1")
	wrapped(ctx)
	require.Equal(t, fasthttp.StatusTooManyRequests, ctx.Response.StatusCode())

	ctx = mutatingRequest("user-2")
	wrapped(ctx)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}
