package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	httpctx "proxystats/internal/http/ctx"
)

// RequestLogger returns fasthttp middleware that tags each request with an id
// and logs method, path, status, duration.
func RequestLogger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()

		id := string(ctx.Request.Header.Peek("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		httpctx.SetRequestID(ctx, id)
		httpctx.SetLogger(ctx, log.With().Str("request_id", id).Logger())
		ctx.Response.Header.Set("X-Request-ID", id)

		next(ctx)

		elapsed := time.Since(start)
		observeRequest(ctx, elapsed)

		l := httpctx.Logger(ctx)
		ev := l.Info()
		if ctx.Response.StatusCode() >= fasthttp.StatusInternalServerError {
			ev = l.Warn()
		}
		ev.Bytes("method", ctx.Method()).
			Bytes("path", ctx.Path()).
			Int("status", ctx.Response.StatusCode()).
			Dur("duration", elapsed).
			Str("ip", ctx.RemoteIP().String()).
			Msg("http request")
	}
}

func jsonResponse(ctx *fasthttp.RequestCtx, code int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		httpctx.Logger(ctx).Error().Err(err).Msg("failed to encode response")
		code = fasthttp.StatusInternalServerError
		body = []byte(`{"success":false,"error":"failed to encode response"}`)
	}
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, code int, msg string) {
	jsonResponse(ctx, code, map[string]any{"success": false, "error": msg})
}

// intArg reads a positive integer query argument, falling back to def when
// it is absent and clamping it to ceiling.
func intArg(ctx *fasthttp.RequestCtx, name string, def, ceiling int) (int, bool) {
	v := string(ctx.QueryArgs().Peek(name))
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > ceiling {
		n = ceiling
	}
	return n, true
}

// parseHours reads "hours" (float, e.g. 0.5 or 6) and returns the cutoff.
func parseHours(ctx *fasthttp.RequestCtx, now time.Time, def float64) (time.Time, bool) {
	hours := def
	if h := string(ctx.QueryArgs().Peek("hours")); h != "" {
		f, err := strconv.ParseFloat(h, 64)
		if err != nil || f <= 0 {
			return time.Time{}, false
		}
		hours = f
	}
	return now.Add(-time.Duration(hours * float64(time.Hour))), true
}

// dateArg reads a YYYY-MM-DD query argument.
func dateArg(ctx *fasthttp.RequestCtx, name string) (string, bool) {
	v := string(ctx.QueryArgs().Peek(name))
	if v == "" {
		return "", true
	}
	if _, err := time.Parse("2006-01-02", v); err != nil {
		return "", false
	}
	return v, true
}
