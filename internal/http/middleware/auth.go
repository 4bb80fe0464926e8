package middleware

import (
	"bytes"
	"crypto/subtle"

	"github.com/valyala/fasthttp"

	httpctx "proxystats/internal/http/ctx"
)

// BearerSecret rejects requests whose Bearer token does not match secret.
// An empty secret lets every request through.
func BearerSecret(secret string) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		if secret == "" {
			return next
		}
		return func(ctx *fasthttp.RequestCtx) {
			auth := ctx.Request.Header.Peek("Authorization")
			if len(auth) == 0 {
				unauthorized(ctx, "missing Authorization header")
				return
			}

			const prefix = "Bearer "
			if !bytes.HasPrefix(auth, []byte(prefix)) {
				unauthorized(ctx, "invalid Authorization header")
				return
			}

			token := bytes.TrimSpace(auth[len(prefix):])
			if subtle.ConstantTimeCompare(token, []byte(secret)) != 1 {
				httpctx.Logger(ctx).Warn().Str("ip", ctx.RemoteIP().String()).Msg("rejected trigger secret")
				unauthorized(ctx, "invalid bearer token")
				return
			}
			next(ctx)
		}
	}
}

func unauthorized(ctx *fasthttp.RequestCtx, msg string) {
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"success":false,"error":"` + msg + `"}`)
}
