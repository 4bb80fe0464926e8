package ctx

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const (
	RequestIDKey = "requestID"
	LoggerKey    = "logger"
)

func SetRequestID(ctx *fasthttp.RequestCtx, id string) {
	ctx.SetUserValue(RequestIDKey, id)
}

func RequestIDFromCtx(ctx *fasthttp.RequestCtx) (string, bool) {
	v := ctx.UserValue(RequestIDKey)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func SetLogger(ctx *fasthttp.RequestCtx, l zerolog.Logger) {
	ctx.SetUserValue(LoggerKey, &l)
}

// Logger returns the request-scoped logger, or the global logger when none was set.
func Logger(ctx *fasthttp.RequestCtx) *zerolog.Logger {
	if l, ok := ctx.UserValue(LoggerKey).(*zerolog.Logger); ok {
		return l
	}
	return &log.Logger
}
