package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/valyala/fasthttp"

	httpctx "proxystats/internal/http/ctx"
	"proxystats/internal/scheduler"
)

// Dispatcher runs a collection job synchronously.
type Dispatcher interface {
	Dispatch(ctx context.Context, id string) (scheduler.Result, error)
}

type triggerRequest struct {
	Type string `json:"type"`
}

// TriggerHandler runs the job named in the body ("daily" or "vehicle") and
// reports its result. The daily job always answers 200, with partial
// failures listed in result.errors.
func TriggerHandler(d Dispatcher) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var payload triggerRequest
		if err := json.Unmarshal(ctx.PostBody(), &payload); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if _, err := scheduler.ParseJob(payload.Type); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, `invalid trigger type, expected "daily" or "vehicle"`)
			return
		}

		logger := httpctx.Logger(ctx)
		logger.Info().Str("trigger_type", payload.Type).Msg("manual trigger")

		// The job runs under the dispatcher's deadline, not the connection's.
		res, err := d.Dispatch(context.Background(), payload.Type)
		if err != nil {
			logger.Error().Err(err).Str("trigger_type", payload.Type).Msg("manual trigger failed")
			var uj *scheduler.UnknownJobError
			if errors.As(err, &uj) {
				errResponse(ctx, fasthttp.StatusBadRequest, err.Error())
				return
			}
			errResponse(ctx, fasthttp.StatusInternalServerError, err.Error())
			return
		}

		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{
			"success":     true,
			"result":      res.Value(),
			"triggerType": payload.Type,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
