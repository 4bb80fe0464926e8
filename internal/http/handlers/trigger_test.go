package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"proxystats/internal/collector"
	"proxystats/internal/scheduler"
)

type fakeDispatcher struct {
	calls []string
	res   scheduler.Result
	err   error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, id string) (scheduler.Result, error) {
	f.calls = append(f.calls, id)
	return f.res, f.err
}

func doRequest(t *testing.T, h fasthttp.RequestHandler, method, uri, body string) (*fasthttp.RequestCtx, map[string]any) {
	t.Helper()
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	h(&ctx)

	var out map[string]any
	if b := ctx.Response.Body(); len(b) > 0 && string(ctx.Response.Header.ContentType()) == "application/json" {
		require.NoError(t, json.Unmarshal(b, &out))
	}
	return &ctx, out
}

func TestTriggerDaily(t *testing.T) {
	d := &fakeDispatcher{res: scheduler.Result{
		Job: scheduler.JobDaily,
		Daily: &collector.DailyResult{
			User:      &collector.TaskResult{Success: true, RecordsCount: 3, DataDate: "2024-03-14"},
			Errors:    []string{"system_stats: fetch /hourly-stats failed after 4 attempt(s): unexpected status 500"},
			Succeeded: 2,
			Total:     3,
		},
	}}

	ctx, out := doRequest(t, TriggerHandler(d), fasthttp.MethodPost, "/api/cron/trigger", `{"type":"daily"}`)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, []string{"daily"}, d.calls)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "daily", out["triggerType"])
	assert.NotEmpty(t, out["timestamp"])

	result, ok := out["result"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, result["errors"], 1)
	assert.Nil(t, result["system"])
	assert.EqualValues(t, 2, result["succeeded"])
}

func TestTriggerVehicle(t *testing.T) {
	d := &fakeDispatcher{res: scheduler.Result{
		Job:     scheduler.JobVehicle,
		Vehicle: &collector.TaskResult{Success: true, RecordsCount: 12},
	}}

	ctx, out := doRequest(t, TriggerHandler(d), fasthttp.MethodPost, "/api/cron/trigger", `{"type":"vehicle"}`)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	result := out["result"].(map[string]any)
	assert.EqualValues(t, 12, result["recordsCount"])
}

func TestTriggerBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"type":`},
		{"empty body", ``},
		{"missing type", `{}`},
		{"unknown type", `{"type":"weekly"}`},
		{"wrong case", `{"type":"Daily"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{}
			ctx, out := doRequest(t, TriggerHandler(d), fasthttp.MethodPost, "/api/cron/trigger", tt.body)
			assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
			assert.Equal(t, false, out["success"])
			assert.NotEmpty(t, out["error"])
			assert.Empty(t, d.calls)
		})
	}
}

func TestTriggerExecutionFailure(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("fetch /vehicle-stats failed after 4 attempt(s): timeout")}

	ctx, out := doRequest(t, TriggerHandler(d), fasthttp.MethodPost, "/api/cron/trigger", `{"type":"vehicle"}`)
	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "timeout")
}
