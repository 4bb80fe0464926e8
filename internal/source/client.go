package source

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const (
	EndpointUserStats    = "/user-stats"
	EndpointVehicleStats = "/vehicle-stats"
	EndpointHourlyStats  = "/hourly-stats"

	// maxErrorBody bounds how much of a failed response body ends up in errors.
	maxErrorBody = 256
)

// AttemptObserver is notified after every HTTP attempt. err is nil on success.
type AttemptObserver func(endpoint string, attempt int, err error)

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// RetryDelay is the base of the linear backoff: the wait before retry n is RetryDelay*n.
	RetryDelay time.Duration

	Observer AttemptObserver
}

// Client fetches snapshots from the proxy statistics API.
type Client struct {
	opts Options
	http *fasthttp.Client
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Client{
		opts: opts,
		http: &fasthttp.Client{
			Name:                "proxystats-collector",
			MaxIdleConnDuration: time.Minute,
		},
	}
}

// linearBackOff waits base, 2*base, 3*base, ... between attempts.
type linearBackOff struct {
	base    time.Duration
	retries int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.retries++
	return b.base * time.Duration(b.retries)
}

func (b *linearBackOff) Reset() {
	b.retries = 0
}

// FetchJSON GETs endpoint (a path relative to the base URL) with the given
// query and decodes the JSON body into out. Non-2xx statuses and transport
// failures are retried up to MaxRetries times with linear backoff; the last
// failure is returned inside a *FetchError. Decode failures are returned as
// *DecodeError without retrying.
func (c *Client) FetchJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	uri := c.opts.BaseURL + endpoint
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}

	var body []byte
	attempts := 0
	op := func() error {
		attempts++
		b, err := c.get(ctx, uri)
		if c.opts.Observer != nil {
			c.opts.Observer(endpoint, attempts, err)
		}
		if err != nil {
			log.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempts).Msg("fetch attempt failed")
			return err
		}
		body = b
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: c.opts.RetryDelay}, uint64(c.opts.MaxRetries)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return &FetchError{Endpoint: endpoint, Attempts: attempts, Err: err}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Endpoint: endpoint, Err: err}
	}
	return nil
}

func (c *Client) get(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, backoff.Permanent(err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	timeout := c.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return nil, err
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		b := resp.Body()
		if len(b) > maxErrorBody {
			b = b[:maxErrorBody]
		}
		return nil, &StatusError{Code: status, Body: string(b)}
	}
	return append([]byte(nil), resp.Body()...), nil
}

// UserStats fetches the per-user counts, capped at limit users.
func (c *Client) UserStats(ctx context.Context, limit int) (*UserStatsResponse, error) {
	var out UserStatsResponse
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if err := c.FetchJSON(ctx, EndpointUserStats, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VehicleStats fetches the current state of every vehicle.
func (c *Client) VehicleStats(ctx context.Context) (*VehicleStatsResponse, error) {
	var out VehicleStatsResponse
	if err := c.FetchJSON(ctx, EndpointVehicleStats, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HourlyStats fetches the hourly request volume series.
func (c *Client) HourlyStats(ctx context.Context) (*HourlyStatsResponse, error) {
	var out HourlyStatsResponse
	if err := c.FetchJSON(ctx, EndpointHourlyStats, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
