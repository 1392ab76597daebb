package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colthorp/ordo-cli-go/internal/core"
	appLog "github.com/colthorp/ordo-cli-go/internal/log"
)

// OrdoAPI provides a typed convenience layer over the ordo REST API.
type OrdoAPI struct {
	transport    Transport
	baseURL      string
	monthTimeout time.Duration
}

// NewOrdoAPI creates a new high-level API client.
// If transport is nil, an HTTP Client for the production API is used.
func NewOrdoAPI(transport Transport) *OrdoAPI {
	if transport == nil {
		transport = NewClient(core.ProductionAPIBaseURL)
	}
	api := &OrdoAPI{
		transport:    transport,
		monthTimeout: core.MonthFetchTimeout,
	}
	if c, ok := transport.(*Client); ok {
		api.baseURL = c.BaseURL()
	}
	return api
}

// NewOrdoAPIForURL creates a high-level client over HTTP for baseURL.
func NewOrdoAPIForURL(baseURL string) *OrdoAPI {
	return NewOrdoAPI(NewClient(baseURL))
}

// SetMonthTimeout overrides the per-month request timeout.
func (api *OrdoAPI) SetMonthTimeout(d time.Duration) {
	if d > 0 {
		api.monthTimeout = d
	}
}

// BaseURL returns the API root, or "" for non-HTTP transports.
func (api *OrdoAPI) BaseURL() string {
	return api.baseURL
}

// Probe checks that the API root answers 2xx with a JSON body.
// Failures are reported as a *ConnectivityError, except cancellation of ctx,
// which is returned as ctx.Err().
func (api *OrdoAPI) Probe(ctx context.Context) error {
	body, err := api.transport.Get(ctx, "/")
	if err == nil && !json.Valid(body) {
		err = ErrMalformedResponse
	}
	if err != nil {
		// Cancellation is the caller's, not the API's.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		appLog.Debug("api probe failed", "url", api.baseURL, "err", err)
		return &ConnectivityError{BaseURL: api.baseURL, Err: err}
	}
	appLog.Debug("api probe ok", "url", api.baseURL)
	return nil
}

// FetchMonth fetches every day of one month, bounded by the month timeout.
// The timeout only applies to this request; sibling requests keep running.
func (api *OrdoAPI) FetchMonth(ctx context.Context, year int, month time.Month) (*MonthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, api.monthTimeout)
	defer cancel()

	body, err := api.transport.Get(ctx, fmt.Sprintf("month/%d/%d", year, int(month)))
	if err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	rawDays, ok := envelope["days"]
	if !ok {
		return nil, fmt.Errorf("%w: missing days", ErrMalformedResponse)
	}

	resp := &MonthResponse{Year: year, Month: int(month)}
	if err := json.Unmarshal(rawDays, &resp.Days); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Days == nil {
		return nil, fmt.Errorf("%w: days is null", ErrMalformedResponse)
	}

	return resp, nil
}

// GetTransport returns the underlying transport.
func (api *OrdoAPI) GetTransport() Transport {
	return api.transport
}
