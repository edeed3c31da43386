package services

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/metrics"
	"github.com/localnerve/memebase/internal/types"
	gobreaker "github.com/sony/gobreaker/v2"
)

// maxUpstreamBody caps how much of an upstream response is read
const maxUpstreamBody = 8 << 20

// UpstreamError is a non-2xx answer from a remote API
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s responded %d: %s", e.Service, e.Status, e.Body)
}

// upstream is an HTTP client for one remote API behind a circuit breaker.
// Only transport errors and 5xx answers count against the breaker.
type upstream struct {
	name   string
	client *http.Client
	cb     *gobreaker.CircuitBreaker[[]byte]
}

func newUpstream(name string, client *http.Client) *upstream {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
			metrics.SetBreakerState(name, int(to))
		},
		IsSuccessful: func(err error) bool {
			var ue *UpstreamError
			if errors.As(err, &ue) {
				return ue.Status < http.StatusInternalServerError
			}
			return err == nil
		},
	})
	return &upstream{name: name, client: client, cb: cb}
}

// do sends req and returns the response body of a 2xx answer
func (u *upstream) do(req *http.Request) ([]byte, error) {
	body, err := u.cb.Execute(func() ([]byte, error) {
		resp, err := u.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &UpstreamError{Service: u.name, Status: resp.StatusCode, Body: truncate(string(data), 512)}
		}
		return data, nil
	})
	if err != nil {
		return nil, u.mapError(err)
	}
	return body, nil
}

// doJSON sends req and decodes a 2xx JSON answer into target
func (u *upstream) doJSON(req *http.Request, target interface{}) error {
	body, err := u.do(req)
	if err != nil {
		return err
	}
	if target == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return types.Wrap(err, http.StatusBadGateway, fmt.Sprintf("%s returned an unreadable response", u.name), "upstream")
	}
	return nil
}

func (u *upstream) mapError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.Wrap(err, http.StatusServiceUnavailable, fmt.Sprintf("%s is temporarily unavailable", u.name), "upstream.unavailable")
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		switch {
		case ue.Status == http.StatusNotFound:
			return types.Wrap(err, http.StatusNotFound, fmt.Sprintf("%s: resource not found", u.name), "not_found")
		case ue.Status < http.StatusInternalServerError:
			return types.Wrap(err, http.StatusBadRequest, fmt.Sprintf("%s rejected the request", u.name), "upstream")
		}
	}
	return types.Wrap(err, http.StatusBadGateway, fmt.Sprintf("%s request failed", u.name), "upstream")
}

// State reports the breaker state for health checks
func (u *upstream) State() gobreaker.State {
	return u.cb.State()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
