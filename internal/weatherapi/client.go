// Package weatherapi fetches current conditions from weatherapi.com.
package weatherapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/katiamach/live-weather-tracker/internal/model"
)

// ErrUnavailable means the API returned no data for the city.
var ErrUnavailable = errors.New("weather data unavailable")

// errServerStatus marks 5xx answers, the only non-200 answers counted by the breaker.
var errServerStatus = errors.New("weather api server error")

// Options configures Client.
type Options struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
}

// Client is a weatherapi.com client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	circuit    *gobreaker.CircuitBreaker
}

// New creates new Client.
func New(opts Options) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weatherapi",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// an unknown city is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || (errors.Is(err, ErrUnavailable) && !errors.Is(err, errServerStatus))
		},
	})

	return &Client{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		circuit: cb,
	}
}

type currentResponse struct {
	Current struct {
		Humidity int     `json:"humidity"`
		Cloud    int     `json:"cloud"`
		WindKph  float64 `json:"wind_kph"`
	} `json:"current"`
}

// Fetch gets current weather for the given city.
// Non-success responses and an open circuit result in ErrUnavailable.
func (c *Client) Fetch(ctx context.Context, city string) (*model.Weather, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}

	res, err := c.circuit.Execute(func() (interface{}, error) {
		return c.getCurrent(ctx, city)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}

	current, ok := res.(*currentResponse)
	if !ok {
		return nil, errors.New("unexpected result type from circuit breaker")
	}

	return &model.Weather{
		City:      city,
		Humidity:  current.Current.Humidity,
		Cloud:     current.Current.Cloud,
		WindSpeed: current.Current.WindKph,
	}, nil
}

func (c *Client) getCurrent(ctx context.Context, city string) (*currentResponse, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", city)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/current.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get weather for %s: %w", city, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %w: status %d for %s", ErrUnavailable, errServerStatus, resp.StatusCode, city)
		}
		return nil, fmt.Errorf("%w: status %d for %s", ErrUnavailable, resp.StatusCode, city)
	}

	var current currentResponse
	err = json.NewDecoder(resp.Body).Decode(&current)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &current, nil
}
