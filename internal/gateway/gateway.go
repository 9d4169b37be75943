package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/agrocast/weather-insight-service/internal/observability"
)

// Errors the gateway can classify a response into. Cooperative cancellation
// (context.Canceled, context.DeadlineExceeded) is never reinterpreted as one
// of these; it always propagates as the context error.
var (
	ErrUnexpectedHTML = errors.New("unexpected HTML response from upstream")
	ErrInvalidJSON    = errors.New("invalid JSON response from upstream")
	ErrCircuitOpen    = errors.New("upstream circuit open")
)

// bodyExcerptLen bounds how much of a failing body ends up in an error.
const bodyExcerptLen = 100

// StatusError reports a non-2xx upstream response whose body was not HTML.
type StatusError struct {
	Code        int
	BodyExcerpt string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.BodyExcerpt)
}

// Endpoint labels the upstream endpoint family for metrics and breakers.
type Endpoint string

const (
	EndpointGeocode      Endpoint = "geocode"
	EndpointOneCall      Endpoint = "onecall"
	EndpointCurrent      Endpoint = "current"
	EndpointForecast     Endpoint = "forecast"
	EndpointAirPollution Endpoint = "air_pollution"
)

// BreakerSettings configures the per-endpoint circuit breakers.
type BreakerSettings struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// Gateway issues requests to the OpenWeather API families and classifies
// failures uniformly. One Gateway is shared by all acquisitions.
type Gateway struct {
	apiKey  string
	baseURL string
	client  *http.Client

	breakerCfg BreakerSettings
	mu         sync.Mutex
	breakers   map[Endpoint]*gobreaker.CircuitBreaker
}

// New returns a Gateway. An empty apiKey is accepted here; the orchestrator
// rejects acquisitions against an unconfigured gateway so the process can
// still start and report its state.
func New(apiKey, baseURL string, timeout time.Duration, breakerCfg BreakerSettings) *Gateway {
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org"
	}
	return &Gateway{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: timeout},
		breakerCfg: breakerCfg,
		breakers:   make(map[Endpoint]*gobreaker.CircuitBreaker),
	}
}

// Configured reports whether an API key is present.
func (g *Gateway) Configured() bool {
	return g.apiKey != ""
}

func (g *Gateway) breaker(endpoint Endpoint) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	cb, ok := g.breakers[endpoint]
	if !ok {
		name := string(endpoint)
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: g.breakerCfg.MaxRequests,
			Interval:    g.breakerCfg.Interval,
			Timeout:     g.breakerCfg.Timeout,
			OnStateChange: func(_ string, from, to gobreaker.State) {
				observability.RecordBreakerState(name, to == gobreaker.StateOpen)
			},
			// Caller-driven cancellation surfaces from fetch as the raw
			// context error and says nothing about upstream health, so it
			// must not accumulate toward tripping. Wrapped timeouts from the
			// client's own deadline are real upstream failures and are
			// compared by identity here precisely to keep counting them.
			IsSuccessful: func(err error) bool {
				return err == nil || err == context.Canceled || err == context.DeadlineExceeded
			},
		})
		g.breakers[endpoint] = cb
	}
	return cb
}

// FetchJSON performs a GET against rawURL and unmarshals the body into v.
// Classification order: transport error, HTML body (checked regardless of
// status, misrouted upstreams return HTML on nominal 200s), non-2xx status,
// JSON parse failure.
func (g *Gateway) FetchJSON(ctx context.Context, endpoint Endpoint, rawURL string, v interface{}) error {
	start := time.Now()
	_, err := g.breaker(endpoint).Execute(func() (interface{}, error) {
		return nil, g.fetch(ctx, rawURL, v)
	})

	duration := time.Since(start).Seconds()
	label := "success"
	if err != nil {
		label = string(CategorizeError(err))
	}
	observability.UpstreamCallsTotal.WithLabelValues(string(endpoint), label).Inc()
	observability.UpstreamDuration.WithLabelValues(string(endpoint)).Observe(duration)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, endpoint)
	}
	return err
}

func (g *Gateway) fetch(ctx context.Context, rawURL string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		// Cancellation must survive classification unchanged.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("read response body: %w", err)
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "<") {
		return ErrUnexpectedHTML
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, BodyExcerpt: excerpt(trimmed)}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) > bodyExcerptLen {
		return string(r[:bodyExcerptLen])
	}
	return s
}

// GeocodeURL builds the free-text geocoding lookup, limited to one result.
func (g *Gateway) GeocodeURL(query string) string {
	params := url.Values{}
	params.Set("q", strings.TrimSpace(query))
	params.Set("limit", "1")
	params.Set("appid", g.apiKey)
	return g.baseURL + "/geo/1.0/direct?" + params.Encode()
}

// OneCallURL builds the rich endpoint request (current + daily together,
// Celsius-native via units=metric).
func (g *Gateway) OneCallURL(lat, lon float64) string {
	params := g.coordParams(lat, lon)
	params.Set("exclude", "minutely")
	params.Set("units", "metric")
	return g.baseURL + "/data/3.0/onecall?" + params.Encode()
}

// CurrentURL builds the legacy current-conditions request, Kelvin-native.
func (g *Gateway) CurrentURL(lat, lon float64) string {
	return g.baseURL + "/data/2.5/weather?" + g.coordParams(lat, lon).Encode()
}

// ForecastURL builds the legacy 3-hourly forecast request, Kelvin-native.
func (g *Gateway) ForecastURL(lat, lon float64) string {
	return g.baseURL + "/data/2.5/forecast?" + g.coordParams(lat, lon).Encode()
}

// AirPollutionURL builds the air quality request.
func (g *Gateway) AirPollutionURL(lat, lon float64) string {
	return g.baseURL + "/data/2.5/air_pollution?" + g.coordParams(lat, lon).Encode()
}

func (g *Gateway) coordParams(lat, lon float64) url.Values {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("appid", g.apiKey)
	return params
}
