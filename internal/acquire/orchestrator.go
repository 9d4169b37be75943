// Package acquire sequences the acquisition pipeline: resolve, fetch with
// automatic fallback, normalize, persist.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agrocast/weather-insight-service/internal/gateway"
	"github.com/agrocast/weather-insight-service/internal/geocode"
	"github.com/agrocast/weather-insight-service/internal/models"
	"github.com/agrocast/weather-insight-service/internal/normalize"
	"github.com/agrocast/weather-insight-service/internal/observability"
	"github.com/agrocast/weather-insight-service/internal/store"
)

var (
	// ErrNoLocation means the request carried neither a resolvable name nor
	// explicit coordinates.
	ErrNoLocation = errors.New("no location provided")

	// ErrMissingAPIKey means the upstream credential is absent. Fatal for any
	// acquisition attempt, checked before the first upstream call.
	ErrMissingAPIKey = errors.New("weather API key not configured")
)

// Orchestrator is the single public entry point of the pipeline. It owns no
// mutable state between acquisitions; persistence goes through the injected
// Store.
type Orchestrator struct {
	resolver *geocode.Resolver
	gateway  *gateway.Gateway
	store    store.Store
	logger   *zap.Logger
}

func NewOrchestrator(resolver *geocode.Resolver, gw *gateway.Gateway, st store.Store, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		gateway:  gw,
		store:    st,
		logger:   logger,
	}
}

// Acquire resolves the query, fetches weather from the rich endpoint with a
// silent fallback to the legacy pair, attaches best-effort air quality, and
// persists the result. Cancellation at any stage propagates as the context
// error and produces no writes.
func (o *Orchestrator) Acquire(ctx context.Context, query models.PlaceQuery) (*models.WeatherBundle, error) {
	if !o.gateway.Configured() {
		return nil, ErrMissingAPIKey
	}

	var (
		point     models.GeoPoint
		placeName string
	)
	switch {
	case query.Name != "":
		pt, name, err := o.resolver.Resolve(ctx, query.Name)
		if err != nil {
			observability.AcquisitionsTotal.WithLabelValues("resolve", "error").Inc()
			return nil, err
		}
		point = pt
		placeName = name
	case query.Point != nil:
		point = *query.Point
	default:
		observability.AcquisitionsTotal.WithLabelValues("resolve", "error").Inc()
		return nil, ErrNoLocation
	}

	snapshot, series, tzOffset, path, err := o.fetchWeather(ctx, point, placeName)
	if err != nil {
		observability.AcquisitionsTotal.WithLabelValues(path, "error").Inc()
		return nil, err
	}

	bundle := &models.WeatherBundle{
		Snapshot:       snapshot,
		Forecast:       series,
		TimezoneOffset: tzOffset,
		PlaceName:      snapshot.PlaceName,
		Point:          point,
	}

	// Best-effort: a failed air quality fetch is logged and swallowed, the
	// field stays nil. Cancellation still aborts the whole acquisition.
	bundle.AirQuality, err = o.fetchAirQuality(ctx, point)
	if err != nil {
		return nil, err
	}

	// A cancelled acquisition must leave no trace in the store.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.persist(ctx, bundle)

	observability.AcquisitionsTotal.WithLabelValues(path, "success").Inc()
	return bundle, nil
}

// fetchWeather tries the rich endpoint and falls back to the legacy pair on
// any of its failures except cancellation. There is no third fallback:
// legacy-path errors propagate to the caller.
func (o *Orchestrator) fetchWeather(ctx context.Context, point models.GeoPoint, placeName string) (models.WeatherSnapshot, models.ForecastSeries, int, string, error) {
	var rich normalize.RichPayload
	err := o.gateway.FetchJSON(ctx, gateway.EndpointOneCall, o.gateway.OneCallURL(point.Lat, point.Lon), &rich)
	if err == nil {
		if placeName == "" {
			placeName = "Unknown"
		}
		snapshot, series, tz := normalize.FromRich(&rich, placeName)
		return snapshot, series, tz, "rich", nil
	}
	if ctx.Err() != nil {
		return models.WeatherSnapshot{}, nil, 0, "rich", ctx.Err()
	}

	observability.FallbackTotal.Inc()
	o.logger.Debug("rich endpoint failed, using legacy pair",
		zap.String("category", string(gateway.CategorizeError(err))),
		zap.Error(err))

	cur, fc, err := o.fetchLegacyPair(ctx, point)
	if err != nil {
		return models.WeatherSnapshot{}, nil, 0, "legacy", fmt.Errorf("legacy fallback: %w", err)
	}
	snapshot, series, tz := normalize.FromLegacy(cur, fc, placeName)
	return snapshot, series, tz, "legacy", nil
}

// fetchLegacyPair issues the current-conditions and 3-hourly forecast
// requests concurrently and waits for both. If either fails the pair fails;
// the sibling's result is discarded even when it succeeded.
func (o *Orchestrator) fetchLegacyPair(ctx context.Context, point models.GeoPoint) (*normalize.LegacyCurrent, *normalize.LegacyForecast, error) {
	var (
		wg     sync.WaitGroup
		cur    normalize.LegacyCurrent
		fc     normalize.LegacyForecast
		curErr error
		fcErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		curErr = o.gateway.FetchJSON(ctx, gateway.EndpointCurrent, o.gateway.CurrentURL(point.Lat, point.Lon), &cur)
	}()
	go func() {
		defer wg.Done()
		fcErr = o.gateway.FetchJSON(ctx, gateway.EndpointForecast, o.gateway.ForecastURL(point.Lat, point.Lon), &fc)
	}()
	wg.Wait()

	// Surface cancellation over data errors so callers see the right class.
	if ctxErr := ctx.Err(); ctxErr != nil && (curErr != nil || fcErr != nil) {
		return nil, nil, ctxErr
	}
	if curErr != nil {
		return nil, nil, curErr
	}
	if fcErr != nil {
		return nil, nil, fcErr
	}
	return &cur, &fc, nil
}

// fetchAirQuality returns a reading or nil. Only cancellation is returned as
// an error; everything else is counted, logged and swallowed.
func (o *Orchestrator) fetchAirQuality(ctx context.Context, point models.GeoPoint) (*models.AirQualityReading, error) {
	var payload normalize.AirPollution
	err := o.gateway.FetchJSON(ctx, gateway.EndpointAirPollution, o.gateway.AirPollutionURL(point.Lat, point.Lon), &payload)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		observability.AirQualityFailuresTotal.Inc()
		o.logger.Warn("air quality unavailable", zap.Error(err))
		return nil, nil
	}
	return normalize.FromAirPollution(&payload), nil
}

// persist writes the bundle records and the saved-location entry. Store
// failures degrade to warnings: the acquisition already succeeded and the
// caller still gets the bundle.
func (o *Orchestrator) persist(ctx context.Context, bundle *models.WeatherBundle) {
	if err := o.store.Set(ctx, store.KeySnapshot, bundle.Snapshot); err != nil {
		observability.StoreErrorsTotal.WithLabelValues("set").Inc()
		o.logger.Warn("store snapshot failed", zap.Error(err))
	}
	if err := o.store.Set(ctx, store.KeyForecast, bundle.Forecast); err != nil {
		observability.StoreErrorsTotal.WithLabelValues("set").Inc()
		o.logger.Warn("store forecast failed", zap.Error(err))
	}
	if err := o.store.Set(ctx, store.KeyTimezone, bundle.TimezoneOffset); err != nil {
		observability.StoreErrorsTotal.WithLabelValues("set").Inc()
		o.logger.Warn("store timezone failed", zap.Error(err))
	}

	if bundle.PlaceName == "" || bundle.PlaceName == "Unknown" {
		return
	}
	entry := models.SavedLocationEntry{
		Name:      bundle.PlaceName,
		Lat:       bundle.Point.Lat,
		Lon:       bundle.Point.Lon,
		Timestamp: time.Now().UTC(),
	}
	if err := store.AppendLocation(ctx, o.store, entry); err != nil {
		observability.StoreErrorsTotal.WithLabelValues("set").Inc()
		o.logger.Warn("append saved location failed", zap.Error(err))
	}
}
