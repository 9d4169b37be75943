package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/agrocast/weather-insight-service/internal/acquire"
	"github.com/agrocast/weather-insight-service/internal/agronomy"
	"github.com/agrocast/weather-insight-service/internal/airquality"
	"github.com/agrocast/weather-insight-service/internal/gateway"
	"github.com/agrocast/weather-insight-service/internal/geocode"
	"github.com/agrocast/weather-insight-service/internal/hazard"
	"github.com/agrocast/weather-insight-service/internal/models"
	"github.com/agrocast/weather-insight-service/internal/store"
	"github.com/agrocast/weather-insight-service/internal/validation"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	orchestrator *acquire.Orchestrator
	advisor      *agronomy.Advisor
	store        store.Store
	logger       *zap.Logger
	// storePing, when set, is called by the health check. Used when the
	// backend is memcached.
	storePing func() error
}

// NewHandler returns a new Handler.
func NewHandler(orchestrator *acquire.Orchestrator, advisor *agronomy.Advisor, st store.Store, logger *zap.Logger, storePing func() error) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		advisor:      advisor,
		store:        st,
		logger:       logger,
		storePing:    storePing,
	}
}

// placeQueryFromRequest builds a PlaceQuery from ?q= or ?lat=&lon=. Exactly
// one form must be present.
func placeQueryFromRequest(r *http.Request) (models.PlaceQuery, error) {
	q := r.URL.Query()

	if name := q.Get("q"); name != "" {
		trimmed, err := validation.ValidatePlaceName(name)
		if err != nil {
			return models.PlaceQuery{}, err
		}
		return models.PlaceQuery{Name: trimmed}, nil
	}

	latStr, lonStr := q.Get("lat"), q.Get("lon")
	if latStr == "" || lonStr == "" {
		return models.PlaceQuery{}, acquire.ErrNoLocation
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return models.PlaceQuery{}, validation.ErrLatitudeRange
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return models.PlaceQuery{}, validation.ErrLongitudeRange
	}
	if err := validation.ValidateCoordinates(lat, lon); err != nil {
		return models.PlaceQuery{}, err
	}
	return models.PlaceQuery{Point: &models.GeoPoint{Lat: lat, Lon: lon}}, nil
}

// GetWeather handles GET /weather. Returns the full bundle.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	query, err := placeQueryFromRequest(r)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	bundle, err := h.orchestrator.Acquire(r.Context(), query)
	if err != nil {
		writeAcquireError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

// GetAlerts handles GET /weather/alerts. Acquires and runs the hazard rules.
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	query, err := placeQueryFromRequest(r)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	bundle, err := h.orchestrator.Acquire(r.Context(), query)
	if err != nil {
		writeAcquireError(w, r, err)
		return
	}
	alerts := hazard.Detect(bundle.Forecast, bundle.TimezoneOffset)
	if alerts == nil {
		alerts = []hazard.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"placeName": bundle.PlaceName,
		"alerts":    alerts,
	})
}

// GetAgronomy handles GET /weather/agronomy/{crop}.
func (h *Handler) GetAgronomy(w http.ResponseWriter, r *http.Request) {
	crop := mux.Vars(r)["crop"]
	query, err := placeQueryFromRequest(r)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	bundle, err := h.orchestrator.Acquire(r.Context(), query)
	if err != nil {
		writeAcquireError(w, r, err)
		return
	}
	advice, err := h.advisor.Advise(crop, bundle.Snapshot, bundle.Forecast)
	if err != nil {
		if errors.Is(err, agronomy.ErrCropNotFound) {
			writeError(w, r, http.StatusNotFound, "CROP_NOT_FOUND", "Unknown crop: "+crop)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "advisor failure")
		return
	}
	writeJSON(w, http.StatusOK, advice)
}

// GetCrops handles GET /crops. Lists the crop catalogue.
func (h *Handler) GetCrops(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"crops": h.advisor.Crops()})
}

// GetAirQuality handles GET /airquality. The classification piggybacks on a
// full acquisition; a missing reading is reported, not an error response.
func (h *Handler) GetAirQuality(w http.ResponseWriter, r *http.Request) {
	query, err := placeQueryFromRequest(r)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	bundle, err := h.orchestrator.Acquire(r.Context(), query)
	if err != nil {
		writeAcquireError(w, r, err)
		return
	}
	if bundle.AirQuality == nil {
		writeError(w, r, http.StatusNotFound, "AIR_QUALITY_UNAVAILABLE", "No air quality data for this location")
		return
	}
	assessment := airquality.Classify(bundle.AirQuality.Index, bundle.AirQuality.Components)
	writeJSON(w, http.StatusOK, assessment)
}

// GetLocations handles GET /locations.
func (h *Handler) GetLocations(w http.ResponseWriter, r *http.Request) {
	list, err := store.LoadLocations(r.Context(), h.store)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "STORE_UNAVAILABLE", "Unable to read saved locations")
		return
	}
	if list == nil {
		list = []models.SavedLocationEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"locations": list})
}

// ClearLocations handles DELETE /locations. The only path that empties the
// saved list; the pipeline itself never clears.
func (h *Handler) ClearLocations(w http.ResponseWriter, r *http.Request) {
	if err := store.ClearLocations(r.Context(), h.store); err != nil {
		writeError(w, r, http.StatusInternalServerError, "STORE_UNAVAILABLE", "Unable to clear saved locations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := make(map[string]string)

	if h.storePing != nil {
		if h.storePing() == nil {
			checks["store"] = "healthy"
		} else {
			checks["store"] = "unhealthy"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"service":   "weather-insight-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeQueryError maps request-parsing failures to 400 responses.
func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, acquire.ErrNoLocation):
		writeError(w, r, http.StatusBadRequest, "NO_LOCATION", "Provide ?q=<place> or ?lat=&lon=")
	case errors.Is(err, validation.ErrLatitudeRange), errors.Is(err, validation.ErrLongitudeRange):
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
	default:
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
	}
}

// writeAcquireError maps pipeline failures onto the response taxonomy. A
// cancelled request gets no display-worthy body: the client has gone away,
// so the outcome is logged at debug and the write is best-effort.
func writeAcquireError(w http.ResponseWriter, r *http.Request, err error) {
	logger := loggerFromContext(r.Context())

	switch {
	case errors.Is(err, context.Canceled):
		if logger != nil {
			logger.Debug("request cancelled by client")
		}
		w.WriteHeader(statusClientClosedRequest)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "Weather lookup timed out")
	case errors.Is(err, geocode.ErrPlaceNotFound):
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", "City not found. Please check the city name and try again.")
	case errors.Is(err, acquire.ErrNoLocation):
		writeError(w, r, http.StatusBadRequest, "NO_LOCATION", "No location provided. Please provide coordinates or city name.")
	case errors.Is(err, acquire.ErrMissingAPIKey):
		writeError(w, r, http.StatusServiceUnavailable, "NOT_CONFIGURED", "Weather API key not configured")
	default:
		if logger != nil {
			logger.Warn("acquisition failed",
				zap.String("category", string(gateway.CategorizeError(err))),
				zap.Error(err))
		}
		writeError(w, r, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data")
	}
}

// statusClientClosedRequest mirrors nginx's non-standard 499 for cancelled
// client requests; the body is never seen anyway.
const statusClientClosedRequest = 499

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}
