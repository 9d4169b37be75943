package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/agrocast/weather-insight-service/internal/gateway"
	"github.com/agrocast/weather-insight-service/internal/geocode"
	"github.com/agrocast/weather-insight-service/internal/models"
	"github.com/agrocast/weather-insight-service/internal/observability"
	"github.com/agrocast/weather-insight-service/internal/store"
)

const (
	geoBody = `[{"name":"Pune","lat":18.52,"lon":73.86}]`

	oneCallBody = `{
		"timezone_offset": 19800,
		"current": {"dt": 1700000000, "temp": 28.5, "feels_like": 30.1, "humidity": 60,
			"pressure": 1010, "wind_speed": 4.2, "weather": [{"main":"Clouds","description":"scattered clouds"}]},
		"daily": [
			{"dt": 1700000000, "temp": {"day": 28, "min": 20, "max": 33}, "pop": 0.2, "wind_speed": 5},
			{"dt": 1700086400, "temp": {"day": 29, "min": 21, "max": 34}, "pop": 0.3, "wind_speed": 6}
		]
	}`

	legacyCurrentBody = `{"dt": 1700000000, "timezone": 19800, "name": "Pune",
		"main": {"temp": 301.65, "feels_like": 303.25, "humidity": 60, "pressure": 1010},
		"wind": {"speed": 4.2}, "weather": [{"main":"Clouds"}]}`

	legacyForecastBody = `{"list": [
		{"dt": 1700000000, "main": {"temp": 300.15, "temp_min": 295.15, "temp_max": 305.15}, "pop": 0.1},
		{"dt": 1700010800, "main": {"temp": 299.15, "temp_min": 294.15, "temp_max": 304.15}, "pop": 0.2}
	]}`

	airBody = `{"list": [{"dt": 1700000000, "main": {"aqi": 2}, "components": {"pm2_5": 12.0, "no2": 8.5}}]}`
)

// upstreamFake serves the five endpoint families and counts hits per path so
// tests can assert fallback happened exactly once.
type upstreamFake struct {
	server *httptest.Server

	geoHits, oneCallHits, currentHits, forecastHits, airHits atomic.Int64

	oneCallHandler func(w http.ResponseWriter, r *http.Request)
	currentHandler func(w http.ResponseWriter, r *http.Request)
	airHandler     func(w http.ResponseWriter, r *http.Request)
}

func newUpstreamFake(t *testing.T) *upstreamFake {
	t.Helper()
	f := &upstreamFake{}
	mux := http.NewServeMux()
	mux.HandleFunc("/geo/1.0/direct", func(w http.ResponseWriter, r *http.Request) {
		f.geoHits.Add(1)
		_, _ = w.Write([]byte(geoBody))
	})
	mux.HandleFunc("/data/3.0/onecall", func(w http.ResponseWriter, r *http.Request) {
		f.oneCallHits.Add(1)
		if f.oneCallHandler != nil {
			f.oneCallHandler(w, r)
			return
		}
		_, _ = w.Write([]byte(oneCallBody))
	})
	mux.HandleFunc("/data/2.5/weather", func(w http.ResponseWriter, r *http.Request) {
		f.currentHits.Add(1)
		if f.currentHandler != nil {
			f.currentHandler(w, r)
			return
		}
		_, _ = w.Write([]byte(legacyCurrentBody))
	})
	mux.HandleFunc("/data/2.5/forecast", func(w http.ResponseWriter, r *http.Request) {
		f.forecastHits.Add(1)
		_, _ = w.Write([]byte(legacyForecastBody))
	})
	mux.HandleFunc("/data/2.5/air_pollution", func(w http.ResponseWriter, r *http.Request) {
		f.airHits.Add(1)
		if f.airHandler != nil {
			f.airHandler(w, r)
			return
		}
		_, _ = w.Write([]byte(airBody))
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func newOrchestrator(f *upstreamFake, st store.Store) *Orchestrator {
	gw := gateway.New("test-api-key-12345", f.server.URL, 2*time.Second, gateway.BreakerSettings{
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     time.Minute,
	})
	return NewOrchestrator(geocode.NewResolver(gw), gw, st, zap.NewNop())
}

func TestAcquire_RichPath(t *testing.T) {
	f := newUpstreamFake(t)
	st := store.NewMemoryStore()
	o := newOrchestrator(f, st)

	bundle, err := o.Acquire(context.Background(), models.PlaceQuery{Name: "Pune"})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if bundle.PlaceName != "Pune" {
		t.Errorf("PlaceName = %q, want %q", bundle.PlaceName, "Pune")
	}
	if bundle.Snapshot.Temperature != 28.5 {
		t.Errorf("Temperature = %v, want 28.5 (Celsius passthrough on rich path)", bundle.Snapshot.Temperature)
	}
	if bundle.TimezoneOffset != 19800 {
		t.Errorf("TimezoneOffset = %d, want 19800", bundle.TimezoneOffset)
	}
	if len(bundle.Forecast) != 2 {
		t.Errorf("len(Forecast) = %d, want 2 (one sample per daily record)", len(bundle.Forecast))
	}
	if bundle.AirQuality == nil || bundle.AirQuality.Index != 2 {
		t.Errorf("AirQuality = %+v, want index 2", bundle.AirQuality)
	}

	if f.currentHits.Load() != 0 || f.forecastHits.Load() != 0 {
		t.Error("legacy pair called although rich path succeeded")
	}

	// Successful acquisition persists snapshot, forecast, timezone and the
	// saved-location entry.
	var snap models.WeatherSnapshot
	if ok, _ := st.Get(context.Background(), store.KeySnapshot, &snap); !ok {
		t.Error("snapshot not persisted")
	}
	locations, err := store.LoadLocations(context.Background(), st)
	if err != nil {
		t.Fatalf("LoadLocations() error = %v", err)
	}
	if len(locations) != 1 || locations[0].Name != "Pune" {
		t.Errorf("locations = %+v, want single Pune entry", locations)
	}
}

func TestAcquire_FallbackOnRichFailure(t *testing.T) {
	tests := []struct {
		name        string
		richHandler func(w http.ResponseWriter, r *http.Request)
	}{
		{
			name: "HTML body",
			richHandler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html><body>amplify routing</body></html>"))
			},
		},
		{
			name: "non-2xx status",
			richHandler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"cod":401,"message":"invalid subscription"}`))
			},
		},
		{
			name: "malformed JSON",
			richHandler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"current": {`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newUpstreamFake(t)
			f.oneCallHandler = tt.richHandler
			st := store.NewMemoryStore()
			o := newOrchestrator(f, st)

			bundle, err := o.Acquire(context.Background(), models.PlaceQuery{Name: "Pune"})
			if err != nil {
				t.Fatalf("Acquire() error = %v, want silent fallback", err)
			}

			if f.oneCallHits.Load() != 1 {
				t.Errorf("rich endpoint hits = %d, want 1", f.oneCallHits.Load())
			}
			if f.currentHits.Load() != 1 || f.forecastHits.Load() != 1 {
				t.Errorf("legacy pair hits = %d/%d, want exactly 1/1",
					f.currentHits.Load(), f.forecastHits.Load())
			}

			// 301.65 K = 28.5 C: same canonical unit as the rich path.
			if diff := bundle.Snapshot.Temperature - 28.5; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Temperature = %v, want 28.5 after Kelvin reconciliation", bundle.Snapshot.Temperature)
			}
			if len(bundle.Forecast) != 2 {
				t.Errorf("len(Forecast) = %d, want 2", len(bundle.Forecast))
			}
		})
	}
}

func TestAcquire_LegacyFailureIsFatal(t *testing.T) {
	f := newUpstreamFake(t)
	f.oneCallHandler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"cod":403}`))
	}
	f.currentHandler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`boom`))
	}
	st := store.NewMemoryStore()
	o := newOrchestrator(f, st)

	_, err := o.Acquire(context.Background(), models.PlaceQuery{Name: "Pune"})
	if err == nil {
		t.Fatal("Acquire() error = nil, want legacy failure to propagate (no third fallback)")
	}
	var statusErr *gateway.StatusError
	if !errors.As(err, &statusErr) {
		t.Errorf("Acquire() error = %v, want *gateway.StatusError", err)
	}

	// The failed acquisition must not have written anything.
	var snap models.WeatherSnapshot
	if ok, _ := st.Get(context.Background(), store.KeySnapshot, &snap); ok {
		t.Error("snapshot persisted despite failed acquisition")
	}
}

func TestAcquire_AirQualityFailureSwallowed(t *testing.T) {
	f := newUpstreamFake(t)
	f.airHandler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`nope`))
	}
	o := newOrchestrator(f, store.NewMemoryStore())

	bundle, err := o.Acquire(context.Background(), models.PlaceQuery{Name: "Pune"})
	if err != nil {
		t.Fatalf("Acquire() error = %v, air quality failure must not propagate", err)
	}
	if bundle.AirQuality != nil {
		t.Errorf("AirQuality = %+v, want nil when the fetch failed", bundle.AirQuality)
	}
}

func TestAcquire_CancelledBeforeUpstream(t *testing.T) {
	f := newUpstreamFake(t)
	st := store.NewMemoryStore()
	o := newOrchestrator(f, st)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Acquire(ctx, models.PlaceQuery{Name: "Pune"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Acquire() error = %v, want context.Canceled", err)
	}

	// Cancellation leaves no trace: no cache records, no saved location.
	var snap models.WeatherSnapshot
	if ok, _ := st.Get(context.Background(), store.KeySnapshot, &snap); ok {
		t.Error("snapshot written for cancelled acquisition")
	}
	var series models.ForecastSeries
	if ok, _ := st.Get(context.Background(), store.KeyForecast, &series); ok {
		t.Error("forecast written for cancelled acquisition")
	}
	locations, _ := store.LoadLocations(context.Background(), st)
	if len(locations) != 0 {
		t.Errorf("saved locations = %+v, want none for cancelled acquisition", locations)
	}
}

func TestAcquire_MissingAPIKey(t *testing.T) {
	f := newUpstreamFake(t)
	gw := gateway.New("", f.server.URL, time.Second, gateway.BreakerSettings{})
	o := NewOrchestrator(geocode.NewResolver(gw), gw, store.NewMemoryStore(), zap.NewNop())

	_, err := o.Acquire(context.Background(), models.PlaceQuery{Name: "Pune"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Acquire() error = %v, want ErrMissingAPIKey", err)
	}
	if f.geoHits.Load() != 0 {
		t.Error("upstream contacted without a configured key")
	}
}

func TestAcquire_NoLocation(t *testing.T) {
	f := newUpstreamFake(t)
	o := newOrchestrator(f, store.NewMemoryStore())

	_, err := o.Acquire(context.Background(), models.PlaceQuery{})
	if !errors.Is(err, ErrNoLocation) {
		t.Errorf("Acquire() error = %v, want ErrNoLocation", err)
	}
}

func TestAcquire_ResolutionFailuresCounted(t *testing.T) {
	resolveErrors := func() float64 {
		return testutil.ToFloat64(observability.AcquisitionsTotal.WithLabelValues("resolve", "error"))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/geo/1.0/direct", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gw := gateway.New("test-api-key-12345", server.URL, time.Second, gateway.BreakerSettings{})
	o := NewOrchestrator(geocode.NewResolver(gw), gw, store.NewMemoryStore(), zap.NewNop())

	before := resolveErrors()
	if _, err := o.Acquire(context.Background(), models.PlaceQuery{Name: "Atlantis"}); err == nil {
		t.Fatal("Acquire() error = nil, want resolution failure")
	}
	if _, err := o.Acquire(context.Background(), models.PlaceQuery{}); !errors.Is(err, ErrNoLocation) {
		t.Fatalf("Acquire() error = %v, want ErrNoLocation", err)
	}
	if got := resolveErrors() - before; got != 2 {
		t.Errorf("resolve error count increased by %v, want 2", got)
	}
}

func TestAcquire_PlaceNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/geo/1.0/direct", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gw := gateway.New("test-api-key-12345", server.URL, time.Second, gateway.BreakerSettings{})
	o := NewOrchestrator(geocode.NewResolver(gw), gw, store.NewMemoryStore(), zap.NewNop())

	_, err := o.Acquire(context.Background(), models.PlaceQuery{Name: "Atlantis"})
	if !errors.Is(err, geocode.ErrPlaceNotFound) {
		t.Errorf("Acquire() error = %v, want ErrPlaceNotFound", err)
	}
}

func TestAcquire_ExplicitCoordinatesSkipResolver(t *testing.T) {
	f := newUpstreamFake(t)
	o := newOrchestrator(f, store.NewMemoryStore())

	bundle, err := o.Acquire(context.Background(), models.PlaceQuery{
		Point: &models.GeoPoint{Lat: 18.52, Lon: 73.86},
	})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if f.geoHits.Load() != 0 {
		t.Error("resolver called although explicit coordinates were supplied")
	}
	if bundle.Point.Lat != 18.52 || bundle.Point.Lon != 73.86 {
		t.Errorf("Point = %+v, want supplied coordinates", bundle.Point)
	}
}

func TestAcquire_SavedLocationsCapAndOrder(t *testing.T) {
	st := store.NewMemoryStore()

	// Twelve successful acquisitions for twelve distinct places.
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("City-%02d", i)
		lat := 10.0 + float64(i)
		lon := 20.0 + float64(i)

		mux := http.NewServeMux()
		mux.HandleFunc("/geo/1.0/direct", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `[{"name":%q,"lat":%g,"lon":%g}]`, name, lat, lon)
		})
		mux.HandleFunc("/data/3.0/onecall", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(oneCallBody))
		})
		mux.HandleFunc("/data/2.5/air_pollution", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(airBody))
		})
		server := httptest.NewServer(mux)

		gw := gateway.New("test-api-key-12345", server.URL, time.Second, gateway.BreakerSettings{})
		o := NewOrchestrator(geocode.NewResolver(gw), gw, st, zap.NewNop())
		if _, err := o.Acquire(context.Background(), models.PlaceQuery{Name: name}); err != nil {
			server.Close()
			t.Fatalf("Acquire(%s) error = %v", name, err)
		}
		server.Close()
	}

	locations, err := store.LoadLocations(context.Background(), st)
	if err != nil {
		t.Fatalf("LoadLocations() error = %v", err)
	}
	if len(locations) != 10 {
		t.Fatalf("len(locations) = %d, want cap of 10", len(locations))
	}
	// Most recent first: the twelfth city leads, the oldest two fell off.
	if locations[0].Name != "City-11" {
		t.Errorf("locations[0] = %q, want City-11", locations[0].Name)
	}
	if locations[9].Name != "City-02" {
		t.Errorf("locations[9] = %q, want City-02", locations[9].Name)
	}
}
