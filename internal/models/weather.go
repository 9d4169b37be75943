package models

import "time"

// GeoPoint is a latitude/longitude pair. Both fields are set together or
// the value is absent entirely (see PlaceQuery).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PlaceQuery identifies the location of an acquisition request. Exactly one
// of Name or Point is supplied: a free-text name is resolved through
// geocoding, an explicit point skips resolution.
type PlaceQuery struct {
	Name  string
	Point *GeoPoint
}

// Severity tags a recommendation or alert for presentation. It never drives
// control flow.
type Severity string

const (
	SeveritySuccess  Severity = "success"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// WeatherSnapshot is a single point-in-time weather reading in canonical
// units: Celsius, hPa, m/s, meters. Unit reconciliation happens at
// normalization time; nothing downstream converts.
type WeatherSnapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feelsLike"`
	Humidity    float64   `json:"humidity"`
	Pressure    float64   `json:"pressure"`
	WindSpeed   float64   `json:"windSpeed"`
	Visibility  float64   `json:"visibility,omitempty"`
	Sunrise     time.Time `json:"sunrise,omitzero"`
	Sunset      time.Time `json:"sunset,omitzero"`
	Condition   string    `json:"condition"`
	Icon        string    `json:"icon,omitempty"`
	PlaceName   string    `json:"placeName"`
}

// ForecastSample is one future-dated reading. RainfallMM is the accumulation
// over the sample's window and may be zero when the upstream omitted it.
type ForecastSample struct {
	Timestamp    time.Time `json:"timestamp"`
	Temperature  float64   `json:"temperature"`
	TempMin      float64   `json:"tempMin"`
	TempMax      float64   `json:"tempMax"`
	Humidity     float64   `json:"humidity"`
	Pressure     float64   `json:"pressure"`
	WindSpeed    float64   `json:"windSpeed"`
	PrecipChance float64   `json:"precipChance"`
	RainfallMM   float64   `json:"rainfallMm"`
	Condition    string    `json:"condition,omitempty"`
	Icon         string    `json:"icon,omitempty"`
}

// ForecastSeries is an ordered sequence of samples, chronological and
// deduplicated by timestamp.
type ForecastSeries []ForecastSample

// AirQualityReading carries the upstream air quality index (1-5) and the
// pollutant concentrations in micrograms per cubic meter.
type AirQualityReading struct {
	Index      int                `json:"index"`
	Components map[string]float64 `json:"components"`
	Timestamp  time.Time          `json:"timestamp"`
}

// WeatherBundle is the complete normalized acquisition result handed to the
// insight engines and written to the local store. AirQuality is nil when the
// best-effort air quality fetch failed.
type WeatherBundle struct {
	Snapshot       WeatherSnapshot    `json:"snapshot"`
	Forecast       ForecastSeries     `json:"forecast"`
	AirQuality     *AirQualityReading `json:"airQuality,omitempty"`
	TimezoneOffset int                `json:"timezoneOffset"`
	PlaceName      string             `json:"placeName"`
	Point          GeoPoint           `json:"point"`
}

// SavedLocationEntry is one row of the recent-locations list, most recent
// first, capped at ten entries.
type SavedLocationEntry struct {
	Name      string    `json:"name"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
}
