// Package agronomy produces crop-specific recommendations from a weather
// snapshot and forecast.
package agronomy

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agrocast/weather-insight-service/internal/models"
)

// ErrCropNotFound means the requested crop has no profile. No partial
// recommendation list is produced.
var ErrCropNotFound = errors.New("crop not found")

// rainCheckSamples is how much of the forecast the rain-tolerance check
// inspects: the first 8 samples, roughly the next three days at 3-hour
// cadence.
const rainCheckSamples = 8

// Heavy-rain sample thresholds, matching the hazard detector's daily rule.
const (
	heavyRainPop = 0.70
	heavyRainMM  = 10.0
)

// Tolerance grades a crop's rain tolerance.
type Tolerance string

const (
	ToleranceLow    Tolerance = "low"
	ToleranceMedium Tolerance = "medium"
	ToleranceHigh   Tolerance = "high"
)

// CropProfile is one fixed crop entry from the embedded catalogue.
type CropProfile struct {
	Name            string     `yaml:"crop"`
	SowingTempRange [2]float64 `yaml:"sowing_temperature_range"`
	RainTolerance   Tolerance  `yaml:"rain_tolerance"`
	Notes           string     `yaml:"notes"`
}

// Recommendation is one advisory line tagged with a presentation severity.
type Recommendation struct {
	Severity models.Severity `json:"severity"`
	Message  string          `json:"message"`
}

// Advice is the full response for one crop.
type Advice struct {
	Crop            string           `json:"crop"`
	Recommendations []Recommendation `json:"recommendations"`
}

//go:embed crops.yaml
var cropsRaw []byte

type cropFile struct {
	Crops []CropProfile `yaml:"crops"`
}

// Advisor evaluates crop rules against weather data.
type Advisor struct {
	crops map[string]CropProfile
}

// NewAdvisor loads the embedded crop catalogue.
func NewAdvisor() (*Advisor, error) {
	var file cropFile
	if err := yaml.Unmarshal(cropsRaw, &file); err != nil {
		return nil, fmt.Errorf("parse crop catalogue: %w", err)
	}
	crops := make(map[string]CropProfile, len(file.Crops))
	for _, c := range file.Crops {
		crops[strings.ToLower(c.Name)] = c
	}
	return &Advisor{crops: crops}, nil
}

// Crops returns the catalogue's crop names, sorted.
func (a *Advisor) Crops() []string {
	names := make([]string, 0, len(a.crops))
	for _, c := range a.crops {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// Advise looks up the crop (case-insensitive) and emits recommendations in
// fixed order: temperature range, rain tolerance over the near forecast,
// then the crop's static notes.
func (a *Advisor) Advise(cropID string, snapshot models.WeatherSnapshot, series models.ForecastSeries) (Advice, error) {
	crop, ok := a.crops[strings.ToLower(strings.TrimSpace(cropID))]
	if !ok {
		return Advice{}, fmt.Errorf("%w: %q", ErrCropNotFound, cropID)
	}

	advice := Advice{Crop: crop.Name}
	low, high := crop.SowingTempRange[0], crop.SowingTempRange[1]
	temp := snapshot.Temperature

	switch {
	case temp < low:
		advice.Recommendations = append(advice.Recommendations, Recommendation{
			Severity: models.SeverityWarning,
			Message: fmt.Sprintf("Temperature (%.1f°C) is below optimal sowing range (%.0f-%.0f°C). Consider delaying sowing.",
				temp, low, high),
		})
	case temp > high:
		advice.Recommendations = append(advice.Recommendations, Recommendation{
			Severity: models.SeverityWarning,
			Message: fmt.Sprintf("Temperature (%.1f°C) is above optimal sowing range. Ensure adequate irrigation.",
				temp),
		})
	default:
		advice.Recommendations = append(advice.Recommendations, Recommendation{
			Severity: models.SeveritySuccess,
			Message:  fmt.Sprintf("Temperature is within optimal range for %s sowing.", crop.Name),
		})
	}

	if rec, ok := a.rainRecommendation(crop, series); ok {
		advice.Recommendations = append(advice.Recommendations, rec)
	}

	if crop.Notes != "" {
		advice.Recommendations = append(advice.Recommendations, Recommendation{
			Severity: models.SeverityInfo,
			Message:  crop.Notes,
		})
	}
	return advice, nil
}

// rainRecommendation checks the near forecast for heavy-rain samples and
// grades the advisory by the crop's tolerance. High-tolerance crops get
// nothing.
func (a *Advisor) rainRecommendation(crop CropProfile, series models.ForecastSeries) (Recommendation, bool) {
	window := series
	if len(window) > rainCheckSamples {
		window = window[:rainCheckSamples]
	}

	heavy := false
	for _, sample := range window {
		if sample.PrecipChance >= heavyRainPop && sample.RainfallMM > heavyRainMM {
			heavy = true
			break
		}
	}
	if !heavy {
		return Recommendation{}, false
	}

	switch crop.RainTolerance {
	case ToleranceLow:
		return Recommendation{
			Severity: models.SeverityCritical,
			Message:  fmt.Sprintf("Heavy rain forecasted. %s has low rain tolerance. Delay fertilization and protect crops.", crop.Name),
		}, true
	case ToleranceMedium:
		return Recommendation{
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("Moderate to heavy rain expected. Monitor %s fields closely.", crop.Name),
		}, true
	default:
		return Recommendation{}, false
	}
}
