// Package normalize maps the two incompatible upstream payload shapes into
// the canonical bundle fields. Pure functions only: no I/O, no clocks.
//
// The rich (One Call 3.0) payload is Celsius-native because the gateway
// requests units=metric; the legacy data/2.5 pair is Kelvin-native. Unit
// reconciliation happens here, exactly once per variant, and raw upstream
// numbers never escape this package.
package normalize

import (
	"sort"
	"time"

	"github.com/agrocast/weather-insight-service/internal/models"
)

// richDailyLimit caps how many daily records of the rich payload become
// forecast samples.
const richDailyLimit = 7

// KelvinToCelsius converts an absolute Kelvin temperature to Celsius.
func KelvinToCelsius(k float64) float64 {
	return k - 273.15
}

type condition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

func conditionText(items []condition) (string, string) {
	if len(items) == 0 {
		return "", ""
	}
	text := items[0].Main
	if items[0].Description != "" {
		text = items[0].Description
	}
	return text, items[0].Icon
}

// RichPayload is the One Call 3.0 response shape (Celsius-native).
type RichPayload struct {
	TimezoneOffset int `json:"timezone_offset"`
	Current        struct {
		Dt         int64       `json:"dt"`
		Sunrise    int64       `json:"sunrise"`
		Sunset     int64       `json:"sunset"`
		Temp       float64     `json:"temp"`
		FeelsLike  float64     `json:"feels_like"`
		Pressure   float64     `json:"pressure"`
		Humidity   float64     `json:"humidity"`
		Visibility float64     `json:"visibility"`
		WindSpeed  float64     `json:"wind_speed"`
		Weather    []condition `json:"weather"`
	} `json:"current"`
	Daily []RichDaily `json:"daily"`
}

// RichDaily is one daily record of the rich payload.
type RichDaily struct {
	Dt   int64 `json:"dt"`
	Temp struct {
		Day float64 `json:"day"`
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"temp"`
	Pressure  float64     `json:"pressure"`
	Humidity  float64     `json:"humidity"`
	WindSpeed float64     `json:"wind_speed"`
	Pop       float64     `json:"pop"`
	Rain      float64     `json:"rain"`
	Weather   []condition `json:"weather"`
}

// LegacyCurrent is the data/2.5 current-conditions response (Kelvin-native).
type LegacyCurrent struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Pressure  float64 `json:"pressure"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Visibility float64 `json:"visibility"`
	Sys        struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
	Weather  []condition `json:"weather"`
	Name     string      `json:"name"`
	Timezone int         `json:"timezone"`
}

// LegacyForecast is the data/2.5 3-hourly forecast response (Kelvin-native).
type LegacyForecast struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			TempMin  float64 `json:"temp_min"`
			TempMax  float64 `json:"temp_max"`
			Pressure float64 `json:"pressure"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Pop  float64 `json:"pop"`
		Rain struct {
			ThreeH float64 `json:"3h"`
		} `json:"rain"`
		Weather []condition `json:"weather"`
	} `json:"list"`
}

// AirPollution is the air quality endpoint response.
type AirPollution struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
		Components map[string]float64 `json:"components"`
	} `json:"list"`
}

// FromRich converts a rich payload into canonical snapshot + series. Each
// daily record becomes exactly one forecast sample; days are never
// subdivided into synthetic 3-hour slots.
func FromRich(p *RichPayload, placeName string) (models.WeatherSnapshot, models.ForecastSeries, int) {
	cond, icon := conditionText(p.Current.Weather)
	snapshot := models.WeatherSnapshot{
		Timestamp:   time.Unix(p.Current.Dt, 0).UTC(),
		Temperature: p.Current.Temp,
		FeelsLike:   p.Current.FeelsLike,
		Humidity:    p.Current.Humidity,
		Pressure:    p.Current.Pressure,
		WindSpeed:   p.Current.WindSpeed,
		Visibility:  p.Current.Visibility,
		Condition:   cond,
		Icon:        icon,
		PlaceName:   placeName,
	}
	if p.Current.Sunrise > 0 {
		snapshot.Sunrise = time.Unix(p.Current.Sunrise, 0).UTC()
	}
	if p.Current.Sunset > 0 {
		snapshot.Sunset = time.Unix(p.Current.Sunset, 0).UTC()
	}

	daily := p.Daily
	if len(daily) > richDailyLimit {
		daily = daily[:richDailyLimit]
	}
	series := make(models.ForecastSeries, 0, len(daily))
	for _, day := range daily {
		cond, icon := conditionText(day.Weather)
		series = append(series, models.ForecastSample{
			Timestamp:    time.Unix(day.Dt, 0).UTC(),
			Temperature:  day.Temp.Day,
			TempMin:      day.Temp.Min,
			TempMax:      day.Temp.Max,
			Humidity:     day.Humidity,
			Pressure:     day.Pressure,
			WindSpeed:    day.WindSpeed,
			PrecipChance: day.Pop,
			RainfallMM:   day.Rain,
			Condition:    cond,
			Icon:         icon,
		})
	}

	return snapshot, canonicalize(series), p.TimezoneOffset
}

// FromLegacy converts the legacy current+forecast pair into canonical
// snapshot + series, applying the Kelvin offset once per temperature field.
// Each native 3-hour record passes through as exactly one sample.
func FromLegacy(cur *LegacyCurrent, fc *LegacyForecast, placeName string) (models.WeatherSnapshot, models.ForecastSeries, int) {
	if placeName == "" {
		placeName = cur.Name
	}

	cond, icon := conditionText(cur.Weather)
	snapshot := models.WeatherSnapshot{
		Timestamp:   time.Unix(cur.Dt, 0).UTC(),
		Temperature: KelvinToCelsius(cur.Main.Temp),
		FeelsLike:   KelvinToCelsius(cur.Main.FeelsLike),
		Humidity:    cur.Main.Humidity,
		Pressure:    cur.Main.Pressure,
		WindSpeed:   cur.Wind.Speed,
		Visibility:  cur.Visibility,
		Condition:   cond,
		Icon:        icon,
		PlaceName:   placeName,
	}
	if cur.Sys.Sunrise > 0 {
		snapshot.Sunrise = time.Unix(cur.Sys.Sunrise, 0).UTC()
	}
	if cur.Sys.Sunset > 0 {
		snapshot.Sunset = time.Unix(cur.Sys.Sunset, 0).UTC()
	}

	series := make(models.ForecastSeries, 0, len(fc.List))
	for _, item := range fc.List {
		cond, icon := conditionText(item.Weather)
		series = append(series, models.ForecastSample{
			Timestamp:    time.Unix(item.Dt, 0).UTC(),
			Temperature:  KelvinToCelsius(item.Main.Temp),
			TempMin:      KelvinToCelsius(item.Main.TempMin),
			TempMax:      KelvinToCelsius(item.Main.TempMax),
			Humidity:     item.Main.Humidity,
			Pressure:     item.Main.Pressure,
			WindSpeed:    item.Wind.Speed,
			PrecipChance: item.Pop,
			RainfallMM:   item.Rain.ThreeH,
			Condition:    cond,
			Icon:         icon,
		})
	}

	return snapshot, canonicalize(series), cur.Timezone
}

// FromAirPollution converts the air quality response into a reading, or nil
// when the response carried no entries.
func FromAirPollution(p *AirPollution) *models.AirQualityReading {
	if len(p.List) == 0 {
		return nil
	}
	entry := p.List[0]
	return &models.AirQualityReading{
		Index:      entry.Main.AQI,
		Components: entry.Components,
		Timestamp:  time.Unix(entry.Dt, 0).UTC(),
	}
}

// canonicalize sorts a series chronologically and drops duplicate timestamps,
// keeping the first occurrence.
func canonicalize(series models.ForecastSeries) models.ForecastSeries {
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})
	out := series[:0]
	var last time.Time
	for i, s := range series {
		if i > 0 && s.Timestamp.Equal(last) {
			continue
		}
		out = append(out, s)
		last = s.Timestamp
	}
	return out
}
