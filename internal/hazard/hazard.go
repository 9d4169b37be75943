// Package hazard aggregates forecast samples into daily buckets and
// evaluates agricultural hazard thresholds. Pure and deterministic: output
// order follows the input's chronological order and is stable for equal
// dates.
package hazard

import (
	"fmt"
	"time"

	"github.com/agrocast/weather-insight-service/internal/models"
)

// Thresholds, per day.
const (
	heavyRainPop    = 0.70 // precipitation probability at or above
	heavyRainSumMM  = 10.0 // summed rainfall strictly above, mm
	highWindSpeedMS = 15.0 // max wind strictly above, m/s
	heatwaveTempC   = 40.0 // max temperature strictly above, two consecutive days
	frostTempC      = 0.0  // min temperature strictly below
)

// Alert is one hazard finding attributed to a calendar date.
type Alert struct {
	Severity models.Severity `json:"severity"`
	Title    string          `json:"title"`
	Message  string          `json:"message"`
	Action   string          `json:"action"`
	Date     string          `json:"date"` // YYYY-MM-DD in the forecast's timezone
}

// DailyAggregate is the derived per-calendar-day summary. Built fresh per
// evaluation, never persisted.
type DailyAggregate struct {
	Date    string
	MaxTemp float64
	MinTemp float64
	MaxWind float64
	MaxPop  float64
	RainSum float64
}

// Detect buckets the series by calendar date (shifted by tzOffsetSeconds)
// and evaluates each day independently; a day may emit zero, one, or several
// alerts. An empty series yields an empty result, not an error.
func Detect(series models.ForecastSeries, tzOffsetSeconds int) []Alert {
	days := AggregateDaily(series, tzOffsetSeconds)

	var alerts []Alert
	for i, day := range days {
		if day.MaxPop >= heavyRainPop && day.RainSum > heavyRainSumMM {
			alerts = append(alerts, Alert{
				Severity: models.SeverityCritical,
				Title:    "Heavy Rain Alert",
				Message:  "Heavy rainfall expected. Risk of flooding and waterlogging. Postpone pesticide spraying and protect vulnerable crops.",
				Action:   "Move vulnerable livestock, delay fertilization",
				Date:     day.Date,
			})
		}

		if day.MaxWind > highWindSpeedMS {
			alerts = append(alerts, Alert{
				Severity: models.SeverityCritical,
				Title:    "High Wind/Storm Alert",
				Message:  fmt.Sprintf("Wind speed expected to reach %.1f m/s.", day.MaxWind),
				Action:   "Secure farm structures, protect crops from wind damage",
				Date:     day.Date,
			})
		}

		// Heatwave needs two consecutive hot days and is attributed to the
		// first of the pair only.
		if day.MaxTemp > heatwaveTempC && i+1 < len(days) && days[i+1].MaxTemp > heatwaveTempC {
			alerts = append(alerts, Alert{
				Severity: models.SeverityWarning,
				Title:    "Heatwave Alert",
				Message:  "Temperatures exceeding 40°C for multiple days. High risk of crop stress.",
				Action:   "Increase irrigation frequency, provide shade for sensitive crops",
				Date:     day.Date,
			})
		}

		if day.MinTemp < frostTempC {
			alerts = append(alerts, Alert{
				Severity: models.SeverityCritical,
				Title:    "Frost Alert",
				Message:  fmt.Sprintf("Minimum temperature expected to drop to %.1f°C.", day.MinTemp),
				Action:   "Cover seedlings, move sensitive plants indoors, protect irrigation systems",
				Date:     day.Date,
			})
		}
	}
	return alerts
}

// AggregateDaily buckets samples into per-date aggregates, preserving the
// first-seen order of dates.
func AggregateDaily(series models.ForecastSeries, tzOffsetSeconds int) []DailyAggregate {
	loc := time.FixedZone("forecast", tzOffsetSeconds)

	var (
		days  []DailyAggregate
		index = make(map[string]int)
	)
	for _, sample := range series {
		date := sample.Timestamp.In(loc).Format("2006-01-02")
		i, seen := index[date]
		if !seen {
			days = append(days, DailyAggregate{
				Date:    date,
				MaxTemp: sample.TempMax,
				MinTemp: sample.TempMin,
				MaxWind: sample.WindSpeed,
				MaxPop:  sample.PrecipChance,
				RainSum: sample.RainfallMM,
			})
			index[date] = len(days) - 1
			continue
		}
		day := &days[i]
		if sample.TempMax > day.MaxTemp {
			day.MaxTemp = sample.TempMax
		}
		if sample.TempMin < day.MinTemp {
			day.MinTemp = sample.TempMin
		}
		if sample.WindSpeed > day.MaxWind {
			day.MaxWind = sample.WindSpeed
		}
		if sample.PrecipChance > day.MaxPop {
			day.MaxPop = sample.PrecipChance
		}
		day.RainSum += sample.RainfallMM
	}
	return days
}
