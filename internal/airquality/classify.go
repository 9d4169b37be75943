// Package airquality maps the upstream air quality index to a severity
// category and health advisory.
package airquality

// defaultIndex is the category served when the index is outside the lookup
// table. A documented default, not an error.
const defaultIndex = 3

// Category pairs a severity label with its health recommendation.
type Category struct {
	Label          string
	Recommendation string
}

var categories = map[int]Category{
	1: {
		Label:          "Good",
		Recommendation: "Air quality is satisfactory. Outdoor field work is safe for everyone.",
	},
	2: {
		Label:          "Fair",
		Recommendation: "Air quality is acceptable. Unusually sensitive people should consider limiting prolonged outdoor exertion.",
	},
	3: {
		Label:          "Moderate",
		Recommendation: "Members of sensitive groups may experience health effects. Limit prolonged outdoor exertion during spraying or tilling.",
	},
	4: {
		Label:          "Poor",
		Recommendation: "Everyone may begin to experience health effects. Wear a mask during dusty field operations and limit time outdoors.",
	},
	5: {
		Label:          "Very Poor",
		Recommendation: "Health warnings of emergency conditions. Avoid outdoor work; keep livestock sheltered where possible.",
	},
}

// Assessment is the classified result for one reading.
type Assessment struct {
	Index             int     `json:"index"`
	Category          string  `json:"category"`
	Recommendation    string  `json:"recommendation"`
	DominantPollutant string  `json:"dominantPollutant,omitempty"`
	Concentration     float64 `json:"concentration,omitempty"`
}

// Classify maps the index to its category and picks the dominant pollutant,
// the component with the highest concentration. An index outside 1..5 falls
// back to the moderate category. Exact concentration ties break by map
// iteration order; which pollutant wins is unspecified and acceptable.
func Classify(index int, components map[string]float64) Assessment {
	cat, ok := categories[index]
	if !ok {
		cat = categories[defaultIndex]
	}

	out := Assessment{
		Index:          index,
		Category:       cat.Label,
		Recommendation: cat.Recommendation,
	}
	for name, value := range components {
		if out.DominantPollutant == "" || value > out.Concentration {
			out.DominantPollutant = name
			out.Concentration = value
		}
	}
	return out
}
