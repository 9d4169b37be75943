package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePlaceName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"simple city", "Pune", "Pune", nil},
		{"trims whitespace", "  Nashik  ", "Nashik", nil},
		{"comma separated", "Pune, Maharashtra", "Pune, Maharashtra", nil},
		{"apostrophe and hyphen", "Saint-Lô d'Ouville", "Saint-Lô d'Ouville", nil},
		{"unicode letters", "München", "München", nil},
		{"digits allowed", "Sector 17", "Sector 17", nil},
		{"empty", "", "", ErrQueryEmpty},
		{"whitespace only", "   ", "", ErrQueryEmpty},
		{"too long", strings.Repeat("a", 101), "", ErrQueryTooLong},
		{"at length bound", strings.Repeat("a", 100), strings.Repeat("a", 100), nil},
		{"angle bracket", "<script>", "", ErrQueryInvalidChars},
		{"semicolon", "Pune;drop", "", ErrQueryInvalidChars},
		{"slash", "a/b", "", ErrQueryInvalidChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePlaceName(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidatePlaceName(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidatePlaceName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lon     float64
		wantErr error
	}{
		{"origin", 0, 0, nil},
		{"typical point", 18.52, 73.86, nil},
		{"poles", 90, 0, nil},
		{"antimeridian", 0, -180, nil},
		{"latitude too high", 90.0001, 0, ErrLatitudeRange},
		{"latitude too low", -91, 0, ErrLatitudeRange},
		{"longitude too high", 0, 180.5, ErrLongitudeRange},
		{"longitude too low", 0, -181, ErrLongitudeRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateCoordinates(tt.lat, tt.lon); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateCoordinates(%v, %v) = %v, want %v", tt.lat, tt.lon, err, tt.wantErr)
			}
		})
	}
}
