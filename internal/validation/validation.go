package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrQueryEmpty is returned when the place name is empty or whitespace-only after trim.
var ErrQueryEmpty = errors.New("place name is required")

// ErrQueryTooLong is returned when the place name length exceeds the maximum.
var ErrQueryTooLong = errors.New("place name too long")

// ErrQueryInvalidChars is returned when the place name contains disallowed characters.
var ErrQueryInvalidChars = errors.New("place name contains invalid characters")

// ErrLatitudeRange is returned when latitude is outside [-90, 90].
var ErrLatitudeRange = errors.New("latitude out of range")

// ErrLongitudeRange is returned when longitude is outside [-180, 180].
var ErrLongitudeRange = errors.New("longitude out of range")

// maxQueryRunes bounds free-text place names; geocoding queries longer than
// this are junk input.
const maxQueryRunes = 100

// ValidatePlaceName trims the input, enforces the length bound, and restricts
// to letters (Unicode), digits, space, comma, period, apostrophe, hyphen.
// Returns the trimmed string or an error suitable for 400 responses.
func ValidatePlaceName(input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrQueryEmpty
	}
	if len(r) > maxQueryRunes {
		return "", ErrQueryTooLong
	}
	for _, c := range r {
		if !isAllowedPlaceRune(c) {
			return "", ErrQueryInvalidChars
		}
	}
	return s, nil
}

// ValidateCoordinates checks that the pair is a plausible geographic point.
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return ErrLatitudeRange
	}
	if lon < -180 || lon > 180 {
		return ErrLongitudeRange
	}
	return nil
}

// isAllowedPlaceRune returns true for letters (Unicode), digits, space,
// comma, period, apostrophe, hyphen.
func isAllowedPlaceRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '.', '\'', '-':
		return true
	}
	return false
}
