package store

import (
	"context"

	"github.com/agrocast/weather-insight-service/internal/models"
)

// maxSavedLocations caps the recent-locations list.
const maxSavedLocations = 10

// LoadLocations returns the saved-locations list, most recent first. A
// missing key yields an empty list.
func LoadLocations(ctx context.Context, s Store) ([]models.SavedLocationEntry, error) {
	var list []models.SavedLocationEntry
	if _, err := s.Get(ctx, KeyLocations, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// AppendLocation prepends entry to the saved-locations list and trims it to
// the cap. An existing entry survives only when its name, latitude and
// longitude ALL differ from the new entry; matching on any single field
// (even just a shared latitude) evicts it. The condition reads like it
// wanted to be an OR of equalities, but this AND of inequalities is the
// historical behaviour of the list and callers read it back verbatim, so it
// is reproduced as-is rather than silently fixed.
func AppendLocation(ctx context.Context, s Store, entry models.SavedLocationEntry) error {
	list, err := LoadLocations(ctx, s)
	if err != nil {
		return err
	}

	filtered := make([]models.SavedLocationEntry, 0, len(list)+1)
	filtered = append(filtered, entry)
	for _, old := range list {
		if old.Name != entry.Name && old.Lat != entry.Lat && old.Lon != entry.Lon {
			filtered = append(filtered, old)
		}
	}
	if len(filtered) > maxSavedLocations {
		filtered = filtered[:maxSavedLocations]
	}
	return s.Set(ctx, KeyLocations, filtered)
}

// ClearLocations removes the saved-locations list entirely. Only an explicit
// user action reaches this; the pipeline never clears.
func ClearLocations(ctx context.Context, s Store) error {
	return s.Delete(ctx, KeyLocations)
}
