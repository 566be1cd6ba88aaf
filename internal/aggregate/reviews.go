package aggregate

import (
	"context"

	"gmb-connector/internal/gmb"
	"gmb-connector/internal/storage"
)

// LocationReviews is the first review page of one location.
type LocationReviews struct {
	locationRef
	Reviews *gmb.ReviewsPage `json:"reviews"`
}

// ReviewsResult holds the locations that answered and those that failed.
type ReviewsResult struct {
	Reviews             []LocationReviews `json:"reviews"`
	LocationsWithErrors []LocationError   `json:"locationsWithErrors,omitempty"`
}

// GetStartingReviews reads the first review page of every location
// concurrently. Entries keep the input order of the locations.
func (e *Engine) GetStartingReviews(ctx context.Context, locations []storage.Location) *ReviewsResult {
	results := make([]gmb.Result[*gmb.ReviewsPage], len(locations))
	fanOut(locations, func(i int, loc storage.Location) {
		results[i] = e.api.ListReviews(ctx, loc.NameID, "")
	})

	out := &ReviewsResult{Reviews: []LocationReviews{}}
	for i, res := range results {
		loc := locations[i]
		if !res.OK() {
			e.logFailure(ctx, gmb.OpListReviews, loc, res.Err)
			if e.options.ReportLocationErrors {
				out.LocationsWithErrors = append(out.LocationsWithErrors, newLocationError(loc, res.Err))
			}
			continue
		}
		out.Reviews = append(out.Reviews, LocationReviews{locationRef: refOf(loc), Reviews: res.Value})
	}
	return out
}
