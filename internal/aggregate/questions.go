package aggregate

import (
	"context"

	"gmb-connector/internal/gmb"
	"gmb-connector/internal/storage"
)

// LocationQuestions is the first question page of one location.
type LocationQuestions struct {
	locationRef
	Questions *gmb.QuestionsPage `json:"questions"`
}

// QuestionsResult holds the locations that answered and those that failed.
type QuestionsResult struct {
	Questions           []LocationQuestions `json:"questions"`
	LocationsWithErrors []LocationError     `json:"locationsWithErrors,omitempty"`
}

// GetStartingQuestions reads the first question page of every location one
// at a time, in input order. The Q&A quota is too tight for a fan-out.
func (e *Engine) GetStartingQuestions(ctx context.Context, locations []storage.Location) *QuestionsResult {
	out := &QuestionsResult{Questions: []LocationQuestions{}}
	for _, loc := range locations {
		res := e.api.ListQuestions(ctx, loc.NameID, "")
		if !res.OK() {
			e.logFailure(ctx, gmb.OpListQuestions, loc, res.Err)
			if e.options.ReportLocationErrors {
				out.LocationsWithErrors = append(out.LocationsWithErrors, newLocationError(loc, res.Err))
			}
			continue
		}
		out.Questions = append(out.Questions, LocationQuestions{locationRef: refOf(loc), Questions: res.Value})
	}
	return out
}
