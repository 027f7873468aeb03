package models

import "time"

// EnrichOutcome classifies what happened to one title during enrichment.
type EnrichOutcome string

const (
	OutcomeUpdated     EnrichOutcome = "updated"      // fields changed and were written
	OutcomeUnchanged   EnrichOutcome = "unchanged"    // fetch succeeded, nothing differed
	OutcomeRateLimited EnrichOutcome = "rate_limited" // 429 on every attempt
	OutcomeForbidden   EnrichOutcome = "forbidden"    // 403, title flagged unavailable
	OutcomeMalformed   EnrichOutcome = "malformed"    // success=false or empty payload
	OutcomeFailed      EnrichOutcome = "failed"       // transport error or other status
)

// EnrichResult is returned by the enrichment worker for a single title.
type EnrichResult struct {
	AppID    int64         `json:"appid"`
	Outcome  EnrichOutcome `json:"outcome"`
	Changed  bool          `json:"changed"`
	Attempts int           `json:"attempts"`
	// GenresFound is only meaningful when the fetch succeeded.
	GenresFound bool   `json:"genres_found"`
	Error       string `json:"error,omitempty"`
}

// SyncReport summarises one catalog sync pass.
type SyncReport struct {
	RunID          string                `json:"run_id"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
	PrevCheckpoint int64                 `json:"prev_checkpoint"`
	Checkpoint     int64                 `json:"checkpoint"`
	DeltaSize      int                   `json:"delta_size"`
	Inserted       int                   `json:"inserted"`
	Skipped        int                   `json:"skipped"` // excluded by the retry ledger
	WorkingSet     int                   `json:"working_set"`
	Written        int                   `json:"written"`
	Outcomes       map[EnrichOutcome]int `json:"outcomes"`
}

// Count records one enrichment outcome.
func (r *SyncReport) Count(o EnrichOutcome) {
	if r.Outcomes == nil {
		r.Outcomes = make(map[EnrichOutcome]int)
	}
	r.Outcomes[o]++
}
