package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog"

	"releasehub/internal/ledger"
	"releasehub/internal/logging"
	"releasehub/internal/metrics"
	"releasehub/internal/pacer"
	"releasehub/internal/steam"
	"releasehub/internal/titles"
	"releasehub/pkg/models"
)

// DetailsFetcher fetches one app's store details.
type DetailsFetcher interface {
	AppDetails(ctx context.Context, appID int64) (*steam.Details, error)
}

// Worker enriches single titles from the details endpoint.
type Worker struct {
	Upstream DetailsFetcher
	Retry    pacer.Retry
	// BreakerWait is how long to hold a title when the upstream breaker is
	// open before asking once more.
	BreakerWait time.Duration
	log         zerolog.Logger
}

func NewWorker(up DetailsFetcher, retry pacer.Retry) *Worker {
	return &Worker{Upstream: up, Retry: retry, log: logging.Component("enrich")}
}

// Enrich fetches details for t and applies them in place.
//
// On success the free-text fields are compared and only changed ones are
// replaced; the ledger entry is cleared when genres came back and
// incremented otherwise. A 403 flags the title unavailable. Rate limiting is
// retried with exponential backoff. Any other failure leaves the fields
// alone. In every case the title is marked checked, and updated_at moves
// only when something changed.
//
// While the breaker is open no request is sent; the worker waits
// BreakerWait and asks again. A non-nil error is returned when ctx is done
// or the endpoint is still unavailable after that wait; the title is then
// left untouched.
func (w *Worker) Enrich(ctx context.Context, t *models.Title, l ledger.Ledger) (models.EnrichResult, error) {
	res := models.EnrichResult{AppID: t.AppID}
	b := w.Retry.BackOff()

	var (
		details *steam.Details
		err     error
		held    bool
	)
	for {
		details, err = w.Upstream.AppDetails(ctx, t.AppID)
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if errors.Is(err, steam.ErrUnavailable) {
			if held {
				return res, fmt.Errorf("enrich %d: %w", t.AppID, err)
			}
			held = true
			w.log.Warn().Int64("appid", t.AppID).Dur("wait", w.BreakerWait).Msg("details endpoint unavailable, holding title")
			if err := pacer.Sleep(ctx, w.BreakerWait); err != nil {
				return res, err
			}
			continue
		}
		res.Attempts++
		if !errors.Is(err, steam.ErrRateLimited) {
			break
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			break
		}
		w.log.Debug().Int64("appid", t.AppID).Dur("wait", wait).Int("attempt", res.Attempts).Msg("rate limited, backing off")
		if err := pacer.Sleep(ctx, wait); err != nil {
			return res, err
		}
	}

	switch {
	case err == nil:
		res.Changed = apply(t, details)
		res.GenresFound = details.GenreString() != ""
		if res.GenresFound {
			l.Clear(t.AppID)
		} else {
			l.Fail(t.AppID)
		}
		res.Outcome = models.OutcomeUnchanged
		if res.Changed {
			res.Outcome = models.OutcomeUpdated
		}
	case errors.Is(err, steam.ErrForbidden):
		if !t.Unavailable {
			t.Unavailable = true
			res.Changed = true
		}
		res.Outcome = models.OutcomeForbidden
	case errors.Is(err, steam.ErrRateLimited):
		res.Outcome = models.OutcomeRateLimited
	case errors.Is(err, steam.ErrMalformed):
		res.Outcome = models.OutcomeMalformed
	default:
		res.Outcome = models.OutcomeFailed
	}
	if err != nil {
		res.Error = err.Error()
		w.log.Debug().Int64("appid", t.AppID).Str("outcome", string(res.Outcome)).Err(err).Msg("enrichment abandoned")
	}

	t.ReleaseDateChecked = true
	if res.Changed {
		t.UpdatedAt = titles.Timestamp(titles.Now())
	}
	metrics.EnrichResults.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

// apply copies fetched fields that differ and reports whether any did.
func apply(t *models.Title, d *steam.Details) bool {
	changed := false
	set := func(dst *string, v string) {
		if *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&t.ReleaseDate, d.ReleaseDate)
	set(&t.Type, d.Type)
	set(&t.Genres, d.GenreString())
	return changed
}
