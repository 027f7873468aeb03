// Package catalog keeps the local catalog in step with the store: it pulls
// the catalog delta, enriches changed games from the details endpoint and
// advances the checkpoint.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"releasehub/internal/checkpoint"
	"releasehub/internal/feed"
	"releasehub/internal/ledger"
	"releasehub/internal/logging"
	"releasehub/internal/metrics"
	"releasehub/internal/pacer"
	"releasehub/internal/state"
	"releasehub/internal/steam"
	"releasehub/pkg/models"
)

// ErrSyncInProgress is returned when a pass is started while another runs.
var ErrSyncInProgress = errors.New("catalog: sync already running")

// Upstream is the store API as the engine uses it.
type Upstream interface {
	DetailsFetcher
	CatalogDelta(ctx context.Context, since int64) (*steam.Delta, error)
}

// Store is the catalog table as the engine uses it.
type Store interface {
	Get(ctx context.Context, appID int64) (*models.Title, error)
	InsertNew(ctx context.Context, items []models.NewTitle) (int, error)
	Candidates(ctx context.Context, ids []int64, skip map[int64]struct{}) ([]models.Title, error)
	Unchecked(ctx context.Context, limit int) ([]models.Title, error)
	SaveBatch(ctx context.Context, batch []models.Title) error
}

// Publisher receives change events; feed.Hub implements it.
type Publisher interface {
	Publish(v any)
}

type Config struct {
	BatchSize       int
	RequestInterval time.Duration
	MaxGenreRetries int
	Retry           pacer.Retry
	// BreakerWait should match the upstream breaker's open timeout.
	BreakerWait time.Duration
}

type Engine struct {
	cfg      Config
	upstream Upstream
	titles   Store
	state    state.Store
	worker   *Worker
	pacer    *pacer.Pacer
	pub      Publisher
	log      zerolog.Logger

	// one pass at a time
	running sync.Mutex
}

// NewEngine wires an engine. pub may be nil.
func NewEngine(cfg Config, up Upstream, ts Store, st state.Store, pub Publisher) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxGenreRetries <= 0 {
		cfg.MaxGenreRetries = 5
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	w := NewWorker(up, cfg.Retry)
	w.BreakerWait = cfg.BreakerWait
	return &Engine{
		cfg:      cfg,
		upstream: up,
		titles:   ts,
		state:    st,
		worker:   w,
		pacer:    pacer.New(cfg.RequestInterval),
		pub:      pub,
		log:      logging.Component("sync"),
	}
}

// SyncCatalog runs one pass: fetch the delta since the checkpoint, insert
// unseen titles, enrich the working set, then commit the new checkpoint and
// the ledger together. If any step fails the checkpoint and ledger keep
// their previous values, so the next pass covers the same delta again.
func (e *Engine) SyncCatalog(ctx context.Context) (*models.SyncReport, error) {
	if !e.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer e.running.Unlock()

	start := time.Now()
	report := &models.SyncReport{RunID: uuid.NewString(), StartedAt: start.UTC()}
	log := e.log.With().Str("run_id", report.RunID).Logger()

	err := e.syncCatalog(ctx, log, report)
	report.FinishedAt = time.Now().UTC()
	metrics.RecordSync(time.Since(start), err)
	e.publish(feed.SyncFinished(report, err))

	if err != nil {
		log.Error().Err(err).Msg("sync pass failed")
		return report, err
	}
	log.Info().
		Int("delta", report.DeltaSize).
		Int("inserted", report.Inserted).
		Int("working_set", report.WorkingSet).
		Int("skipped", report.Skipped).
		Int("written", report.Written).
		Int64("checkpoint", report.Checkpoint).
		Dur("took", time.Since(start)).
		Msg("sync pass finished")
	return report, nil
}

func (e *Engine) syncCatalog(ctx context.Context, log zerolog.Logger, report *models.SyncReport) error {
	cp, err := checkpoint.Load(ctx, e.state)
	if err != nil {
		log.Warn().Err(err).Msg("checkpoint unreadable, starting from zero")
	}
	l, err := ledger.Load(ctx, e.state)
	if err != nil {
		log.Warn().Err(err).Msg("retry ledger unreadable, starting empty")
	}
	report.PrevCheckpoint = cp
	report.Checkpoint = cp

	delta, err := e.upstream.CatalogDelta(ctx, cp)
	if err != nil {
		return fmt.Errorf("fetch catalog delta: %w", err)
	}
	report.DeltaSize = len(delta.Apps)

	fresh := make([]models.NewTitle, 0, len(delta.Apps))
	for _, a := range delta.Apps {
		fresh = append(fresh, models.NewTitle{AppID: a.AppID, Name: a.Name})
	}
	report.Inserted, err = e.titles.InsertNew(ctx, fresh)
	if err != nil {
		return fmt.Errorf("insert new titles: %w", err)
	}
	metrics.TitlesInserted.Add(float64(report.Inserted))

	ids := delta.IDs()
	skip := l.Skipped(e.cfg.MaxGenreRetries)
	for _, id := range ids {
		if _, ok := skip[id]; ok {
			report.Skipped++
		}
	}

	candidates, err := e.titles.Candidates(ctx, ids, skip)
	if err != nil {
		return fmt.Errorf("select working set: %w", err)
	}
	report.WorkingSet = len(candidates)
	log.Info().Int64("since", cp).Int("delta", len(ids)).Int("working_set", len(candidates)).Msg("enriching")

	if err := e.enrich(ctx, candidates, l, report); err != nil {
		return err
	}

	next := checkpoint.Advance(cp, delta.MaxModified)
	ledgerBytes, err := l.Encode()
	if err != nil {
		return err
	}
	if err := e.state.Commit(ctx, map[string][]byte{
		checkpoint.Key: checkpoint.Encode(next),
		ledger.Key:     ledgerBytes,
	}); err != nil {
		return fmt.Errorf("commit sync state: %w", err)
	}
	report.Checkpoint = next
	metrics.Checkpoint.Set(float64(next))
	metrics.LedgerSkipped.Set(float64(len(l.Skipped(e.cfg.MaxGenreRetries))))
	return nil
}

// Backfill enriches titles that have never been checked, regardless of the
// delta. It updates the ledger but never the checkpoint.
func (e *Engine) Backfill(ctx context.Context, limit int) (*models.SyncReport, error) {
	if !e.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer e.running.Unlock()

	report := &models.SyncReport{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	l, err := ledger.Load(ctx, e.state)
	if err != nil {
		e.log.Warn().Err(err).Msg("retry ledger unreadable, starting empty")
	}

	unchecked, err := e.titles.Unchecked(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("select unchecked titles: %w", err)
	}
	skip := l.Skipped(e.cfg.MaxGenreRetries)
	candidates := unchecked[:0]
	for _, t := range unchecked {
		if _, ok := skip[t.AppID]; ok {
			report.Skipped++
			continue
		}
		candidates = append(candidates, t)
	}
	report.WorkingSet = len(candidates)

	if err := e.enrich(ctx, candidates, l, report); err != nil {
		return report, err
	}
	if err := ledger.Save(ctx, e.state, l); err != nil {
		return report, err
	}
	report.FinishedAt = time.Now().UTC()
	e.log.Info().Int("working_set", report.WorkingSet).Int("written", report.Written).Msg("backfill finished")
	return report, nil
}

// Refresh enriches a single title immediately, outside the delta.
func (e *Engine) Refresh(ctx context.Context, appID int64) (*models.Title, models.EnrichResult, error) {
	t, err := e.titles.Get(ctx, appID)
	if err != nil {
		return nil, models.EnrichResult{}, err
	}
	if t == nil {
		return nil, models.EnrichResult{}, fmt.Errorf("title %d not found", appID)
	}

	l, err := ledger.Load(ctx, e.state)
	if err != nil {
		e.log.Warn().Err(err).Msg("retry ledger unreadable, starting empty")
	}
	res, err := e.worker.Enrich(ctx, t, l)
	if err != nil {
		return nil, res, err
	}
	if err := e.titles.SaveBatch(ctx, []models.Title{*t}); err != nil {
		return nil, res, fmt.Errorf("save title: %w", err)
	}
	if err := ledger.Save(ctx, e.state, l); err != nil {
		return t, res, err
	}
	if res.Changed {
		e.publish(feed.TitleUpdated(*t))
	}
	return t, res, nil
}

// enrich walks the working set in order, pacing requests and writing in
// batches. On failure it still flushes what was already enriched.
func (e *Engine) enrich(ctx context.Context, candidates []models.Title, l ledger.Ledger, report *models.SyncReport) error {
	b := newBatch(e.titles, e.cfg.BatchSize, func(t models.Title) {
		e.publish(feed.TitleUpdated(t))
	})

	err := func() error {
		for i := range candidates {
			t := &candidates[i]
			if err := e.pacer.Wait(ctx); err != nil {
				return err
			}
			wasChecked := t.ReleaseDateChecked
			res, err := e.worker.Enrich(ctx, t, l)
			if err != nil {
				return err
			}
			report.Count(res.Outcome)
			if res.Changed || !wasChecked {
				if err := b.Add(ctx, *t, res.Changed); err != nil {
					return fmt.Errorf("write batch: %w", err)
				}
			}
		}
		return nil
	}()

	if err != nil {
		if ferr := b.Flush(context.WithoutCancel(ctx)); ferr != nil {
			e.log.Error().Err(ferr).Msg("flush after failed pass")
		}
		report.Written = b.written
		return fmt.Errorf("enrich: %w", err)
	}
	if err := b.Flush(ctx); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	report.Written = b.written
	return nil
}

func (e *Engine) publish(v any) {
	if e.pub != nil {
		e.pub.Publish(v)
	}
}
