// Package calendar groups checked games into per-day release buckets for a
// month.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"releasehub/internal/dates"
	"releasehub/internal/titles"
	"releasehub/pkg/models"
)

var ErrInvalidDate = errors.New("calendar: invalid date")

// Source returns checked games whose release text matches a pattern, and
// titles by id.
type Source interface {
	MatchingReleaseDate(ctx context.Context, patterns []string) ([]models.Title, error)
	GetMany(ctx context.Context, ids []int64) ([]models.Title, error)
}

// Entry is one title in a bucket.
type Entry struct {
	models.Title
	Favorite bool `json:"favorite"`
}

// Month is the result of ReleasesFor.
type Month struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	// Days is keyed by the normalized release date. Month-only and
	// quarter-only dates land on the first day of the period.
	Days map[dates.Date][]Entry `json:"days"`
	// Unparsed holds titles whose text matched the month but could not be
	// normalized.
	Unparsed []Entry `json:"no_date"`
}

// SortedDays returns the bucket keys in calendar order.
func (m *Month) SortedDays() []dates.Date {
	out := make([]dates.Date, 0, len(m.Days))
	for d := range m.Days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time().Before(out[j].Time()) })
	return out
}

// Total counts entries across all buckets.
func (m *Month) Total() int {
	n := len(m.Unparsed)
	for _, es := range m.Days {
		n += len(es)
	}
	return n
}

// Query selects a month. Excluded genre ids override the aggregator
// default when non-nil. Favorites marks entries for the caller.
type Query struct {
	Year      int
	Month     time.Month
	Excluded  []string
	Favorites map[int64]struct{}
}

type Aggregator struct {
	Titles   Source
	Excluded []string
}

func NewAggregator(src Source, excluded []string) *Aggregator {
	return &Aggregator{Titles: src, Excluded: excluded}
}

func (q Query) validate() error {
	if q.Year < 1 || q.Year > 9999 || q.Month < time.January || q.Month > time.December {
		return fmt.Errorf("%w: %04d-%02d", ErrInvalidDate, q.Year, int(q.Month))
	}
	return nil
}

// ReleasesFor returns every checked, non-excluded game whose release text
// mentions the month, bucketed by normalized date.
func (a *Aggregator) ReleasesFor(ctx context.Context, q Query) (*Month, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	ts, err := a.Titles.MatchingReleaseDate(ctx, MonthPatterns(q.Year, q.Month))
	if err != nil {
		return nil, fmt.Errorf("releases for %04d-%02d: %w", q.Year, int(q.Month), err)
	}
	excluded := q.Excluded
	if excluded == nil {
		excluded = a.Excluded
	}
	return Bucket(q.Year, q.Month, ts, excluded, q.Favorites), nil
}

// ReleasesOn returns the bucket for one day of ReleasesFor's result.
func (a *Aggregator) ReleasesOn(ctx context.Context, q Query, day int) ([]Entry, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if !dates.Valid(q.Year, q.Month, day) {
		return nil, fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, q.Year, int(q.Month), day)
	}
	m, err := a.ReleasesFor(ctx, q)
	if err != nil {
		return nil, err
	}
	entries := m.Days[dates.New(q.Year, q.Month, day)]
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// FavoritesOn returns the favorites whose release date is exactly day.
// Month, quarter and year-only dates never match a specific day.
func (a *Aggregator) FavoritesOn(ctx context.Context, favorites []int64, day dates.Date) ([]models.Title, error) {
	if len(favorites) == 0 {
		return nil, nil
	}
	ts, err := a.Titles.GetMany(ctx, favorites)
	if err != nil {
		return nil, fmt.Errorf("favorites on %s: %w", day, err)
	}
	var out []models.Title
	for _, t := range ts {
		r := dates.Normalize(t.ReleaseDate)
		if r.Precision == dates.PrecisionDay && r.Date == day {
			out = append(out, t)
		}
	}
	return out, nil
}

// Bucket groups titles by normalized release date, dropping titles tagged
// with any excluded genre. Buckets are ordered by name then appid.
func Bucket(year int, month time.Month, ts []models.Title, excluded []string, favorites map[int64]struct{}) *Month {
	m := &Month{Year: year, Month: month, Days: make(map[dates.Date][]Entry), Unparsed: []Entry{}}
	for _, t := range ts {
		if titles.HasAnyGenre(t.Genres, excluded) {
			continue
		}
		_, fav := favorites[t.AppID]
		e := Entry{Title: t, Favorite: fav}

		d, ok := dates.Parse(t.ReleaseDate)
		if !ok {
			m.Unparsed = append(m.Unparsed, e)
			continue
		}
		m.Days[d] = append(m.Days[d], e)
	}

	for d := range m.Days {
		sortEntries(m.Days[d])
	}
	sortEntries(m.Unparsed)
	return m
}

func sortEntries(es []Entry) {
	sort.SliceStable(es, func(i, j int) bool {
		if es[i].Name != es[j].Name {
			return es[i].Name < es[j].Name
		}
		return es[i].AppID < es[j].AppID
	})
}
