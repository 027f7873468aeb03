package catalog

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"releasehub/internal/state"
	"releasehub/internal/steam"
	"releasehub/internal/titles"
	"releasehub/pkg/database"
	"releasehub/pkg/models"
)

type reply struct {
	d   *steam.Details
	err error
}

// fakeUpstream serves a fixed catalog and scripted detail replies. The last
// reply for an id repeats once the script runs out.
type fakeUpstream struct {
	mu       sync.Mutex
	apps     []steam.CatalogEntry
	replies  map[int64][]reply
	calls    map[int64]int
	deltaErr error
	onFetch  func(appID int64)
}

func newFakeUpstream(apps ...steam.CatalogEntry) *fakeUpstream {
	return &fakeUpstream{apps: apps, replies: map[int64][]reply{}, calls: map[int64]int{}}
}

func (f *fakeUpstream) script(id int64, rs ...reply) { f.replies[id] = rs }

func (f *fakeUpstream) CatalogDelta(_ context.Context, since int64) (*steam.Delta, error) {
	if f.deltaErr != nil {
		return nil, f.deltaErr
	}
	d := &steam.Delta{}
	for _, a := range f.apps {
		if a.LastModified > since {
			d.Apps = append(d.Apps, a)
			if a.LastModified > d.MaxModified {
				d.MaxModified = a.LastModified
			}
		}
	}
	return d, nil
}

func (f *fakeUpstream) AppDetails(_ context.Context, appID int64) (*steam.Details, error) {
	f.mu.Lock()
	n := f.calls[appID]
	f.calls[appID]++
	rs := f.replies[appID]
	onFetch := f.onFetch
	f.mu.Unlock()

	if onFetch != nil {
		onFetch(appID)
	}
	if len(rs) == 0 {
		return nil, steam.ErrMalformed
	}
	if n >= len(rs) {
		n = len(rs) - 1
	}
	return rs[n].d, rs[n].err
}

func (f *fakeUpstream) AppList(context.Context) ([]steam.AppListEntry, error) {
	out := make([]steam.AppListEntry, 0, len(f.apps))
	for _, a := range f.apps {
		out = append(out, steam.AppListEntry{AppID: a.AppID, Name: a.Name})
	}
	return out, nil
}

func (f *fakeUpstream) callCount(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func ok(typ, date string, genres ...string) reply {
	return reply{d: &steam.Details{Type: typ, ReleaseDate: date, Genres: genres}}
}

func fail(err error) reply { return reply{err: err} }

var fixedNow = time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

func fixClock(t *testing.T) {
	t.Helper()
	prev := titles.Now
	titles.Now = func() time.Time { return fixedNow }
	t.Cleanup(func() { titles.Now = prev })
}

type env struct {
	db    *sql.DB
	repo  *titles.Repo
	state *state.MemoryStore
	up    *fakeUpstream
}

func newEnv(t *testing.T, up *fakeUpstream) *env {
	t.Helper()
	fixClock(t)
	db, err := database.OpenAndMigrate(database.Config{Path: filepath.Join(t.TempDir(), "releases.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &env{db: db, repo: titles.NewRepo(db), state: state.NewMemoryStore(), up: up}
}

func (e *env) engine(cfg Config) *Engine {
	return NewEngine(cfg, e.up, e.repo, e.state, nil)
}

// seedGames inserts already-classified games.
func (e *env) seedGames(t *testing.T, ids ...int64) {
	t.Helper()
	ctx := context.Background()
	var items []models.NewTitle
	var rows []models.Title
	for _, id := range ids {
		items = append(items, models.NewTitle{AppID: id, Name: "game"})
		rows = append(rows, models.Title{AppID: id, Name: "game", Type: models.TypeGame, UpdatedAt: "2025-01-01T00:00:00Z"})
	}
	_, err := e.repo.InsertNew(ctx, items)
	require.NoError(t, err)
	require.NoError(t, e.repo.SaveBatch(ctx, rows))
}

func (e *env) title(t *testing.T, id int64) models.Title {
	t.Helper()
	got, err := e.repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got, "title %d", id)
	return *got
}

func (e *env) stateValue(t *testing.T, key string) string {
	t.Helper()
	b, err := e.state.Get(context.Background(), key)
	if err == state.ErrNotFound {
		return ""
	}
	require.NoError(t, err)
	return string(b)
}

func testConfig() Config {
	return Config{BatchSize: 2, MaxGenreRetries: 5}
}
