package mirror

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"releasehub/internal/calendar"
	"releasehub/internal/catalog"
	"releasehub/internal/dates"
	"releasehub/internal/ledger"
	"releasehub/internal/pacer"
	"releasehub/internal/state"
	"releasehub/internal/steam"
	"releasehub/internal/titles"
	"releasehub/pkg/database"
	"releasehub/pkg/models"
)

func fixture() *Fixture {
	return &Fixture{Apps: []App{
		{AppID: 10, Name: "Ten", LastModified: 100, Type: "game", ReleaseDate: "Jun 5, 2025", Genres: []string{"1"}},
		{AppID: 20, Name: "Twenty", LastModified: 110, Type: "game", ReleaseDate: "June 2025"},
		{AppID: 30, Name: "Thirty DLC", LastModified: 120, Type: "dlc", ReleaseDate: "Jun 5, 2025", Genres: []string{"1"}},
		{AppID: 40, Name: "Region locked", LastModified: 130, Status: 403},
		{AppID: 50, Name: "Old", Unlisted: true},
	}}
}

func client(t *testing.T, srv *Server, pageSize int) *steam.Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return steam.NewClient(steam.Config{
		CatalogURL: ts.URL + CatalogPath,
		AppListURL: ts.URL + AppListPath,
		DetailsURL: ts.URL + DetailsPath,
		PageSize:   pageSize,
	})
}

func TestClientAgainstMirror(t *testing.T) {
	c := client(t, New(fixture()), 2)
	ctx := context.Background()

	delta, err := c.CatalogDelta(ctx, 105)
	require.NoError(t, err)
	assert.Equal(t, []int64{20, 30, 40}, delta.IDs(), "paged in twos")
	assert.Equal(t, int64(130), delta.MaxModified)

	list, err := c.AppList(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 5)

	d, err := c.AppDetails(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Jun 5, 2025", d.ReleaseDate)
	assert.Equal(t, "1", d.GenreString())

	_, err = c.AppDetails(ctx, 40)
	assert.ErrorIs(t, err, steam.ErrForbidden)

	_, err = c.AppDetails(ctx, 999)
	assert.ErrorIs(t, err, steam.ErrMalformed)
}

func TestSyncEndToEnd(t *testing.T) {
	srv := New(fixture())
	up := client(t, srv, 100)
	ctx := context.Background()

	db, err := database.OpenAndMigrate(database.Config{Path: filepath.Join(t.TempDir(), "e2e.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := titles.NewRepo(db)
	st := state.NewMemoryStore()
	eng := catalog.NewEngine(catalog.Config{Retry: pacer.Retry{MaxAttempts: 1}}, up, repo, st, nil)

	// first pass only discovers ids: new rows have no type yet
	r, err := eng.SyncCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Inserted)
	assert.Equal(t, 0, r.WorkingSet)
	assert.Equal(t, int64(130), r.Checkpoint)

	r, err = eng.Backfill(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, r.WorkingSet)
	assert.Equal(t, 1, r.Outcomes[models.OutcomeForbidden])

	l, err := ledger.Load(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Count(20), "no genres counts against the title")

	agg := calendar.NewAggregator(repo, nil)
	m, err := agg.ReleasesFor(ctx, calendar.Query{Year: 2025, Month: time.June})
	require.NoError(t, err)
	require.Len(t, m.Days[dates.New(2025, time.June, 5)], 1, "dlc filtered out")
	require.Len(t, m.Days[dates.New(2025, time.June, 1)], 1)

	// nothing changed upstream: an empty delta
	r, err = eng.SyncCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, r.DeltaSize)
	assert.Equal(t, int64(130), r.Checkpoint)

	f := fixture()
	f.Apps[0].ReleaseDate = "Jun 12, 2025"
	f.Apps[0].LastModified = 200
	srv.Set(f)

	r, err = eng.SyncCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.WorkingSet)
	assert.Equal(t, 1, r.Written)
	assert.Equal(t, int64(200), r.Checkpoint)

	got, err := repo.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Jun 12, 2025", got.ReleaseDate)
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"apps":[{"appid":1,"name":"One","genres":["2"]}]}`), 0o644))

	f, err := LoadFixture(path)
	require.NoError(t, err)
	require.Len(t, f.Apps, 1)
	assert.Equal(t, []string{"2"}, f.Apps[0].Genres)

	_, err = LoadFixture(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
