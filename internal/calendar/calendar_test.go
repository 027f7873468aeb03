package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"releasehub/internal/auth"
	"releasehub/internal/dates"
	"releasehub/internal/titles"
	"releasehub/pkg/database"
	"releasehub/pkg/models"
)

func game(id int64, name, release, genres string) models.Title {
	return models.Title{AppID: id, Name: name, ReleaseDate: release, Genres: genres, Type: models.TypeGame, ReleaseDateChecked: true}
}

func TestBucketThreeShapes(t *testing.T) {
	ts := []models.Title{
		game(1, "A", "Jun 5, 2025", ""),
		game(2, "B", "June 2025", ""),
		game(3, "C", "garbage", ""),
	}
	m := Bucket(2025, time.June, ts, nil, nil)

	require.Len(t, m.Days, 2)
	require.Len(t, m.Days[dates.New(2025, time.June, 5)], 1)
	require.Len(t, m.Days[dates.New(2025, time.June, 1)], 1)
	require.Len(t, m.Unparsed, 1)
	assert.Equal(t, int64(3), m.Unparsed[0].AppID)
	assert.Equal(t, 3, m.Total())
	assert.Equal(t, []dates.Date{dates.New(2025, time.June, 1), dates.New(2025, time.June, 5)}, m.SortedDays())
}

func TestBucketGenreBoundary(t *testing.T) {
	tests := []struct {
		name     string
		genres   string
		excluded []string
		kept     bool
	}{
		{"15 not matched by 5", "15", []string{"5"}, true},
		{"4 in list", "4,15", []string{"4"}, false},
		{"last tag", "1,23", []string{"23"}, false},
		{"no genres", "", []string{"4"}, true},
		{"no exclusions", "4", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Bucket(2025, time.June, []models.Title{game(1, "A", "Jun 5, 2025", tt.genres)}, tt.excluded, nil)
			assert.Equal(t, tt.kept, m.Total() == 1)
		})
	}
}

func TestBucketOrderAndFavorites(t *testing.T) {
	ts := []models.Title{
		game(3, "Zeta", "5 Jun, 2025", ""),
		game(2, "Alpha", "Jun 5, 2025", ""),
		game(1, "Alpha", "5 июня 2025", ""),
	}
	m := Bucket(2025, time.June, ts, nil, map[int64]struct{}{3: {}})
	es := m.Days[dates.New(2025, time.June, 5)]
	require.Len(t, es, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{es[0].AppID, es[1].AppID, es[2].AppID})
	assert.False(t, es[0].Favorite)
	assert.True(t, es[2].Favorite)
}

func TestMonthPatterns(t *testing.T) {
	ps := MonthPatterns(2025, time.June)
	assert.Contains(t, ps, "%jun, 2025%")
	assert.Contains(t, ps, "%june 2025%")
	assert.Contains(t, ps, "%июня 2025%")
	assert.Contains(t, ps, "%июнь 2025%")
	for _, p := range ps {
		assert.Equal(t, strings.ToLower(p), p, "patterns are lower case")
	}

	seen := map[string]bool{}
	for _, p := range MonthPatterns(2025, time.May) {
		assert.False(t, seen[p], "duplicate %q", p)
		seen[p] = true
	}
	assert.Contains(t, MonthPatterns(2024, time.February), "%фев. 2024%")
}

type env struct {
	repo *titles.Repo
	agg  *Aggregator
}

func newEnv(t *testing.T, ts ...models.Title) env {
	t.Helper()
	db, err := database.OpenAndMigrate(database.Config{Path: filepath.Join(t.TempDir(), "cal.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r := titles.NewRepo(db)
	ctx := context.Background()
	var fresh []models.NewTitle
	for _, tt := range ts {
		fresh = append(fresh, models.NewTitle{AppID: tt.AppID, Name: tt.Name})
	}
	_, err = r.InsertNew(ctx, fresh)
	require.NoError(t, err)
	require.NoError(t, r.SaveBatch(ctx, ts))
	return env{repo: r, agg: NewAggregator(r, []string{"4"})}
}

func fixture() []models.Title {
	unchecked := game(7, "Unchecked", "Jun 5, 2025", "")
	unchecked.ReleaseDateChecked = false
	dlc := game(8, "DLC", "Jun 5, 2025", "")
	dlc.Type = "dlc"
	return []models.Title{
		game(1, "Day", "Jun 5, 2025", "1"),
		game(2, "Month", "June 2025", ""),
		game(3, "Russian", "5 ИЮНЯ 2025 г.", ""),
		game(4, "Casual", "Jun 5, 2025", "4,15"),
		game(5, "July", "Jul 5, 2025", ""),
		game(6, "Other year", "Jun 5, 2024", ""),
		unchecked,
		dlc,
		game(9, "Short ru", "12 июн. 2025", ""),
	}
}

func TestReleasesForFiltersAndBuckets(t *testing.T) {
	e := newEnv(t, fixture()...)
	m, err := e.agg.ReleasesFor(context.Background(), Query{Year: 2025, Month: time.June})
	require.NoError(t, err)

	ids := func(d dates.Date) []int64 {
		var out []int64
		for _, en := range m.Days[d] {
			out = append(out, en.AppID)
		}
		return out
	}
	assert.Equal(t, []int64{1, 3}, ids(dates.New(2025, time.June, 5)))
	assert.Equal(t, []int64{2}, ids(dates.New(2025, time.June, 1)))
	assert.Equal(t, []int64{9}, ids(dates.New(2025, time.June, 12)))
	assert.Equal(t, 4, m.Total())

	// an explicit empty exclusion list overrides the default
	m, err = e.agg.ReleasesFor(context.Background(), Query{Year: 2025, Month: time.June, Excluded: []string{}})
	require.NoError(t, err)
	assert.Equal(t, 5, m.Total())
}

func TestReleasesOnMatchesMonthView(t *testing.T) {
	e := newEnv(t, fixture()...)
	ctx := context.Background()
	q := Query{Year: 2025, Month: time.June}
	m, err := e.agg.ReleasesFor(ctx, q)
	require.NoError(t, err)

	for day := 1; day <= dates.DaysIn(2025, time.June); day++ {
		got, err := e.agg.ReleasesOn(ctx, q, day)
		require.NoError(t, err)
		want := m.Days[dates.New(2025, time.June, day)]
		if want == nil {
			want = []Entry{}
		}
		assert.Equal(t, want, got, "day %d", day)
	}
}

func TestInvalidDates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.agg.ReleasesFor(ctx, Query{Year: 2025, Month: 13})
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = e.agg.ReleasesOn(ctx, Query{Year: 2025, Month: time.February}, 30)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestFavoritesOnDayPrecisionOnly(t *testing.T) {
	e := newEnv(t, fixture()...)
	got, err := e.agg.FavoritesOn(context.Background(), []int64{1, 2, 3, 5}, dates.New(2025, time.June, 5))
	require.NoError(t, err)

	var ids []int64
	for _, tt := range got {
		ids = append(ids, tt.AppID)
	}
	assert.Equal(t, []int64{1, 3}, ids)

	none, err := e.agg.FavoritesOn(context.Background(), nil, dates.New(2025, time.June, 5))
	require.NoError(t, err)
	assert.Empty(t, none)
}

type staticFavs map[int64]struct{}

func (s staticFavs) Set(context.Context, string) (map[int64]struct{}, error) { return s, nil }

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e := newEnv(t, fixture()...)

	r := gin.New()
	g := r.Group("", func(c *gin.Context) {
		if c.GetHeader("X-User") != "" {
			c.Set(auth.CtxClaimsKey, &auth.Claims{UserID: c.GetHeader("X-User")})
		}
		c.Next()
	})
	NewHandler(e.agg, staticFavs{2: {}}).RegisterRoutes(g)

	get := func(path, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if user != "" {
			req.Header.Set("X-User", user)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("month", func(t *testing.T) {
		w := get("/calendar/2025/6", "")
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Total  int                `json:"total"`
			Days   map[string][]Entry `json:"days"`
			NoDate []Entry            `json:"no_date"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, 4, body.Total)
		assert.Len(t, body.Days["2025-06-05"], 2)
		assert.False(t, body.Days["2025-06-01"][0].Favorite)
	})

	t.Run("favorites flagged", func(t *testing.T) {
		w := get("/calendar/2025/6/1", "u1")
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Items []Entry `json:"items"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Items, 1)
		assert.True(t, body.Items[0].Favorite)
	})

	t.Run("exclude override", func(t *testing.T) {
		w := get("/calendar/2025/6/5?exclude=", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"Casual"`)
	})

	t.Run("bad input", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get("/calendar/2025/13", "").Code)
		assert.Equal(t, http.StatusBadRequest, get("/calendar/x/6", "").Code)
		assert.Equal(t, http.StatusBadRequest, get("/calendar/2025/6/31", "").Code)
	})

	t.Run("parse", func(t *testing.T) {
		w := get("/dates/parse?q=Q3+2025", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"date":"2025-07-01"`)
		assert.Contains(t, w.Body.String(), `"precision":"quarter"`)

		w = get("/dates/parse?q=TBA", "")
		assert.Contains(t, w.Body.String(), `"ok":false`)
	})
}
