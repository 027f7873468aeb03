package favorites

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"releasehub/internal/auth"
	"releasehub/internal/calendar"
	"releasehub/internal/dates"
	"releasehub/internal/titles"
	"releasehub/pkg/database"
	"releasehub/pkg/models"
)

func setup(t *testing.T) (*sql.DB, *Repo) {
	t.Helper()
	db, err := database.OpenAndMigrate(database.Config{Path: filepath.Join(t.TempDir(), "fav.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, auth.NewRepo(db).CreateUser(ctx, auth.User{ID: "u1", Username: "ana", Email: "a@x.io", PasswordHash: "h"}))
	require.NoError(t, auth.NewRepo(db).CreateUser(ctx, auth.User{ID: "u2", Username: "bob", Email: "b@x.io", PasswordHash: "h"}))

	tr := titles.NewRepo(db)
	ts := []models.Title{
		{AppID: 10, Name: "Ten", ReleaseDate: "5 Jun, 2025", Type: "game", ReleaseDateChecked: true},
		{AppID: 20, Name: "Twenty", ReleaseDate: "June 2025", Type: "game", ReleaseDateChecked: true},
		{AppID: 30, Name: "Thirty", ReleaseDate: "5 июн. 2025", Type: "game", ReleaseDateChecked: true},
	}
	var fresh []models.NewTitle
	for _, tt := range ts {
		fresh = append(fresh, models.NewTitle{AppID: tt.AppID, Name: tt.Name})
	}
	_, err = tr.InsertNew(ctx, fresh)
	require.NoError(t, err)
	require.NoError(t, tr.SaveBatch(ctx, ts))
	return db, NewRepo(db)
}

func TestRepoAddRemoveList(t *testing.T) {
	_, r := setup(t)
	ctx := context.Background()

	require.NoError(t, r.Add(ctx, "u1", 10))
	require.NoError(t, r.Add(ctx, "u1", 10), "duplicate add is a no-op")
	require.NoError(t, r.Add(ctx, "u1", 20))
	require.NoError(t, r.Add(ctx, "u2", 30))

	err := r.Add(ctx, "u1", 999)
	assert.ErrorIs(t, err, ErrUnknownTitle)

	ids, err := r.IDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, ids)

	items, err := r.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "June 2025", items[0].ReleaseDate)

	removed, err := r.Remove(ctx, "u1", 10)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = r.Remove(ctx, "u1", 10)
	require.NoError(t, err)
	assert.False(t, removed)

	set, err := r.Set(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{20: {}}, set)
}

func router(t *testing.T, db *sql.DB, r *Repo, uid string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(r, calendar.NewAggregator(titles.NewRepo(db), nil))
	h.Today = func() dates.Date { return dates.New(2025, time.June, 5) }

	e := gin.New()
	g := e.Group("/users", func(c *gin.Context) {
		c.Set(auth.CtxClaimsKey, &auth.Claims{UserID: uid})
		c.Next()
	})
	h.RegisterRoutes(g)
	return e
}

func call(e http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestHandlerFlow(t *testing.T) {
	db, r := setup(t)
	e := router(t, db, r, "u1")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"add", http.MethodPost, "/users/favorites", gin.H{"appid": 10}, http.StatusCreated},
		{"add month-only", http.MethodPost, "/users/favorites", gin.H{"appid": 20}, http.StatusCreated},
		{"add russian", http.MethodPost, "/users/favorites", gin.H{"appid": 30}, http.StatusCreated},
		{"unknown title", http.MethodPost, "/users/favorites", gin.H{"appid": 404}, http.StatusNotFound},
		{"missing appid", http.MethodPost, "/users/favorites", gin.H{}, http.StatusBadRequest},
		{"bad delete", http.MethodDelete, "/users/favorites/abc", nil, http.StatusBadRequest},
		{"delete missing", http.MethodDelete, "/users/favorites/77", nil, http.StatusNotFound},
		{"list", http.MethodGet, "/users/favorites", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(e, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestReleasingMatchesExactDayOnly(t *testing.T) {
	db, r := setup(t)
	ctx := context.Background()
	for _, id := range []int64{10, 20, 30} {
		require.NoError(t, r.Add(ctx, "u1", id))
	}
	e := router(t, db, r, "u1")

	decode := func(w *httptest.ResponseRecorder) []int64 {
		var body struct {
			Items []models.Title `json:"items"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		var ids []int64
		for _, it := range body.Items {
			ids = append(ids, it.AppID)
		}
		return ids
	}

	w := call(e, http.MethodGet, "/users/favorites/releasing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []int64{10, 30}, decode(w), "month-only dates never match a day")

	w = call(e, http.MethodGet, "/users/favorites/releasing?date=2025-06-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(w))

	w = call(e, http.MethodGet, "/users/favorites/releasing?date=junk", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerRequiresClaims(t *testing.T) {
	db, r := setup(t)
	gin.SetMode(gin.TestMode)
	e := gin.New()
	NewHandler(r, calendar.NewAggregator(titles.NewRepo(db), nil)).RegisterRoutes(e.Group("/users"))

	w := call(e, http.MethodGet, "/users/favorites", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
