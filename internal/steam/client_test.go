package steam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		CatalogURL:     srv.URL + "/IStoreService/GetAppList/v1/",
		AppListURL:     srv.URL + "/ISteamApps/GetAppList/v2/",
		DetailsURL:     srv.URL + "/api/appdetails",
		Country:        "us",
		Language:       "ru",
		RequestTimeout: 2 * time.Second,
		PageSize:       2,
	})
}

func TestCatalogDeltaPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("if_modified_since"))
		assert.Equal(t, "1", r.URL.Query().Get("include_games"))

		switch r.URL.Query().Get("last_appid") {
		case "":
			fmt.Fprint(w, `{"response":{"apps":[{"appid":10,"name":"A","last_modified":150},{"appid":20,"name":"B","last_modified":300}],"have_more_results":true,"last_appid":20}}`)
		case "20":
			fmt.Fprint(w, `{"response":{"apps":[{"appid":30,"name":"C","last_modified":200}]}}`)
		default:
			t.Errorf("unexpected page %q", r.URL.RawQuery)
		}
	}))
	defer srv.Close()

	d, err := newTestClient(srv).CatalogDelta(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, d.IDs())
	assert.Equal(t, int64(300), d.MaxModified)
}

func TestCatalogDeltaEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{}}`)
	}))
	defer srv.Close()

	d, err := newTestClient(srv).CatalogDelta(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, d.Apps)
	assert.Zero(t, d.MaxModified)
}

func TestCatalogDeltaFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).CatalogDelta(context.Background(), 0)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestCatalogDeltaIncomplete(t *testing.T) {
	prev := maxCatalogPages
	maxCatalogPages = 3
	t.Cleanup(func() { maxCatalogPages = prev })

	tests := []struct {
		name    string
		advance bool
	}{
		{"page limit reached", true},
		{"cursor does not advance", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pages atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int64(pages.Add(1))
				last := int64(10)
				if tt.advance {
					last = 10 * n
				}
				fmt.Fprintf(w, `{"response":{"apps":[{"appid":%d,"last_modified":%d}],"have_more_results":true,"last_appid":%d}}`, last, 100+n, last)
			}))
			defer srv.Close()

			d, err := newTestClient(srv).CatalogDelta(context.Background(), 0)
			assert.ErrorIs(t, err, ErrIncomplete)
			assert.Nil(t, d)
		})
	}
}

func TestAppList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"applist":{"apps":[{"appid":1,"name":"One"},{"appid":2,"name":""}]}}`)
	}))
	defer srv.Close()

	apps, err := newTestClient(srv).AppList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []AppListEntry{{AppID: 1, Name: "One"}, {AppID: 2, Name: ""}}, apps)
}

func TestAppDetails(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    *Details
		wantErr error
	}{
		{
			name:   "ok with string genre ids",
			status: http.StatusOK,
			body:   `{"42":{"success":true,"data":{"type":"game","release_date":{"coming_soon":true,"date":"25 июн. 2025 г."},"genres":[{"id":"1","description":"Экшены"},{"id":"23","description":"Инди"}]}}}`,
			want:   &Details{AppID: 42, Type: "game", ReleaseDate: "25 июн. 2025 г.", ComingSoon: true, Genres: []string{"1", "23"}},
		},
		{
			name:   "numeric genre ids",
			status: http.StatusOK,
			body:   `{"42":{"success":true,"data":{"type":"dlc","release_date":{"date":"Jun 11, 2025"},"genres":[{"id":4}]}}}`,
			want:   &Details{AppID: 42, Type: "dlc", ReleaseDate: "Jun 11, 2025", Genres: []string{"4"}},
		},
		{name: "success false", status: http.StatusOK, body: `{"42":{"success":false}}`, wantErr: ErrMalformed},
		{name: "empty data", status: http.StatusOK, body: `{"42":{"success":true,"data":[]}}`, wantErr: ErrMalformed},
		{name: "empty body", status: http.StatusOK, body: ``, wantErr: ErrMalformed},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: ErrRateLimited},
		{name: "forbidden", status: http.StatusForbidden, wantErr: ErrForbidden},
		{name: "server error", status: http.StatusBadGateway, wantErr: ErrUnexpectedStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "42", r.URL.Query().Get("appids"))
				assert.Equal(t, "ru", r.URL.Query().Get("l"))
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			got, err := newTestClient(srv).AppDetails(context.Background(), 42)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenreString(t *testing.T) {
	assert.Equal(t, "1,23", (&Details{Genres: []string{"1", "23"}}).GenreString())
	assert.Equal(t, "", (&Details{}).GenreString())
}

func TestBreakerOpensOnRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{
		DetailsURL:      srv.URL,
		RequestTimeout:  time.Second,
		BreakerFailures: 3,
		BreakerTimeout:  time.Hour,
	})

	for i := 0; i < 3; i++ {
		_, err := c.AppDetails(context.Background(), int64(i+1))
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
	}
	_, err := c.AppDetails(context.Background(), 99)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "got %v", err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestBreakerIgnoresRateLimits(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{DetailsURL: srv.URL, BreakerFailures: 2, BreakerTimeout: time.Hour})
	for i := 0; i < 5; i++ {
		_, err := c.AppDetails(context.Background(), int64(i))
		assert.ErrorIs(t, err, ErrRateLimited, "attempt "+strconv.Itoa(i))
	}
	assert.Equal(t, int32(5), hits.Load())
}

func TestBreakerIgnoresTitleLevelAnswers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(Config{DetailsURL: srv.URL, BreakerFailures: 2, BreakerTimeout: time.Hour})
	for i := 0; i < 5; i++ {
		_, err := c.AppDetails(context.Background(), int64(i))
		assert.ErrorIs(t, err, ErrForbidden, "attempt "+strconv.Itoa(i))
	}
}
