package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"releasehub/internal/pacer"
	"releasehub/internal/steam"
	"releasehub/pkg/models"
)

// storeServer answers the delta with ids 1..n and fails details for ids
// above healthy with a 500.
type storeServer struct {
	mu   sync.Mutex
	hits map[int64]int
}

func newStoreServer(t *testing.T, n, healthy int64) (*storeServer, *httptest.Server) {
	s := &storeServer{hits: map[int64]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/catalog", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{"apps":[`)
		for id := int64(1); id <= n; id++ {
			if id > 1 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"appid":%d,"last_modified":%d}`, id, 100+id)
		}
		fmt.Fprint(w, `]}}`)
	})
	mux.HandleFunc("/details", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.URL.Query().Get("appids"), 10, 64)
		require.NoError(t, err)
		s.mu.Lock()
		s.hits[id]++
		s.mu.Unlock()
		if id > healthy {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"%d":{"success":true,"data":{"type":"game","release_date":{"date":"Jun 5, 2025"},"genres":[{"id":"1"}]}}}`, id)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *storeServer) hitsFor(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[id]
}

func TestSyncCatalogRequestsEveryTitleThroughOpenBreaker(t *testing.T) {
	srv, ts := newStoreServer(t, 12, 2)
	client := steam.NewClient(steam.Config{
		CatalogURL:      ts.URL + "/catalog",
		DetailsURL:      ts.URL + "/details",
		RequestTimeout:  time.Second,
		BreakerFailures: 10,
		BreakerTimeout:  50 * time.Millisecond,
	})

	e := newEnv(t, nil)
	ids := make([]int64, 0, 12)
	for id := int64(1); id <= 12; id++ {
		ids = append(ids, id)
	}
	e.seedGames(t, ids...)

	eng := NewEngine(Config{
		BatchSize:   50,
		Retry:       pacer.Retry{MaxAttempts: 1},
		BreakerWait: client.BreakerTimeout(),
	}, client, e.repo, e.state, nil)

	rep, err := eng.SyncCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(112), rep.Checkpoint)
	assert.Equal(t, 10, rep.Outcomes[models.OutcomeFailed])
	assert.Equal(t, 2, rep.Outcomes[models.OutcomeUpdated])

	for _, id := range ids {
		assert.Equal(t, 1, srv.hitsFor(id), "appid %d", id)
	}
	for _, id := range []int64{1, 2} {
		got := e.title(t, id)
		assert.Equal(t, "Jun 5, 2025", got.ReleaseDate, "appid %d", id)
		assert.Equal(t, "1", got.Genres)
	}
}
