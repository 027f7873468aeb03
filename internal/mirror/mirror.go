// Package mirror serves a JSON fixture in the shape of the store's catalog,
// app list and app-details endpoints, for local runs and tests.
package mirror

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

// App is one fixture row. Status, when non-zero and not 200, is returned by
// the details endpoint instead of a payload.
type App struct {
	AppID        int64    `json:"appid"`
	Name         string   `json:"name"`
	LastModified int64    `json:"last_modified"`
	Type         string   `json:"type"`
	ReleaseDate  string   `json:"release_date"`
	ComingSoon   bool     `json:"coming_soon"`
	Genres       []string `json:"genres"`
	Status       int      `json:"status,omitempty"`
	// Unlisted apps show up in the app list only.
	Unlisted bool `json:"unlisted,omitempty"`
}

type Fixture struct {
	Apps []App `json:"apps"`
}

func LoadFixture(path string) (*Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", path, err)
	}
	return &f, nil
}

// Server holds the fixture. Set swaps it while serving.
type Server struct {
	mu  sync.RWMutex
	fix *Fixture
}

func New(f *Fixture) *Server {
	if f == nil {
		f = &Fixture{}
	}
	return &Server{fix: f}
}

func (s *Server) Set(f *Fixture) {
	s.mu.Lock()
	s.fix = f
	s.mu.Unlock()
}

func (s *Server) apps() []App {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]App, len(s.fix.Apps))
	copy(out, s.fix.Apps)
	sort.Slice(out, func(i, j int) bool { return out[i].AppID < out[j].AppID })
	return out
}

// Paths the handlers are mounted on, relative to the base URL.
const (
	CatalogPath = "/IStoreService/GetAppList/v1/"
	AppListPath = "/ISteamApps/GetAppList/v2/"
	DetailsPath = "/api/appdetails"
)

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(CatalogPath, s.catalog)
	r.GET(AppListPath, s.appList)
	r.GET(DetailsPath, s.details)
	return r
}

func queryInt(c *gin.Context, key string, def int64) int64 {
	n, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) catalog(c *gin.Context) {
	since := queryInt(c, "if_modified_since", 0)
	after := queryInt(c, "last_appid", 0)
	limit := int(queryInt(c, "max_results", 10000))
	if limit <= 0 {
		limit = 10000
	}

	type entry struct {
		AppID        int64  `json:"appid"`
		Name         string `json:"name"`
		LastModified int64  `json:"last_modified"`
	}
	var page []entry
	more := false
	for _, a := range s.apps() {
		if a.Unlisted || a.LastModified <= since || a.AppID <= after {
			continue
		}
		if len(page) == limit {
			more = true
			break
		}
		page = append(page, entry{AppID: a.AppID, Name: a.Name, LastModified: a.LastModified})
	}

	resp := gin.H{"apps": page}
	if more {
		resp["have_more_results"] = true
		resp["last_appid"] = page[len(page)-1].AppID
	}
	c.JSON(http.StatusOK, gin.H{"response": resp})
}

func (s *Server) appList(c *gin.Context) {
	type entry struct {
		AppID int64  `json:"appid"`
		Name  string `json:"name"`
	}
	apps := s.apps()
	out := make([]entry, 0, len(apps))
	for _, a := range apps {
		out = append(out, entry{AppID: a.AppID, Name: a.Name})
	}
	c.JSON(http.StatusOK, gin.H{"applist": gin.H{"apps": out}})
}

func (s *Server) details(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("appids"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "appids required"})
		return
	}
	for _, a := range s.apps() {
		if a.AppID != id {
			continue
		}
		if a.Status != 0 && a.Status != http.StatusOK {
			c.Status(a.Status)
			return
		}
		genres := make([]gin.H, 0, len(a.Genres))
		for _, g := range a.Genres {
			genres = append(genres, gin.H{"id": g, "description": "genre " + g})
		}
		c.JSON(http.StatusOK, gin.H{strconv.FormatInt(id, 10): gin.H{
			"success": true,
			"data": gin.H{
				"type":         a.Type,
				"name":         a.Name,
				"release_date": gin.H{"coming_soon": a.ComingSoon, "date": a.ReleaseDate},
				"genres":       genres,
			},
		}})
		return
	}
	c.JSON(http.StatusOK, gin.H{strconv.FormatInt(id, 10): gin.H{"success": false}})
}
