// Package app wires the configured components together for the binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"releasehub/internal/auth"
	"releasehub/internal/calendar"
	"releasehub/internal/catalog"
	"releasehub/internal/favorites"
	"releasehub/internal/feed"
	"releasehub/internal/logging"
	"releasehub/internal/metrics"
	"releasehub/internal/pacer"
	"releasehub/internal/state"
	"releasehub/internal/steam"
	"releasehub/internal/titles"
	"releasehub/pkg/database"
	"releasehub/pkg/utils"
)

type App struct {
	Config *utils.Config

	DB    *sql.DB
	State state.Store
	Steam *steam.Client
	Hub   *feed.Hub

	Titles    *titles.Repo
	Users     *auth.Repo
	Favorites *favorites.Repo
	Tokens    auth.TokenService

	Engine   *catalog.Engine
	Importer *catalog.Importer
	Calendar *calendar.Aggregator
}

// Load reads configuration from path (or the default locations), sets up
// logging and builds the App.
func Load(path string) (*App, error) {
	cfg, err := utils.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	return New(cfg)
}

func New(cfg *utils.Config) (*App, error) {
	db, err := database.OpenAndMigrate(database.Config{Path: cfg.Database.Path})
	if err != nil {
		return nil, err
	}
	st, err := state.Open(cfg.State.Backend, cfg.State.Dir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open state: %w", err)
	}

	client := steam.NewClient(steam.Config{
		APIKey:          cfg.Steam.APIKey,
		CatalogURL:      cfg.Steam.CatalogURL,
		AppListURL:      cfg.Steam.AppListURL,
		DetailsURL:      cfg.Steam.DetailsURL,
		Country:         cfg.Steam.Country,
		Language:        cfg.Steam.Language,
		RequestTimeout:  cfg.Steam.RequestTimeout,
		PageSize:        cfg.Steam.PageSize,
		BreakerFailures: cfg.Steam.BreakerFailures,
		BreakerTimeout:  cfg.Steam.BreakerTimeout,
	})

	a := &App{
		Config:    cfg,
		DB:        db,
		State:     st,
		Steam:     client,
		Hub:       feed.NewHub(),
		Titles:    titles.NewRepo(db),
		Users:     auth.NewRepo(db),
		Favorites: favorites.NewRepo(db),
		Tokens: auth.TokenService{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.JWTIssuer,
			Duration: cfg.Auth.JWTDuration,
		},
	}
	a.Engine = catalog.NewEngine(catalog.Config{
		BatchSize:       cfg.Sync.BatchSize,
		RequestInterval: cfg.Sync.RequestInterval,
		MaxGenreRetries: cfg.Sync.MaxGenreRetries,
		Retry:           pacer.Retry{MaxAttempts: cfg.Sync.MaxAttempts, Base: cfg.Sync.BackoffBase},
		BreakerWait:     client.BreakerTimeout(),
	}, client, a.Titles, st, a.Hub)
	a.Importer = catalog.NewImporter(client, a.Titles)
	a.Calendar = calendar.NewAggregator(a.Titles, cfg.Calendar.ExcludedGenres)
	return a, nil
}

func (a *App) Close() error {
	return errors.Join(a.State.Close(), a.DB.Close())
}

// Router builds the HTTP API.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), metrics.GinMiddleware())
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": a.Config.Database.Path})
	})
	r.GET("/ready", a.ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/ws", feed.WSHandler(a.Hub))

	auth.NewHandler(a.Users, a.Tokens).RegisterRoutes(r.Group("/auth"))

	public := r.Group("", auth.Optional(a.Tokens, a.Users))
	titles.NewHandler(a.Titles, a.Config.Calendar.ExcludedGenres).RegisterRoutes(public)
	calendar.NewHandler(a.Calendar, a.Favorites).RegisterRoutes(public)

	users := r.Group("/users", auth.Required(a.Tokens, a.Users))
	favorites.NewHandler(a.Favorites, a.Calendar).RegisterRoutes(users)

	// any signed-in user may start a pass
	users.POST("/sync", a.triggerSync)
	return r
}

func (a *App) ready(c *gin.Context) {
	stats := a.Hub.Stats()
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := a.DB.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":      "not_ready",
			"db_error":    err.Error(),
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ready",
		"db":          "ok",
		"tcp_clients": stats.TCPClients,
		"ws_clients":  stats.WSClients,
	})
}

// triggerSync starts a pass in the background; progress is visible on the
// feed.
func (a *App) triggerSync(c *gin.Context) {
	go func() {
		_, err := a.Engine.SyncCatalog(context.Background())
		if errors.Is(err, catalog.ErrSyncInProgress) {
			l := logging.Component("api")
			l.Info().Msg("sync requested while a pass is running")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
