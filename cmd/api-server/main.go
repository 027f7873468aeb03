package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"releasehub/internal/app"
	"releasehub/internal/feed"
	"releasehub/internal/grpcserver"
	"releasehub/internal/logging"
	"releasehub/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "", "config file (default: RELEASEHUB_CONFIG or ./releasehub.yaml)")
	flag.Parse()

	a, err := app.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()
	cfg := a.Config
	log := logging.Component("api")

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())

	httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: a.Router()}
	tree.AddAPIService(supervisor.NewHTTPService(httpSrv, 0))

	grpcSvc := grpcserver.NewServer(a.Calendar, a.Titles, a.Favorites)
	tree.AddAPIService(&supervisor.GRPCService{Addr: cfg.Server.GRPCAddr, Server: grpcserver.New(grpcSvc)})

	if cfg.Server.FeedAddr != "" {
		tree.AddAPIService(feed.NewServer(cfg.Server.FeedAddr, a.Hub))
	}
	if cfg.Sync.Periodic {
		tree.AddSyncService(&supervisor.PeriodicSync{Syncer: a.Engine, Interval: cfg.Sync.Interval, RunOnStart: true})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("http", cfg.Server.Addr).
		Str("grpc", cfg.Server.GRPCAddr).
		Str("feed", cfg.Server.FeedAddr).
		Bool("periodic_sync", cfg.Sync.Periodic).
		Msg("releasehub api starting")

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("supervisor stopped")
	}
	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, u := range report {
			log.Warn().Str("service", u.Name).Msg("service did not stop in time")
		}
	}
	log.Info().Msg("servers stopped")
}
