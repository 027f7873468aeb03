package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"releasehub/internal/app"
	"releasehub/internal/logging"
)

// One scheduled run: optional full import, the catalog pass, optional
// backfill. Exits non-zero if any step failed.
func main() {
	configPath := flag.String("config", "", "config file")
	doImport := flag.Bool("import", false, "import the full app list before syncing")
	backfill := flag.Int("backfill", 0, "after syncing, enrich up to N never-checked titles (-1 for all)")
	flag.Parse()

	a, err := app.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("startup failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, a, *doImport, *backfill)
	stop()
	_ = a.Close()
	os.Exit(code)
}

func run(ctx context.Context, a *app.App, doImport bool, backfill int) int {
	log := logging.Component("updater")

	if doImport {
		r, err := a.Importer.Import(ctx)
		if err != nil {
			log.Error().Err(err).Msg("import failed")
			return 1
		}
		log.Info().Int("listed", r.Listed).Int("inserted", r.Inserted).Msg("import finished")
	}

	if _, err := a.Engine.SyncCatalog(ctx); err != nil {
		return 1
	}

	if backfill != 0 {
		limit := backfill
		if limit < 0 {
			limit = 0
		}
		if _, err := a.Engine.Backfill(ctx, limit); err != nil {
			log.Error().Err(err).Msg("backfill failed")
			return 1
		}
	}
	return 0
}
