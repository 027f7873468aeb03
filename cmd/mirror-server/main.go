package main

import (
	"flag"
	"net/http"
	"time"

	"releasehub/internal/logging"
	"releasehub/internal/mirror"
)

// Serves a JSON fixture (default data/mirror.json) in place of the store
// endpoints. Point steam.catalog_url, steam.app_list_url and
// steam.details_url at it for offline runs.
func main() {
	addr := flag.String("addr", ":9000", "listen address")
	dataPath := flag.String("data", "data/mirror.json", "fixture path")
	reload := flag.Duration("reload", 5*time.Second, "fixture reload interval, 0 to disable")
	flag.Parse()

	fix, err := mirror.LoadFixture(*dataPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("load fixture")
	}
	srv := mirror.New(fix)

	if *reload > 0 {
		go func() {
			for range time.Tick(*reload) {
				f, err := mirror.LoadFixture(*dataPath)
				if err != nil {
					logging.Warn().Err(err).Msg("fixture reload failed, keeping previous")
					continue
				}
				srv.Set(f)
			}
		}()
	}

	logging.Info().Str("addr", *addr).Int("apps", len(fix.Apps)).Msg("mirror-server listening")
	if err := http.ListenAndServe(*addr, srv.Router()); err != nil {
		logging.Fatal().Err(err).Msg("mirror-server stopped")
	}
}
