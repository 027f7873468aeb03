package catalog

import (
	"context"
	"fmt"
	"strings"

	"releasehub/internal/logging"
	"releasehub/internal/steam"
	"releasehub/pkg/models"
)

// AppLister returns the full catalog listing.
type AppLister interface {
	AppList(ctx context.Context) ([]steam.AppListEntry, error)
}

// Inserter adds unseen titles.
type Inserter interface {
	InsertNew(ctx context.Context, items []models.NewTitle) (int, error)
}

type ImportReport struct {
	Listed   int `json:"listed"`
	Blank    int `json:"blank"`
	Inserted int `json:"inserted"`
}

// Importer seeds the catalog from the full app listing.
type Importer struct {
	Upstream AppLister
	Titles   Inserter
	// ChunkSize rows are inserted per transaction.
	ChunkSize int
}

func NewImporter(up AppLister, ts Inserter) *Importer {
	return &Importer{Upstream: up, Titles: ts, ChunkSize: 5000}
}

// Import inserts every listed app with a non-blank name that is not already
// present. Existing rows are left alone.
func (im *Importer) Import(ctx context.Context) (*ImportReport, error) {
	log := logging.Component("import")

	apps, err := im.Upstream.AppList(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch app list: %w", err)
	}
	rep := &ImportReport{Listed: len(apps)}

	items := make([]models.NewTitle, 0, len(apps))
	for _, a := range apps {
		name := strings.TrimSpace(a.Name)
		if name == "" || a.AppID <= 0 {
			rep.Blank++
			continue
		}
		items = append(items, models.NewTitle{AppID: a.AppID, Name: name})
	}

	size := im.ChunkSize
	if size <= 0 {
		size = len(items)
	}
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		n, err := im.Titles.InsertNew(ctx, items[start:end])
		if err != nil {
			return rep, fmt.Errorf("insert titles: %w", err)
		}
		rep.Inserted += n
		log.Debug().Int("done", end).Int("total", len(items)).Msg("import progress")
	}

	log.Info().Int("listed", rep.Listed).Int("inserted", rep.Inserted).Int("blank", rep.Blank).Msg("import finished")
	return rep, nil
}
