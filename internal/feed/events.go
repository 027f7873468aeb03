package feed

import (
	"time"

	"releasehub/pkg/models"
)

const (
	TypeTitleUpdated  = "title.updated"
	TypeSyncCompleted = "sync.completed"
	TypeSyncFailed    = "sync.failed"
)

// TitleEvent is sent when enrichment changed a title.
type TitleEvent struct {
	Type        string    `json:"type"`
	AppID       int64     `json:"appid"`
	Name        string    `json:"name"`
	ReleaseDate string    `json:"release_date,omitempty"`
	Genres      string    `json:"genres,omitempty"`
	Unavailable bool      `json:"unavailable,omitempty"`
	At          time.Time `json:"at"`
}

func TitleUpdated(t models.Title) TitleEvent {
	return TitleEvent{
		Type:        TypeTitleUpdated,
		AppID:       t.AppID,
		Name:        t.Name,
		ReleaseDate: t.ReleaseDate,
		Genres:      t.Genres,
		Unavailable: t.Unavailable,
		At:          time.Now().UTC(),
	}
}

// SyncEvent is sent at the end of every sync pass.
type SyncEvent struct {
	Type   string             `json:"type"`
	Report *models.SyncReport `json:"report,omitempty"`
	Error  string             `json:"error,omitempty"`
	At     time.Time          `json:"at"`
}

func SyncFinished(r *models.SyncReport, err error) SyncEvent {
	ev := SyncEvent{Type: TypeSyncCompleted, Report: r, At: time.Now().UTC()}
	if err != nil {
		ev.Type = TypeSyncFailed
		ev.Error = err.Error()
	}
	return ev
}
