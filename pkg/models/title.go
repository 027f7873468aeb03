package models

// Title is one catalog entry (a store app) as persisted in the releases table.
//
// Empty strings stand for NULL columns: a title that has never been enriched
// has no release date, type or genres.
type Title struct {
	AppID              int64  `json:"appid"`
	Name               string `json:"name"`
	ReleaseDate        string `json:"release_date,omitempty"` // free text as served upstream
	Type               string `json:"type,omitempty"`         // "game", "dlc", ...
	Genres             string `json:"genres,omitempty"`       // comma-joined genre ids, e.g. "1,23"
	Unavailable        bool   `json:"unavailable"`            // upstream answered 403
	ReleaseDateChecked bool   `json:"release_date_checked"`
	UpdatedAt          string `json:"updated_at,omitempty"` // RFC3339, UTC
}

// IsGame reports whether the title is classified as a game.
func (t Title) IsGame() bool { return t.Type == TypeGame }

const TypeGame = "game"

// NewTitle is a title observed upstream for the first time.
type NewTitle struct {
	AppID int64
	Name  string
}
