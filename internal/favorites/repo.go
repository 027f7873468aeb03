package favorites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"releasehub/pkg/models"
)

// ErrUnknownTitle is returned when a favorite references an appid that is
// not in the catalog.
var ErrUnknownTitle = errors.New("favorites: unknown title")

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Add marks appID as a favorite of userID. Adding twice is a no-op.
func (r *Repo) Add(ctx context.Context, userID string, appID int64) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO favorites (user_id, appid)
		VALUES (?, ?)
		ON CONFLICT(user_id, appid) DO NOTHING
	`, userID, appID)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return ErrUnknownTitle
		}
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

func (r *Repo) Remove(ctx context.Context, userID string, appID int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM favorites
		WHERE user_id = ? AND appid = ?
	`, userID, appID)
	if err != nil {
		return false, fmt.Errorf("remove favorite: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Item is a favorite joined with its title.
type Item struct {
	models.Title
	FavoritedAt time.Time `json:"favorited_at"`
}

// List returns the user's favorites, most recently added first.
func (r *Repo) List(ctx context.Context, userID string) ([]Item, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT r.appid, r.name, IFNULL(r.release_date,''), r.release_date_checked,
		       IFNULL(r.type,''), IFNULL(r.genres,''), r.unavailable, IFNULL(r.updated_at,''),
		       f.created_at
		FROM favorites f
		JOIN releases r ON r.appid = f.appid
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC, r.appid DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.AppID, &it.Name, &it.ReleaseDate, &it.ReleaseDateChecked,
			&it.Type, &it.Genres, &it.Unavailable, &it.UpdatedAt,
			&it.FavoritedAt,
		); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list favorites rows: %w", err)
	}
	return out, nil
}

// IDs returns the user's favorite appids.
func (r *Repo) IDs(ctx context.Context, userID string) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT appid FROM favorites WHERE user_id = ? ORDER BY appid`, userID)
	if err != nil {
		return nil, fmt.Errorf("favorite ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan favorite id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Set is IDs as a lookup set, the shape the calendar takes.
func (r *Repo) Set(ctx context.Context, userID string) (map[int64]struct{}, error) {
	ids, err := r.IDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
