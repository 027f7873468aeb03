// Package titles is the catalog table: one row per store app.
package titles

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"releasehub/pkg/models"
)

// chunkSize keeps IN (...) lists under SQLite's bound-parameter limit.
const chunkSize = 500

const titleColumns = `appid, name, release_date, type, genres, unavailable, release_date_checked, updated_at`

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTitle(s scanner) (models.Title, error) {
	var (
		t           models.Title
		releaseDate sql.NullString
		typ         sql.NullString
		genres      sql.NullString
		updatedAt   sql.NullString
	)
	if err := s.Scan(&t.AppID, &t.Name, &releaseDate, &typ, &genres, &t.Unavailable, &t.ReleaseDateChecked, &updatedAt); err != nil {
		return t, err
	}
	t.ReleaseDate = releaseDate.String
	t.Type = typ.String
	t.Genres = genres.String
	t.UpdatedAt = updatedAt.String
	return t, nil
}

func collect(rows *sql.Rows) ([]models.Title, error) {
	defer rows.Close()
	var out []models.Title
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Now is the clock used for updated_at. Tests replace it.
var Now = func() time.Time { return time.Now().UTC() }

// Timestamp formats t the way updated_at is stored.
func Timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// Get returns the title or (nil, nil) when it does not exist.
func (r *Repo) Get(ctx context.Context, appID int64) (*models.Title, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+titleColumns+` FROM releases WHERE appid = ?`, appID)
	t, err := scanTitle(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get title: %w", err)
	}
	return &t, nil
}

// GetMany returns the titles that exist among ids, ordered by appid.
func (r *Repo) GetMany(ctx context.Context, ids []int64) ([]models.Title, error) {
	var out []models.Title
	err := inChunks(ids, func(chunk []int64) error {
		rows, err := r.DB.QueryContext(ctx,
			`SELECT `+titleColumns+` FROM releases WHERE appid IN (`+placeholders(len(chunk))+`)`,
			int64Args(chunk)...)
		if err != nil {
			return fmt.Errorf("get titles: %w", err)
		}
		ts, err := collect(rows)
		if err != nil {
			return err
		}
		out = append(out, ts...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppID < out[j].AppID })
	return out, nil
}

// InsertNew adds titles not yet in the table and leaves existing rows
// untouched. It returns how many rows were inserted.
func (r *Repo) InsertNew(ctx context.Context, items []models.NewTitle) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO releases (appid, name, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(appid) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	now := Timestamp(Now())
	inserted := 0
	for _, it := range items {
		if it.AppID <= 0 {
			continue
		}
		res, err := stmt.ExecContext(ctx, it.AppID, strings.TrimSpace(it.Name), now)
		if err != nil {
			return 0, fmt.Errorf("insert title %d: %w", it.AppID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

// Candidates returns the enrichment working set for a delta: games among
// ids that are not flagged unavailable and not in skip, highest appid first.
func (r *Repo) Candidates(ctx context.Context, ids []int64, skip map[int64]struct{}) ([]models.Title, error) {
	var out []models.Title
	err := inChunks(ids, func(chunk []int64) error {
		args := append([]any{models.TypeGame}, int64Args(chunk)...)
		rows, err := r.DB.QueryContext(ctx, `
			SELECT `+titleColumns+`
			FROM releases
			WHERE type = ? AND unavailable = 0 AND appid IN (`+placeholders(len(chunk))+`)
		`, args...)
		if err != nil {
			return fmt.Errorf("candidates query: %w", err)
		}
		ts, err := collect(rows)
		if err != nil {
			return err
		}
		for _, t := range ts {
			if _, skipped := skip[t.AppID]; !skipped {
				out = append(out, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppID > out[j].AppID })
	return out, nil
}

// Unchecked returns titles whose release date has never been fetched,
// highest appid first. A limit <= 0 means no limit.
func (r *Repo) Unchecked(ctx context.Context, limit int) ([]models.Title, error) {
	q := `SELECT ` + titleColumns + ` FROM releases
		WHERE release_date_checked = 0 AND unavailable = 0
		ORDER BY appid DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("unchecked query: %w", err)
	}
	return collect(rows)
}

// SaveBatch writes the enrichment fields of every title in one transaction.
func (r *Repo) SaveBatch(ctx context.Context, batch []models.Title) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE releases SET
		  release_date = ?,
		  type = ?,
		  genres = ?,
		  unavailable = ?,
		  release_date_checked = ?,
		  updated_at = ?
		WHERE appid = ?
	`)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for _, t := range batch {
		if _, err := stmt.ExecContext(ctx,
			nullString(t.ReleaseDate),
			nullString(t.Type),
			nullString(t.Genres),
			t.Unavailable,
			t.ReleaseDateChecked,
			nullString(t.UpdatedAt),
			t.AppID,
		); err != nil {
			return fmt.Errorf("update title %d: %w", t.AppID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// MatchingReleaseDate returns checked games whose release date text matches
// any of the LIKE patterns. Matching lower-cases both sides with utf8_lower,
// so patterns must be lower case.
func (r *Repo) MatchingReleaseDate(ctx context.Context, patterns []string) ([]models.Title, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	likes := make([]string, len(patterns))
	args := []any{models.TypeGame}
	for i, p := range patterns {
		likes[i] = "utf8_lower(IFNULL(release_date, '')) LIKE ?"
		args = append(args, strings.ToLower(p))
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+titleColumns+`
		FROM releases
		WHERE release_date_checked = 1 AND type = ? AND release_date IS NOT NULL
		  AND (`+strings.Join(likes, " OR ")+`)
		ORDER BY name ASC, appid ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("release date query: %w", err)
	}
	return collect(rows)
}

// UpdatedSince returns games whose enrichment changed at or after since.
func (r *Repo) UpdatedSince(ctx context.Context, since time.Time, limit int) ([]models.Title, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+titleColumns+`
		FROM releases
		WHERE type = ? AND updated_at >= ?
		ORDER BY updated_at DESC, appid DESC
		LIMIT ?
	`, models.TypeGame, Timestamp(since), limit)
	if err != nil {
		return nil, fmt.Errorf("updated since query: %w", err)
	}
	return collect(rows)
}

// ListQuery filters the catalog browse listing.
type ListQuery struct {
	Q      string // substring of the name
	Type   string
	Limit  int
	Offset int
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Title, int, error) {
	where, args := buildWhere(q)

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM releases`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scan: %w", err)
	}

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+titleColumns+` FROM releases`+where+` ORDER BY name ASC, appid ASC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list query: %w", err)
	}
	out, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func buildWhere(q ListQuery) (string, []any) {
	var where []string
	var args []any
	if kw := strings.TrimSpace(q.Q); kw != "" {
		where = append(where, "utf8_lower(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(kw)+"%")
	}
	if t := strings.TrimSpace(q.Type); t != "" {
		where = append(where, "type = ?")
		args = append(args, t)
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func inChunks(ids []int64, fn func([]int64) error) error {
	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := fn(ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
