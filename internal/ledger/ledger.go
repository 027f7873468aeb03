// Package ledger tracks, per title, how many successful fetches came back
// without genre tags. Titles that reach the threshold are left out of
// enrichment until an operator clears them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/goccy/go-json"

	"releasehub/internal/state"
)

// Key is the state key, a JSON object of decimal id to count.
const Key = "genre_retry.json"

// Ledger maps app id to the number of genre-less fetches. Counts are stored
// raw so a changed threshold applies on the next pass.
type Ledger map[int64]int

// Load reads the ledger. Any failure yields an empty ledger plus the error.
func Load(ctx context.Context, s state.Store) (Ledger, error) {
	b, err := s.Get(ctx, Key)
	if errors.Is(err, state.ErrNotFound) {
		return Ledger{}, nil
	}
	if err != nil {
		return Ledger{}, fmt.Errorf("load ledger: %w", err)
	}
	l, err := Decode(b)
	if err != nil {
		return Ledger{}, fmt.Errorf("load ledger: %w", err)
	}
	return l, nil
}

func Decode(b []byte) (Ledger, error) {
	raw := map[string]int{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("decode ledger: %w", err)
		}
	}
	l := make(Ledger, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil || v <= 0 {
			continue
		}
		l[id] = v
	}
	return l, nil
}

// Encode is deterministic: keys are written in sorted order.
func (l Ledger) Encode() ([]byte, error) {
	raw := make(map[string]int, len(l))
	for id, n := range l {
		raw[strconv.FormatInt(id, 10)] = n
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return b, nil
}

// Fail records one genre-less fetch and returns the new count.
func (l Ledger) Fail(id int64) int {
	l[id]++
	return l[id]
}

// Clear drops id; it reports whether an entry existed.
func (l Ledger) Clear(id int64) bool {
	_, ok := l[id]
	delete(l, id)
	return ok
}

func (l Ledger) Count(id int64) int { return l[id] }

// Skipped returns the ids whose count has reached maxRetries.
func (l Ledger) Skipped(maxRetries int) map[int64]struct{} {
	out := make(map[int64]struct{})
	for id, n := range l {
		if n >= maxRetries {
			out[id] = struct{}{}
		}
	}
	return out
}

func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Entry is one ledger row, used for listing.
type Entry struct {
	AppID int64 `json:"appid"`
	Count int   `json:"count"`
}

// Entries lists the ledger ordered by descending count, then id.
func (l Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l))
	for id, n := range l {
		out = append(out, Entry{AppID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].AppID < out[j].AppID
	})
	return out
}

// Save writes the ledger on its own. Sync passes commit it together with
// the checkpoint instead.
func Save(ctx context.Context, s state.Store, l Ledger) error {
	b, err := l.Encode()
	if err != nil {
		return err
	}
	if err := s.Commit(ctx, map[string][]byte{Key: b}); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}
