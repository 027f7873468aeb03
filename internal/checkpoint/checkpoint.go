// Package checkpoint stores the catalog watermark: the highest upstream
// modification time already ingested. It only ever moves forward.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"releasehub/internal/state"
)

// Key is the state key, kept as a decimal text file by the file backend.
const Key = "modified_since.txt"

// Load returns the stored watermark, or 0 if none is stored. On a read or
// parse failure it still returns 0 together with the error so callers can
// fall back to a full delta and log the problem.
func Load(ctx context.Context, s state.Store) (int64, error) {
	b, err := s.Get(ctx, Key)
	if errors.Is(err, state.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	v, err := Decode(b)
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	return v, nil
}

func Decode(b []byte) (int64, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse checkpoint %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative checkpoint %d", v)
	}
	return v, nil
}

func Encode(v int64) []byte {
	return []byte(strconv.FormatInt(v, 10))
}

// Advance returns the new watermark after observing the given upstream
// modification times. It is never lower than current.
func Advance(current int64, observed ...int64) int64 {
	next := current
	for _, v := range observed {
		if v > next {
			next = v
		}
	}
	return next
}
