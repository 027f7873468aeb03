package steam

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
)

// Details is the subset of the app-details payload we store.
type Details struct {
	AppID       int64
	Type        string
	ReleaseDate string
	ComingSoon  bool
	Genres      []string
}

// GenreString joins genre ids with commas, "" when there are none.
func (d *Details) GenreString() string {
	return strings.Join(d.Genres, ",")
}

// GenreID accepts both "23" and 23 on the wire.
type GenreID string

func (g *GenreID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*g = GenreID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*g = GenreID(n.String())
	return nil
}

type detailsEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type detailsData struct {
	Type        string `json:"type"`
	ReleaseDate struct {
		ComingSoon bool   `json:"coming_soon"`
		Date       string `json:"date"`
	} `json:"release_date"`
	Genres []struct {
		ID          GenreID `json:"id"`
		Description string  `json:"description"`
	} `json:"genres"`
}

// AppDetails fetches one app's details through the circuit breaker.
//
// Errors: ErrRateLimited (429), ErrForbidden (403), ErrUnexpectedStatus,
// ErrMalformed (success=false or empty data), ErrUnavailable while the
// breaker rejects calls, or a transport error.
func (c *Client) AppDetails(ctx context.Context, appID int64) (*Details, error) {
	d, err := c.breaker.Execute(func() (*Details, error) {
		return c.fetchDetails(ctx, appID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("appdetails %d: %w: %w", appID, ErrUnavailable, err)
	}
	return d, err
}

func (c *Client) fetchDetails(ctx context.Context, appID int64) (*Details, error) {
	q := url.Values{}
	q.Set("appids", itoa(appID))
	if c.cfg.Country != "" {
		q.Set("cc", c.cfg.Country)
	}
	if c.cfg.Language != "" {
		q.Set("l", c.cfg.Language)
	}
	u, err := withQuery(c.cfg.DetailsURL, q)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, "appdetails", u)
	if err != nil {
		return nil, err
	}
	return decodeDetails(appID, body)
}

func decodeDetails(appID int64, body []byte) (*Details, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("appdetails %d: empty body: %w", appID, ErrMalformed)
	}
	var env map[string]detailsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("appdetails %d: decode: %w: %v", appID, ErrMalformed, err)
	}
	entry, ok := env[itoa(appID)]
	if !ok || !entry.Success {
		return nil, fmt.Errorf("appdetails %d: success=false: %w", appID, ErrMalformed)
	}

	raw := bytes.TrimSpace(entry.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("[]")) || bytes.Equal(raw, []byte("{}")) {
		return nil, fmt.Errorf("appdetails %d: empty data: %w", appID, ErrMalformed)
	}

	var data detailsData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("appdetails %d: decode data: %w: %v", appID, ErrMalformed, err)
	}

	d := &Details{
		AppID:       appID,
		Type:        data.Type,
		ReleaseDate: strings.TrimSpace(data.ReleaseDate.Date),
		ComingSoon:  data.ReleaseDate.ComingSoon,
	}
	for _, g := range data.Genres {
		if id := strings.TrimSpace(string(g.ID)); id != "" {
			d.Genres = append(d.Genres, id)
		}
	}
	return d, nil
}
