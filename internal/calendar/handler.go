package calendar

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"releasehub/internal/auth"
	"releasehub/internal/dates"
	"releasehub/internal/logging"
)

// FavoriteSets loads a user's favorites as a set.
type FavoriteSets interface {
	Set(ctx context.Context, userID string) (map[int64]struct{}, error)
}

type Handler struct {
	Agg       *Aggregator
	Favorites FavoriteSets
}

func NewHandler(agg *Aggregator, favs FavoriteSets) *Handler {
	return &Handler{Agg: agg, Favorites: favs}
}

// RegisterRoutes mounts the calendar. Put auth.Optional on rg to have the
// caller's favorites flagged.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/calendar/:year/:month", h.month)
	rg.GET("/calendar/:year/:month/:day", h.day)
	rg.GET("/dates/parse", h.parse)
}

func (h *Handler) query(c *gin.Context) (Query, bool) {
	year, err1 := strconv.Atoi(c.Param("year"))
	month, err2 := strconv.Atoi(c.Param("month"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year and month must be numbers"})
		return Query{}, false
	}
	q := Query{Year: year, Month: time.Month(month)}

	if raw, ok := c.GetQuery("exclude"); ok {
		q.Excluded = splitIDs(raw)
	}

	if claims := auth.ClaimsFrom(c); claims != nil && h.Favorites != nil {
		set, err := h.Favorites.Set(c.Request.Context(), claims.UserID)
		if err != nil {
			logging.Warn().Err(err).Str("user", claims.UserID).Msg("load favorites for calendar")
		} else {
			q.Favorites = set
		}
	}
	return q, true
}

// splitIDs turns "4, 23,,57" into ["4","23","57"]. An empty string yields
// an empty, non-nil slice so ?exclude= disables the default exclusions.
func splitIDs(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (h *Handler) month(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	m, err := h.Agg.ReleasesFor(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"year":    m.Year,
		"month":   int(m.Month),
		"total":   m.Total(),
		"days":    m.Days,
		"no_date": m.Unparsed,
	})
}

func (h *Handler) day(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	d, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "day must be a number"})
		return
	}
	entries, err := h.Agg.ReleasesOn(c.Request.Context(), q, d)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":  dates.New(q.Year, q.Month, d),
		"items": entries,
	})
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, ErrInvalidDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logging.Error().Err(err).Msg("calendar query")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "calendar failed"})
}

// parse exposes the normalizer: GET /dates/parse?q=26+May,+2025
func (h *Handler) parse(c *gin.Context) {
	text := c.Query("q")
	r := dates.Normalize(text)
	resp := gin.H{
		"input":     text,
		"ok":        r.OK(),
		"precision": r.Precision,
		"strategy":  r.Strategy,
	}
	if r.OK() {
		resp["date"] = r.Date
	}
	c.JSON(http.StatusOK, resp)
}
