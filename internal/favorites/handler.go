package favorites

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
	"releasehub/pkg/models"
)

// DayLookup resolves which of a set of titles release on an exact day.
type DayLookup interface {
	FavoritesOn(ctx context.Context, favorites []int64, day dates.Date) ([]models.Title, error)
}

type Handler struct {
	Repo     *Repo
	Calendar DayLookup
	// Today is the clock behind /favorites/releasing. Tests replace it.
	Today func() dates.Date
}

func NewHandler(repo *Repo, cal DayLookup) *Handler {
	return &Handler{
		Repo:     repo,
		Calendar: cal,
		Today:    func() dates.Date { return dates.Of(time.Now()) },
	}
}

// RegisterRoutes expects rg to already carry auth.Required.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/favorites", h.list)
	rg.POST("/favorites", h.add)
	rg.DELETE("/favorites/:appid", h.remove)
	rg.GET("/favorites/releasing", h.releasing)
}

func userID(c *gin.Context) (string, bool) {
	claims := auth.ClaimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return claims.UserID, true
}

func (h *Handler) list(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	items, err := h.Repo.List(c.Request.Context(), uid)
	if err != nil {
		logging.Error().Err(err).Msg("list favorites")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	if items == nil {
		items = []Item{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type addReq struct {
	AppID int64 `json:"appid" binding:"required,gt=0"`
}

func (h *Handler) add(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req addReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "appid required"})
		return
	}

	err := h.Repo.Add(c.Request.Context(), uid, req.AppID)
	switch {
	case errors.Is(err, ErrUnknownTitle):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown appid"})
		return
	case err != nil:
		logging.Error().Err(err).Int64("appid", req.AppID).Msg("add favorite")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"appid": req.AppID})
}

func (h *Handler) remove(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("appid"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appid"})
		return
	}
	removed, err := h.Repo.Remove(c.Request.Context(), uid, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// releasing lists favorites whose release date is exactly ?date=
// (YYYY-MM-DD, default today).
func (h *Handler) releasing(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	day := h.Today()
	if s := strings.TrimSpace(c.Query("date")); s != "" {
		if err := day.UnmarshalText([]byte(s)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
	}

	ctx := c.Request.Context()
	ids, err := h.Repo.IDs(ctx, uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	ts, err := h.Calendar.FavoritesOn(ctx, ids, day)
	if err != nil {
		logging.Error().Err(err).Str("day", day.String()).Msg("favorites releasing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if ts == nil {
		ts = []models.Title{}
	}
	c.JSON(http.StatusOK, gin.H{"date": day, "items": ts})
}
