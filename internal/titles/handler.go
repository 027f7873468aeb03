package titles

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"releasehub/pkg/models"
)

type Handler struct {
	Repo *Repo
	// Excluded genre ids are hidden from the recent-updates feed.
	Excluded []string
}

func NewHandler(repo *Repo, excluded []string) *Handler {
	return &Handler{Repo: repo, Excluded: excluded}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/titles", h.list)
	rg.GET("/titles/:appid", h.getByID)
	rg.GET("/releases/recent", h.recent)
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Q:      c.Query("q"),
		Type:   c.Query("type"),
		Limit:  parseInt(c.Query("limit"), 20),
		Offset: parseInt(c.Query("offset"), 0),
	}

	items, total, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("appid"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appid"})
		return
	}
	t, err := h.Repo.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

// recent lists games whose data changed in the last ?days= days (default 2).
func (h *Handler) recent(c *gin.Context) {
	days := parseInt(c.Query("days"), 2)
	if days < 1 || days > 30 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be 1-30"})
		return
	}
	since := Now().Add(-time.Duration(days) * 24 * time.Hour)

	items, err := h.Repo.UpdatedSince(c.Request.Context(), since, parseInt(c.Query("limit"), 200))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recent failed"})
		return
	}

	out := make([]models.Title, 0, len(items))
	for _, t := range items {
		if !HasAnyGenre(t.Genres, h.Excluded) {
			out = append(out, t)
		}
	}
	c.JSON(http.StatusOK, gin.H{"since": Timestamp(since), "items": out})
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
