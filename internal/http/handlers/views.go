package handlers

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/views"
)

type ViewsHandler struct {
	set *views.Set
}

func NewViewsHandler(set *views.Set) *ViewsHandler {
	return &ViewsHandler{set: set}
}

// ListViews names the views open to the session's role.
func (h *ViewsHandler) ListViews(c *gin.Context) {
	role := sessionRole(c)
	out := []gin.H{}
	for _, name := range views.ForRole(role) {
		out = append(out, gin.H{"name": name, "active": h.set.Active(name)})
	}
	c.JSON(http.StatusOK, gin.H{"role": role, "views": out})
}

func (h *ViewsHandler) GetView(c *gin.Context) {
	v, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"view":   v.Name(),
		"active": h.set.Active(v.Name()),
		"data":   v.Snapshot(),
	})
}

// RefreshView runs one refresh right away and returns the new snapshot.
func (h *ViewsHandler) RefreshView(c *gin.Context) {
	v, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := v.Refresh(c.Request.Context()); err != nil {
		if errors.Is(err, views.ErrStopped) {
			c.JSON(http.StatusConflict, gin.H{"error": "view_inactive"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "refresh_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": v.Name(), "active": true, "data": v.Snapshot()})
}

func (h *ViewsHandler) lookup(c *gin.Context) (views.View, bool) {
	name := strings.TrimSpace(c.Param("name"))
	v, ok := h.set.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "view_not_found"})
		return nil, false
	}
	if !slices.Contains(views.ForRole(sessionRole(c)), name) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return nil, false
	}
	return v, true
}

func sessionRole(c *gin.Context) market.Role {
	v, _ := c.Get("user_role")
	role, _ := v.(market.Role)
	return role
}
