package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type MetaHandler struct {
	env     string
	version string
	backend string
}

func NewMetaHandler(env, version, backend string) *MetaHandler {
	return &MetaHandler{env: env, version: version, backend: backend}
}

func (h *MetaHandler) GetMeta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "MarketSync Console",
		"version": h.version,
		"env":     h.env,
		"backend": h.backend,
	})
}
