package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/loangraph/marketsync/internal/remote"
	"github.com/loangraph/marketsync/internal/views"
)

type BlocksHandler struct {
	blocks *views.Blocks
}

func NewBlocksHandler(blocks *views.Blocks) *BlocksHandler {
	return &BlocksHandler{blocks: blocks}
}

// GetBlock selects a block in the explorer and returns it in full.
func (h *BlocksHandler) GetBlock(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.blocks.Select(c.Request.Context(), id); err != nil {
		writeLookupError(c, err, "block_not_found")
		return
	}
	b, ok := h.blocks.Detail()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "block_not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"block": b})
}

func (h *BlocksHandler) GetContract(c *gin.Context) {
	contract, err := h.blocks.Contract(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		writeLookupError(c, err, "contract_not_found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"contract": contract})
}

func writeLookupError(c *gin.Context, err error, notFound string) {
	var apiErr *remote.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.Is(err, views.ErrStopped):
		c.JSON(http.StatusConflict, gin.H{"error": "view_inactive"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend_unavailable"})
	}
}
