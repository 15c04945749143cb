package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loangraph/marketsync/internal/market"
)

type Directory interface {
	Users() []market.User
	OnlineBanks() []market.User
}

type DirectoryHandler struct {
	dir Directory
}

func NewDirectoryHandler(dir Directory) *DirectoryHandler {
	return &DirectoryHandler{dir: dir}
}

func (h *DirectoryHandler) ListUsers(c *gin.Context) {
	users := h.dir.Users()
	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, userJSON(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// ListBanks is what a borrower picks from when filing a loan request.
func (h *DirectoryHandler) ListBanks(c *gin.Context) {
	banks := h.dir.OnlineBanks()
	out := make([]gin.H, 0, len(banks))
	for _, u := range banks {
		out = append(out, userJSON(u))
	}
	c.JSON(http.StatusOK, gin.H{"banks": out})
}
