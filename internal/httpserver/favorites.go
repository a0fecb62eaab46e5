package httpserver

import (
	"net/http"

	favoriterepo "storefront/internal/repository/favorite"

	"github.com/gin-gonic/gin"
)

type favoriteRequest struct {
	ProductID string `json:"productId"`
}

func (h *handlers) listFavorites(c *gin.Context) {
	favs, err := h.deps.Favorites.List(c.Request.Context(), visitorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if favs == nil {
		favs = []favoriterepo.Favorite{}
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favs})
}

func (h *handlers) addFavorite(c *gin.Context) {
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("Invalid request body.", nil))
		return
	}
	if err := h.deps.Favorites.Add(c.Request.Context(), visitorFrom(c), req.ProductID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) removeFavorite(c *gin.Context) {
	if err := h.deps.Favorites.Remove(c.Request.Context(), visitorFrom(c), c.Param("productId")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
