package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/alejandroruanova/preference-engine/internal/http/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AssetReader loads stored images
type AssetReader interface {
	GetAsset(ctx context.Context, sessionID uuid.UUID, name string) ([]byte, string, error)
}

// AssetHandler serves generated images
type AssetHandler struct {
	assets AssetReader
}

// NewAssetHandler creates the handler
func NewAssetHandler(assets AssetReader) *AssetHandler {
	return &AssetHandler{assets: assets}
}

// GetAsset handles GET /assets/:session/:name
func (h *AssetHandler) GetAsset(c *gin.Context) {
	sessionID, ok := pathID(c, "session", "invalid_session_id")
	if !ok {
		return
	}

	data, contentType, err := h.assets.GetAsset(c.Request.Context(), sessionID, c.Param("name"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.RespondError(c, http.StatusNotFound, "asset_not_found", nil)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "load_asset_failed", err)
		return
	}

	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, contentType, data)
}
