package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleGetSettings returns the effective settings (defaults overlaid with
// stored overrides).
func (h *Handler) HandleGetSettings(c *gin.Context) {
	cfg, err := h.Settings.Load(c.Request.Context())
	if err != nil {
		h.Logger.WithError(err).Error("설정 조회 실패")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "설정 조회에 실패했습니다."})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// HandleUpdateSettings merges a partial update over current values.
// Unrecognized keys are rejected; a successful update drops the cached
// agent so the next request picks up the new configuration.
func (h *Handler) HandleUpdateSettings(c *gin.Context) {
	var patch map[string]json.RawMessage
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "잘못된 요청 본문입니다."})
		return
	}

	updated, err := h.Settings.Update(c.Request.Context(), patch)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	h.Agent.Invalidate()
	c.JSON(http.StatusOK, updated)
}
