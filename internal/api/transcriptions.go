package api

import (
	"github.com/gin-gonic/gin"

	"scribe/internal/utils"
)

// listTranscriptions handles GET /transcriptions
func (h *Handler) listTranscriptions(c *gin.Context) {
	list, err := h.sink.List(c.Request.Context())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, gin.H{"transcriptions": list})
}

// getTranscription handles GET /transcriptions/:id
func (h *Handler) getTranscription(c *gin.Context) {
	rec, err := h.sink.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, gin.H{"transcription": rec})
}

// deleteTranscription handles DELETE /transcriptions/:id
func (h *Handler) deleteTranscription(c *gin.Context) {
	if err := h.sink.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, nil)
}
