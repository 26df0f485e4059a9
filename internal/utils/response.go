package utils

import (
	"github.com/gin-gonic/gin"

	"scribe/internal/apperr"
)

// Success writes a 200 response with ok:true merged into data.
func Success(c *gin.Context, data gin.H) {
	body := gin.H{"ok": true}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(200, body)
}

func Error(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}

// Fail maps err to its HTTP status and client-facing message.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	Error(c, apperr.StatusOf(err), apperr.MessageOf(err))
}
