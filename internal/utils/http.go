package utils

import (
	"github.com/gin-gonic/gin"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
)

func GinFailedWithMessage(c *gin.Context, status int, message string) {
	c.JSON(status, model.FailedHTTPResponse{
		Status:  "failed",
		Message: message,
	})
}

// GinFailedWithCaption also reports the caption the UI should show for the failure.
func GinFailedWithCaption(c *gin.Context, status int, message string, caption string) {
	c.JSON(status, model.FailedHTTPResponse{
		Status:  "failed",
		Message: message,
		Caption: caption,
	})
}
